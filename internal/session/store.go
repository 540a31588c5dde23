// Package session хранит состояние разговоров в памяти процесса
// и упорядочивает обработку сообщений внутри одного разговора.
package session

import "sync"

// State - состояние привязки канала к пользователю
type State int

const (
	StateUnlinked State = iota
	StatePendingEmail
	StateLinked
)

func (s State) String() string {
	switch s {
	case StatePendingEmail:
		return "PENDING_EMAIL"
	case StateLinked:
		return "LINKED"
	default:
		return "UNLINKED"
	}
}

// Profile - данные пользователя из канала, сохраняются до завершения привязки
type Profile struct {
	ChannelID int64
	Name      string
	Username  string
}

// Session - состояние одного разговора.
// Это кэш: привязка всегда восстанавливается по channel id из хранилища.
type Session struct {
	State   State
	UserID  string
	Pending *Profile
}

// Store - потокобезопасная карта ключ разговора -> Session
type Store struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]Session)}
}

// Get возвращает сессию. Неизвестный ключ дает StateUnlinked.
func (s *Store) Get(key string) Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[key]
}

// SetPending переводит сессию в ожидание email
func (s *Store) SetPending(key string, profile Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[key] = Session{State: StatePendingEmail, Pending: &profile}
}

// Link привязывает сессию к пользователю и забывает ожидающую запись
func (s *Store) Link(key, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[key] = Session{State: StateLinked, UserID: userID}
}

// Reset удаляет сессию
func (s *Store) Reset(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, key)
}

// Len возвращает число сессий
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
