package model

import (
	"time"

	"github.com/google/uuid"
)

// User представляет владельца финансовых записей.
// Пользователь может быть известен только по каналу (ChannelID),
// только по веб-аккаунту (Email) или по обоим сразу.
type User struct {
	ID        string    `json:"id"`
	Email     *string   `json:"email"`
	ChannelID *int64    `json:"channel_id"`
	Name      string    `json:"name"`
	Currency  string    `json:"currency"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// GenerateID генерирует новый UUID для пользователя, если он еще не установлен
func (u *User) GenerateID() {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
}

// IsChannelOnly сообщает, что у пользователя нет веб-аккаунта.
func (u *User) IsChannelOnly() bool {
	return u.Email == nil && u.ChannelID != nil
}
