package model

import (
	"time"

	"github.com/google/uuid"
)

// ChatRole - автор сообщения в истории чата
type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ChatMessage - запись журнала переписки
type ChatMessage struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Role      ChatRole  `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// GenerateID генерирует новый UUID для сообщения, если он еще не установлен
func (m *ChatMessage) GenerateID() {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
}
