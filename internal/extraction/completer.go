package extraction

import (
	"context"
	"errors"
	"fmt"

	"github.com/ivanoskov/finchat_bot/internal/config"
	openai "github.com/sashabaranov/go-openai"
)

// ErrUnavailable возвращается, когда модель не настроена
var ErrUnavailable = errors.New("language model is not configured")

// Completer - минимальный контракт языковой модели:
// системная инструкция + сообщение пользователя -> текст ответа.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// OpenAICompleter обращается к chat completions API (OpenAI или совместимый сервер)
type OpenAICompleter struct {
	client *openai.Client
	model  string
}

// NewOpenAICompleter создает клиента. Пустой baseURL означает api.openai.com.
func NewOpenAICompleter(apiKey, baseURL, model string) *OpenAICompleter {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAICompleter{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Complete отправляет один запрос к модели
func (o *OpenAICompleter) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: 0.2,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Unavailable - заглушка для запуска без ключа API.
// Все вызовы завершаются ошибкой, и клиент переходит в режим fail-soft.
type Unavailable struct{}

func (Unavailable) Complete(context.Context, string, string) (string, error) {
	return "", ErrUnavailable
}

// NewCompleter выбирает модель по настройкам. Без ключа API возвращает Unavailable.
func NewCompleter(cfg *config.Config) Completer {
	if cfg.OpenAIKey == "" {
		return Unavailable{}
	}
	return NewOpenAICompleter(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
}
