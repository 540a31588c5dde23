package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/ivanoskov/finchat_bot/internal/charts"
	"github.com/ivanoskov/finchat_bot/internal/logging"
	"github.com/ivanoskov/finchat_bot/internal/service"
	"github.com/ivanoskov/finchat_bot/internal/session"
)

// Sender - часть API Telegram, через которую бот отправляет сообщения
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Bot struct {
	api      Sender
	client   *tgbotapi.BotAPI
	services *service.Services
	store    *session.Store
	queue    *session.Queue
	charts   *charts.ChartGenerator
	logger   *slog.Logger
}

// NewBot подключается к Telegram по токену
func NewBot(token string, services *service.Services, store *session.Store, queue *session.Queue, logger *slog.Logger) (*Bot, error) {
	client, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}

	b := New(client, services, store, queue, logger)
	b.client = client
	return b, nil
}

// New создает бота поверх произвольного отправителя
func New(api Sender, services *service.Services, store *session.Store, queue *session.Queue, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Bot{
		api:      api,
		services: services,
		store:    store,
		queue:    queue,
		charts:   charts.NewChartGenerator(),
		logger:   logger,
	}
}

// Start запускает бота в режиме long polling и работает до отмены ctx
func (b *Bot) Start(ctx context.Context) error {
	if b.client == nil {
		return errors.New("bot is not connected to telegram")
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.client.GetUpdatesChan(u)
	b.logger.Info("long polling started", "bot", b.client.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			b.client.StopReceivingUpdates()
			b.queue.Wait()
			return nil
		case update, ok := <-updates:
			if !ok {
				b.queue.Wait()
				return nil
			}
			b.Dispatch(ctx, update)
		}
	}
}

// HandleWebhook - точка входа для обработки входящих webhook-обновлений.
// Обновление ставится в очередь своего чата, ответ отправляется асинхронно.
func (b *Bot) HandleWebhook(ctx context.Context, body []byte) error {
	var update tgbotapi.Update
	if err := json.Unmarshal(body, &update); err != nil {
		return fmt.Errorf("failed to decode update: %w", err)
	}

	b.Dispatch(ctx, update)
	return nil
}

// Dispatch ставит обновление в очередь. Сообщения одного чата обрабатываются по порядку.
// Принятое обновление обрабатывается до конца, даже если ctx приема уже отменен.
func (b *Bot) Dispatch(ctx context.Context, update tgbotapi.Update) {
	message := update.Message
	if message == nil || message.From == nil {
		return
	}

	b.queue.Submit(context.WithoutCancel(ctx), sessionKey(message.Chat.ID), func(ctx context.Context) {
		if err := b.handleMessage(ctx, message); err != nil {
			// Логируем ошибку, но продолжаем работу
			b.logger.Error("failed to handle update", "chat_id", message.Chat.ID, "error", err)
		}
	})
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) error {
	if message.IsCommand() {
		if handled, err := b.handleCommand(ctx, message); handled {
			return err
		}
	}

	chatID := message.Chat.ID
	if strings.TrimSpace(message.Text) == "" {
		return b.send(chatID, "Por ahora solo entiendo mensajes de texto ✍️", nil)
	}

	key := sessionKey(chatID)
	before := b.store.Get(key).State
	profile := profileOf(message)

	reply := b.services.Assistant.Handle(ctx, service.Inbound{
		Key:     key,
		Profile: &profile,
		Text:    message.Text,
	})
	return b.send(chatID, reply, b.keyboardFor(before, b.store.Get(key).State))
}

// handleCommand обрабатывает известные команды. Остальные идут как обычный текст.
func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) (bool, error) {
	chatID := message.Chat.ID
	key := sessionKey(chatID)
	profile := profileOf(message)

	switch message.Command() {
	case "start":
		res := b.services.Linker.Resolve(ctx, key, profile, message.Text)
		if !res.Route {
			return true, b.send(chatID, res.Reply, b.keyboardFor(session.StateUnlinked, b.store.Get(key).State))
		}
		return true, b.send(chatID, service.Greeting+"\n\n"+service.HelpText, getMainKeyboard())
	case "ayuda", "help":
		return true, b.send(chatID, service.HelpText, nil)
	case "vincular":
		reply := b.services.Linker.Restart(ctx, key, profile)
		var markup interface{}
		if b.store.Get(key).State == session.StatePendingEmail {
			markup = getLinkKeyboard()
		}
		return true, b.send(chatID, reply, markup)
	case "grafico":
		return true, b.handleChart(ctx, message)
	case "metas":
		return true, b.handleGoals(ctx, message)
	}
	return false, nil
}

func (b *Bot) handleChart(ctx context.Context, message *tgbotapi.Message) error {
	userID, ok, err := b.linkedUser(ctx, message)
	if !ok {
		return err
	}

	totals, err := b.services.Tracker.MonthExpensesByCategory(ctx, userID)
	if err != nil {
		b.logger.Error("failed to load month expenses", "user_id", userID, "error", err)
		return b.send(message.Chat.ID, service.Apology, nil)
	}

	png, err := b.charts.ExpensesPie(totals, "Gastos del mes")
	if err != nil {
		b.logger.Error("failed to render chart", "user_id", userID, "error", err)
		return b.send(message.Chat.ID, service.Apology, nil)
	}
	if png == nil {
		return b.send(message.Chat.ID, "Aún no tienes gastos este mes 📭.", nil)
	}
	return b.sendPhoto(message.Chat.ID, "gastos.png", png, "📊 Tus gastos del mes por categoría")
}

func (b *Bot) handleGoals(ctx context.Context, message *tgbotapi.Message) error {
	userID, ok, err := b.linkedUser(ctx, message)
	if !ok {
		return err
	}

	goals, err := b.services.Goals.List(ctx, userID)
	if err != nil {
		b.logger.Error("failed to list goals", "user_id", userID, "error", err)
		return b.send(message.Chat.ID, service.Apology, nil)
	}
	if err := b.send(message.Chat.ID, service.FormatGoals(goals), nil); err != nil {
		return err
	}

	png, err := b.charts.GoalsProgress(goals)
	if err != nil {
		b.logger.Warn("failed to render goals chart", "user_id", userID, "error", err)
		return nil
	}
	if png == nil {
		return nil
	}
	return b.sendPhoto(message.Chat.ID, "metas.png", png, "")
}

// linkedUser возвращает пользователя чата. Если чат не привязан,
// отправляет приглашение к привязке и возвращает ok == false.
func (b *Bot) linkedUser(ctx context.Context, message *tgbotapi.Message) (string, bool, error) {
	key := sessionKey(message.Chat.ID)
	res := b.services.Linker.Resolve(ctx, key, profileOf(message), message.Text)
	if res.Route {
		return res.UserID, true, nil
	}
	return "", false, b.send(message.Chat.ID, res.Reply, b.keyboardFor(session.StateUnlinked, b.store.Get(key).State))
}

// keyboardFor выбирает клавиатуру по смене состояния привязки
func (b *Bot) keyboardFor(before, after session.State) interface{} {
	switch {
	case after == session.StatePendingEmail:
		return getLinkKeyboard()
	case after == session.StateLinked && before != session.StateLinked:
		return getMainKeyboard()
	}
	return nil
}

func (b *Bot) send(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

func (b *Bot) sendPhoto(chatID int64, name string, png []byte, caption string) error {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: name, Bytes: png})
	photo.Caption = caption
	if _, err := b.api.Send(photo); err != nil {
		return fmt.Errorf("failed to send photo: %w", err)
	}
	return nil
}

func sessionKey(chatID int64) string {
	return "telegram:" + strconv.FormatInt(chatID, 10)
}

func profileOf(message *tgbotapi.Message) session.Profile {
	name := strings.TrimSpace(message.From.FirstName + " " + message.From.LastName)
	return session.Profile{
		ChannelID: message.From.ID,
		Name:      name,
		Username:  message.From.UserName,
	}
}
