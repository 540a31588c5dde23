package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ivanoskov/finchat_bot/internal/extraction"
	"github.com/ivanoskov/finchat_bot/internal/model"
	"github.com/ivanoskov/finchat_bot/internal/repository"
	"github.com/ivanoskov/finchat_bot/internal/session"
)

// NewAccountKeyword - ответ, по которому создается аккаунт только для канала
const NewAccountKeyword = "nuevo"

const linkFailedReply = "Lo siento, no pude vincular tu cuenta en este momento 😔. Inténtalo de nuevo enviando tu correo."

// Resolution - итог фазы привязки.
// Route == true: сообщение нужно передать маршрутизатору от имени UserID.
// Иначе пользователю отправляется Reply.
type Resolution struct {
	UserID string
	Reply  string
	Route  bool
}

// Linker - машина состояний привязки канала к пользователю:
// UNLINKED -> PENDING_EMAIL -> LINKED.
type Linker struct {
	repo   repository.Repository
	store  *session.Store
	logger *slog.Logger
}

// NewLinker создает новый экземпляр Linker
func NewLinker(repo repository.Repository, store *session.Store, logger *slog.Logger) *Linker {
	return &Linker{repo: repo, store: store, logger: orDiscard(logger)}
}

// Resolve определяет пользователя для входящего сообщения канала
func (l *Linker) Resolve(ctx context.Context, key string, profile session.Profile, text string) Resolution {
	s := l.store.Get(key)
	switch s.State {
	case session.StateLinked:
		return Resolution{UserID: s.UserID, Route: true}
	case session.StatePendingEmail:
		return l.answer(ctx, key, *s.Pending, text)
	}

	user, err := l.repo.FindUserByChannelID(ctx, profile.ChannelID)
	switch {
	case err == nil:
		l.store.Link(key, user.ID)
		return Resolution{UserID: user.ID, Route: true}
	case !errors.Is(err, repository.ErrNotFound):
		l.logger.Error("failed to look up channel user", "session", key, "error", err)
		return Resolution{Reply: Apology}
	}

	l.store.SetPending(key, profile)
	l.logger.Info("link pending", "session", key, "channel_id", profile.ChannelID)
	return Resolution{Reply: LinkPrompt(profile.Name)}
}

// Restart заново открывает привязку для аккаунта канала (/vincular).
// Аккаунт, уже связанный с email, не трогается.
func (l *Linker) Restart(ctx context.Context, key string, profile session.Profile) string {
	user, err := l.repo.FindUserByChannelID(ctx, profile.ChannelID)
	switch {
	case err == nil && user.Email != nil:
		l.store.Link(key, user.ID)
		return fmt.Sprintf("Tu cuenta ya está vinculada con %s ✅.", *user.Email)
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		l.logger.Error("failed to look up channel user", "session", key, "error", err)
		return Apology
	}

	l.store.SetPending(key, profile)
	return "Envíame el correo de tu cuenta web para vincularla 📧. Tus registros de este chat se moverán a esa cuenta."
}

// answer обрабатывает ответ в состоянии PENDING_EMAIL
func (l *Linker) answer(ctx context.Context, key string, pending session.Profile, text string) Resolution {
	reply := strings.TrimSpace(text)
	if extraction.Fold(strings.TrimPrefix(reply, "/")) == NewAccountKeyword {
		return l.createChannelAccount(ctx, key, pending)
	}

	email := strings.ToLower(reply)
	if !looksLikeEmail(email) {
		return Resolution{Reply: fmt.Sprintf("Envíame el correo de tu cuenta web o escribe \"%s\" para empezar sin ella.", NewAccountKeyword)}
	}

	target, err := l.repo.FindUserByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return Resolution{Reply: fmt.Sprintf("No encontré una cuenta web con el correo %s 🤔. Revisa que esté bien escrito o escribe \"%s\".", email, NewAccountKeyword)}
	}
	if err != nil {
		l.logger.Error("failed to look up web user", "session", key, "error", err)
		return Resolution{Reply: linkFailedReply}
	}

	err = l.repo.MergeChannelAccount(ctx, pending.ChannelID, target.ID)
	if errors.Is(err, repository.ErrChannelConflict) {
		l.logger.Warn("web account linked to another chat", "session", key, "channel_id", pending.ChannelID, "user_id", target.ID)
		return Resolution{Reply: fmt.Sprintf("La cuenta %s ya está vinculada a otro chat 🔒. Desvincúlala desde la web o escribe \"%s\".", email, NewAccountKeyword)}
	}
	if err != nil {
		l.logger.Error("account merge failed", "session", key, "channel_id", pending.ChannelID, "user_id", target.ID, "error", err)
		return Resolution{Reply: linkFailedReply}
	}

	l.store.Link(key, target.ID)
	l.logger.Info("account linked", "session", key, "channel_id", pending.ChannelID, "user_id", target.ID)
	return Resolution{
		UserID: target.ID,
		Reply:  fmt.Sprintf("✅ ¡Listo! Vinculé este chat con tu cuenta %s. Ya puedes contarme tus gastos e ingresos.", email),
	}
}

func (l *Linker) createChannelAccount(ctx context.Context, key string, pending session.Profile) Resolution {
	existing, err := l.repo.FindUserByChannelID(ctx, pending.ChannelID)
	switch {
	case err == nil:
		l.store.Link(key, existing.ID)
		return Resolution{UserID: existing.ID, Reply: welcomeReply(pending.Name)}
	case !errors.Is(err, repository.ErrNotFound):
		l.logger.Error("failed to look up channel user", "session", key, "error", err)
		return Resolution{Reply: Apology}
	}

	channelID := pending.ChannelID
	user := &model.User{
		ChannelID: &channelID,
		Name:      pending.Name,
		Active:    true,
	}
	if err := l.repo.CreateUser(ctx, user); err != nil {
		l.logger.Error("failed to create channel user", "session", key, "error", err)
		return Resolution{Reply: Apology}
	}

	l.store.Link(key, user.ID)
	l.logger.Info("channel account created", "session", key, "user_id", user.ID)
	return Resolution{UserID: user.ID, Reply: welcomeReply(pending.Name)}
}

// LinkPrompt - приглашение привязать веб-аккаунт или создать новый
func LinkPrompt(name string) string {
	greeting := "¡Hola!"
	if name != "" {
		greeting = fmt.Sprintf("¡Hola, %s!", name)
	}
	return fmt.Sprintf("%s 👋 Soy tu asistente de finanzas.\n\n"+
		"Si ya tienes cuenta en la web, envíame tu correo para vincularla.\n"+
		"Si no, escribe \"%s\" y creo una cuenta solo para este chat.", greeting, NewAccountKeyword)
}

func welcomeReply(name string) string {
	if name == "" {
		name = "listo"
	}
	return fmt.Sprintf("✅ ¡Bienvenido, %s! Tu cuenta está creada. Cuéntame tu primer gasto, por ejemplo: \"gasté 5 lucas en almuerzo\".", name)
}

func looksLikeEmail(s string) bool {
	at := strings.Index(s, "@")
	return at > 0 && at == strings.LastIndex(s, "@") &&
		strings.Contains(s[at+1:], ".") && !strings.ContainsAny(s, " \t\n")
}
