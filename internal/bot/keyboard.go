package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/ivanoskov/finchat_bot/internal/service"
)

func getMainKeyboard() tgbotapi.ReplyKeyboardMarkup {
	keyboard := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/grafico"),
			tgbotapi.NewKeyboardButton("/metas"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/ayuda"),
		),
	)
	keyboard.ResizeKeyboard = true
	return keyboard
}

// getLinkKeyboard предлагает создать аккаунт без веб-привязки одной кнопкой
func getLinkKeyboard() tgbotapi.ReplyKeyboardMarkup {
	keyboard := tgbotapi.NewOneTimeReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(service.NewAccountKeyword),
		),
	)
	keyboard.ResizeKeyboard = true
	return keyboard
}
