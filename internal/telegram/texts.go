package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/classfeedback/feedback-bot/internal/domain"
)

// UI texts in Russian
const (
	welcomeFmt        = "Добро пожаловать, %s! Пожалуйста, укажите, в какую группу вы ходите:"
	chooseGroupText   = "Выберите один из вариантов:"
	invalidGroupText  = "Пожалуйста, выберите группу из предложенных вариантов."
	askStartDateText  = "Отлично! Теперь укажите дату начала вашего курса в формате ДД.ММ.ГГГГ\nНапример: 01.09.2023"
	invalidDateText   = "Пожалуйста, введите дату в формате ДД.ММ.ГГГГ, например: 01.09.2023"
	registeredFmt     = "Отлично! Вы успешно зарегистрированы в группе %s.\nДата начала курса: %s.\n\nПосле каждого занятия я буду просить вас оставить обратную связь. Вы также можете в любой момент отправить мне сообщение с отзывом."
	registerFailed    = "К сожалению, произошла ошибка при регистрации. Пожалуйста, попробуйте еще раз позже или обратитесь к администратору."
	alreadyFmt        = "Привет, %s! Вы уже зарегистрированы. Чтобы оставить обратную связь о занятии, просто напишите мне сообщение."
	reactivatedFmt    = "С возвращением, %s! Я снова буду просить вас оставить обратную связь после занятий."
	cancelText        = "Регистрация отменена. Вы можете начать заново, отправив команду /start"
	notRegisteredText = "Похоже, вы еще не зарегистрированы. Пожалуйста, используйте команду /start для регистрации."
	thanksText        = "Спасибо за вашу обратную связь! Она поможет нам улучшить курс."
	stoppedText       = "Вы больше не будете получать запросы на обратную связь. Чтобы возобновить, отправьте /start"
	textOnlyText      = "Пожалуйста, отправьте отзыв текстовым сообщением."
	genericErrorText  = "Произошла ошибка. Пожалуйста, попробуйте позже."
	adminFeedbackFmt  = "📝 Получена обратная связь!\n\nПользователь: %s\nID: %d\n\n%s"
	statusFmt         = "🧾 Ваши данные:\n• Группа: %s\n• Дата начала курса: %s\n• Запросы обратной связи: %s"
	helpText          = "Я собираю обратную связь о занятиях.\n\n" +
		"/start - регистрация\n" +
		"/status - ваши данные\n" +
		"/stop - не присылать запросы обратной связи\n" +
		"/cancel - отменить регистрацию\n\n" +
		"Чтобы оставить отзыв, просто напишите мне сообщение."
)

func botCommands() []tgbotapi.BotCommand {
	return []tgbotapi.BotCommand{
		{Command: "start", Description: "Начать работу с ботом"},
		{Command: "help", Description: "Получить помощь по использованию бота"},
		{Command: "status", Description: "Показать ваши данные"},
		{Command: "stop", Description: "Не присылать запросы обратной связи"},
		{Command: "cancel", Description: "Отменить регистрацию"},
	}
}

// groupKeyboard offers one row per group, labelled "<title> (<id>)".
func groupKeyboard() tgbotapi.ReplyKeyboardMarkup {
	rows := make([][]tgbotapi.KeyboardButton, 0, len(domain.Groups()))
	for _, g := range domain.Groups() {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(g.ChoiceLabel())))
	}
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.OneTimeKeyboard = true
	kb.ResizeKeyboard = true
	return kb
}
