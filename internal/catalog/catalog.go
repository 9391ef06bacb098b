// Package catalog holds user-facing texts, keyboards and command names.
package catalog

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Command is a recognised top-level instruction.
type Command string

const (
	CmdStart    Command = "start"
	CmdOrder    Command = "order"
	CmdOperator Command = "operator"
	CmdCancel   Command = "cancel"
	CmdClose    Command = "close"
	CmdHelp     Command = "help"

	// Operator only.
	CmdQueue  Command = "queue"
	CmdTarget Command = "target"
	CmdExport Command = "export"
)

const (
	ButtonOrder    = "🛒 Зробити замовлення"
	ButtonOperator = "💬 Оператор"
	ButtonHome     = "🏠 Головна"
	ButtonHelp     = "ℹ️ Допомога"
	ButtonClose    = "🔚 Завершити чат"
	ButtonContact  = "📱 Поділитися номером"
	ButtonQueue    = "📥 Черга"
)

var buttonCommands = map[string]Command{
	ButtonOrder:    CmdOrder,
	ButtonOperator: CmdOperator,
	ButtonHome:     CmdStart,
	ButtonHelp:     CmdHelp,
	ButtonClose:    CmdClose,
	ButtonQueue:    CmdQueue,
}

var slashCommands = map[string]Command{
	"start":    CmdStart,
	"order":    CmdOrder,
	"operator": CmdOperator,
	"cancel":   CmdCancel,
	"close":    CmdClose,
	"help":     CmdHelp,
	"queue":    CmdQueue,
	"target":   CmdTarget,
	"export":   CmdExport,
}

// ParseCommand recognises slash commands (with optional @botname suffix and
// arguments) and main menu button labels. isSlash reports a "/..." text even
// when the command itself is unknown.
func ParseCommand(text string) (cmd Command, args string, isSlash, ok bool) {
	text = strings.TrimSpace(text)
	if c, found := buttonCommands[text]; found {
		return c, "", false, true
	}
	if !strings.HasPrefix(text, "/") {
		return "", "", false, false
	}
	head, rest, _ := strings.Cut(text[1:], " ")
	name, _, _ := strings.Cut(head, "@")
	c, found := slashCommands[strings.ToLower(name)]
	return c, strings.TrimSpace(rest), true, found
}

// Delivery options offered in the order flow.
var DeliveryOptions = []struct {
	Key   string
	Label string
}{
	{"courier", "🚚 Кур'єр"},
	{"pickup", "🏪 Самовивіз"},
	{"post", "📦 Нова пошта"},
}

func DeliveryLabel(key string) (string, bool) {
	for _, o := range DeliveryOptions {
		if o.Key == key {
			return o.Label, true
		}
	}
	return "", false
}

var (
	MainMenu = tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(ButtonOrder),
			tgbotapi.NewKeyboardButton(ButtonOperator),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(ButtonHelp),
		),
	)

	OperatorChatMenu = tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(ButtonClose),
		),
	)

	AdminMenu = tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(ButtonQueue),
			tgbotapi.NewKeyboardButton(ButtonClose),
		),
	)

	ContactRequest = tgbotapi.NewOneTimeReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButtonContact(ButtonContact),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(ButtonHome),
		),
	)
)

func DeliveryKeyboard() tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(DeliveryOptions)+1)
	for _, o := range DeliveryOptions {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(o.Label, DeliveryData(o.Key)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("❌ Скасувати", Callback{Scope: ScopeOrder, Action: ActionCancel}.Encode()),
	))
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func CancelKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ Скасувати", Callback{Scope: ScopeOrder, Action: ActionCancel}.Encode()),
		),
	)
}

func ConfirmKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Підтвердити", Callback{Scope: ScopeOrder, Action: ActionConfirm}.Encode()),
			tgbotapi.NewInlineKeyboardButtonData("❌ Скасувати", Callback{Scope: ScopeOrder, Action: ActionCancel}.Encode()),
		),
	)
}

func OperatorRequestKeyboard(userID int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Прийняти", RelayData(ActionAccept, userID)),
			tgbotapi.NewInlineKeyboardButtonData("🚫 Відхилити", RelayData(ActionDecline, userID)),
		),
	)
}

func OperatorChatKeyboard(userID int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("↩️ Відповісти", RelayData(ActionAccept, userID)),
			tgbotapi.NewInlineKeyboardButtonData("🔚 Завершити", RelayData(ActionClose, userID)),
		),
	)
}

func StartMenuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(ButtonOrder, Callback{Scope: ScopeMenu, Action: ActionOrder}.Encode()),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(ButtonOperator, Callback{Scope: ScopeMenu, Action: ActionOperator}.Encode()),
		),
	)
}

// Texts.
const (
	TextWelcome         = "👋 Вітаємо! Оберіть дію в меню нижче."
	TextHelp            = "Команди: /order — нове замовлення, /operator — зв'язок з оператором, /cancel — скасувати, /close — завершити чат з оператором."
	TextAskProduct      = "Що бажаєте замовити? Опишіть товар одним повідомленням."
	TextEmptyProduct    = "Опис замовлення порожній. Напишіть, будь ласка, що саме бажаєте замовити."
	TextAskDelivery     = "Оберіть спосіб доставки:"
	TextAskPhone        = "Поділіться номером телефону кнопкою нижче, щоб ми могли зв'язатися з вами."
	TextBadPhone        = "Не вдалося розпізнати номер. Спробуйте ще раз кнопкою «Поділитися номером»."
	TextOrderCancelled  = "Замовлення скасовано."
	TextOrderConfirmed  = "Замовлення підтверджено."
	TextNothingToCancel = "Немає активного замовлення."
	TextFinishOrder     = "Спочатку завершіть або скасуйте поточне замовлення (/cancel)."
	TextInOperatorChat  = "Ви зараз у чаті з оператором. Щоб оформити замовлення, спершу завершіть чат (/close)."

	TextOperatorRequested = "Запит передано оператору. Очікуйте, будь ласка, відповіді тут."
	TextOperatorOffHours  = "Оператор зараз поза робочим часом. Ваш запит збережено, ми відповімо щойно почнеться робочий день."
	TextOperatorWaiting   = "Ваш запит уже в черзі. Можете написати питання — оператор його побачить."
	TextOperatorConnected = "👩‍💼 Оператор на зв'язку. Пишіть ваше питання."
	TextOperatorDeclined  = "На жаль, оператор зараз не може прийняти запит. Спробуйте пізніше."
	TextChatClosedUser    = "Чат з оператором завершено. Дякуємо за звернення!"
	TextNoOperatorChat    = "У вас немає відкритого чату з оператором."

	TextAdminNoTarget   = "Немає активного співрозмовника. Прийміть запит з черги, щоб відповісти."
	TextAdminNotWaiting = "Цей користувач уже не очікує на оператора."
	TextAdminQueueEmpty = "Черга порожня."
	TextAdminWelcome    = "Режим оператора. Нові запити надходитимуть сюди."
	TextAdminExportNone = "За вказаний період немає записів."
	TextAdminExportFail = "Не вдалося сформувати звіт. Деталі в журналі."
	TextAdminHelp       = "Команди оператора: /queue — черга, /target [id] — поточний співрозмовник або перемкнутися на id, /close [id] — завершити чат, /export [днів] — звіт у форматі Excel."
)

func AdminNewRequest(userID int64, name string, offHours bool) string {
	s := fmt.Sprintf("🔔 Новий запит від %s (id %d)", name, userID)
	if offHours {
		s += "\n⏰ Надійшов поза робочим часом"
	}
	return s
}

func AdminAccepted(userID int64, name string) string {
	return fmt.Sprintf("✅ Ви на зв'язку з %s (id %d). Повідомлення будуть пересилатися цьому користувачу.", name, userID)
}

func AdminAlreadyTarget(userID int64) string {
	return fmt.Sprintf("Ви вже на зв'язку з id %d.", userID)
}

func AdminDeclined(userID int64) string {
	return fmt.Sprintf("Запит id %d відхилено.", userID)
}

func AdminChatClosed(userID int64) string {
	return fmt.Sprintf("🔚 Чат з id %d завершено.", userID)
}

func AdminTarget(userID int64) string {
	if userID == 0 {
		return TextAdminNoTarget
	}
	return fmt.Sprintf("Поточний співрозмовник: id %d", userID)
}

// AdminForward tags a user message for the operator.
func AdminForward(userID int64, name, text string) string {
	return fmt.Sprintf("✉️ %s (id %d):\n%s", name, userID, text)
}

func OrderSummary(product, delivery, phone string) string {
	return fmt.Sprintf("📋 Ваше замовлення:\n\nТовар: %s\nДоставка: %s\nТелефон: %s\n\nПідтвердити?", product, delivery, phone)
}

func OrderAccepted(orderID string) string {
	return fmt.Sprintf("✅ Замовлення %s прийнято! Оператор зв'яжеться з вами найближчим часом.", orderID)
}

func AdminOrder(orderID string, chatID int64, username, product, delivery, phone string) string {
	return fmt.Sprintf("🚨 НОВЕ ЗАМОВЛЕННЯ %s\n\nКлієнт: %s (id %d)\nТовар: %s\nДоставка: %s\nТелефон: %s",
		orderID, username, chatID, product, delivery, phone)
}

func DeliveryChosen(label string) string {
	return "Доставка: " + label
}

// DeliveryText shows the label together with the option key.
func DeliveryText(key string) string {
	if label, ok := DeliveryLabel(key); ok {
		return label + " (" + key + ")"
	}
	return key
}

func QueueLine(userID int64, mode string, current bool) string {
	marker := "•"
	if current {
		marker = "▶"
	}
	return fmt.Sprintf("%s id %d — %s", marker, userID, mode)
}

// DisplayName prefers @username, then first and last name.
func DisplayName(username, first, last string) string {
	if username != "" {
		return "@" + username
	}
	name := strings.TrimSpace(first + " " + last)
	if name == "" {
		return "користувач"
	}
	return name
}
