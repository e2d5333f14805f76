package notify

import (
	"fmt"
	"strconv"
	"strings"

	"qms/ticket-queue/internal/models"
)

var turnTemplates = map[models.Language]string{
	models.LanguageEnglish: "It's your turn! Please proceed to window number {window}.",
	models.LanguageKazakh:  "Кезегіңіз келді! Өтінеміз, {window} терезесіне өтіңіз.",
	models.LanguageRussian: "Ваше время пришло! Пожалуйста, подойдите к окну номер {window}.",
}

var linkedTemplates = map[models.Language]string{
	models.LanguageEnglish: "{full_name}, your number is {number}.\nYou will receive a notification when it's your turn.",
	models.LanguageKazakh:  "{full_name}, сіздің нөміріңіз {number}.\nКезегіңіз келгенде хабарлама келеді.",
	models.LanguageRussian: "{full_name}, ваш номер {number}.\nВы получите уведомление, когда ваша очередь подойдет.",
}

type vars map[string]string

func renderTemplate(template string, values vars) string {
	result := template
	for key, value := range values {
		result = strings.ReplaceAll(result, "{"+key+"}", value)
	}
	return result
}

func pick(templates map[models.Language]string, lang models.Language) string {
	if template, ok := templates[lang]; ok {
		return template
	}
	return templates[models.LanguageRussian]
}

// TurnMessage tells the ticket holder which window to go to.
func TurnMessage(lang models.Language, window int) string {
	return renderTemplate(pick(turnTemplates, lang), vars{"window": strconv.Itoa(window)})
}

// LinkedMessage confirms that a chat was attached to a ticket.
func LinkedMessage(ticket models.Ticket) string {
	return renderTemplate(pick(linkedTemplates, ticket.Language), vars{
		"full_name": ticket.FullName,
		"number":    ticket.Number,
	})
}

func LinkedReport(ticket models.Ticket, subscriberID string) string {
	return fmt.Sprintf("TICKET\nFULL NAME: %s\nTELEGRAM ID: %s\nNUMBER: %s\nLANGUAGE: %s\nPHONE NUMBER: %s",
		ticket.FullName, subscriberID, ticket.Number, ticket.Language.DisplayName(), ticket.PhoneNumber)
}

func CounterResetMessage(removed int64) string {
	return fmt.Sprintf("Счетчик сброшен ✅ (удалено ожидающих талонов: %d)", removed)
}

func CounterResetFailedMessage(err error) string {
	return fmt.Sprintf("Ошибка при сбросе счетчика ❗️ %v", err)
}

func CurrentCounterMessage(counter int64) string {
	return fmt.Sprintf("Текущий счетчик: %d", counter)
}

const (
	GreetingMessage      = "Привет 👋🏻"
	UnknownTicketMessage = "Талон не найден ❗️"
	CommandDeniedMessage = "Команда недоступна"
)
