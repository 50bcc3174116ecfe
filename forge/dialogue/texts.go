package dialogue

import (
	"fmt"
	"strings"

	"github.com/m3rciful/forgebot/forge/action"
	"github.com/m3rciful/forgebot/forge/catalog"
	"github.com/m3rciful/forgebot/forge/challenge"
	"github.com/m3rciful/forgebot/forge/domain"
	"github.com/m3rciful/forgebot/forge/reply"
	"github.com/m3rciful/forgebot/forge/session"
)

// Collected field names.
const (
	FieldServiceCode   = "service_code"
	FieldDescription   = "description"
	FieldTitle         = "title"
	FieldBudget        = "budget"
	FieldDeadline      = "deadline"
	FieldContactMethod = "contact_method"
	FieldContactValue  = "contact_value"
	FieldName          = "name"
)

const (
	msgChooseAction     = "Choose an action:"
	msgEntryGreeting    = "Hi! 😊 Before we continue, let's make sure you are not a bot."
	msgPreConfirmIntro  = "A quick check before confirming your order 🙂"
	msgEntryPassed      = "Great! 🔥 Verification passed."
	msgCorrect          = "Correct! Let's continue 👌"
	msgAskName          = "How should we address you?"
	msgChooseService    = "Choose a service:"
	msgChooseContact    = "Choose a contact method:"
	msgCustomTitle      = "Enter the order title:"
	msgCustomDesc       = "Describe the order in detail:"
	msgCustomBudget     = "Specify your budget:"
	msgCustomDeadline   = "Specify the deadline:"
	msgOrderCancelled   = "❌ Order cancelled."
	msgOrderSent        = "🔥 Order sent! We will contact you."
	msgBannedNotice     = "You have been banned."
	msgAppealPrompt     = "Please describe why you think the ban was a mistake.\nThe administrator will see this message."
	msgAppealSent       = "✅ Your unban request has been sent to the administrator.\nPlease wait for a decision."
	msgAppealPending    = "Your unban request is already pending."
	msgNotBanned        = "Your access is active, there is nothing to appeal."
	msgNoReason         = "No reason given."
	msgDefaultBanReason = "Repeated failed verification."
	msgUnknownCommand   = "Command not recognized. Use the menu below."
	msgPickOption       = "Please choose one of the options above."
	msgPickContact      = "Please choose a contact method using the buttons above."
	msgPickConfirm      = "Please confirm or cancel the order using the buttons above."
	msgStaleButton      = "This button is no longer active."
	msgNothingToVerify  = "Nothing to verify."
	msgServiceNotFound  = "Service not found"
	msgClientMode       = "👁 You switched to client mode."
)

var contactLabels = map[domain.ContactMethod]string{
	domain.ContactPhone:    "Phone",
	domain.ContactTelegram: "Telegram",
	domain.ContactEmail:    "Email",
}

var contactButtons = map[domain.ContactMethod]string{
	domain.ContactPhone:    "📱 Phone",
	domain.ContactTelegram: "💬 Telegram",
	domain.ContactEmail:    "✉️ Email",
}

var contactPrompts = map[domain.ContactMethod]string{
	domain.ContactPhone:    "Enter your phone number:",
	domain.ContactTelegram: "Enter your @username:",
	domain.ContactEmail:    "Enter your email:",
}

func challengeMessage(intro string, is challenge.Issued) reply.Message {
	text := is.Question
	if intro != "" {
		text = intro + "\n\n" + is.Question
	}
	buttons := make([]reply.Button, len(is.Options))
	for i, opt := range is.Options {
		buttons[i] = reply.Btn(opt, action.New(action.ChallengeAnswer, int64(i)))
	}
	return reply.Message{Text: text, Buttons: reply.Rows(buttons, 2)}
}

func wrongAnswerText(attempts, threshold, remaining int) string {
	return fmt.Sprintf("Wrong answer 😔\nAttempts: <b>%d</b> of %d.\nRemaining: <b>%d</b>.\nLet's try again!",
		attempts, threshold, remaining)
}

func escalationText(threshold int) string {
	return fmt.Sprintf("🚫 You failed verification %d times.\nAccess to the bot is temporarily restricted.", threshold)
}

func bannedButtons() [][]reply.Button {
	return [][]reply.Button{
		{reply.Btn("Contact admin", action.New(action.Appeal, 0))},
		{reply.Btn("Why was I banned?", action.New(action.WhyBanned, 0))},
	}
}

func banNotice(reason string) reply.Message {
	if strings.TrimSpace(reason) == "" {
		reason = msgDefaultBanReason
	}
	return reply.Message{
		Text: "🚫 Access to the bot is temporarily restricted.\n\n" +
			"Reason: <b>" + reason + "</b>\n\n" +
			"If you think this is a mistake, you can submit an unban request.",
		Buttons: bannedButtons(),
	}
}

func servicesText(c *catalog.Catalog) string {
	var b strings.Builder
	b.WriteString("<b>Our services:</b>\n")
	for _, s := range c.Services {
		fmt.Fprintf(&b, "\n🔹 <b>%s</b>\n💰 Price: <i>%s</i>\n%s\n", s.Name, s.Price, s.Description)
	}
	return b.String()
}

func servicesKeyboard(c *catalog.Catalog) [][]reply.Button {
	rows := make([][]reply.Button, 0, len(c.Services))
	for _, s := range c.Services {
		rows = append(rows, []reply.Button{
			reply.Btn(fmt.Sprintf("%s (%s)", s.Name, s.Price), action.WithArg(action.PickService, s.Code)),
		})
	}
	return rows
}

func aboutText(c *catalog.Catalog) string {
	var b strings.Builder
	b.WriteString("<b>" + c.Business.Name + "</b>\n")
	if len(c.Business.About) > 0 {
		b.WriteString("\n" + strings.Join(c.Business.About, "\n"))
	}
	return b.String()
}

func contactsText(c *catalog.Catalog) string {
	return fmt.Sprintf("<b>Contacts:</b>\nEmail: %s\nPhone: %s", c.Business.Email, c.Business.Phone)
}

func serviceChosenText(s catalog.Service) string {
	return fmt.Sprintf("You selected: <b>%s</b>\nPrice: <i>%s</i>\n\nDescribe your order:", s.Name, s.Price)
}

func contactKeyboard() [][]reply.Button {
	buttons := make([]reply.Button, 0, len(domain.ContactMethods))
	for _, m := range domain.ContactMethods {
		buttons = append(buttons, reply.Btn(contactButtons[m], action.WithArg(action.PickContact, string(m))))
	}
	return reply.Rows(buttons, 2)
}

func confirmKeyboard() [][]reply.Button {
	return [][]reply.Button{{
		reply.Btn("✅ Confirm", action.WithArg(action.Confirm, "yes")),
		reply.Btn("❌ Cancel", action.WithArg(action.Confirm, "no")),
	}}
}

func (e *Engine) serviceName(code string) string {
	if s, ok := e.catalog.Lookup(code); ok {
		return s.Name
	}
	return code
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func (e *Engine) summaryText(s *session.Session) string {
	var b strings.Builder
	b.WriteString("<b>Check your order:</b>\n\n")
	fmt.Fprintf(&b, "Name: <b>%s</b>\n", orDash(s.Field(FieldName)))
	if s.Kind == domain.KindCustom {
		fmt.Fprintf(&b, "Title: <b>%s</b>\n", s.Field(FieldTitle))
		fmt.Fprintf(&b, "Description: %s\n", s.Field(FieldDescription))
		fmt.Fprintf(&b, "Budget: %s\n", s.Field(FieldBudget))
		fmt.Fprintf(&b, "Deadline: %s\n", s.Field(FieldDeadline))
	} else {
		fmt.Fprintf(&b, "Service: <b>%s</b>\n", e.serviceName(s.Field(FieldServiceCode)))
		fmt.Fprintf(&b, "Description: %s\n", s.Field(FieldDescription))
	}
	method := domain.ContactMethod(s.Field(FieldContactMethod))
	fmt.Fprintf(&b, "%s: %s", contactLabels[method], s.Field(FieldContactValue))
	return b.String()
}

func profileLink(u User) string {
	if u.Username != "" {
		return "@" + u.Username
	}
	return "tg://user?id=" + u.ID.String()
}

func (e *Engine) adminOrderText(id int64, u User, s *session.Session) string {
	var b strings.Builder
	if s.Kind == domain.KindCustom {
		fmt.Fprintf(&b, "📥 <b>New custom order #%d</b>\n\n", id)
	} else {
		fmt.Fprintf(&b, "📥 <b>New order #%d</b>\n\n", id)
	}
	fmt.Fprintf(&b, "👤 Name: <b>%s</b> (%s, ID: <code>%d</code>)\n\n", orDash(s.Field(FieldName)), profileLink(u), u.ID)
	if s.Kind == domain.KindCustom {
		fmt.Fprintf(&b, "Title: <b>%s</b>\n", s.Field(FieldTitle))
		fmt.Fprintf(&b, "Description: %s\n", s.Field(FieldDescription))
		fmt.Fprintf(&b, "Budget: %s\n", s.Field(FieldBudget))
		fmt.Fprintf(&b, "Deadline: %s\n", s.Field(FieldDeadline))
	} else {
		fmt.Fprintf(&b, "Service: <b>%s</b>\n", e.serviceName(s.Field(FieldServiceCode)))
		fmt.Fprintf(&b, "Description: %s\n", s.Field(FieldDescription))
	}
	method := domain.ContactMethod(s.Field(FieldContactMethod))
	fmt.Fprintf(&b, "Contact (%s): %s", contactLabels[method], s.Field(FieldContactValue))
	return b.String()
}

func appealAdminText(id int64, who domain.Identity, reason string) string {
	return fmt.Sprintf("📨 <b>New unban request #%d</b>\n\nTG ID: <code>%d</code>\nReason:\n%s", id, who, reason)
}
