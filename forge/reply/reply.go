// Package reply describes bot output independently of the chat transport.
package reply

import "github.com/m3rciful/forgebot/forge/action"

// Menu selects the reply keyboard attached to a message.
type Menu int

const (
	// MenuKeep leaves the current reply keyboard alone.
	MenuKeep Menu = iota
	MenuClient
	MenuAdmin
	// MenuAdminClient is the client menu with a way back to the admin panel.
	MenuAdminClient
	MenuRemove
)

// Reply keyboard labels. The transport registers them as command aliases.
const (
	LabelMakeOrder   = "🔨 Make an order"
	LabelServices    = "📋 Our services"
	LabelCustomOrder = "🧩 Custom order"
	LabelAbout       = "ℹ️ About us"
	LabelContacts    = "📞 Contacts"

	LabelAllOrders   = "📥 All orders"
	LabelStats       = "📊 Statistics"
	LabelBlacklist   = "🚫 Blacklist"
	LabelUnbans      = "📨 Unban requests"
	LabelClientMode  = "👁 Client mode"
	LabelBackToAdmin = "⚙️ Back to admin"
)

// MenuRows returns the reply keyboard layout of m, nil for MenuKeep and MenuRemove.
func MenuRows(m Menu) [][]string {
	client := [][]string{
		{LabelMakeOrder, LabelServices},
		{LabelCustomOrder},
		{LabelAbout, LabelContacts},
	}
	switch m {
	case MenuClient:
		return client
	case MenuAdminClient:
		return append(client, []string{LabelBackToAdmin})
	case MenuAdmin:
		return [][]string{
			{LabelAllOrders, LabelStats},
			{LabelBlacklist, LabelUnbans},
			{LabelClientMode},
		}
	}
	return nil
}

// Button is one inline button.
type Button struct {
	Text   string
	Action action.Token
}

// Btn builds a button.
func Btn(text string, tok action.Token) Button {
	return Button{Text: text, Action: tok}
}

// Message is one outbound message.
type Message struct {
	Text    string
	Buttons [][]Button
	Menu    Menu
	// Edit replaces the message the user interacted with instead of sending a new one.
	Edit bool
}

// Result is everything produced for one inbound update.
type Result struct {
	Messages []Message
	// Notice is a transient popup shown on callback acknowledgement.
	Notice string
	// Alert makes Notice modal.
	Alert bool
}

// Say appends a plain message.
func (r *Result) Say(text string) *Result {
	r.Messages = append(r.Messages, Message{Text: text})
	return r
}

// Add appends a message.
func (r *Result) Add(m Message) *Result {
	r.Messages = append(r.Messages, m)
	return r
}

// Text builds a result with one plain message.
func Text(text string) Result {
	return Result{Messages: []Message{{Text: text}}}
}

// WithMenu builds a result with one message carrying a reply keyboard.
func WithMenu(text string, m Menu) Result {
	return Result{Messages: []Message{{Text: text, Menu: m}}}
}

// Notice builds a result that only acknowledges with a popup.
func Notice(text string) Result {
	return Result{Notice: text}
}

// Alert builds a result that only acknowledges with a modal popup.
func Alert(text string) Result {
	return Result{Notice: text, Alert: true}
}

// Rows lays out buttons n per row.
func Rows(buttons []Button, n int) [][]Button {
	if n <= 1 {
		n = 1
	}
	var rows [][]Button
	for i := 0; i < len(buttons); i += n {
		end := min(i+n, len(buttons))
		rows = append(rows, buttons[i:end])
	}
	return rows
}
