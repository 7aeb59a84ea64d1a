package whatsapp

// ObjectBusinessAccount is the only webhook object type handled.
const ObjectBusinessAccount = "whatsapp_business_account"

// Payload is the body of a WhatsApp Cloud API webhook delivery.
type Payload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry groups the changes for one business account.
type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

// Change is a single field update.
type Change struct {
	Field string `json:"field"`
	Value Value  `json:"value"`
}

// Value holds the messages and statuses of a change.
type Value struct {
	MessagingProduct string    `json:"messaging_product"`
	Metadata         Metadata  `json:"metadata"`
	Contacts         []Contact `json:"contacts"`
	Messages         []Message `json:"messages"`
	Statuses         []Status  `json:"statuses"`
}

// Metadata identifies the receiving business number.
type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

// Contact is the sender profile attached to inbound messages.
type Contact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

// Message is an inbound guest message.
type Message struct {
	From        string       `json:"from"`
	ID          string       `json:"id"`
	Timestamp   string       `json:"timestamp"`
	Type        string       `json:"type"`
	Text        *Text        `json:"text,omitempty"`
	Button      *Button      `json:"button,omitempty"`
	Interactive *Interactive `json:"interactive,omitempty"`
}

// Text is the body of a text message.
type Text struct {
	Body string `json:"body"`
}

// Button is a quick-reply button press.
type Button struct {
	Text    string `json:"text"`
	Payload string `json:"payload"`
}

// Interactive is a reply to a list or button message.
type Interactive struct {
	Type        string `json:"type"`
	ButtonReply *Reply `json:"button_reply,omitempty"`
	ListReply   *Reply `json:"list_reply,omitempty"`
}

// Reply is the chosen option of an interactive message.
type Reply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Status is a delivery receipt for an outbound message.
type Status struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	RecipientID string `json:"recipient_id"`
}

// InboundMessage pairs a message with the sender profile and receiving number.
type InboundMessage struct {
	Message
	ContactName   string
	PhoneNumberID string
}

// Messages flattens every inbound message across entries and changes.
func (p *Payload) Messages() []InboundMessage {
	var out []InboundMessage
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			names := make(map[string]string, len(change.Value.Contacts))
			for _, c := range change.Value.Contacts {
				names[c.WaID] = c.Profile.Name
			}
			for _, m := range change.Value.Messages {
				out = append(out, InboundMessage{
					Message:       m,
					ContactName:   names[m.From],
					PhoneNumberID: change.Value.Metadata.PhoneNumberID,
				})
			}
		}
	}
	return out
}

// Statuses flattens every delivery receipt.
func (p *Payload) Statuses() []Status {
	var out []Status
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			out = append(out, change.Value.Statuses...)
		}
	}
	return out
}

// TextOf returns the human-readable content of a message and whether it
// was a plain text message.
func TextOf(m Message) (string, bool) {
	switch {
	case m.Text != nil:
		return m.Text.Body, true
	case m.Button != nil:
		return m.Button.Text, false
	case m.Interactive != nil && m.Interactive.ButtonReply != nil:
		return m.Interactive.ButtonReply.Title, false
	case m.Interactive != nil && m.Interactive.ListReply != nil:
		return m.Interactive.ListReply.Title, false
	}
	if m.Type != "" {
		return "[" + m.Type + "]", false
	}
	return "", false
}
