package dto

// IWebhookMessage is the payload Messenger posts to the webhook.
type IWebhookMessage struct {
	Object string         `json:"object"`
	Entry  []WebhookEntry `json:"entry"`
}

type WebhookEntry struct {
	ID        string           `json:"id"`
	Time      int64            `json:"time"`
	Messaging []MessagingEvent `json:"messaging"`
}

type MessagingEvent struct {
	Sender    Participant     `json:"sender"`
	Recipient Participant     `json:"recipient"`
	Timestamp int64           `json:"timestamp"`
	Message   *WebhookMessage `json:"message,omitempty"`
	Postback  *Postback       `json:"postback,omitempty"`
}

type Participant struct {
	ID string `json:"id"`
}

type WebhookMessage struct {
	Mid         string       `json:"mid"`
	Text        string       `json:"text"`
	IsEcho      bool         `json:"is_echo"`
	Attachments []Attachment `json:"attachments"`
}

type Attachment struct {
	Type    string            `json:"type"`
	Payload AttachmentPayload `json:"payload"`
}

type AttachmentPayload struct {
	URL string `json:"url"`
}

type Postback struct {
	Mid     string `json:"mid"`
	Title   string `json:"title"`
	Payload string `json:"payload"`
}

// IncomingMessage is one user message extracted from a webhook delivery.
type IncomingMessage struct {
	SenderID       string
	MessageID      string
	Text           string
	HasAttachments bool
	Timestamp      int64
}

// Messages flattens the delivery into the user messages worth processing, in order.
// Echoes, delivery and read receipts are dropped.
func (w IWebhookMessage) Messages() []IncomingMessage {
	var out []IncomingMessage
	for _, entry := range w.Entry {
		for _, event := range entry.Messaging {
			if event.Sender.ID == "" {
				continue
			}
			switch {
			case event.Message != nil:
				if event.Message.IsEcho {
					continue
				}
				if event.Message.Text == "" && len(event.Message.Attachments) == 0 {
					continue
				}
				out = append(out, IncomingMessage{
					SenderID:       event.Sender.ID,
					MessageID:      event.Message.Mid,
					Text:           event.Message.Text,
					HasAttachments: len(event.Message.Attachments) > 0,
					Timestamp:      event.Timestamp,
				})
			case event.Postback != nil:
				text := event.Postback.Payload
				if text == "" {
					text = event.Postback.Title
				}
				if text == "" {
					continue
				}
				out = append(out, IncomingMessage{
					SenderID:  event.Sender.ID,
					MessageID: event.Postback.Mid,
					Text:      text,
					Timestamp: event.Timestamp,
				})
			}
		}
	}
	return out
}

// ISendMessage is the Send API request body.
type ISendMessage struct {
	Recipient     Participant     `json:"recipient"`
	MessagingType string          `json:"messaging_type"`
	Message       OutgoingMessage `json:"message"`
}

type OutgoingMessage struct {
	Text       string              `json:"text,omitempty"`
	Attachment *OutgoingAttachment `json:"attachment,omitempty"`
}

type OutgoingAttachment struct {
	Type    string                    `json:"type"`
	Payload OutgoingAttachmentPayload `json:"payload"`
}

type OutgoingAttachmentPayload struct {
	URL        string `json:"url"`
	IsReusable bool   `json:"is_reusable"`
}

type SendMessageResponse struct {
	RecipientID string `json:"recipient_id"`
	MessageID   string `json:"message_id"`
}
