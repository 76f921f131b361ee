package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"messenger-connector/internal/domain/dto"
	"messenger-connector/internal/infra/logger"
	"messenger-connector/internal/infra/metrics"
	client "messenger-connector/internal/pkg"
)

// MaxMessageLength is the longest text the Send API accepts in one message.
const MaxMessageLength = 2000

// MessengerConfig holds the Send API settings.
type MessengerConfig struct {
	GraphAPIURL     string
	GraphAPIVersion string
	PageAccessToken string
	Attempts        uint
}

// MessengerProvider sends replies through the Messenger Send API.
type MessengerProvider struct {
	Logger     *logger.Logger
	HttpClient *http.Client
	Metrics    *metrics.Metrics
	config     MessengerConfig
}

var _ IMessengerProvider = (*MessengerProvider)(nil)

func NewMessengerProvider(config MessengerConfig, logger *logger.Logger, httpClient *http.Client, m *metrics.Metrics) *MessengerProvider {
	return &MessengerProvider{
		Logger:     logger.With(logrus.Fields{"component": "messenger"}),
		HttpClient: httpClient,
		Metrics:    m,
		config:     config,
	}
}

// SendTextMessage sends message to the user, split into several messages when
// it is longer than MaxMessageLength.
func (th *MessengerProvider) SendTextMessage(ctx context.Context, to, message string) error {
	if to == "" || strings.TrimSpace(message) == "" {
		return fmt.Errorf("recipient (to) and message cannot be empty")
	}

	for _, part := range SplitMessage(message, MaxMessageLength) {
		payload := dto.ISendMessage{
			Recipient:     dto.Participant{ID: to},
			MessagingType: "RESPONSE",
			Message:       dto.OutgoingMessage{Text: part},
		}
		if err := th.send(ctx, "text", payload); err != nil {
			return err
		}
	}
	return nil
}

// SendImageMessage sends the image at imageURL as an attachment.
func (th *MessengerProvider) SendImageMessage(ctx context.Context, to, imageURL string) error {
	if to == "" || imageURL == "" {
		return fmt.Errorf("recipient (to) and image URL cannot be empty")
	}

	payload := dto.ISendMessage{
		Recipient:     dto.Participant{ID: to},
		MessagingType: "RESPONSE",
		Message: dto.OutgoingMessage{
			Attachment: &dto.OutgoingAttachment{
				Type:    "image",
				Payload: dto.OutgoingAttachmentPayload{URL: imageURL, IsReusable: true},
			},
		},
	}
	return th.send(ctx, "image", payload)
}

func (th *MessengerProvider) send(ctx context.Context, kind string, payload dto.ISendMessage) error {
	body, err := json.Marshal(payload)
	if err != nil {
		th.Logger.Error(fmt.Sprintf("Failed to marshal payload %v", err))
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/me/messages", th.config.GraphAPIURL, th.config.GraphAPIVersion)
	data, err := client.DoWithRetry(ctx, th.HttpClient, th.config.Attempts, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", th.config.PageAccessToken))
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	th.observe(kind, err)
	if err != nil {
		th.Logger.Error(fmt.Sprintf("Failed to send %s message to %s: %v", kind, payload.Recipient.ID, err))
		return fmt.Errorf("send %s message: %w", kind, err)
	}

	var res dto.SendMessageResponse
	if err := json.Unmarshal(data, &res); err == nil && res.MessageID != "" {
		th.Logger.Debug("Message sent", logrus.Fields{"recipient": res.RecipientID, "message_id": res.MessageID, "type": kind})
	}
	return nil
}

func (th *MessengerProvider) observe(kind string, err error) {
	if th.Metrics == nil {
		return
	}
	th.Metrics.OutgoingMessages.WithLabelValues(kind, metrics.Status(err)).Inc()
}

var sentenceEnds = []string{"\n", ". ", "! ", "? ", "؟ ", "؟", "!", "."}

// SplitMessage cuts text into parts of at most limit characters, preferring
// to cut after a line break, then after a sentence, then at a space.
func SplitMessage(text string, limit int) []string {
	text = strings.TrimSpace(text)
	var parts []string
	for {
		runes := []rune(text)
		if len(runes) <= limit {
			if text != "" {
				parts = append(parts, text)
			}
			return parts
		}

		window := string(runes[:limit])
		cut := lastBoundary(window)
		if cut <= 0 {
			cut = len(window)
		}
		if part := strings.TrimSpace(window[:cut]); part != "" {
			parts = append(parts, part)
		}
		text = strings.TrimSpace(text[cut:])
	}
}

// lastBoundary returns the byte offset just after the best cut point in the
// second half of window, or 0 when there is none.
func lastBoundary(window string) int {
	half := len(window) / 2
	for _, sep := range sentenceEnds {
		if i := strings.LastIndex(window, sep); i >= half {
			return i + len(sep)
		}
	}
	if i := strings.LastIndex(window, " "); i >= half {
		return i + 1
	}
	return 0
}
