package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/sirupsen/logrus"

	"messenger-connector/internal/domain/dto"
	Iservices "messenger-connector/internal/domain/interfaces/services"
	"messenger-connector/internal/infra/logger"
	"messenger-connector/internal/infra/metrics"
)

const maxWebhookBody = 1 << 20

type HttpHandlers struct {
	Logger         *logger.Logger
	VerifyToken    string
	AppSecret      string
	Async          bool
	ChannelService Iservices.IChannelService
	Deduplicator   Iservices.IDeduplicator
	Metrics        *metrics.Metrics

	inflight sync.WaitGroup
}

func NewHttpHandlers(logger *logger.Logger, verifyToken, appSecret string, async bool, channelService Iservices.IChannelService, deduplicator Iservices.IDeduplicator, m *metrics.Metrics) *HttpHandlers {
	return &HttpHandlers{
		Logger:         logger,
		VerifyToken:    verifyToken,
		AppSecret:      appSecret,
		Async:          async,
		ChannelService: channelService,
		Deduplicator:   deduplicator,
		Metrics:        m,
	}
}

// VerifyWebhook answers the subscription handshake Meta sends when the
// webhook URL is registered: the hub.challenge is echoed back when the
// hub.verify_token matches the configured token.
func (th *HttpHandlers) VerifyWebhook(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	mode := query.Get("hub.mode")
	token := query.Get("hub.verify_token")
	challenge := query.Get("hub.challenge")

	if mode == "subscribe" && token == th.VerifyToken {
		th.Logger.Info("Webhook verified.")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(challenge))
		return
	}

	th.Logger.Warn("Webhook verification failed: invalid verification token.")
	http.Error(w, "Error: invalid verification token", http.StatusForbidden)
}

// ReceiveWebhook handles Messenger event notifications. Each user message in
// the delivery goes through the channel service in order. Unless async
// processing is enabled, a failure is reported to Meta with a 500.
func (th *HttpHandlers) ReceiveWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		th.Logger.Error(fmt.Sprintf("Failed to read webhook body: %s", err.Error()))
		writeJSON(w, http.StatusBadRequest, errorResponse("invalid request body"))
		return
	}

	if th.AppSecret != "" && !validSignature(th.AppSecret, body, r.Header.Get(signatureHeader)) {
		th.Logger.Warn("Rejected webhook event with an invalid signature.")
		th.countEvent("invalid_signature")
		writeJSON(w, http.StatusForbidden, errorResponse("invalid signature"))
		return
	}

	var payload dto.IWebhookMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		th.Logger.Error(fmt.Sprintf("Invalid JSON payload: %s", err.Error()))
		th.countEvent("invalid")
		writeJSON(w, http.StatusBadRequest, errorResponse("invalid JSON payload"))
		return
	}

	messages := th.fresh(r.Context(), payload.Messages())
	if len(messages) == 0 {
		writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
		return
	}

	if th.Async {
		ctx := context.WithoutCancel(r.Context())
		th.inflight.Add(1)
		go func() {
			defer th.inflight.Done()
			defer func() {
				if r := recover(); r != nil {
					th.Logger.Error(fmt.Sprintf("Recovered from panic: %v", r))
					th.countEvent("panic")
					th.countError("webhook")
				}
			}()
			for i, message := range messages {
				if err := th.handle(ctx, message); err != nil {
					th.release(ctx, messages[i:])
					return
				}
			}
		}()
		writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
		return
	}

	for i, message := range messages {
		if err := th.handle(r.Context(), message); err != nil {
			th.release(r.Context(), messages[i:])
			writeJSON(w, http.StatusInternalServerError, errorResponse(err.Error()))
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (th *HttpHandlers) handle(ctx context.Context, message dto.IncomingMessage) error {
	th.Logger.Info(fmt.Sprintf("Message from %s: %s", message.SenderID, message.Text), logrus.Fields{"mid": message.MessageID})
	if err := th.ChannelService.HandleMessage(ctx, message); err != nil {
		th.Logger.Error(fmt.Sprintf("Failed to process message from %s: %v", message.SenderID, err))
		th.countEvent("failed")
		th.countError("pipeline")
		return err
	}
	th.countEvent("processed")
	return nil
}

// fresh drops messages whose id was already handled.
func (th *HttpHandlers) fresh(ctx context.Context, messages []dto.IncomingMessage) []dto.IncomingMessage {
	if th.Deduplicator == nil {
		return messages
	}
	out := messages[:0]
	for _, message := range messages {
		seen, err := th.Deduplicator.Seen(ctx, message.MessageID)
		if err != nil {
			th.Logger.Warn(fmt.Sprintf("Dedup check failed for %s: %v", message.MessageID, err))
		}
		if seen {
			th.Logger.Info(fmt.Sprintf("Skipping duplicate message %s", message.MessageID))
			th.countEvent("duplicate")
			continue
		}
		out = append(out, message)
	}
	return out
}

// release unmarks messages that were not processed so Meta's redelivery of
// the failed webhook goes through the pipeline again.
func (th *HttpHandlers) release(ctx context.Context, messages []dto.IncomingMessage) {
	if th.Deduplicator == nil {
		return
	}
	for _, message := range messages {
		if err := th.Deduplicator.Forget(ctx, message.MessageID); err != nil {
			th.Logger.Warn(fmt.Sprintf("Failed to release message %s: %v", message.MessageID, err))
		}
	}
}

// Wait blocks until every message accepted for async processing is done.
func (th *HttpHandlers) Wait() {
	th.inflight.Wait()
}

func (th *HttpHandlers) countEvent(outcome string) {
	if th.Metrics == nil {
		return
	}
	th.Metrics.WebhookEvents.WithLabelValues(outcome).Inc()
}

func (th *HttpHandlers) countError(component string) {
	if th.Metrics == nil {
		return
	}
	th.Metrics.Errors.WithLabelValues(component).Inc()
}

func errorResponse(message string) map[string]string {
	return map[string]string{"status": "error", "message": message}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
