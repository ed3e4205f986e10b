package http

import (
	"context"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/Vkt5451/Main-Street-2026-Backend/internal/service"
)

// SignatureHeader carries the provider's payload signature. The raw body
// must reach verification untouched, so this handler never json-decodes
// the request itself.
const SignatureHeader = "X-Payment-Signature"

type WebhookHandler struct {
	webhooks service.WebhookService
	timeout  time.Duration
}

func NewWebhookHandler(webhooks service.WebhookService, timeout time.Duration) *WebhookHandler {
	return &WebhookHandler{
		webhooks: webhooks,
		timeout:  timeout,
	}
}

type WebhookAckDTO struct {
	Received bool `json:"received"`
}

// POST /webhook
//
// Once the signature checks out the provider always gets a 200; internal
// failures are logged, never surfaced, because failing the ack only buys
// more redeliveries of the same outcome.
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		respondError(w, http.StatusBadRequest, "unreadable_body", "could not read request body")
		return
	}

	if err := h.webhooks.HandleEvent(ctx, payload, r.Header.Get(SignatureHeader)); err != nil {
		log.Printf("webhook rejected (request %v): %v", getRequestID(r.Context()), err)
		respondError(w, http.StatusBadRequest, "invalid_signature", "signature verification failed")
		return
	}

	respondJSON(w, http.StatusOK, WebhookAckDTO{Received: true})
}
