package payment

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/Alias1177/SignalBot/models"
)

const maxBodyBytes = 65536

// WebhookHandler verifies Stripe events and applies tier changes to store.
// notify may be nil.
func (s *Service) WebhookHandler(store models.SubscriptionStore, notify func(sub *models.Subscription)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			http.Error(w, "Error reading request body", http.StatusBadRequest)
			return
		}

		signature := r.Header.Get("Stripe-Signature")
		if signature == "" {
			http.Error(w, "Stripe-Signature header required", http.StatusBadRequest)
			return
		}

		event, err := s.VerifyEvent(body, signature)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Rejected webhook")
			http.Error(w, "Invalid signature", http.StatusBadRequest)
			return
		}

		change, err := s.Change(event)
		if errors.Is(err, ErrIgnoredEvent) {
			s.logger.Debug().Str("type", string(event.Type)).Msg("Ignoring webhook event")
			writeStatus(w, "ignored")
			return
		}
		if err != nil {
			s.logger.Error().Err(err).Str("event", event.ID).Msg("Failed to read webhook event")
			http.Error(w, "Error processing event", http.StatusBadRequest)
			return
		}

		sub, err := s.Apply(r.Context(), store, change)
		if err != nil {
			s.logger.Error().Err(err).Str("event", event.ID).Msg("Failed to apply tier change")
			http.Error(w, "Error updating subscription", http.StatusInternalServerError)
			return
		}
		if notify != nil {
			notify(sub)
		}

		writeStatus(w, "success")
	})
}

func writeStatus(w http.ResponseWriter, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
}
