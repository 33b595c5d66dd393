package telegram

import (
	"context"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gorilla/mux"
)

// startWebhook registers the webhook with Telegram, starts the HTTP
// listener, and returns the update channel plus a shutdown function. The
// webhook path embeds the bot token so only Telegram can hit it.
func (b *Bot) startWebhook() (tgbotapi.UpdatesChannel, func(), error) {
	hookPath := "/" + b.api.Token
	wh, err := tgbotapi.NewWebhook(b.cfg.Webhook.URL + hookPath)
	if err != nil {
		return nil, nil, fmt.Errorf("building webhook config: %w", err)
	}
	if _, err := b.api.Request(wh); err != nil {
		return nil, nil, fmt.Errorf("registering webhook: %w", err)
	}

	info, err := b.api.GetWebhookInfo()
	if err != nil {
		return nil, nil, fmt.Errorf("checking webhook registration: %w", err)
	}
	if info.LastErrorDate != 0 {
		b.logger.Warn("webhook has a recent delivery error",
			"message", info.LastErrorMessage,
			"at", time.Unix(int64(info.LastErrorDate), 0))
	}

	updates := make(chan tgbotapi.Update, 100)

	router := mux.NewRouter()
	router.HandleFunc(hookPath, func(w http.ResponseWriter, r *http.Request) {
		update, err := b.api.HandleUpdate(r)
		if err != nil {
			b.logger.Warn("rejected malformed webhook update", "err", err)
			http.Error(w, "bad update", http.StatusBadRequest)
			return
		}
		select {
		case updates <- *update:
		default:
			// Telegram retries delivery; dropping beats blocking the
			// listener.
			b.logger.Warn("update buffer full, dropping webhook update")
		}
	}).Methods(http.MethodPost)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	}).Methods(http.MethodGet)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", b.cfg.Webhook.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		b.logger.Info("webhook listener started", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			b.logger.Error("webhook listener failed", "err", err)
		}
	}()

	shutdown := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			b.logger.Warn("webhook listener shutdown error", "err", err)
		}
		if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
			b.logger.Warn("webhook deregistration failed", "err", err)
		}
		close(updates)
	}

	return updates, shutdown, nil
}
