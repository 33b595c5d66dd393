// Package telegram adapts the orchestrator and the ingestion pipeline to
// the Telegram Bot API. The adapter owns all user-facing text; the layers
// below it never talk to the transport.
package telegram

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/entrepeneur4lyf/chatforge/internal/config"
	"github.com/entrepeneur4lyf/chatforge/internal/ingest"
	"github.com/entrepeneur4lyf/chatforge/internal/models"
	"github.com/entrepeneur4lyf/chatforge/internal/orchestrator"
	"github.com/entrepeneur4lyf/chatforge/internal/session"
)

// Reply-keyboard button labels. Matching is exact, emoji included.
const (
	buttonPickModel = "🤖 Pick model"
	buttonStatus    = "📊 Status"
	buttonMemory    = "🧠 Dialog memory"
	buttonHelp      = "ℹ️ Help"
	buttonClear     = "🗑 Clear history"
)

// modelCallbackPrefix tags inline-keyboard callback data that carries a
// model id.
const modelCallbackPrefix = "model:"

// Bot is the Telegram transport adapter.
type Bot struct {
	api      *tgbotapi.BotAPI
	cfg      *config.Config
	store    *session.Store
	orch     *orchestrator.Orchestrator
	pipeline *ingest.Pipeline
	logger   *log.Logger
}

// New authenticates against the Bot API and wires the adapter. A bad
// token fails here, at startup.
func New(cfg *config.Config, store *session.Store, orch *orchestrator.Orchestrator, pipeline *ingest.Pipeline, logger *log.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("authenticating with Telegram: %w", err)
	}

	logger.Info("authenticated with Telegram", "username", api.Self.UserName)
	return &Bot{
		api:      api,
		cfg:      cfg,
		store:    store,
		orch:     orch,
		pipeline: pipeline,
		logger:   logger,
	}, nil
}

// Run consumes updates until the context is cancelled. Webhook mode is
// selected by configuration; long polling is the default.
func (b *Bot) Run(ctx context.Context) error {
	var updates tgbotapi.UpdatesChannel
	var stop func()

	if b.cfg.Webhook.URL != "" {
		ch, shutdown, err := b.startWebhook()
		if err != nil {
			return err
		}
		updates, stop = ch, shutdown
	} else {
		// A stale webhook registration blocks getUpdates.
		if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
			b.logger.Warn("could not delete webhook before polling", "err", err)
		}
		u := tgbotapi.NewUpdate(0)
		u.Timeout = 30
		updates = b.api.GetUpdatesChan(u)
		stop = b.api.StopReceivingUpdates
	}
	defer stop()

	b.logger.Info("bot is running", "mode", b.mode())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			go b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) mode() string {
	if b.cfg.Webhook.URL != "" {
		return "webhook"
	}
	return "polling"
}

// handleUpdate dispatches one update. Each update runs in its own
// goroutine; per-user ordering is restored by the store's turn lock inside
// the handlers.
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("panic while handling update", "panic", r)
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	chatID := msg.Chat.ID
	userID := msg.From.ID

	if msg.IsCommand() {
		b.handleCommand(chatID, userID, msg)
		return
	}

	if ref, ok := b.resolveFileRef(msg); ok {
		b.handleFile(ctx, chatID, userID, msg, ref)
		return
	}

	switch msg.Text {
	case buttonPickModel:
		b.sendModelKeyboard(chatID, userID)
	case buttonStatus:
		b.sendStatus(chatID, userID)
	case buttonMemory:
		b.sendMemory(chatID, userID)
	case buttonHelp:
		b.sendHelp(chatID)
	case buttonClear:
		b.clearHistory(chatID, userID)
	case "":
		// Stickers, locations, contacts and other non-text payloads.
		b.send(chatID, "I can work with text, images, and documents (PDF, DOCX, TXT). Send me one of those 🙂")
	default:
		b.handleText(ctx, chatID, userID, msg.Text)
	}
}

// handleText runs one plain-text turn. The turn lock keeps a user's
// overlapping messages from interleaving history writes.
func (b *Bot) handleText(ctx context.Context, chatID, userID int64, text string) {
	unlock := b.store.LockUser(userID)
	defer unlock()

	b.sendTyping(chatID)

	reply, err := b.orch.Respond(ctx, userID, text)
	if err != nil {
		b.logger.Error("text turn failed", "user", userID, "err", err)
		b.send(chatID, orchestrator.FailureMessage(err))
		return
	}

	b.sendReply(chatID, userID, reply)
}

// handleFile runs one file turn through the ingestion pipeline and, when
// extraction produced content, through the orchestrator.
func (b *Bot) handleFile(ctx context.Context, chatID, userID int64, msg *tgbotapi.Message, ref ingest.FileRef) {
	unlock := b.store.LockUser(userID)
	defer unlock()

	b.sendTyping(chatID)
	b.logger.Info("file received", "user", userID, "kind", ref.Kind, "name", ref.Name, "size", ref.Size)

	result := b.pipeline.Process(ctx, userID, ref)

	switch result.Kind {
	case ingest.ResultUnsupported, ingest.ResultError:
		b.send(chatID, result.Reason)
		return
	}

	prompt := result.Prompt
	if caption := strings.TrimSpace(msg.Caption); caption != "" {
		prompt += "\n\nThe user attached this question to the file: " + caption
	}

	reply, err := b.orch.Respond(ctx, userID, prompt)
	if err != nil {
		b.logger.Error("file turn failed", "user", userID, "err", err)
		b.send(chatID, orchestrator.FailureMessage(err))
		return
	}

	if result.Kind == ingest.ResultVision && result.ModelUsed != "" {
		reply = fmt.Sprintf("🖼 Image analyzed by %s.\n\n%s", models.DisplayName(result.ModelUsed), reply)
	}
	b.sendReply(chatID, userID, reply)
}

// resolveFileRef maps a message's attachment to a file reference with a
// resolved download URL. Media kind comes from the attachment slot, never
// from the file name.
func (b *Bot) resolveFileRef(msg *tgbotapi.Message) (ingest.FileRef, bool) {
	var (
		fileID string
		kind   ingest.FileKind
		name   string
		size   int64
	)

	switch {
	case msg.Document != nil:
		fileID = msg.Document.FileID
		kind = ingest.KindDocument
		name = msg.Document.FileName
		size = int64(msg.Document.FileSize)
	case len(msg.Photo) > 0:
		// Telegram sends several resolutions; the last is the largest.
		photo := msg.Photo[len(msg.Photo)-1]
		fileID = photo.FileID
		kind = ingest.KindPhoto
		name = "photo.jpg"
		size = int64(photo.FileSize)
	case msg.Voice != nil:
		fileID = msg.Voice.FileID
		kind = ingest.KindVoice
		name = "voice.ogg"
		size = int64(msg.Voice.FileSize)
	case msg.Video != nil:
		fileID = msg.Video.FileID
		kind = ingest.KindVideo
		name = "video.mp4"
		size = int64(msg.Video.FileSize)
	case msg.Audio != nil:
		fileID = msg.Audio.FileID
		kind = ingest.KindAudio
		name = msg.Audio.FileName
		if name == "" {
			name = "audio.mp3"
		}
		size = int64(msg.Audio.FileSize)
	default:
		return ingest.FileRef{}, false
	}

	if name == "" {
		name = "file"
	}

	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		b.logger.Error("file URL resolution failed", "file", name, "err", err)
		url = ""
	}

	return ingest.FileRef{ID: fileID, Kind: kind, Name: name, Size: size, URL: url}, true
}

func (b *Bot) handleCommand(chatID, userID int64, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		b.sendWelcome(chatID, msg.From.FirstName)
	case "help":
		b.sendHelp(chatID)
	case "model":
		b.sendModelKeyboard(chatID, userID)
	case "status":
		b.sendStatus(chatID, userID)
	case "memory":
		b.sendMemory(chatID, userID)
	case "clear":
		b.clearHistory(chatID, userID)
	case "think":
		show := b.store.SetShowReasoning(userID)
		if show {
			b.send(chatID, "🧠 Reasoning display is ON: replies will include the model's <think> sections.")
		} else {
			b.send(chatID, "🧠 Reasoning display is OFF: <think> sections are stripped from replies.")
		}
	default:
		b.send(chatID, "Unknown command. Send /help to see what I can do.")
	}
}

// handleCallback applies an inline-keyboard model pick.
func (b *Bot) handleCallback(query *tgbotapi.CallbackQuery) {
	defer func() {
		// Spinner on the user's client stops only after the callback is
		// answered.
		if _, err := b.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
			b.logger.Warn("callback answer failed", "err", err)
		}
	}()

	if query.Message == nil || !strings.HasPrefix(query.Data, modelCallbackPrefix) {
		return
	}
	modelID := strings.TrimPrefix(query.Data, modelCallbackPrefix)
	if !models.Exists(modelID) {
		b.logger.Warn("callback named unknown model", "model", modelID)
		return
	}

	userID := query.From.ID
	chatID := query.Message.Chat.ID
	b.store.SetPreferredModel(userID, modelID)

	edit := tgbotapi.NewEditMessageText(chatID, query.Message.MessageID,
		fmt.Sprintf("✅ Model set: %s", models.DisplayName(modelID)))
	if _, err := b.api.Send(edit); err != nil {
		b.logger.Warn("model confirmation edit failed", "err", err)
	}
}

func (b *Bot) sendWelcome(chatID int64, firstName string) {
	greeting := "Hi"
	if firstName != "" {
		greeting = "Hi, " + firstName
	}
	text := greeting + `! 👋

I am an AI assistant. I can:
• answer questions and keep up a dialog
• analyze documents (PDF, DOCX, TXT)
• describe images and read text from them

Just write me a message or send a file. Use the buttons below or /help for more.`

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = mainKeyboard()
	b.deliver(msg)
}

func (b *Bot) sendHelp(chatID int64) {
	b.send(chatID, `What I can do:

💬 Text — just write, I remember the dialog context
📄 Files — send a PDF, DOCX, or TXT and I will summarize it
🖼 Images — I describe them and read any text

Commands:
/model — pick the AI model
/status — current model and settings
/memory — dialog memory usage
/think — toggle showing the model's reasoning
/clear — forget our dialog
/help — this message`)
}

// sendModelKeyboard offers the catalog as an inline keyboard, one model
// per row, the current pick marked.
func (b *Bot) sendModelKeyboard(chatID, userID int64) {
	current := b.store.Preferences(userID).PreferredModel

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(models.Catalog))
	for _, m := range models.Catalog {
		label := m.DisplayName
		if m.ID == current {
			label = "✅ " + label
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, modelCallbackPrefix+m.ID),
		))
	}

	msg := tgbotapi.NewMessage(chatID, "Pick a model:")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	b.deliver(msg)
}

func (b *Bot) sendStatus(chatID, userID int64) {
	prefs := b.store.Preferences(userID)
	stats := b.store.Stats(userID)

	reasoning := "hidden"
	if prefs.ShowReasoning {
		reasoning = "shown"
	}
	b.send(chatID, fmt.Sprintf(`📊 Status

Model: %s
Temperature: %.1f
Max reply tokens: %d
Reasoning sections: %s
Dialog: %d messages (~%d tokens)`,
		models.DisplayName(prefs.PreferredModel),
		prefs.Temperature,
		prefs.MaxTokens,
		reasoning,
		stats.Messages,
		stats.EstimatedTokens))
}

func (b *Bot) sendMemory(chatID, userID int64) {
	stats := b.store.Stats(userID)
	b.send(chatID, fmt.Sprintf(`🧠 Dialog memory

Messages stored: %d of %d
  from you: %d
  from me: %d
Estimated tokens: %d of %d budget

Older messages are dropped automatically when limits are reached. /clear wipes everything.`,
		stats.Messages, stats.HistoryCap,
		stats.UserMessages,
		stats.AssistantMessages,
		stats.EstimatedTokens, stats.TokenBudget))
}

func (b *Bot) clearHistory(chatID, userID int64) {
	dropped := b.store.Clear(userID)
	if dropped == 0 {
		b.send(chatID, "🗑 Nothing to clear, our dialog is already empty.")
		return
	}
	b.send(chatID, fmt.Sprintf("🗑 Done, forgot %d messages. Starting fresh!", dropped))
}

// sendReply strips reasoning per the user's preference and delivers the
// reply in transport-sized chunks.
func (b *Bot) sendReply(chatID, userID int64, reply string) {
	if !b.store.Preferences(userID).ShowReasoning {
		reply = orchestrator.StripReasoning(reply)
	}
	if strings.TrimSpace(reply) == "" {
		reply = "The model returned an empty reply. Try rephrasing your message."
	}
	for _, chunk := range ChunkMessage(reply, b.cfg.Limits.TransportChunk) {
		b.send(chatID, chunk)
	}
}

func (b *Bot) send(chatID int64, text string) {
	b.deliver(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) deliver(msg tgbotapi.MessageConfig) {
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("message delivery failed", "chat", msg.ChatID, "err", err)
	}
}

func (b *Bot) sendTyping(chatID int64) {
	if _, err := b.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		b.logger.Debug("typing action failed", "err", err)
	}
}

func mainKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(buttonPickModel),
			tgbotapi.NewKeyboardButton(buttonStatus),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(buttonMemory),
			tgbotapi.NewKeyboardButton(buttonHelp),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(buttonClear),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}
