package telegram

import (
	"context"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/sugun00/Meta-martin/api/internal/relay"
)

const (
	maxMessageLen = 3900
	maxInFlight   = 4
)

// Bot is the part of *tgbotapi.BotAPI the router needs.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Analyzer runs one upload through the relay.
type Analyzer interface {
	Analyze(ctx context.Context, in relay.Incoming) (relay.Result, error)
	CredentialConfigured() bool
	EngineName() string
}

type Router struct {
	Bot   Bot
	Relay Analyzer
	Log   zerolog.Logger

	sem  chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

func (r *Router) HandleCommand(msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	switch msg.Command() {
	case "start", "help":
		r.send(cid, "Send me a photo of a math problem or some text and I will explain it step by step.\nCommands: /health")
	case "health":
		if r.Relay.CredentialConfigured() {
			r.send(cid, "✅ OK, engine: "+r.Relay.EngineName())
		} else {
			r.send(cid, "✅ OK, demo mode (no model API key configured)")
		}
	default:
		r.send(cid, "Unknown command")
	}
}

// HandleUpdate dispatches one update. Images are analyzed in the background
// with a bounded number in flight; Wait blocks until they finish.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	if msg.IsCommand() {
		r.HandleCommand(msg)
		return
	}

	up, ok := uploadFrom(msg)
	if !ok {
		if strings.TrimSpace(msg.Text) != "" {
			r.send(msg.Chat.ID, "Please send an image (JPEG, PNG, WEBP or HEIC).")
		}
		return
	}

	r.once.Do(func() { r.sem = make(chan struct{}, maxInFlight) })
	select {
	case r.sem <- struct{}{}:
	case <-ctx.Done():
		return
	}
	r.wg.Add(1)
	go func() {
		defer func() {
			<-r.sem
			r.wg.Done()
		}()
		r.analyze(ctx, msg.Chat.ID, msg.MessageID, up)
	}()
}

// Wait blocks until every in-flight analysis has replied.
func (r *Router) Wait() { r.wg.Wait() }

func (r *Router) send(chatID int64, text string) {
	r.reply(chatID, 0, text)
}

func (r *Router) reply(chatID int64, replyTo int, text string) {
	msg := tgbotapi.NewMessage(chatID, clip(text))
	msg.ReplyToMessageID = replyTo
	if _, err := r.Bot.Send(msg); err != nil {
		r.Log.Warn().Err(err).Int64("chat_id", chatID).Msg("telegram send failed")
	}
}

func clip(text string) string {
	if len([]rune(text)) > maxMessageLen {
		return string([]rune(text)[:maxMessageLen]) + "…"
	}
	return text
}
