package telegram

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/sugun00/Meta-martin/api/internal/logging"
	"github.com/sugun00/Meta-martin/api/internal/relay"
)

type fakeBot struct {
	mu      sync.Mutex
	fileURL string
	sent    []tgbotapi.MessageConfig
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		b.sent = append(b.sent, m)
	}
	return tgbotapi.Message{}, nil
}

func (b *fakeBot) GetFileDirectURL(string) (string, error) {
	if b.fileURL == "" {
		return "", errors.New("no file")
	}
	return b.fileURL, nil
}

func (b *fakeBot) texts() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.sent))
	for _, m := range b.sent {
		out = append(out, m.Text)
	}
	return out
}

type fakeRelay struct {
	got  relay.Incoming
	body []byte
	res  relay.Result
	err  error
}

func (f *fakeRelay) Analyze(_ context.Context, in relay.Incoming) (relay.Result, error) {
	f.got = in
	f.body, _ = io.ReadAll(in.Body)
	return f.res, f.err
}
func (f *fakeRelay) CredentialConfigured() bool { return true }
func (f *fakeRelay) EngineName() string         { return "openai" }

func TestFormatResult(t *testing.T) {
	got := FormatResult(relay.Result{
		Success:     true,
		Type:        relay.CategoryMath,
		Steps:       []string{"1. 2x = 6", "x = 3"},
		FinalAnswer: "x = 3",
	})
	for _, want := range []string{"Math problem", "1. 2x = 6\n", "2. x = 3\n", "Answer: x = 3"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in:\n%s", want, got)
		}
	}

	if got := FormatResult(relay.Result{Error: "file too large"}); got != "⚠️ file too large" {
		t.Fatalf("unexpected failure text %q", got)
	}
}

func TestUploadFrom(t *testing.T) {
	msg := &tgbotapi.Message{Photo: []tgbotapi.PhotoSize{{FileID: "small"}, {FileID: "big", FileUniqueID: "u1"}}}
	up, ok := uploadFrom(msg)
	if !ok || up.FileID != "big" || up.ContentType != "image/jpeg" {
		t.Fatalf("expected largest photo, got %+v", up)
	}

	doc := &tgbotapi.Message{Document: &tgbotapi.Document{FileID: "d", FileName: "IMG_1.HEIC"}}
	if up, ok := uploadFrom(doc); !ok || up.Filename != "IMG_1.HEIC" {
		t.Fatalf("heic document must be accepted, got %+v %v", up, ok)
	}

	pdf := &tgbotapi.Message{Document: &tgbotapi.Document{FileID: "p", FileName: "a.pdf", MimeType: "application/pdf"}}
	if _, ok := uploadFrom(pdf); ok {
		t.Fatal("pdf document must be ignored")
	}
}

func TestHandleUpdateAnalyzesPhoto(t *testing.T) {
	files := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte{0xFF, 0xD8, 0xFF, 0xE0})
	}))
	defer files.Close()

	bot := &fakeBot{fileURL: files.URL + "/photos/file_1.jpg"}
	rl := &fakeRelay{res: relay.Result{Success: true, Type: relay.CategoryText, Steps: []string{"Reads: hi"}, FinalAnswer: "hi"}}
	r := &Router{Bot: bot, Relay: rl, Log: logging.Nop()}

	r.HandleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 7,
		Chat:      &tgbotapi.Chat{ID: 42},
		Photo:     []tgbotapi.PhotoSize{{FileID: "f1", FileUniqueID: "u1"}},
	}})
	r.Wait()

	if rl.got.Source != "telegram" || rl.got.RequestID != "tg-42-7" || len(rl.body) != 4 {
		t.Fatalf("unexpected relay input: %+v (%d bytes)", rl.got, len(rl.body))
	}
	texts := bot.texts()
	if len(texts) != 1 || !strings.Contains(texts[0], "Answer: hi") {
		t.Fatalf("unexpected replies: %v", texts)
	}
	if bot.sent[0].ReplyToMessageID != 7 {
		t.Fatalf("reply must quote the photo message, got %d", bot.sent[0].ReplyToMessageID)
	}
}

func TestHandleUpdateDownloadFailure(t *testing.T) {
	bot := &fakeBot{}
	r := &Router{Bot: bot, Relay: &fakeRelay{}, Log: logging.Nop()}

	r.HandleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:  &tgbotapi.Chat{ID: 1},
		Photo: []tgbotapi.PhotoSize{{FileID: "f1"}},
	}})
	r.Wait()

	texts := bot.texts()
	if len(texts) != 1 || !strings.Contains(texts[0], "Could not download") {
		t.Fatalf("unexpected replies: %v", texts)
	}
}

func TestHandleCommandHealth(t *testing.T) {
	bot := &fakeBot{}
	r := &Router{Bot: bot, Relay: &fakeRelay{}, Log: logging.Nop()}
	r.HandleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: 1},
		Text:     "/health",
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 7}},
	}})
	if texts := bot.texts(); len(texts) != 1 || !strings.Contains(texts[0], "engine: openai") {
		t.Fatalf("unexpected replies: %v", texts)
	}
}

func TestRetryDelayFromError(t *testing.T) {
	if d := retryDelayFromError(errors.New("Too Many Requests: retry after 7")); d != 7*time.Second {
		t.Fatalf("expected 7s, got %v", d)
	}
	if d := retryDelayFromError(errors.New("Too Many Requests")); d != 3*time.Second {
		t.Fatalf("expected 3s, got %v", d)
	}
	if d := retryDelayFromError(errors.New("boom")); d != time.Second {
		t.Fatalf("expected 1s, got %v", d)
	}
}

type stubUpdater struct {
	calls  int
	cancel context.CancelFunc
}

func (s *stubUpdater) GetUpdates(cfg tgbotapi.UpdateConfig) ([]tgbotapi.Update, error) {
	s.calls++
	if s.calls == 1 {
		return []tgbotapi.Update{{UpdateID: 10}, {UpdateID: 11}}, nil
	}
	if cfg.Offset != 12 {
		return nil, errors.New("unexpected offset")
	}
	s.cancel()
	return nil, nil
}

func TestRunPollingAdvancesOffset(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	up := &stubUpdater{cancel: cancel}

	var seen []int
	RunPolling(ctx, up, logging.Nop(), func(u tgbotapi.Update) { seen = append(seen, u.UpdateID) })

	if len(seen) != 2 || seen[1] != 11 {
		t.Fatalf("unexpected updates handled: %v", seen)
	}
	if up.calls != 2 {
		t.Fatalf("expected two polls, got %d", up.calls)
	}
}
