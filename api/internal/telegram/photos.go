package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/sugun00/Meta-martin/api/internal/relay"
)

const downloadTimeout = 60 * time.Second

// upload is an image attached to a message, before download.
type upload struct {
	FileID      string
	Filename    string
	ContentType string
}

// uploadFrom picks the largest photo size, or an image sent as a document.
func uploadFrom(msg *tgbotapi.Message) (upload, bool) {
	if n := len(msg.Photo); n > 0 {
		ph := msg.Photo[n-1]
		return upload{FileID: ph.FileID, Filename: ph.FileUniqueID + ".jpg", ContentType: "image/jpeg"}, true
	}
	if d := msg.Document; d != nil {
		mt := strings.ToLower(d.MimeType)
		name := strings.ToLower(d.FileName)
		if strings.HasPrefix(mt, "image/") || strings.HasSuffix(name, ".heic") || strings.HasSuffix(name, ".heif") {
			return upload{FileID: d.FileID, Filename: d.FileName, ContentType: d.MimeType}, true
		}
	}
	return upload{}, false
}

func (r *Router) analyze(ctx context.Context, chatID int64, msgID int, up upload) {
	res, err := r.fetchAndAnalyze(ctx, chatID, msgID, up)
	if err != nil && res.Error == "" {
		r.Log.Error().Err(err).Int64("chat_id", chatID).Msg("telegram analyze failed")
		r.reply(chatID, msgID, "⚠️ Could not download the image, please try again.")
		return
	}
	r.reply(chatID, msgID, FormatResult(res))
}

func (r *Router) fetchAndAnalyze(ctx context.Context, chatID int64, msgID int, up upload) (relay.Result, error) {
	url, err := r.Bot.GetFileDirectURL(up.FileID)
	if err != nil {
		return relay.Result{}, fmt.Errorf("get file url: %w", err)
	}

	dctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(dctx, http.MethodGet, url, nil)
	if err != nil {
		return relay.Result{}, fmt.Errorf("build download request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return relay.Result{}, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return relay.Result{}, fmt.Errorf("download: status %d", resp.StatusCode)
	}

	ct := up.ContentType
	if ct == "" {
		ct = resp.Header.Get("Content-Type")
	}
	return r.Relay.Analyze(ctx, relay.Incoming{
		Filename:    up.Filename,
		ContentType: ct,
		Body:        resp.Body,
		RequestID:   "tg-" + strconv.FormatInt(chatID, 10) + "-" + strconv.Itoa(msgID),
		Source:      "telegram",
	})
}
