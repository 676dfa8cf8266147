package handle

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/sugun00/Meta-martin/api/internal/relay"
)

const (
	imageField = "image"

	// envelopeSlack covers multipart boundaries and headers on top of the
	// image itself.
	envelopeSlack = 1 << 20
)

// AnalyzeImage accepts one multipart upload in the "image" field and answers
// with the relay result.
func (h *Handle) AnalyzeImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"success": false, "error": "POST only"})
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.svc.MaxUploadBytes()+envelopeSlack)

	ctx := r.Context()
	if d := requestTimeout(r); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	in := relay.Incoming{
		RequestID: middleware.GetReqID(ctx),
		Source:    "http",
	}
	part, err := imagePart(r)
	if err != nil {
		h.log.Debug().Str("request_id", in.RequestID).Err(err).Msg("multipart envelope rejected")
		res := h.svc.Reject(ctx, in, err)
		writeJSON(w, relay.StatusCode(err), res)
		return
	}
	defer part.Close()

	in.Filename = part.FileName()
	in.ContentType = part.Header.Get("Content-Type")
	in.Body = part

	res, err := h.svc.Analyze(ctx, in)
	writeJSON(w, relay.StatusCode(err), res)
}

// imagePart walks the multipart body to the "image" part, draining any
// fields before it. A body that is not multipart carries no file.
func imagePart(r *http.Request) (*multipart.Part, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, relay.ErrNoFileProvided
	}
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, relay.ErrNoFileProvided
		}
		if err != nil {
			return nil, envelopeError(err)
		}
		if p.FormName() == imageField {
			return p, nil
		}
		_, err = io.Copy(io.Discard, p)
		_ = p.Close()
		if err != nil {
			return nil, envelopeError(err)
		}
	}
}

func envelopeError(err error) error {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return relay.ErrFileTooLarge
	}
	return relay.ErrNoFileProvided
}

// requestTimeout reads an optional per-request deadline in seconds from the
// X-Request-Timeout header or the timeoutSec query parameter.
func requestTimeout(r *http.Request) time.Duration {
	ts := r.Header.Get("X-Request-Timeout")
	if ts == "" {
		ts = r.URL.Query().Get("timeoutSec")
	}
	if v, _ := strconv.Atoi(ts); v > 0 {
		return time.Duration(v) * time.Second
	}
	return 0
}
