package relay

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sugun00/Meta-martin/api/internal/imageconv"
	"github.com/sugun00/Meta-martin/api/internal/metrics"
	"github.com/sugun00/Meta-martin/api/internal/ocr"
	"github.com/sugun00/Meta-martin/api/internal/store"
	"github.com/sugun00/Meta-martin/api/internal/util"
)

const (
	DefaultMaxUploadBytes = 10 << 20

	sniffLen       = 3072
	journalTimeout = 3 * time.Second
	errTextLimit   = 600
)

// Recorder receives one entry per finished request. Failures are logged and
// never change the response.
type Recorder interface {
	Record(ctx context.Context, e store.Entry) error
}

type Options struct {
	// Engine is nil when no model credential is configured; every valid
	// upload then yields the placeholder result.
	Engine         ocr.Engine
	Converter      *imageconv.Converter
	MaxUploadBytes int64
	UploadDir      string
	Journal        Recorder
	Metrics        *metrics.Relay
	Logger         zerolog.Logger
}

// Incoming is one upload as received by a transport.
type Incoming struct {
	Filename    string
	ContentType string
	Body        io.Reader
	RequestID   string
	Source      string
}

// Service validates uploads, spools them, and performs at most one model call
// per request.
type Service struct {
	engine  ocr.Engine
	conv    *imageconv.Converter
	max     int64
	dir     string
	journal Recorder
	metrics *metrics.Relay
	log     zerolog.Logger
}

func New(opts Options) *Service {
	s := &Service{
		engine:  opts.Engine,
		conv:    opts.Converter,
		max:     opts.MaxUploadBytes,
		dir:     opts.UploadDir,
		journal: opts.Journal,
		metrics: opts.Metrics,
		log:     opts.Logger,
	}
	if s.conv == nil {
		s.conv = imageconv.New(0, true)
	}
	if s.max <= 0 {
		s.max = DefaultMaxUploadBytes
	}
	if s.dir == "" {
		s.dir = os.TempDir()
	}
	return s
}

func (s *Service) CredentialConfigured() bool { return s.engine != nil }

func (s *Service) MaxUploadBytes() int64 { return s.max }

// EngineName returns the active provider, or "demo" in placeholder mode.
func (s *Service) EngineName() string {
	if s.engine == nil {
		return "demo"
	}
	return s.engine.Name()
}

// AcceptedTypes lists the content types that pass validation.
func (s *Service) AcceptedTypes() []string {
	out := []string{"image/jpeg", "image/png", "image/webp"}
	if s.conv.HEICSupported() {
		out = append(out, "image/heic", "image/heif")
	}
	return out
}

// Accepts reports whether an upload with this type and name passes the
// allow-list.
func (s *Service) Accepts(mime, filename string) bool {
	mime = util.NormalizeMIME(mime)
	if imageconv.IsLegacy(mime, filename) && !s.conv.HEICSupported() {
		return false
	}
	for _, t := range s.AcceptedTypes() {
		if t == mime {
			return true
		}
	}
	return false
}

// Reject finishes a request that failed before its upload could be handed to
// Analyze, e.g. a truncated or oversize multipart envelope. It logs and counts
// the rejection like Analyze does and returns the public failure.
func (s *Service) Reject(ctx context.Context, in Incoming, err error) Result {
	if in.RequestID == "" {
		in.RequestID = uuid.NewString()
	}
	oc := outcome{name: OutcomeInternalError, err: err}
	switch {
	case errors.Is(err, ErrNoFileProvided):
		oc.name = OutcomeNoFile
	case errors.Is(err, ErrUnsupportedFormat):
		oc.name = OutcomeUnsupported
	case errors.Is(err, ErrFileTooLarge):
		oc.name = OutcomeTooLarge
	}
	s.finish(ctx, in, oc, time.Now())
	return FailureFor(err)
}

type outcome struct {
	name     string
	category Category
	size     int64
	hash     string
	err      error
}

// Analyze runs one upload through validation, normalization and the model.
// The returned Result is always ready to send; a non-nil error carries the
// taxonomy (see StatusCode). The spooled file is gone when Analyze returns.
func (s *Service) Analyze(ctx context.Context, in Incoming) (Result, error) {
	start := time.Now()
	if in.RequestID == "" {
		in.RequestID = uuid.NewString()
	}
	res, oc := s.analyze(ctx, in, s.requestLogger(in))
	s.finish(ctx, in, oc, start)
	return res, oc.err
}

func (s *Service) requestLogger(in Incoming) zerolog.Logger {
	return s.log.With().
		Str("request_id", in.RequestID).
		Str("source", in.Source).
		Str("filename", in.Filename).
		Logger()
}

func (s *Service) finish(ctx context.Context, in Incoming, oc outcome, start time.Time) {
	log := s.requestLogger(in)
	took := time.Since(start)

	s.metrics.Outcome(oc.name)
	ev := log.Info()
	if oc.err != nil {
		ev = log.Warn().Err(oc.err)
	}
	ev.Str("outcome", oc.name).
		Int64("size", oc.size).
		Dur("took", took).
		Msg("analyze finished")

	s.record(ctx, in, oc, took, log)
}

func (s *Service) analyze(ctx context.Context, in Incoming, log zerolog.Logger) (Result, outcome) {
	if in.Body == nil {
		return failure(msgNoFile), outcome{name: OutcomeNoFile, err: ErrNoFileProvided}
	}

	br := bufio.NewReaderSize(in.Body, sniffLen)
	mime := util.NormalizeMIME(in.ContentType)
	if util.IsGeneric(mime) {
		head, _ := br.Peek(sniffLen)
		mime = util.PickMIME(mime, in.Filename, head)
	}
	if !s.Accepts(mime, in.Filename) {
		return failure(msgUnsupported), outcome{
			name: OutcomeUnsupported,
			err:  fmt.Errorf("%w: %s", ErrUnsupportedFormat, mime),
		}
	}

	up, err := spool(s.dir, util.ExtensionFor(mime), br, s.max)
	if err != nil {
		if errors.Is(err, ErrFileTooLarge) {
			return failure(msgTooLarge), outcome{name: OutcomeTooLarge, err: err}
		}
		return failure(msgInternal), outcome{name: OutcomeInternalError, err: err}
	}
	defer func() {
		if err := up.Remove(); err != nil {
			log.Error().Err(err).Str("path", up.Path).Msg("remove upload")
		}
	}()
	s.metrics.Upload(up.Size)

	oc := outcome{size: up.Size}
	if up.Size == 0 {
		oc.name, oc.err = OutcomeNoFile, ErrNoFileProvided
		return failure(msgNoFile), oc
	}

	if s.engine == nil {
		oc.name, oc.category = OutcomePlaceholder, CategoryMath
		return Placeholder(), oc
	}

	data, err := up.Bytes()
	if err != nil {
		oc.name, oc.err = OutcomeInternalError, fmt.Errorf("read upload: %w", err)
		return failure(msgInternal), oc
	}
	img, outMime, err := s.conv.Normalize(data, mime, in.Filename)
	if err != nil {
		if errors.Is(err, imageconv.ErrTranscode) {
			oc.name, oc.err = OutcomeTranscodeFailed, fmt.Errorf("%w: %w", ErrUnsupportedFormat, err)
			return failure(msgTranscode), oc
		}
		oc.name, oc.err = OutcomeInternalError, err
		return failure(msgInternal), oc
	}
	oc.hash = util.SHA256Hex(img)

	t0 := time.Now()
	raw, err := s.engine.Analyze(ctx, img, outMime)
	s.metrics.EngineCall(s.engine.Name(), err == nil, time.Since(t0))
	if err != nil {
		oc.name, oc.err = OutcomeModelError, fmt.Errorf("%w: %w", ErrExternalAPI, err)
		return failure("analysis failed: " + publicEngineError(err)), oc
	}

	res := ExtractResult(raw)
	oc.name, oc.category = OutcomeModelResult, res.Type
	return res, oc
}

// publicEngineError is the single-line, bounded form of an engine error that
// may be shown to callers.
func publicEngineError(err error) string {
	msg := strings.Join(strings.Fields(err.Error()), " ")
	return util.Truncate(msg, errTextLimit)
}

func (s *Service) record(ctx context.Context, in Incoming, oc outcome, took time.Duration, log zerolog.Logger) {
	if s.journal == nil {
		return
	}
	e := store.Entry{
		RequestID:   in.RequestID,
		Source:      in.Source,
		Filename:    in.Filename,
		ContentType: in.ContentType,
		SizeBytes:   oc.size,
		ImageHash:   oc.hash,
		Engine:      s.EngineName(),
		Outcome:     oc.name,
		Category:    string(oc.category),
		Duration:    took,
	}
	if s.engine != nil {
		e.Model = s.engine.GetModel()
	}
	if oc.err != nil {
		e.Error = util.Truncate(oc.err.Error(), errTextLimit)
	}

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalTimeout)
	defer cancel()
	if err := s.journal.Record(rctx, e); err != nil {
		log.Warn().Err(err).Msg("journal record failed")
	}
}
