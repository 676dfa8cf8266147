package relay

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"unicode/utf8"

	"github.com/sugun00/Meta-martin/api/internal/imageconv"
	"github.com/sugun00/Meta-martin/api/internal/logging"
	"github.com/sugun00/Meta-martin/api/internal/store"
)

type fakeEngine struct {
	reply string
	err   error
	calls atomic.Int32
	mime  string
}

func (f *fakeEngine) Name() string     { return "fake" }
func (f *fakeEngine) GetModel() string { return "fake-1" }
func (f *fakeEngine) Analyze(_ context.Context, img []byte, mime string) (string, error) {
	f.calls.Add(1)
	f.mime = mime
	if len(img) == 0 {
		return "", errors.New("empty image")
	}
	return f.reply, f.err
}

type memJournal struct {
	mu      sync.Mutex
	entries []store.Entry
}

func (m *memJournal) Record(_ context.Context, e store.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func newService(t *testing.T, eng *fakeEngine, max int64) (*Service, string) {
	t.Helper()
	dir := t.TempDir()
	opts := Options{
		Converter:      imageconv.New(0, true),
		MaxUploadBytes: max,
		UploadDir:      dir,
		Logger:         logging.Nop(),
	}
	if eng != nil {
		opts.Engine = eng
	}
	return New(opts), dir
}

func assertDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read upload dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected upload dir to be empty, found %d entries", len(entries))
	}
}

func jpegish(n int) []byte {
	b := bytes.Repeat([]byte{0x42}, n)
	copy(b, []byte{0xFF, 0xD8, 0xFF, 0xE0})
	return b
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestAnalyzeModelResult(t *testing.T) {
	eng := &fakeEngine{reply: "Sure!\n```json\n{\"type\":\"math\",\"steps\":[\"x+2=5\",\"x=3\"],\"final_answer\":\"x = 3\"}\n```"}
	svc, dir := newService(t, eng, 0)

	res, err := svc.Analyze(context.Background(), Incoming{
		Filename: "eq.jpg", ContentType: "image/jpeg", Body: bytes.NewReader(jpegish(2048)),
	})
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	if !res.Success || res.Type != CategoryMath || res.FinalAnswer != "x = 3" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(res.Steps) != 2 || res.Steps[1] != "x=3" {
		t.Fatalf("unexpected steps: %v", res.Steps)
	}
	if res.RawModelResponse != eng.reply {
		t.Fatalf("raw reply must be preserved verbatim")
	}
	if eng.calls.Load() != 1 {
		t.Fatalf("expected one engine call, got %d", eng.calls.Load())
	}
	if eng.mime != "image/jpeg" {
		t.Fatalf("engine got mime %q", eng.mime)
	}
	assertDirEmpty(t, dir)
}

func TestAnalyzeDegradedReply(t *testing.T) {
	eng := &fakeEngine{reply: "I can see a cat on a sofa."}
	svc, dir := newService(t, eng, 0)

	res, err := svc.Analyze(context.Background(), Incoming{
		Filename: "cat.png", ContentType: "image/png", Body: bytes.NewReader(pngBytes(t)),
	})
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	if !res.Success || res.Type != CategoryOther || res.FinalAnswer != "Analysis complete" {
		t.Fatalf("unexpected degraded result: %+v", res)
	}
	if len(res.Steps) != 1 || res.Steps[0] != eng.reply {
		t.Fatalf("degraded steps must hold the raw reply, got %v", res.Steps)
	}
	assertDirEmpty(t, dir)
}

func TestAnalyzePlaceholderWithoutCredential(t *testing.T) {
	svc, dir := newService(t, nil, 0)
	if svc.CredentialConfigured() {
		t.Fatal("service without engine must report no credential")
	}

	res, err := svc.Analyze(context.Background(), Incoming{
		Filename: "a.webp", ContentType: "image/webp", Body: bytes.NewReader([]byte("RIFF....WEBPVP8 ")),
	})
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	want := Placeholder()
	if !res.Success || res.Type != CategoryMath || res.FinalAnswer != want.FinalAnswer {
		t.Fatalf("unexpected placeholder: %+v", res)
	}
	if len(res.Steps) != 4 || res.RawModelResponse != "Demo mode active" {
		t.Fatalf("unexpected placeholder body: %+v", res)
	}
	assertDirEmpty(t, dir)
}

func TestAnalyzeRejectsDisallowedType(t *testing.T) {
	eng := &fakeEngine{reply: "{}"}
	svc, dir := newService(t, eng, 0)

	res, err := svc.Analyze(context.Background(), Incoming{
		Filename: "anim.gif", ContentType: "image/gif", Body: strings.NewReader("GIF89a"),
	})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if StatusCode(err) != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", StatusCode(err))
	}
	if res.Success || !strings.HasPrefix(res.Error, "unsupported format") {
		t.Fatalf("unexpected result: %+v", res)
	}
	if eng.calls.Load() != 0 {
		t.Fatal("engine must not be called for a rejected upload")
	}
	assertDirEmpty(t, dir)
}

func TestAnalyzeRejectsOversize(t *testing.T) {
	eng := &fakeEngine{reply: "{}"}
	svc, dir := newService(t, eng, 1024)

	res, err := svc.Analyze(context.Background(), Incoming{
		Filename: "big.jpg", ContentType: "image/jpeg", Body: bytes.NewReader(jpegish(4096)),
	})
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("expected ErrFileTooLarge, got %v", err)
	}
	if res.Error != "file too large" || StatusCode(err) != http.StatusBadRequest {
		t.Fatalf("unexpected rejection: %+v (%d)", res, StatusCode(err))
	}
	if eng.calls.Load() != 0 {
		t.Fatal("engine must not be called for an oversize upload")
	}
	assertDirEmpty(t, dir)
}

func TestAnalyzeAcceptsExactLimit(t *testing.T) {
	eng := &fakeEngine{reply: `{"type":"text","steps":["hi"],"final_answer":"hi"}`}
	svc, dir := newService(t, eng, 1024)

	if _, err := svc.Analyze(context.Background(), Incoming{
		Filename: "edge.jpg", ContentType: "image/jpeg", Body: bytes.NewReader(jpegish(1024)),
	}); err != nil {
		t.Fatalf("an upload of exactly the limit must pass, got %v", err)
	}
	assertDirEmpty(t, dir)
}

func TestAnalyzeNoFile(t *testing.T) {
	eng := &fakeEngine{}
	svc, dir := newService(t, eng, 0)

	for name, body := range map[string]*bytes.Reader{"nil": nil, "empty": bytes.NewReader(nil)} {
		in := Incoming{Filename: "x.jpg", ContentType: "image/jpeg"}
		if body != nil {
			in.Body = body
		}
		res, err := svc.Analyze(context.Background(), in)
		if !errors.Is(err, ErrNoFileProvided) {
			t.Fatalf("%s: expected ErrNoFileProvided, got %v", name, err)
		}
		if res.Success || res.Error == "" {
			t.Fatalf("%s: unexpected result %+v", name, res)
		}
	}
	if eng.calls.Load() != 0 {
		t.Fatal("engine must not be called without a file")
	}
	assertDirEmpty(t, dir)
}

func TestAnalyzeBrokenHEICNeverReachesEngine(t *testing.T) {
	eng := &fakeEngine{reply: "{}"}
	journal := &memJournal{}
	svc, dir := newService(t, eng, 0)
	if !svc.conv.HEICSupported() {
		t.Skip("heic decoding unavailable in this build")
	}
	svc.journal = journal

	res, err := svc.Analyze(context.Background(), Incoming{
		Filename: "IMG_0001.HEIC", ContentType: "image/heic", Body: strings.NewReader("definitely not a heic container"),
	})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if StatusCode(err) != http.StatusBadRequest || res.Success {
		t.Fatalf("unexpected result: %+v", res)
	}
	if eng.calls.Load() != 0 {
		t.Fatal("engine must not be called when transcoding fails")
	}
	assertDirEmpty(t, dir)

	if len(journal.entries) != 1 || journal.entries[0].Outcome != OutcomeTranscodeFailed {
		t.Fatalf("expected one %s entry, got %+v", OutcomeTranscodeFailed, journal.entries)
	}
}

func TestAnalyzeHEICRejectedWithoutDecoder(t *testing.T) {
	eng := &fakeEngine{reply: "{}"}
	journal := &memJournal{}
	svc := New(Options{
		Engine:    eng,
		Converter: imageconv.New(0, false),
		UploadDir: t.TempDir(),
		Journal:   journal,
		Logger:    logging.Nop(),
	})

	_, err := svc.Analyze(context.Background(), Incoming{
		Filename: "IMG_0001.HEIC", ContentType: "image/heic", Body: strings.NewReader("ftypheic"),
	})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if eng.calls.Load() != 0 {
		t.Fatal("engine must not be called for a rejected type")
	}
	if len(journal.entries) != 1 || journal.entries[0].Outcome != OutcomeUnsupported {
		t.Fatalf("expected one %s entry, got %+v", OutcomeUnsupported, journal.entries)
	}
}

func TestAnalyzeSniffsGenericType(t *testing.T) {
	eng := &fakeEngine{reply: `{"type":"text","steps":[],"final_answer":"ok"}`}
	svc, _ := newService(t, eng, 0)

	_, err := svc.Analyze(context.Background(), Incoming{
		Filename: "blob", ContentType: "application/octet-stream", Body: bytes.NewReader(pngBytes(t)),
	})
	if err != nil {
		t.Fatalf("sniffed png must be accepted, got %v", err)
	}
	if eng.mime != "image/png" {
		t.Fatalf("expected sniffed image/png, got %q", eng.mime)
	}
}

func TestAnalyzeEngineFailure(t *testing.T) {
	eng := &fakeEngine{err: errors.New("openai analyze 401: {\n \"error\": \"bad key\"\n}")}
	journal := &memJournal{}
	svc, dir := newService(t, eng, 0)
	svc.journal = journal

	res, err := svc.Analyze(context.Background(), Incoming{
		Filename: "a.jpg", ContentType: "image/jpeg", Body: bytes.NewReader(jpegish(512)), RequestID: "req-1", Source: "http",
	})
	if !errors.Is(err, ErrExternalAPI) {
		t.Fatalf("expected ErrExternalAPI, got %v", err)
	}
	if StatusCode(err) != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", StatusCode(err))
	}
	if !strings.HasPrefix(res.Error, "analysis failed: ") || strings.Contains(res.Error, "\n") {
		t.Fatalf("unexpected public error %q", res.Error)
	}
	if eng.calls.Load() != 1 {
		t.Fatalf("expected exactly one attempt, got %d", eng.calls.Load())
	}
	assertDirEmpty(t, dir)

	if len(journal.entries) != 1 {
		t.Fatalf("expected one journal entry, got %d", len(journal.entries))
	}
	e := journal.entries[0]
	if e.Outcome != OutcomeModelError || e.RequestID != "req-1" || e.Engine != "fake" || e.Model != "fake-1" || e.Error == "" {
		t.Fatalf("unexpected journal entry: %+v", e)
	}
}

func TestAnalyzeEngineFailureKeepsUTF8(t *testing.T) {
	eng := &fakeEngine{err: errors.New("x" + strings.Repeat("ş", 400))}
	journal := &memJournal{}
	svc, _ := newService(t, eng, 0)
	svc.journal = journal

	res, err := svc.Analyze(context.Background(), Incoming{
		Filename: "a.jpg", ContentType: "image/jpeg", Body: bytes.NewReader(jpegish(512)),
	})
	if !errors.Is(err, ErrExternalAPI) {
		t.Fatalf("expected ErrExternalAPI, got %v", err)
	}
	if !utf8.ValidString(res.Error) {
		t.Fatalf("public error is not valid utf-8 (%d bytes)", len(res.Error))
	}
	if len(journal.entries) != 1 {
		t.Fatalf("expected one journal entry, got %d", len(journal.entries))
	}
	if e := journal.entries[0].Error; e == "" || !utf8.ValidString(e) {
		t.Fatalf("journal error is empty or not valid utf-8 (%d bytes)", len(e))
	}
}

func TestAcceptsHonoursHEICSupport(t *testing.T) {
	svc := New(Options{Converter: imageconv.New(0, false), Logger: logging.Nop()})
	if svc.Accepts("image/heic", "a.heic") {
		t.Fatal("heic must be rejected when conversion is disabled")
	}
	if svc.Accepts("image/jpeg", "renamed.heic") {
		t.Fatal("a .heic name must be rejected when conversion is disabled")
	}
	for _, mt := range []string{"image/jpeg", "image/jpg", "IMAGE/PNG", "image/webp"} {
		if !svc.Accepts(mt, "x") {
			t.Fatalf("%s must be accepted", mt)
		}
	}
	if svc.Accepts("application/pdf", "x.pdf") {
		t.Fatal("pdf must be rejected")
	}
}
