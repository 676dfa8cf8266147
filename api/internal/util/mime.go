package util

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// extension table for formats the stdlib mime table does not know about
var extMIME = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".heic": "image/heic",
	".heif": "image/heif",
}

// NormalizeMIME lowercases a Content-Type value and strips parameters.
// The non-standard "image/jpg" is folded into "image/jpeg".
func NormalizeMIME(ct string) string {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		ct = mt
	}
	if ct == "image/jpg" || ct == "image/pjpeg" {
		return "image/jpeg"
	}
	return ct
}

// MimeFromFilename guesses a MIME type from the file suffix, or "".
func MimeFromFilename(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return ""
	}
	if m, ok := extMIME[ext]; ok {
		return m
	}
	return NormalizeMIME(mime.TypeByExtension(ext))
}

// SniffMIME detects a MIME type from the leading bytes of a file.
func SniffMIME(head []byte) string {
	if len(head) == 0 {
		return ""
	}
	return NormalizeMIME(mimetype.Detect(head).String())
}

// IsGeneric reports whether ct carries no useful type information.
func IsGeneric(ct string) bool {
	ct = NormalizeMIME(ct)
	return ct == "" || ct == "application/octet-stream" || ct == "binary/octet-stream"
}

// PickMIME takes the declared type, then the filename suffix, then sniffs.
func PickMIME(declared, filename string, head []byte) string {
	if !IsGeneric(declared) {
		return NormalizeMIME(declared)
	}
	if m := MimeFromFilename(filename); m != "" {
		return m
	}
	if m := SniffMIME(head); m != "" {
		return m
	}
	return "application/octet-stream"
}

func ExtensionFor(ct string) string {
	switch NormalizeMIME(ct) {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/heic":
		return ".heic"
	case "image/heif":
		return ".heif"
	}
	return ".bin"
}

func MakeDataURL(mime, b64 string) string {
	return "data:" + mime + ";base64," + b64
}
