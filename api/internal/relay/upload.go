package relay

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// upload is one accepted image spooled to the upload directory.
type upload struct {
	Path string
	Size int64
}

// spool copies r into a uniquely named file under dir. It reads at most
// limit+1 bytes; anything past limit yields ErrFileTooLarge and no file is
// left behind.
func spool(dir, ext string, r io.Reader, limit int64) (*upload, error) {
	name := filepath.Join(dir, uuid.NewString()+ext)
	f, err := os.OpenFile(name, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create upload file: %w", err)
	}

	n, err := io.Copy(f, io.LimitReader(r, limit+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(name)
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, ErrFileTooLarge
		}
		return nil, fmt.Errorf("write upload file: %w", err)
	}
	if n > limit {
		_ = os.Remove(name)
		return nil, ErrFileTooLarge
	}
	return &upload{Path: name, Size: n}, nil
}

func (u *upload) Bytes() ([]byte, error) {
	return os.ReadFile(u.Path)
}

// Remove deletes the spooled file. Missing files are not an error.
func (u *upload) Remove() error {
	if u == nil {
		return nil
	}
	if err := os.Remove(u.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
