//go:build cgo

package imageconv

import (
	"bytes"
	"fmt"
	"image"

	"github.com/jdeng/goheif"
)

const heicAvailable = true

func decodeHEIC(data []byte) (img image.Image, err error) {
	// the bundled libde265 bindings can panic on truncated input
	defer func() {
		if r := recover(); r != nil {
			img, err = nil, fmt.Errorf("heic decode panic: %v", r)
		}
	}()
	return goheif.Decode(bytes.NewReader(data))
}
