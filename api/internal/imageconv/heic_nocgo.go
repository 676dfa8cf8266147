//go:build !cgo

package imageconv

import "image"

const heicAvailable = false

func decodeHEIC([]byte) (image.Image, error) {
	return nil, ErrHEICUnavailable
}
