package recognizer

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/smart-classroom/presence/internal/attendance"
)

const (
	// maxImageBytes caps uploads before they reach the recognition server.
	maxImageBytes = 10 << 20
	// minFaceDimension is the smallest side length a face crop can usefully
	// have; the detector produces garbage below this.
	minFaceDimension = 50
)

// ValidateImage rejects payloads that cannot be a usable face photo before
// any network round trip. All failures wrap attendance.ErrInvalidImage.
func ValidateImage(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty payload", attendance.ErrInvalidImage)
	}
	if len(data) > maxImageBytes {
		return fmt.Errorf("%w: image exceeds %d bytes", attendance.ErrInvalidImage, maxImageBytes)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: undecodable image data", attendance.ErrInvalidImage)
	}
	if cfg.Width < minFaceDimension || cfg.Height < minFaceDimension {
		return fmt.Errorf("%w: %s image too small (%dx%d)", attendance.ErrInvalidImage, format, cfg.Width, cfg.Height)
	}

	return nil
}
