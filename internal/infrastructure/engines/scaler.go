package engines

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Scaler derives image variants with the imaging library. Output is always
// JPEG regardless of the source format.
type Scaler struct {
	quality int
}

func NewScaler(quality int) *Scaler {
	if quality <= 0 || quality > 100 {
		quality = 85
	}
	return &Scaler{quality: quality}
}

// Thumbnail cover-crops the source to exactly w×h.
func (s *Scaler) Thumbnail(src []byte, w, h int) ([]byte, error) {
	img, err := decode(src)
	if err != nil {
		return nil, err
	}
	return s.encode(imaging.Fill(img, w, h, imaging.Center, imaging.Lanczos))
}

// Fit bounds the source to maxWidth, preserving aspect ratio. Images already
// narrower than maxWidth are re-encoded unchanged.
func (s *Scaler) Fit(src []byte, maxWidth int) ([]byte, error) {
	img, err := decode(src)
	if err != nil {
		return nil, err
	}
	if img.Bounds().Dx() > maxWidth {
		img = imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
	}
	return s.encode(img)
}

func (s *Scaler) encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(s.quality)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(src []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}
