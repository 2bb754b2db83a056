package workflow

import "context"

// ImageScaler produces derived image variants. Bytes in, bytes out; the
// concrete engine is injected.
type ImageScaler interface {
	// Thumbnail cover-crops the source to exactly w×h.
	Thumbnail(src []byte, w, h int) ([]byte, error)
	// Fit bounds the source to maxWidth, preserving aspect ratio.
	Fit(src []byte, maxWidth int) ([]byte, error)
}

// QREncoder renders a value into a PNG QR code of the given pixel size.
type QREncoder interface {
	Encode(value string, size int) ([]byte, error)
}

// CDNInvalidator issues an invalidation batch for public paths and returns
// the invalidation id.
type CDNInvalidator interface {
	Invalidate(ctx context.Context, paths []string) (string, error)
}
