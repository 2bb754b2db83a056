package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/exhibitly/backend/domain"
	"github.com/exhibitly/backend/repository"
)

// qrStep renders the deterministic public link of the resource as a PNG and
// writes it to the private tier only; publication happens through the
// resource's public read path rather than by copying the QR itself.
type qrStep struct {
	objects       repository.ObjectStore
	encoder       QREncoder
	publicBaseURL string
	size          int
}

func NewQRStep(objects repository.ObjectStore, encoder QREncoder, publicBaseURL string, size int) Step {
	if size <= 0 {
		size = 512
	}
	return &qrStep{
		objects:       objects,
		encoder:       encoder,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		size:          size,
	}
}

func (s *qrStep) Name() string { return "qr" }

func (s *qrStep) Run(ctx context.Context, env *domain.MutationEnvelope) error {
	qr := env.Assets.QRCode
	if qr == nil {
		return nil
	}

	// The encoded value is immutable, so a code that already exists (a sweeper
	// re-dispatch, a resumed run) needs no re-render.
	exists, err := s.objects.Exists(ctx, qr.PrivatePath)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	png, err := s.encoder.Encode(fmt.Sprintf("%s/%s", s.publicBaseURL, qr.EncodedValue), s.size)
	if err != nil {
		return domain.WrapError(domain.ErrCodeInternal, "qr encoding failed", err)
	}
	return s.objects.Put(ctx, qr.PrivatePath, png, "image/png")
}
