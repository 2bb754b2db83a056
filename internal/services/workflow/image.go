package workflow

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/exhibitly/backend/domain"
	"github.com/exhibitly/backend/repository"
)

// Derived variants are re-encoded JPEG regardless of the upload's format.
const imageContentType = "image/jpeg"

// ImageStepConfig sizes the derived variants.
type ImageStepConfig struct {
	ThumbWidth  int
	ThumbHeight int
	MobileWidth int
}

// imageStep materializes image variants for every image in the envelope's
// add-set: a width-bounded mobile variant and a fixed-size cover-crop
// thumbnail, each written to the private and public tiers. Images are
// processed concurrently with no ordering guarantee; if any image fails the
// step fails as a whole, with every sibling failure reported.
type imageStep struct {
	objects repository.ObjectStore
	scaler  ImageScaler
	cfg     ImageStepConfig
}

func NewImageStep(objects repository.ObjectStore, scaler ImageScaler, cfg ImageStepConfig) Step {
	if cfg.ThumbWidth <= 0 {
		cfg.ThumbWidth = 400
	}
	if cfg.ThumbHeight <= 0 {
		cfg.ThumbHeight = 400
	}
	if cfg.MobileWidth <= 0 {
		cfg.MobileWidth = 1080
	}
	return &imageStep{
		objects: objects,
		scaler:  scaler,
		cfg:     cfg,
	}
}

func (s *imageStep) Name() string { return "images" }

func (s *imageStep) Run(ctx context.Context, env *domain.MutationEnvelope) error {
	var group multierror.Group
	for _, img := range env.Assets.Images {
		img := img
		group.Go(func() error {
			if err := s.processOne(ctx, img); err != nil {
				return fmt.Errorf("image %s: %w", img.ID, err)
			}
			return nil
		})
	}
	return group.Wait().ErrorOrNil()
}

func (s *imageStep) processOne(ctx context.Context, img domain.ImageAsset) error {
	src, _, err := s.objects.Get(ctx, img.UploadPath)
	if err != nil {
		return err
	}

	mobile, err := s.scaler.Fit(src, s.cfg.MobileWidth)
	if err != nil {
		return domain.WrapError(domain.ErrCodeInvalid, "unprocessable image", err)
	}
	thumb, err := s.scaler.Thumbnail(src, s.cfg.ThumbWidth, s.cfg.ThumbHeight)
	if err != nil {
		return domain.WrapError(domain.ErrCodeInvalid, "unprocessable image", err)
	}

	if err := s.objects.Put(ctx, img.PrivatePath, mobile, imageContentType); err != nil {
		return err
	}
	if err := s.objects.Put(ctx, img.ThumbPrivatePath, thumb, imageContentType); err != nil {
		return err
	}
	// Publication copies the private tier server-side instead of re-uploading.
	if err := s.objects.Copy(ctx, img.PrivatePath, img.PublicPath); err != nil {
		return err
	}
	return s.objects.Copy(ctx, img.ThumbPrivatePath, img.ThumbPublicPath)
}
