package workflow

import (
	"context"

	"go.uber.org/zap"

	"github.com/exhibitly/backend/domain"
)

// cdnStep invalidates every public path the mutation touched: keys that were
// overwritten in place and keys that were deleted. Runs last so it only ever
// invalidates paths whose storage state is already settled.
type cdnStep struct {
	cdn    CDNInvalidator
	logger *zap.Logger
}

func NewCDNStep(cdn CDNInvalidator, logger *zap.Logger) Step {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &cdnStep{
		cdn:    cdn,
		logger: logger,
	}
}

func (s *cdnStep) Name() string { return "cdn" }

func (s *cdnStep) Run(ctx context.Context, env *domain.MutationEnvelope) error {
	paths := publicPathsOf(env)
	if len(paths) == 0 {
		return nil
	}

	invalidationID, err := s.cdn.Invalidate(ctx, paths)
	if err != nil {
		s.logger.Error("cdn invalidation failed",
			zap.String("entity_id", env.EntityID),
			zap.Int("paths", len(paths)),
			zap.Error(err))
		return err
	}
	s.logger.Info("cdn invalidation issued",
		zap.String("entity_id", env.EntityID),
		zap.String("invalidation_id", invalidationID),
		zap.Int("paths", len(paths)))
	return nil
}

func publicPathsOf(env *domain.MutationEnvelope) []string {
	var paths []string
	for _, img := range env.Assets.Images {
		paths = append(paths, img.PublicPath, img.ThumbPublicPath)
	}
	for _, au := range env.Assets.Audios {
		paths = append(paths, au.PublicPath)
	}
	if env.Assets.Delete != nil {
		paths = append(paths, env.Assets.Delete.Public...)
	}
	return paths
}
