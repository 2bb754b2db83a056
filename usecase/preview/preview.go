package preview

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/exhibitly/backend/domain"
	"github.com/exhibitly/backend/usecase"
)

// UseCase serves the synchronous audio preview endpoint. Unlike full resource
// mutations, preview synthesis runs on the request path, so the markup length
// is bounded to keep the round trip short.
type UseCase struct {
	voices    *usecase.VoiceRegistry
	charLimit int
	logger    *zap.Logger
}

func New(voices *usecase.VoiceRegistry, charLimit int, logger *zap.Logger) *UseCase {
	if charLimit <= 0 {
		charLimit = 1000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		voices:    voices,
		charLimit: charLimit,
		logger:    logger,
	}
}

// Audio synthesizes a bounded narration sample.
func (uc *UseCase) Audio(ctx context.Context, markup, voice, lang string) ([]byte, error) {
	if markup == "" {
		return nil, domain.NewError(domain.ErrCodeInvalid, "empty markup")
	}
	if len(markup) > uc.charLimit {
		return nil, domain.NewError(domain.ErrCodeInvalid,
			fmt.Sprintf("markup exceeds preview limit of %d characters", uc.charLimit))
	}

	backend, err := uc.voices.Resolve(voice)
	if err != nil {
		return nil, err
	}

	audio, err := backend.Synthesize(ctx, markup, lang)
	if err != nil {
		uc.logger.Error("preview synthesis failed", zap.String("voice", voice), zap.Error(err))
		return nil, domain.WrapError(domain.ErrCodeInternal, "synthesis failed", err)
	}
	return audio, nil
}
