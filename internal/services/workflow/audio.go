package workflow

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/exhibitly/backend/domain"
	"github.com/exhibitly/backend/repository"
	"github.com/exhibitly/backend/usecase"
)

const audioContentType = "audio/mpeg"

// audioStep synthesizes narration for every audio asset in the add-set and
// writes it to both storage tiers. Voice resolution happens before synthesis;
// an unknown voice tag is a fatal input error and the run is never retried.
type audioStep struct {
	objects repository.ObjectStore
	voices  *usecase.VoiceRegistry
}

func NewAudioStep(objects repository.ObjectStore, voices *usecase.VoiceRegistry) Step {
	return &audioStep{
		objects: objects,
		voices:  voices,
	}
}

func (s *audioStep) Name() string { return "audios" }

func (s *audioStep) Run(ctx context.Context, env *domain.MutationEnvelope) error {
	// Resolve every voice up front so a single bad tag fails fast, before any
	// synthesis cost is paid.
	backends := make(map[string]usecase.Synthesizer, len(env.Assets.Audios))
	for _, au := range env.Assets.Audios {
		if _, ok := backends[au.Voice]; ok {
			continue
		}
		backend, err := s.voices.Resolve(au.Voice)
		if err != nil {
			return err
		}
		backends[au.Voice] = backend
	}

	var group multierror.Group
	for _, au := range env.Assets.Audios {
		au := au
		group.Go(func() error {
			if err := s.processOne(ctx, backends[au.Voice], au); err != nil {
				return fmt.Errorf("audio %s/%s: %w", au.Lang, au.Voice, err)
			}
			return nil
		})
	}
	return group.Wait().ErrorOrNil()
}

func (s *audioStep) processOne(ctx context.Context, backend usecase.Synthesizer, au domain.AudioAsset) error {
	audio, err := backend.Synthesize(ctx, au.Markup, au.Lang)
	if err != nil {
		return err
	}
	if err := s.objects.Put(ctx, au.PrivatePath, audio, audioContentType); err != nil {
		return err
	}
	return s.objects.Copy(ctx, au.PrivatePath, au.PublicPath)
}
