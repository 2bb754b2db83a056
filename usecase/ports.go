package usecase

import (
	"context"
	"sync"

	"github.com/exhibitly/backend/domain"
)

// Dispatcher hands a mutation envelope to the asynchronous workflow and
// returns an execution handle. Dispatch is fire-and-forget: the handle tracks
// the run, the caller never awaits artifact materialization.
type Dispatcher interface {
	Dispatch(ctx context.Context, env domain.MutationEnvelope) (string, error)
}

// Synthesizer produces audio bytes from narration markup.
type Synthesizer interface {
	Synthesize(ctx context.Context, markup, lang string) ([]byte, error)
}

// VoiceRegistry resolves voice tags to synthesis backends. An unknown tag is
// a fatal input error, never retried.
type VoiceRegistry struct {
	mu       sync.RWMutex
	backends map[string]Synthesizer
}

func NewVoiceRegistry() *VoiceRegistry {
	return &VoiceRegistry{
		backends: make(map[string]Synthesizer),
	}
}

func (r *VoiceRegistry) Register(voice string, backend Synthesizer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[voice] = backend
}

func (r *VoiceRegistry) Resolve(voice string) (Synthesizer, error) {
	r.mu.RLock()
	backend, ok := r.backends[voice]
	r.mu.RUnlock()
	if !ok {
		return nil, domain.WrapError(domain.ErrCodeInvalid, "unsupported voice "+voice, domain.ErrUnsupportedVoice)
	}
	return backend, nil
}

// Voices lists the registered voice tags.
func (r *VoiceRegistry) Voices() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.backends))
	for voice := range r.backends {
		out = append(out, voice)
	}
	return out
}
