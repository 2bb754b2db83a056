package preview

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exhibitly/backend/domain"
	"github.com/exhibitly/backend/usecase"
)

type countingSynth struct {
	calls int
}

func (s *countingSynth) Synthesize(ctx context.Context, markup, lang string) ([]byte, error) {
	s.calls++
	return []byte("mp3:" + markup), nil
}

func TestAudio(t *testing.T) {
	synth := &countingSynth{}
	voices := usecase.NewVoiceRegistry()
	voices.Register("emma", synth)
	uc := New(voices, 100, nil)

	audio, err := uc.Audio(context.Background(), "welcome to the hall", "emma", "en")
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3:welcome to the hall"), audio)
	assert.Equal(t, 1, synth.calls)
}

func TestAudio_EmptyMarkup(t *testing.T) {
	synth := &countingSynth{}
	voices := usecase.NewVoiceRegistry()
	voices.Register("emma", synth)
	uc := New(voices, 100, nil)

	_, err := uc.Audio(context.Background(), "", "emma", "en")
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))
	assert.Zero(t, synth.calls)
}

func TestAudio_OverCharLimit(t *testing.T) {
	synth := &countingSynth{}
	voices := usecase.NewVoiceRegistry()
	voices.Register("emma", synth)
	uc := New(voices, 10, nil)

	_, err := uc.Audio(context.Background(), strings.Repeat("a", 11), "emma", "en")
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))
	assert.Zero(t, synth.calls, "no synthesis cost paid for rejected input")
}

func TestAudio_UnknownVoice(t *testing.T) {
	uc := New(usecase.NewVoiceRegistry(), 100, nil)
	_, err := uc.Audio(context.Background(), "hello", "nobody", "en")
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))
}
