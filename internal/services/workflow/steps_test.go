package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exhibitly/backend/domain"
	"github.com/exhibitly/backend/usecase"
)

type memObject struct {
	data        []byte
	contentType string
}

type memObjectStore struct {
	mu      sync.Mutex
	objects map[string]memObject
}

func newMemObjectStore() *memObjectStore {
	return &memObjectStore{objects: make(map[string]memObject)}
}

func (s *memObjectStore) Get(ctx context.Context, key string) ([]byte, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, "", domain.NewError(domain.ErrCodeNotFound, "object not found: "+key)
	}
	return obj.data, obj.contentType, nil
}

func (s *memObjectStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = memObject{data: data, contentType: contentType}
	return nil
}

func (s *memObjectStore) Copy(ctx context.Context, srcKey, dstKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[srcKey]
	if !ok {
		return domain.NewError(domain.ErrCodeNotFound, "object not found: "+srcKey)
	}
	s.objects[dstKey] = obj
	return nil
}

func (s *memObjectStore) DeleteBatch(ctx context.Context, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.objects, key)
	}
	return nil
}

func (s *memObjectStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok, nil
}

func (s *memObjectStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

type fakeScaler struct {
	fail bool
}

func (f fakeScaler) Thumbnail(src []byte, w, h int) ([]byte, error) {
	if f.fail {
		return nil, errors.New("decode failed")
	}
	return append([]byte("thumb:"), src...), nil
}

func (f fakeScaler) Fit(src []byte, maxWidth int) ([]byte, error) {
	if f.fail {
		return nil, errors.New("decode failed")
	}
	return append([]byte("fit:"), src...), nil
}

type fakeSynth struct {
	err error
}

func (f fakeSynth) Synthesize(ctx context.Context, markup, lang string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []byte("mp3:" + lang + ":" + markup), nil
}

type fakeQREncoder struct {
	calls int
}

func (f *fakeQREncoder) Encode(value string, size int) ([]byte, error) {
	f.calls++
	return []byte("png:" + value), nil
}

type fakeCDN struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (f *fakeCDN) Invalidate(ctx context.Context, paths []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.paths = append(f.paths, paths...)
	return "inv-1", nil
}

func imageAsset(id string) domain.ImageAsset {
	return domain.ImageAsset{
		ID:               id,
		UploadPath:       "customers/c1/uploads/" + id,
		PrivatePath:      "customers/c1/images/" + id,
		PublicPath:       "public/r1/images/" + id,
		ThumbPrivatePath: "customers/c1/thumbnails/" + id + "_thumb",
		ThumbPublicPath:  "public/r1/thumbnails/" + id + "_thumb",
	}
}

func TestImageStep_MaterializesVariants(t *testing.T) {
	store := newMemObjectStore()
	require.NoError(t, store.Put(context.Background(), "customers/c1/uploads/img-1", []byte("raw"), "image/png"))

	step := NewImageStep(store, fakeScaler{}, ImageStepConfig{})
	env := &domain.MutationEnvelope{Assets: domain.AssetPayload{Images: []domain.ImageAsset{imageAsset("img-1")}}}

	require.NoError(t, step.Run(context.Background(), env))

	for _, key := range []string{
		"customers/c1/images/img-1",
		"public/r1/images/img-1",
		"customers/c1/thumbnails/img-1_thumb",
		"public/r1/thumbnails/img-1_thumb",
	} {
		data, contentType, err := store.Get(context.Background(), key)
		require.NoError(t, err, key)
		assert.Equal(t, "image/jpeg", contentType, "variants are re-encoded JPEG whatever the upload was")
		require.NotEmpty(t, data, key)
	}

	data, _, err := store.Get(context.Background(), "public/r1/images/img-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("fit:raw"), data, "public tier copied from private")
}

func TestImageStep_UnprocessableSourceIsFatal(t *testing.T) {
	store := newMemObjectStore()
	require.NoError(t, store.Put(context.Background(), "customers/c1/uploads/img-1", []byte("not an image"), "image/jpeg"))

	step := NewImageStep(store, fakeScaler{fail: true}, ImageStepConfig{})
	env := &domain.MutationEnvelope{Assets: domain.AssetPayload{Images: []domain.ImageAsset{imageAsset("img-1")}}}

	err := step.Run(context.Background(), env)
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))
}

func TestImageStep_SiblingFailuresAggregated(t *testing.T) {
	store := newMemObjectStore()
	// img-1 has its upload; img-2 and img-3 do not.
	require.NoError(t, store.Put(context.Background(), "customers/c1/uploads/img-1", []byte("raw"), "image/jpeg"))

	step := NewImageStep(store, fakeScaler{}, ImageStepConfig{})
	env := &domain.MutationEnvelope{Assets: domain.AssetPayload{Images: []domain.ImageAsset{
		imageAsset("img-1"), imageAsset("img-2"), imageAsset("img-3"),
	}}}

	err := step.Run(context.Background(), env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "img-2")
	assert.Contains(t, err.Error(), "img-3")
	assert.True(t, store.has("customers/c1/images/img-1"), "healthy sibling still processed")
}

func TestAudioStep_SynthesizesBothTiers(t *testing.T) {
	store := newMemObjectStore()
	voices := usecase.NewVoiceRegistry()
	voices.Register("emma", fakeSynth{})

	step := NewAudioStep(store, voices)
	env := &domain.MutationEnvelope{Assets: domain.AssetPayload{Audios: []domain.AudioAsset{{
		Lang:        "en",
		Voice:       "emma",
		Markup:      "welcome",
		PrivatePath: "customers/c1/audio/r1_en",
		PublicPath:  "public/r1/audio/r1_en",
	}}}}

	require.NoError(t, step.Run(context.Background(), env))

	data, contentType, err := store.Get(context.Background(), "public/r1/audio/r1_en")
	require.NoError(t, err)
	assert.Equal(t, "audio/mpeg", contentType)
	assert.Equal(t, []byte("mp3:en:welcome"), data)
	assert.True(t, store.has("customers/c1/audio/r1_en"))
}

func TestAudioStep_UnknownVoiceFailsFast(t *testing.T) {
	store := newMemObjectStore()
	voices := usecase.NewVoiceRegistry()
	voices.Register("emma", fakeSynth{})

	step := NewAudioStep(store, voices)
	env := &domain.MutationEnvelope{Assets: domain.AssetPayload{Audios: []domain.AudioAsset{
		{Lang: "en", Voice: "emma", PrivatePath: "p1", PublicPath: "q1"},
		{Lang: "de", Voice: "nonexistent", PrivatePath: "p2", PublicPath: "q2"},
	}}}

	err := step.Run(context.Background(), env)
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))
	assert.False(t, store.has("p1"), "no synthesis before all voices resolve")
}

func TestQRStep(t *testing.T) {
	store := newMemObjectStore()
	step := NewQRStep(store, &fakeQREncoder{}, "https://view.example/", 0)
	env := &domain.MutationEnvelope{Assets: domain.AssetPayload{QRCode: &domain.QRAsset{
		PrivatePath:  "customers/c1/qr/r1",
		EncodedValue: "exb/r1",
	}}}

	require.NoError(t, step.Run(context.Background(), env))

	data, contentType, err := store.Get(context.Background(), "customers/c1/qr/r1")
	require.NoError(t, err)
	assert.Equal(t, "image/png", contentType)
	assert.Equal(t, []byte("png:https://view.example/exb/r1"), data)
}

func TestQRStep_ExistingCodeNotReRendered(t *testing.T) {
	store := newMemObjectStore()
	require.NoError(t, store.Put(context.Background(), "customers/c1/qr/r1", []byte("png:old"), "image/png"))

	encoder := &fakeQREncoder{}
	step := NewQRStep(store, encoder, "https://view.example", 0)
	env := &domain.MutationEnvelope{Assets: domain.AssetPayload{QRCode: &domain.QRAsset{
		PrivatePath:  "customers/c1/qr/r1",
		EncodedValue: "exb/r1",
	}}}

	require.NoError(t, step.Run(context.Background(), env))
	assert.Zero(t, encoder.calls, "immutable value, existing code stands")

	data, _, err := store.Get(context.Background(), "customers/c1/qr/r1")
	require.NoError(t, err)
	assert.Equal(t, []byte("png:old"), data)
}

func TestQRStep_NoQRIsNoop(t *testing.T) {
	step := NewQRStep(newMemObjectStore(), &fakeQREncoder{}, "https://view.example", 0)
	require.NoError(t, step.Run(context.Background(), &domain.MutationEnvelope{}))
}

func TestDeleteStep(t *testing.T) {
	store := newMemObjectStore()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "customers/c1/images/img-1", []byte("x"), "image/jpeg"))
	require.NoError(t, store.Put(ctx, "public/r1/images/img-1", []byte("x"), "image/jpeg"))
	require.NoError(t, store.Put(ctx, "customers/c1/images/img-2", []byte("x"), "image/jpeg"))

	step := NewDeleteStep(store)
	env := &domain.MutationEnvelope{Assets: domain.AssetPayload{Delete: &domain.DeleteSet{
		Private: []string{"customers/c1/images/img-1", "customers/c1/images/never-existed"},
		Public:  []string{"public/r1/images/img-1"},
	}}}

	require.NoError(t, step.Run(ctx, env), "missing keys are not an error")
	assert.False(t, store.has("customers/c1/images/img-1"))
	assert.False(t, store.has("public/r1/images/img-1"))
	assert.True(t, store.has("customers/c1/images/img-2"), "unlisted keys untouched")
}

func TestCDNStep_InvalidatesTouchedPublicPaths(t *testing.T) {
	cdn := &fakeCDN{}
	step := NewCDNStep(cdn, nil)
	env := &domain.MutationEnvelope{Assets: domain.AssetPayload{
		Images: []domain.ImageAsset{imageAsset("img-1")},
		Audios: []domain.AudioAsset{{PublicPath: "public/r1/audio/r1_en"}},
		Delete: &domain.DeleteSet{Public: []string{"public/r1/images/old"}},
	}}

	require.NoError(t, step.Run(context.Background(), env))
	assert.ElementsMatch(t, []string{
		"public/r1/images/img-1",
		"public/r1/thumbnails/img-1_thumb",
		"public/r1/audio/r1_en",
		"public/r1/images/old",
	}, cdn.paths)
}

func TestCDNStep_NothingPublicIsNoop(t *testing.T) {
	cdn := &fakeCDN{err: errors.New("should not be called")}
	step := NewCDNStep(cdn, nil)
	require.NoError(t, step.Run(context.Background(), &domain.MutationEnvelope{}))
}
