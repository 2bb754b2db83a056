package engines

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/exhibitly/backend/domain"
)

// TTSBackend synthesizes speech through an HTTP synthesis service. One
// backend instance is registered per voice tag; the service-side voice name
// may differ from the tag.
type TTSBackend struct {
	client  *fasthttp.Client
	url     string
	voice   string
	timeout time.Duration
}

type ttsRequest struct {
	Markup string `json:"markup"`
	Voice  string `json:"voice"`
	Lang   string `json:"lang"`
}

func NewTTSBackend(url, voice string, timeout time.Duration) *TTSBackend {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &TTSBackend{
		client:  &fasthttp.Client{},
		url:     url,
		voice:   voice,
		timeout: timeout,
	}
}

func (b *TTSBackend) Synthesize(ctx context.Context, markup, lang string) ([]byte, error) {
	body, err := json.Marshal(ttsRequest{Markup: markup, Voice: b.voice, Lang: lang})
	if err != nil {
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(b.url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	timeout := b.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	if err := b.client.DoTimeout(req, resp, timeout); err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "synthesis request failed", err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, domain.NewError(domain.ErrCodeInternal,
			fmt.Sprintf("synthesis backend returned status %d", resp.StatusCode()))
	}

	audio := make([]byte, len(resp.Body()))
	copy(audio, resp.Body())
	return audio, nil
}
