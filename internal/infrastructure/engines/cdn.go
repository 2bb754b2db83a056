package engines

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/exhibitly/backend/domain"
)

// CDNClient issues invalidation batches against the CDN provider's HTTP API.
type CDNClient struct {
	client   *fasthttp.Client
	endpoint string
	token    string
	timeout  time.Duration
}

type invalidationRequest struct {
	Paths []string `json:"paths"`
}

type invalidationResponse struct {
	InvalidationID string `json:"invalidation_id"`
}

func NewCDNClient(endpoint, token string, timeout time.Duration) *CDNClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &CDNClient{
		client:   &fasthttp.Client{},
		endpoint: endpoint,
		token:    token,
		timeout:  timeout,
	}
}

func (c *CDNClient) Invalidate(ctx context.Context, paths []string) (string, error) {
	if len(paths) == 0 {
		return "", nil
	}

	body, err := json.Marshal(invalidationRequest{Paths: paths})
	if err != nil {
		return "", err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.endpoint)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.SetBody(body)

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	if err := c.client.DoTimeout(req, resp, timeout); err != nil {
		return "", domain.WrapError(domain.ErrCodeInternal, "cdn invalidation request failed", err)
	}
	if resp.StatusCode() != fasthttp.StatusOK && resp.StatusCode() != fasthttp.StatusAccepted {
		return "", domain.NewError(domain.ErrCodeInternal,
			fmt.Sprintf("cdn api returned status %d", resp.StatusCode()))
	}

	var parsed invalidationResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return "", domain.WrapError(domain.ErrCodeInternal, "cdn api response malformed", err)
	}
	return parsed.InvalidationID, nil
}
