// Package webhook provides the "webhook" sink, which posts every visited leaf as a
// JSON document to a URL.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vk/treeclimb/internal/registry"
)

// DefaultTimeout applies when no request timeout is configured.
const DefaultTimeout = 10 * time.Second

// Module implements the registry.Module interface for this package.
type Module struct{}

// Sink posts leaves with a shared client.
type Sink struct {
	url    string
	client *http.Client
}

// Response is what Visit returns for an accepted leaf.
type Response struct {
	StatusCode int
	Body       string
}

// New returns a sink posting to url. The client pools connections across
// visits.
func New(url string, timeout time.Duration) (*Sink, error) {
	if url == "" {
		return nil, errors.New("webhook url is required")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Sink{
		url: url,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

type document struct {
	RunID string `json:"run_id"`
	Seq   int    `json:"seq"`
	Path  string `json:"path"`
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// Visit posts the leaf. Any non-2xx status is an error.
func (s *Sink) Visit(ctx context.Context, leaf registry.Leaf) (any, error) {
	body, err := json.Marshal(document{RunID: leaf.RunID, Seq: leaf.Seq, Path: leaf.Path, Key: leaf.Key, Value: leaf.Value})
	if err != nil {
		return nil, errors.Wrapf(err, "encoding %q", leaf.Path)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Newf("posting %q: unexpected status %s", leaf.Path, resp.Status)
	}
	return Response{StatusCode: resp.StatusCode, Body: string(respBody)}, nil
}

// Close releases idle connections.
func (s *Sink) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// Register registers the sink with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterSink("webhook", func(_ context.Context, s registry.Settings) (registry.Sink, error) {
		return New(s.WebhookURL, s.WebhookTimeout)
	})
}
