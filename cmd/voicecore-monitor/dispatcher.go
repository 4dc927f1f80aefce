package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// httpDispatcher forwards finalized utterances to an HTTP collaborator as a
// JSON POST. A non-2xx response counts as a failed dispatch; the pipeline
// does not retry it.
type httpDispatcher struct {
	endpoint   string
	httpClient *http.Client
}

func newHTTPDispatcher(endpoint string) *httpDispatcher {
	return &httpDispatcher{
		endpoint: endpoint,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   10 * time.Second,
		},
	}
}

func (d *httpDispatcher) Dispatch(ctx context.Context, utterance string) error {
	payload, err := json.Marshal(struct {
		Utterance string `json:"utterance"`
	}{Utterance: utterance})
	if err != nil {
		return fmt.Errorf("failed to encode utterance: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create dispatch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to dispatch utterance: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("dispatch rejected with status %d", resp.StatusCode)
	}

	return nil
}
