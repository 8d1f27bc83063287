package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/auditor-project/auditor/pkg/domain"
)

// outcome classifies a single ingest/update attempt against the server,
// mirroring the three cases the drainer loop distinguishes (§4.6):
// success, a RecordExists conflict (give up, log), or anything else
// (transient — keep the row for the next tick).
type outcome int

const (
	outcomeOK outcome = iota
	outcomeRecordExists
	outcomeTransient
)

// serverClient is the narrow HTTP surface the drainer needs against
// AUDITOR's server.
type serverClient struct {
	httpClient *http.Client
	baseURL    string
}

func newServerClient(baseURL string, timeout time.Duration) *serverClient {
	return &serverClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
	}
}

func (c *serverClient) ingestOne(ctx context.Context, rec domain.Record) (outcome, error) {
	return c.send(ctx, http.MethodPost, "/record", rec)
}

func (c *serverClient) updateOne(ctx context.Context, rec domain.Record) (outcome, error) {
	return c.send(ctx, http.MethodPut, "/record", rec)
}

func (c *serverClient) send(ctx context.Context, method, path string, rec domain.Record) (outcome, error) {
	data, err := rec.MarshalJSON()
	if err != nil {
		return outcomeTransient, fmt.Errorf("client: encode record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return outcomeTransient, fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return outcomeTransient, fmt.Errorf("client: transport error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return outcomeTransient, fmt.Errorf("client: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return outcomeTransient, fmt.Errorf("client: server returned %d: %s", resp.StatusCode, string(body))
	}

	if string(body) == errRecordExistsMarker {
		return outcomeRecordExists, nil
	}
	return outcomeOK, nil
}

const errRecordExistsMarker = "ERR_RECORD_EXISTS"
