package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/assetpack/internal/telemetry"
)

// ErrUnexpectedStatus indicates the server answered with a non-2xx status
var ErrUnexpectedStatus = errors.New("unexpected status")

// MaxBodySize caps the size of a fetched module.
const MaxBodySize = 32 << 20

// Fetcher downloads remote modules, retrying transient failures.
type Fetcher struct {
	client  *http.Client
	retries uint
}

func NewFetcher(client *http.Client, retries uint) *Fetcher {
	return &Fetcher{client: client, retries: max(retries, 1)}
}

// Get returns the body of url. 5xx and 429 responses and transport errors are
// retried with exponential backoff; any other non-2xx status fails at once.
func (f *Fetcher) Get(ctx context.Context, url string) ([]byte, error) {
	metrics := telemetry.GetMetrics()

	operation := func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		resp, err := f.client.Do(req)
		if err != nil {
			log.Debug().Err(err).Str("url", url).Msg("Fetch failed, retrying")
			return nil, err
		}
		defer resp.Body.Close()

		metrics.RemoteFetchTotal.Add(ctx, 1)
		if FromCache(resp) {
			metrics.RemoteFetchCacheHits.Add(ctx, 1)
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
			return nil, fmt.Errorf("%w: %s returned %d", ErrUnexpectedStatus, url, resp.StatusCode)
		case resp.StatusCode < 200 || resp.StatusCode > 299:
			return nil, backoff.Permanent(fmt.Errorf("%w: %s returned %d", ErrUnexpectedStatus, url, resp.StatusCode))
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize+1))
		if err != nil {
			return nil, err
		}
		if len(body) > MaxBodySize {
			return nil, backoff.Permanent(fmt.Errorf("%s exceeds %d bytes", url, MaxBodySize))
		}
		return body, nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(f.retries),
	)
}
