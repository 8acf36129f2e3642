package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/claimsight/claimsight/internal/runlog"
)

// HTTPOptions configures the HTTP run-log source.
type HTTPOptions struct {
	BaseURL    string
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	RatePerSec float64
	Burst      int
}

// HTTPSource fetches run logs over HTTP with retry and rate limiting.
// It prefers the consolidated-results endpoint and falls back to the
// aggregated detail endpoint.
type HTTPSource struct {
	client  *http.Client
	opts    HTTPOptions
	limiter *rate.Limiter
}

// NewHTTPSource creates a new HTTPSource with the given options.
func NewHTTPSource(opts HTTPOptions) *HTTPSource {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "claimsight/1.0"
	}
	if opts.RatePerSec == 0 {
		opts.RatePerSec = 5
	}
	if opts.Burst == 0 {
		opts.Burst = 5
	}
	return &HTTPSource{
		client:  &http.Client{Timeout: opts.Timeout},
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSec), opts.Burst),
	}
}

func (s *HTTPSource) FetchRunLog(ctx context.Context, runID string) ([]runlog.Entry, error) {
	base := strings.TrimRight(s.opts.BaseURL, "/")
	endpoints := []string{
		fmt.Sprintf("%s/api/runs/%s/consolidated", base, runID),
		fmt.Sprintf("%s/api/runs/%s/detail", base, runID),
	}

	var lastErr error
	for _, url := range endpoints {
		entries, err := s.fetch(ctx, url)
		if err == nil {
			return entries, nil
		}
		lastErr = err
		zap.L().Debug("fetcher: endpoint failed, trying next",
			zap.String("url", url),
			zap.Error(err),
		)
	}
	return nil, lastErr
}

func (s *HTTPSource) fetch(ctx context.Context, url string) ([]runlog.Entry, error) {
	var lastErr error
	for attempt := 0; attempt < s.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, eris.Wrap(ctx.Err(), "fetcher: canceled")
			case <-time.After(backoff(attempt)):
			}
		}

		if err := s.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fetcher: rate limit wait")
		}

		entries, retryable, err := s.get(ctx, url)
		if err == nil {
			return entries, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
	}
	return nil, lastErr
}

func (s *HTTPSource) get(ctx context.Context, url string) (entries []runlog.Entry, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, eris.Wrapf(err, "fetcher: build request %s", url)
	}
	req.Header.Set("User-Agent", s.opts.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, true, eris.Wrapf(err, "fetcher: GET %s", url)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		io.Copy(io.Discard, resp.Body)
		return nil, true, eris.Errorf("fetcher: GET %s: status %d", url, resp.StatusCode)
	default:
		io.Copy(io.Discard, resp.Body)
		return nil, false, eris.Errorf("fetcher: GET %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, eris.Wrapf(err, "fetcher: read %s", url)
	}

	// The backend serves either a bare entry array or {entries: [...]}.
	if err := json.Unmarshal(body, &entries); err == nil {
		return entries, false, nil
	}
	var wrapped struct {
		Entries []runlog.Entry `json:"entries"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil || wrapped.Entries == nil {
		return nil, false, eris.Errorf("fetcher: GET %s: unparseable payload", url)
	}
	return wrapped.Entries, false, nil
}

// backoff returns an exponential delay with jitter for the given attempt.
func backoff(attempt int) time.Duration {
	base := 500 * time.Millisecond * time.Duration(math.Pow(2, float64(attempt-1)))
	if base > 10*time.Second {
		base = 10 * time.Second
	}
	jitter := 1 + 0.25*(2*rand.Float64()-1)
	return time.Duration(float64(base) * jitter)
}
