package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rickgao/fund-data/internal/model"
)

// ErrMonthUnavailable reports that the portal has no archive for a month yet.
var ErrMonthUnavailable = errors.New("month not published")

// FetchError represents a failed archive download.
type FetchError struct {
	Month      model.Month
	StatusCode int // 0 for transport failures
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.Month, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.Month, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Retryable returns true if repeating the download could succeed.
func (e *FetchError) Retryable() bool {
	if errors.Is(e.Err, context.Canceled) {
		return false
	}
	return e.StatusCode == 0 || e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// ArchiveURL returns the download URL of a month's archive.
func (c *Client) ArchiveURL(month model.Month) string {
	return fmt.Sprintf("%s/inf_diario_fi_%s.zip", c.baseURL, month)
}

// FetchMonth downloads the raw archive bytes for a month.
func (c *Client) FetchMonth(ctx context.Context, month model.Month) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &FetchError{Month: month, Err: err}
	}

	url := c.ArchiveURL(month)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Month: month, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Month: month, Err: fmt.Errorf("do request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// Drain so the connection can be reused
		_, _ = io.Copy(io.Discard, resp.Body)
		c.logger.Info("month not published", "month", month, "url", url)
		return nil, fmt.Errorf("%s: %w", month, ErrMonthUnavailable)
	}
	if resp.StatusCode >= 400 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &FetchError{
			Month:      month,
			StatusCode: resp.StatusCode,
			Err:        errors.New(http.StatusText(resp.StatusCode)),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Month: month, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	c.logger.Debug("fetched archive",
		"month", month,
		"bytes", len(body),
		"duration", time.Since(start),
	)

	return body, nil
}
