package dataset

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"

	"choicemetrics/internal/logger"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// Fetch downloads a remote dataset to destPath, retrying transient failures
// with exponential backoff. Client errors (4xx) are not retried.
func Fetch(ctx context.Context, url, destPath string) error {
	log := logger.New().WithComponent("dataset.fetch").WithField("url", url)

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 45 * time.Second

	var body []byte
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := httpClient.Do(req)
		if err != nil {
			log.WithError(err).Warn("fetch attempt failed")
			return err
		}
		defer resp.Body.Close()
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode >= 500 {
			err := fmt.Errorf("server error: %s", resp.Status)
			log.WithError(err).Warn("fetch attempt failed")
			return err
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(fmt.Errorf("fetch failed: %s", resp.Status))
		}
		body = b
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return err
	}
	if err := os.WriteFile(destPath, body, 0o644); err != nil {
		return fmt.Errorf("write dataset: %w", err)
	}
	log.WithField("bytes", len(body)).Info("dataset downloaded")
	return nil
}
