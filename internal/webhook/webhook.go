// Package webhook posts the final run report to an operator-configured HTTP
// endpoint.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"volume-backup/internal/logger"
	"volume-backup/internal/model"

	"go.uber.org/zap"
)

const (
	// HMACHeaderName carries the hex HMAC-SHA256 of the request body when a
	// secret is configured.
	HMACHeaderName = "X-VolumeBackup-Signature-SHA256"

	defaultTimeout = 10 * time.Second
	maxRetries     = 3
)

// Notifier sends run reports. It is synchronous: a batch run has exactly one
// report and nothing else to do while it sends.
type Notifier struct {
	httpClient *http.Client
	url        string
	secret     string
	backoff    time.Duration
}

// NewNotifier returns a notifier for url. An empty url yields a notifier
// whose Send is a no-op.
func NewNotifier(url, secret string) *Notifier {
	return &Notifier{
		httpClient: &http.Client{Timeout: defaultTimeout},
		url:        url,
		secret:     secret,
		backoff:    time.Second,
	}
}

// Send posts the report as JSON with bounded retries and exponential
// backoff. Delivery failure is logged and returned but must not change the
// run's exit status; the report itself already happened.
func (n *Notifier) Send(ctx context.Context, report model.Report) error {
	if n.url == "" {
		return nil
	}

	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal run report: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = n.sendAttempt(ctx, payload)
		if lastErr == nil {
			logger.Log.Info("Run report delivered",
				zap.String("url", n.url),
				zap.Int("attempt", attempt+1),
			)
			return nil
		}
		logger.Log.Warn("Run report delivery failed",
			zap.String("url", n.url),
			zap.Int("attempt", attempt+1),
			zap.Int("maxAttempts", maxRetries+1),
			zap.Error(lastErr),
		)
		if attempt < maxRetries {
			backoff := time.Duration(2<<attempt) * n.backoff
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return fmt.Errorf("run report delivery failed after %d attempts: %w", maxRetries+1, lastErr)
}

func (n *Notifier) sendAttempt(ctx context.Context, payload []byte) error {
	reqCtx, cancel := context.WithTimeout(ctx, n.httpClient.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "volume-backup/1.0")

	if n.secret != "" {
		mac := hmac.New(sha256.New, []byte(n.secret))
		mac.Write(payload)
		req.Header.Set(HMACHeaderName, hex.EncodeToString(mac.Sum(nil)))
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request to %s failed: %w", n.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("webhook returned non-2xx status %s: %s", resp.Status, string(body))
	}
	return nil
}
