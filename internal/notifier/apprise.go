package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/netspec/alertbatch/internal/types"
	"github.com/netspec/alertbatch/internal/version"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ErrNotConfigured is returned when the Apprise API is set but no mail URL is.
var ErrNotConfigured = errors.New("apprise mail url not configured")

// Options configures a Notifier.
type Options struct {
	// APIURL is the Apprise API base URL. Empty disables delivery; messages
	// are logged instead.
	APIURL string
	// MailURL is an Apprise mailto:// or mailtos:// URL without recipients.
	MailURL       string
	Format        string
	Timeout       time.Duration
	RatePerMinute float64
	Burst         int
	Logger        zerolog.Logger
}

// Notifier delivers aggregated alert messages through Apprise
type Notifier struct {
	logger  zerolog.Logger
	client  *http.Client
	apiURL  string
	mailURL string
	format  string
	limiter *rate.Limiter
}

// NewNotifier creates a new Apprise notifier
func NewNotifier(opts Options) *Notifier {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	format := opts.Format
	if format == "" {
		format = "text"
	}

	limit := rate.Inf
	if opts.RatePerMinute > 0 {
		limit = rate.Limit(opts.RatePerMinute / 60.0)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Notifier{
		logger:  opts.Logger.With().Str("component", "notifier").Logger(),
		client:  &http.Client{Timeout: timeout},
		apiURL:  strings.TrimRight(opts.APIURL, "/"),
		mailURL: opts.MailURL,
		format:  format,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Send delivers msg to its To and CC recipients.
func (n *Notifier) Send(ctx context.Context, msg types.Message) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("message %s has no recipients", msg.ID)
	}

	// Fallback: log what would be sent when Apprise is not configured
	if n.apiURL == "" {
		n.logger.Info().
			Str("message_id", msg.ID).
			Strs("to", msg.To).
			Strs("cc", msg.CC).
			Str("title", msg.Title).
			Msg("Would send notification (Apprise not configured)")
		return nil
	}

	target, err := n.targetURL(msg)
	if err != nil {
		return err
	}

	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for send slot: %w", err)
	}

	if err := n.sendToApprise(ctx, target, msg); err != nil {
		return err
	}

	n.logger.Debug().
		Str("message_id", msg.ID).
		Int("alerts", msg.Alerts).
		Msg("Notification delivered to Apprise")
	return nil
}

// targetURL adds the message recipients to the configured mail URL.
func (n *Notifier) targetURL(msg types.Message) (string, error) {
	if n.mailURL == "" {
		return "", ErrNotConfigured
	}

	u, err := url.Parse(n.mailURL)
	if err != nil {
		return "", fmt.Errorf("invalid mail url: %w", err)
	}
	q := u.Query()
	q.Set("to", strings.Join(msg.To, ","))
	if len(msg.CC) > 0 {
		q.Set("cc", strings.Join(msg.CC, ","))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// sendToApprise posts one notification to the stateless Apprise endpoint
func (n *Notifier) sendToApprise(ctx context.Context, target string, msg types.Message) error {
	payload := map[string]string{
		"urls":   target,
		"title":  msg.Title,
		"body":   msg.Content,
		"format": n.format,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.apiURL+"/notify/", bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("apprise API error: %d - %s", resp.StatusCode, string(body))
	}

	return nil
}
