package diag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"
)

const (
	retryAttempts = 8
	retryBase     = time.Second
	retryCap      = 5 * time.Minute

	// webhookBuffer is how many lines may wait for delivery; further lines are dropped.
	webhookBuffer = 256
)

// WebhookSink POSTs each line as JSON to a collector URL. A single sender
// goroutine delivers lines in order from a bounded buffer, with up to 8
// attempts per line and full-jitter exponential backoff capped at 5 minutes.
// Lines recorded while the buffer is full are dropped and counted.
type WebhookSink struct {
	url    string
	client *http.Client
	now    func() time.Time

	attempts int
	base     time.Duration
	maxDelay time.Duration

	pending chan []byte
	dropped atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type webhookPayload struct {
	Message    string    `json:"message"`
	RecordedAt time.Time `json:"recorded_at"`
}

// NewWebhookSink validates collectorURL and returns a sink posting to it.
// Unless allowPrivate is set, hosts resolving to loopback, private or
// link-local addresses are rejected.
func NewWebhookSink(collectorURL string, allowPrivate bool) (*WebhookSink, error) {
	return newWebhookSink(collectorURL, allowPrivate, webhookBuffer)
}

func newWebhookSink(collectorURL string, allowPrivate bool, buffer int) (*WebhookSink, error) {
	if err := validateURL(collectorURL, allowPrivate); err != nil {
		return nil, fmt.Errorf("webhook sink: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &WebhookSink{
		url:      collectorURL,
		client:   &http.Client{Timeout: 30 * time.Second},
		now:      time.Now,
		attempts: retryAttempts,
		base:     retryBase,
		maxDelay: retryCap,
		pending:  make(chan []byte, buffer),
		ctx:      ctx,
		cancel:   cancel,
	}
	w.wg.Add(1)
	go w.run()
	return w, nil
}

// Record queues msg for delivery without blocking.
func (w *WebhookSink) Record(msg string) {
	payload, err := json.Marshal(webhookPayload{Message: msg, RecordedAt: w.now().UTC()})
	if err != nil {
		slog.Error("diag: marshal webhook payload", "error", err)
		return
	}
	select {
	case w.pending <- payload:
	default:
		n := w.dropped.Add(1)
		slog.Warn("diag: webhook buffer full, line dropped", "url", w.url, "dropped", n)
	}
}

// Dropped returns how many lines were discarded because the buffer was full.
func (w *WebhookSink) Dropped() int64 {
	return w.dropped.Load()
}

// Close stops the sender. Lines still buffered are abandoned.
func (w *WebhookSink) Close() error {
	w.cancel()
	w.wg.Wait()
	return nil
}

func (w *WebhookSink) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case payload := <-w.pending:
			w.send(payload)
		}
	}
}

// validateURL blocks non-HTTP schemes and, unless allowPrivate, internal IP ranges.
func validateURL(rawURL string, allowPrivate bool) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("unsupported scheme: %q", u.Scheme)
	}
	if allowPrivate {
		return nil
	}

	ips, err := net.LookupHost(u.Hostname())
	if err != nil {
		return fmt.Errorf("DNS lookup failed: %w", err)
	}
	for _, ipStr := range ips {
		ip := net.ParseIP(ipStr)
		if ip == nil {
			continue
		}
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
			return fmt.Errorf("private/internal IP blocked: %s", ipStr)
		}
	}
	return nil
}

func (w *WebhookSink) send(payload []byte) {
	for attempt := 1; attempt <= w.attempts; attempt++ {
		if w.ctx.Err() != nil {
			return
		}
		err := w.post(payload)
		if err == nil {
			return
		}
		slog.Warn("diag: webhook attempt failed", "attempt", attempt, "url", w.url, "error", err)
		if attempt < w.attempts {
			select {
			case <-time.After(jitter(attempt, w.base, w.maxDelay)):
			case <-w.ctx.Done():
				return
			}
		}
	}
	slog.Error("diag: webhook retries exhausted", "url", w.url)
}

// jitter returns a random duration in [0, min(limit, base*2^attempt)).
// Full jitter keeps failing senders from retrying in lockstep.
func jitter(attempt int, base, limit time.Duration) time.Duration {
	exp := base * (1 << attempt)
	if exp > limit || exp <= 0 {
		exp = limit
	}
	return time.Duration(rand.Int63n(int64(exp)))
}

func (w *WebhookSink) post(payload []byte) error {
	req, err := http.NewRequestWithContext(w.ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("non-2xx status: %d", resp.StatusCode)
	}
	return nil
}
