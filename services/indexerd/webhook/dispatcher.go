// Package webhook fans out indexer events to registered HTTP endpoints,
// adapted from integrations/webhooks' reward-payout dispatcher to the
// indexer's swap/market event surface.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/fluxfield/clmm/observability/metrics"
)

// EventType is the logical webhook topic.
type EventType string

const (
	EventSwapExecuted    EventType = "clmm.swap.executed"
	EventMarketUpdated   EventType = "clmm.market.updated"
	EventCommitmentFiled EventType = "clmm.field_commitment.filed"

	defaultMaxAttempts = 5
	defaultMinBackoff  = 2 * time.Second
	defaultMaxBackoff  = 30 * time.Second
)

// SwapExecutedPayload is delivered when a swap is projected.
type SwapExecutedPayload struct {
	Type           EventType `json:"type"`
	MarketAddr     string    `json:"marketAddr"`
	Signature      string    `json:"signature"`
	Trader         string    `json:"trader"`
	AmountIn       string    `json:"amountIn"`
	AmountOut      string    `json:"amountOut"`
	PriceImpactBps uint32    `json:"priceImpactBps"`
	ExecutedAt     time.Time `json:"executedAt"`
	DeliveryID     string    `json:"deliveryId"`
}

// MarketUpdatedPayload is delivered on each market-account projection.
type MarketUpdatedPayload struct {
	Type       EventType `json:"type"`
	MarketAddr string    `json:"marketAddr"`
	Tick       int32     `json:"tick"`
	Liquidity  string    `json:"liquidity"`
	Slot       uint64    `json:"slot"`
	DeliveryID string    `json:"deliveryId"`
}

// Dispatcher delivers events to one registered endpoint with retry and
// exponential backoff, signing each body with an HMAC so subscribers can
// verify authenticity.
type Dispatcher struct {
	endpoint    string
	secret      []byte
	client      *http.Client
	maxAttempts int
	minBackoff  time.Duration
	maxBackoff  time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	queue  chan delivery
	wg     sync.WaitGroup
}

type delivery struct {
	eventType EventType
	body      []byte
}

// Option mutates dispatcher configuration.
type Option func(*Dispatcher)

// WithHTTPClient overrides the HTTP client used for deliveries.
func WithHTTPClient(client *http.Client) Option {
	return func(d *Dispatcher) {
		if client != nil {
			d.client = client
		}
	}
}

// WithRetryPolicy overrides the retry configuration.
func WithRetryPolicy(maxAttempts int, minBackoff, maxBackoff time.Duration) Option {
	return func(d *Dispatcher) {
		if maxAttempts > 0 {
			d.maxAttempts = maxAttempts
		}
		if minBackoff > 0 {
			d.minBackoff = minBackoff
		}
		if maxBackoff >= minBackoff && maxBackoff > 0 {
			d.maxBackoff = maxBackoff
		}
	}
}

// NewDispatcher constructs a dispatcher and spawns its worker goroutine.
func NewDispatcher(endpoint string, secret []byte, opts ...Option) (*Dispatcher, error) {
	endpoint = string(bytes.TrimSpace([]byte(endpoint)))
	if endpoint == "" {
		return nil, errors.New("webhook: endpoint required")
	}
	if len(secret) == 0 {
		return nil, errors.New("webhook: secret required")
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		endpoint:    endpoint,
		secret:      append([]byte(nil), secret...),
		client:      &http.Client{Timeout: 15 * time.Second},
		maxAttempts: defaultMaxAttempts,
		minBackoff:  defaultMinBackoff,
		maxBackoff:  defaultMaxBackoff,
		ctx:         ctx,
		cancel:      cancel,
		queue:       make(chan delivery, 64),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.wg.Add(1)
	go d.worker()
	return d, nil
}

// Close cancels the dispatcher's context, which aborts any in-flight
// delivery and leaves queued ones unsent, and waits for the worker to exit.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.cancel()
	d.wg.Wait()
}

// EnqueueSwap sends a swap-executed event asynchronously.
func (d *Dispatcher) EnqueueSwap(payload SwapExecutedPayload) error {
	payload.Type = EventSwapExecuted
	if payload.DeliveryID == "" {
		payload.DeliveryID = fmt.Sprintf("swap-%s", payload.Signature)
	}
	return d.enqueue(payload.Type, payload)
}

// EnqueueMarketUpdate sends a market-updated event asynchronously.
func (d *Dispatcher) EnqueueMarketUpdate(payload MarketUpdatedPayload) error {
	payload.Type = EventMarketUpdated
	if payload.DeliveryID == "" {
		payload.DeliveryID = fmt.Sprintf("market-%s-%d", payload.MarketAddr, payload.Slot)
	}
	return d.enqueue(payload.Type, payload)
}

func (d *Dispatcher) enqueue(eventType EventType, body interface{}) error {
	if d == nil {
		return errors.New("webhook: dispatcher not initialised")
	}
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	select {
	case d.queue <- delivery{eventType: eventType, body: data}:
		return nil
	case <-d.ctx.Done():
		return errors.New("webhook: dispatcher closed")
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case job := <-d.queue:
			d.process(job)
		case <-d.ctx.Done():
			return
		}
	}
}

func (d *Dispatcher) process(job delivery) {
	attempt := 0
	backoff := d.minBackoff
	for {
		attempt++
		ctx, cancel := context.WithTimeout(d.ctx, d.client.Timeout)
		err := d.send(ctx, job)
		cancel()
		if err == nil {
			metrics.Indexer().IncWebhookDelivered(string(job.eventType))
			return
		}
		if attempt >= d.maxAttempts {
			metrics.Indexer().IncWebhookFailed(string(job.eventType))
			return
		}
		select {
		case <-time.After(backoff):
		case <-d.ctx.Done():
			return
		}
		backoff = nextBackoff(backoff, d.maxBackoff)
	}
}

func (d *Dispatcher) send(ctx context.Context, job delivery) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(job.body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Clmm-Event", string(job.eventType))
	req.Header.Set("X-Clmm-Signature", d.sign(job.body))
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("webhook: delivery failed with status %d", resp.StatusCode)
}

func (d *Dispatcher) sign(body []byte) string {
	mac := hmac.New(sha256.New, d.secret)
	_, _ = mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func nextBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		return max
	}
	if next < current {
		return max
	}
	return next
}
