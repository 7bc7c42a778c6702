// Package webhook delivers estimation events to registered HTTP endpoints.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/toolworks/cycletimed/internal/db"
)

// Event names fired by the estimation service.
const (
	EventBatchCompleted = "batch.completed"
	EventBatchFailed    = "batch.failed"
	EventEstimateFailed = "estimate.failed"
	EventTest           = "webhook.test"
)

// signatureHeader carries the hex HMAC-SHA256 of the body, keyed by the
// webhook's stored secret. Empty secret means unsigned delivery.
const signatureHeader = "X-Signature-SHA256"

// retryBackoff is slept before each delivery attempt; first try is immediate.
var retryBackoff = []time.Duration{0, 500 * time.Millisecond, time.Second, 2 * time.Second}

// Dispatcher delivers events to the webhook endpoints stored in the database.
type Dispatcher struct {
	database *db.DB
	client   *http.Client
}

// New creates a Dispatcher. The timeout bounds each delivery attempt.
func New(database *db.DB, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		database: database,
		client:   &http.Client{Timeout: timeout},
	}
}

// Payload is the JSON body sent to webhook URLs.
type Payload struct {
	Event     string      `json:"event"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// endpoint is one enabled webhook row loaded for delivery.
type endpoint struct {
	id     int
	url    string
	secret string
}

// Fire delivers an event to every enabled endpoint subscribed to it.
// Deliveries run concurrently and never block the caller.
func (d *Dispatcher) Fire(event string, data interface{}) {
	targets, err := d.subscribers(event)
	if err != nil {
		log.Printf("webhook.Fire: %v", err)
		return
	}
	if len(targets) == 0 {
		return
	}
	body, err := json.Marshal(Payload{Event: event, Timestamp: time.Now(), Data: data})
	if err != nil {
		log.Printf("webhook.Fire: marshal: %v", err)
		return
	}
	for _, ep := range targets {
		go d.deliver(ep, body)
	}
}

// subscribers loads the enabled endpoints whose event filter matches.
// An empty filter subscribes to everything.
func (d *Dispatcher) subscribers(event string) ([]endpoint, error) {
	rows, err := d.database.Query(
		`SELECT id, url, secret, events FROM webhooks WHERE enabled=1`)
	if err != nil {
		return nil, fmt.Errorf("webhook.subscribers: %w", err)
	}
	defer rows.Close()

	var out []endpoint
	for rows.Next() {
		var ep endpoint
		var events string
		if err := rows.Scan(&ep.id, &ep.url, &ep.secret, &events); err != nil {
			continue
		}
		if events != "" && !matchesEvent(events, event) {
			continue
		}
		out = append(out, ep)
	}
	return out, rows.Err()
}

// deliver posts the body with retries, then records the final HTTP status
// on the webhook row.
func (d *Dispatcher) deliver(ep endpoint, body []byte) {
	var last int
	for attempt, backoff := range retryBackoff {
		time.Sleep(backoff)
		status, err := d.post(ep, body)
		last = status
		if err == nil && status < 400 {
			break
		}
		log.Printf("webhook.deliver: attempt %d to %s: status=%d err=%v", attempt+1, ep.url, status, err)
	}
	_, _ = d.database.Exec(
		`UPDATE webhooks SET last_status=?, last_fired=? WHERE id=?`,
		last, time.Now(), ep.id,
	)
}

func (d *Dispatcher) post(ep endpoint, body []byte) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.client.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("webhook.post: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if ep.secret != "" {
		req.Header.Set(signatureHeader, sign(ep.secret, body))
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("webhook.post: do: %w", err)
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

// sign computes the hex HMAC-SHA256 of body under the endpoint secret.
func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func matchesEvent(events, event string) bool {
	for _, e := range strings.Split(events, ",") {
		if strings.TrimSpace(e) == event {
			return true
		}
	}
	return false
}

// TestWebhook delivers a test payload to a single endpoint, once, without
// retries. Used by the API's test route so failures surface immediately.
func (d *Dispatcher) TestWebhook(ctx context.Context, id int) error {
	var ep endpoint
	if err := d.database.QueryRowContext(ctx,
		`SELECT id, url, secret FROM webhooks WHERE id=?`, id,
	).Scan(&ep.id, &ep.url, &ep.secret); err != nil {
		return fmt.Errorf("webhook.TestWebhook: %w", err)
	}
	body, _ := json.Marshal(Payload{
		Event:     EventTest,
		Timestamp: time.Now(),
		Data:      map[string]string{"message": "This is a test from cycletimed"},
	})
	status, err := d.post(ep, body)
	if err != nil {
		return fmt.Errorf("webhook.TestWebhook: post: %w", err)
	}
	if status >= 400 {
		return fmt.Errorf("webhook.TestWebhook: server returned %d", status)
	}
	return nil
}
