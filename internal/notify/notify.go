// Package notify fans batch lifecycle events out to the configured channels.
package notify

import (
	"fmt"
	"log"
)

// Sender delivers a plain-text message (the Telegram adapter).
type Sender interface {
	Send(msg string) error
}

// WebhookFirer delivers a structured event (the webhook dispatcher).
type WebhookFirer interface {
	Fire(event string, payload interface{})
}

// BatchAlerter is an optional Sender upgrade: senders that can show
// actionable failure alerts (inline re-run/delete buttons) implement it.
type BatchAlerter interface {
	SendBatchAlert(batchName, detail string, batchID int) error
}

// Dispatcher routes events to Telegram and webhooks. Either channel may
// be nil, which disables it.
type Dispatcher struct {
	telegram Sender
	webhook  WebhookFirer
}

// New creates a Dispatcher.
func New(telegram Sender, webhook WebhookFirer) *Dispatcher {
	return &Dispatcher{telegram: telegram, webhook: webhook}
}

// Send pushes one event to every configured channel. Telegram receives a
// rendered text line; webhooks receive the raw payload.
func (d *Dispatcher) Send(event string, payload interface{}) {
	if d.telegram != nil {
		if err := d.sendTelegram(event, payload); err != nil {
			log.Printf("notify: telegram send: %v", err)
		}
	}
	if d.webhook != nil {
		d.webhook.Fire(event, payload)
	}
}

// sendTelegram prefers the actionable alert for batch failures when the
// sender supports it, otherwise a rendered text line.
func (d *Dispatcher) sendTelegram(event string, payload interface{}) error {
	if event == "batch.failed" {
		if alerter, ok := d.telegram.(BatchAlerter); ok {
			if m, ok := payload.(map[string]any); ok {
				name, _ := m["name"].(string)
				detail, _ := m["error"].(string)
				id, _ := m["id"].(int)
				return alerter.SendBatchAlert(name, detail, id)
			}
		}
	}
	return d.telegram.Send(render(event, payload))
}

// SendTelegram sends a pre-rendered message on the Telegram channel only.
func (d *Dispatcher) SendTelegram(msg string) {
	if d.telegram == nil {
		return
	}
	if err := d.telegram.Send(msg); err != nil {
		log.Printf("notify: telegram: %v", err)
	}
}

// render turns a known event payload into a readable one-liner; unknown
// events fall back to a tagged dump.
func render(event string, payload interface{}) string {
	m, ok := payload.(map[string]any)
	if !ok {
		return fmt.Sprintf("[%s] %v", event, payload)
	}
	switch event {
	case "batch.completed":
		return fmt.Sprintf("Batch %v (#%v) finished: %v ok, %v failed",
			m["name"], m["id"], m["done"], m["failed"])
	case "batch.failed":
		return fmt.Sprintf("Batch %v (#%v) FAILED: %v", m["name"], m["id"], m["error"])
	default:
		return fmt.Sprintf("[%s] %v", event, payload)
	}
}
