package notify

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeSender struct {
	msgs []string
	err  error
}

func (f *fakeSender) Send(msg string) error {
	f.msgs = append(f.msgs, msg)
	return f.err
}

type fakeFirer struct {
	events []string
}

func (f *fakeFirer) Fire(event string, payload interface{}) {
	f.events = append(f.events, event)
}

func TestSend(t *testing.T) {
	tg := &fakeSender{}
	wh := &fakeFirer{}
	d := New(tg, wh)

	d.Send("batch.completed", map[string]any{"id": 3, "name": "nightly", "done": 9, "failed": 1})

	assert.Len(t, tg.msgs, 1)
	assert.Equal(t, "Batch nightly (#3) finished: 9 ok, 1 failed", tg.msgs[0])
	assert.Equal(t, []string{"batch.completed"}, wh.events)
}

func TestSend_NilAdapters(t *testing.T) {
	d := New(nil, nil)
	// Must not panic with nothing configured.
	d.Send("batch.failed", nil)
	d.SendTelegram("hello")
}

func TestSend_TelegramErrorDoesNotBlockWebhook(t *testing.T) {
	tg := &fakeSender{err: errors.New("boom")}
	wh := &fakeFirer{}
	New(tg, wh).Send("batch.failed", nil)
	assert.Equal(t, []string{"batch.failed"}, wh.events)
}

type fakeAlerter struct {
	fakeSender
	alerts []int
}

func (f *fakeAlerter) SendBatchAlert(name, detail string, batchID int) error {
	f.alerts = append(f.alerts, batchID)
	return nil
}

func TestSend_BatchFailureUsesAlert(t *testing.T) {
	tg := &fakeAlerter{}
	d := New(tg, nil)

	d.Send("batch.failed", map[string]any{"id": 4, "name": "n", "error": "105"})
	assert.Equal(t, []int{4}, tg.alerts)
	assert.Empty(t, tg.msgs)

	// Other events still go out as text.
	d.Send("batch.completed", map[string]any{"id": 4, "name": "n", "done": 1, "failed": 0})
	assert.Len(t, tg.msgs, 1)
}

func TestRenderFallback(t *testing.T) {
	assert.Contains(t, render("custom.event", 42), "[custom.event]")
	assert.Contains(t, render("batch.failed", map[string]any{"id": 1, "name": "n", "error": "oops"}), "FAILED: oops")
}

func TestSendTelegram(t *testing.T) {
	tg := &fakeSender{}
	d := New(tg, nil)
	d.SendTelegram("direct message")
	assert.Equal(t, []string{"direct message"}, tg.msgs)
}
