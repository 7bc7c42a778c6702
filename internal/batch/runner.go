package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/toolworks/cycletimed/internal/db"
	"github.com/toolworks/cycletimed/internal/engine"
	"github.com/toolworks/cycletimed/internal/notify"
	"github.com/toolworks/cycletimed/internal/status"
	"github.com/toolworks/cycletimed/internal/ws"
)

// Runner processes queued batches through the estimation engine, one batch
// at a time with a configurable number of row workers.
type Runner struct {
	store    *Store
	eng      *engine.Engine
	database *db.DB
	hub      *ws.Hub
	notify   *notify.Dispatcher
	webhook  notify.WebhookFirer
	workers  int
	jobs     chan int
	wg       sync.WaitGroup
}

// NewRunner creates a Runner. hub, notifier and webhook may be nil.
func NewRunner(store *Store, eng *engine.Engine, database *db.DB,
	hub *ws.Hub, notifier *notify.Dispatcher, webhook notify.WebhookFirer, workers int) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{
		store:    store,
		eng:      eng,
		database: database,
		hub:      hub,
		notify:   notifier,
		webhook:  webhook,
		workers:  workers,
		jobs:     make(chan int, 64),
	}
}

// SetNotifier installs the notification dispatcher. Call before Start; the
// notifier depends on the webhook dispatcher, which is built after the runner.
func (r *Runner) SetNotifier(n *notify.Dispatcher) {
	r.notify = n
}

// Enqueue queues a batch for processing. Returns false if the queue is full.
func (r *Runner) Enqueue(batchID int) bool {
	select {
	case r.jobs <- batchID:
		return true
	default:
		return false
	}
}

// Start launches the runner loop. Pending batches left over from a previous
// run are requeued first. Exits when ctx is cancelled.
func (r *Runner) Start(ctx context.Context) {
	r.requeuePending(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case id := <-r.jobs:
				if err := r.runBatch(ctx, id); err != nil {
					log.Printf("batch[%d]: %v", id, err)
				}
			}
		}
	}()
}

// Wait blocks until the runner loop has exited.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) requeuePending(ctx context.Context) {
	rows, err := r.database.QueryContext(ctx,
		`SELECT id FROM batches WHERE status IN ('pending','running') ORDER BY id ASC`)
	if err != nil {
		log.Printf("batch: requeue pending: %v", err)
		return
	}
	defer rows.Close()
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			continue
		}
		// Rows stuck in running from a crash go back to pending.
		_, _ = r.database.ExecContext(ctx,
			`UPDATE batch_rows SET status='pending' WHERE batch_id=? AND status='running'`, id)
		r.Enqueue(id)
	}
}

func (r *Runner) runBatch(ctx context.Context, batchID int) error {
	b, err := r.store.Get(ctx, batchID)
	if err != nil {
		return err
	}
	if err := r.store.MarkRunning(ctx, batchID); err != nil {
		return err
	}
	r.broadcast(ws.WSMessage{Type: ws.TypeBatchStarted, BatchID: batchID, Message: b.Name})
	r.database.WriteLog(&batchID, nil, "info", "batch started: "+b.Name)

	// A reference-data failure fails every subsequent row the same way, so
	// the first one aborts the whole batch.
	abort := make(chan string, r.workers)
	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					log.Printf("batch[%d]: worker panic recovered: %v", batchID, rec)
				}
			}()
			r.runRows(ctx, batchID, abort)
		}()
	}
	wg.Wait()

	select {
	case msg := <-abort:
		if err := r.store.MarkFailed(ctx, batchID, msg); err != nil {
			return err
		}
		r.broadcast(ws.WSMessage{Type: ws.TypeBatchComplete, BatchID: batchID, Level: "error", Message: msg})
		if r.notify != nil {
			r.notify.Send("batch.failed", map[string]any{"id": batchID, "name": b.Name, "error": msg})
		}
		return fmt.Errorf("batch.runBatch: aborted: %s", msg)
	default:
	}

	if err := r.store.MarkCompleted(ctx, batchID); err != nil {
		return err
	}
	done, failed := r.rowCounts(ctx, batchID)
	summary := fmt.Sprintf("batch %q completed: %d ok, %d failed", b.Name, done, failed)
	r.database.WriteLog(&batchID, nil, "info", summary)
	r.broadcast(ws.WSMessage{Type: ws.TypeBatchComplete, BatchID: batchID, Message: summary})
	if r.notify != nil {
		r.notify.Send("batch.completed", map[string]any{
			"id": batchID, "name": b.Name, "done": done, "failed": failed,
		})
	}
	return nil
}

func (r *Runner) runRows(ctx context.Context, batchID int, abort chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if len(abort) > 0 {
			return
		}
		row, err := r.store.ClaimRow(ctx, batchID)
		if err != nil {
			log.Printf("batch[%d]: claim row: %v", batchID, err)
			return
		}
		if row == nil {
			return
		}
		r.runOne(ctx, batchID, row, abort)
	}
}

func (r *Runner) runOne(ctx context.Context, batchID int, row *db.BatchRow, abort chan string) {
	var req engine.Request
	if err := json.Unmarshal([]byte(row.Request), &req); err != nil {
		resp := engine.Response{StatusCode: status.ConversionError, ErrorMessage: err.Error()}
		r.finish(ctx, batchID, row, resp)
		return
	}
	resp := r.eng.Estimate(req)
	if resp.StatusCode >= 101 && resp.StatusCode <= 108 {
		// Reference data problem; no row can succeed.
		select {
		case abort <- resp.ErrorMessage:
		default:
		}
	}
	r.finish(ctx, batchID, row, resp)
}

func (r *Runner) finish(ctx context.Context, batchID int, row *db.BatchRow, resp engine.Response) {
	ok := resp.StatusCode == status.Success
	result, err := json.Marshal(resp)
	if err != nil {
		result = []byte(fmt.Sprintf(`{"statusCode":%d}`, resp.StatusCode))
	}
	if err := r.store.FinishRow(ctx, row.ID, batchID, resp.StatusCode, string(result), ok); err != nil {
		log.Printf("batch[%d]: finish row %d: %v", batchID, row.ID, err)
	}
	if !ok {
		r.database.WriteLog(&batchID, &row.ID, "error",
			fmt.Sprintf("row %d: %d %s", row.Position, resp.StatusCode, resp.ErrorMessage))
		if r.webhook != nil {
			r.webhook.Fire("estimate.failed", map[string]any{
				"batch_id": batchID, "row": row.Position,
				"status_code": resp.StatusCode, "error": resp.ErrorMessage,
			})
		}
	}
	r.broadcast(ws.WSMessage{
		Type: ws.TypeRowResult, BatchID: batchID, RowID: row.ID,
		Data: map[string]any{"position": row.Position, "status_code": resp.StatusCode},
	})
	if b, err := r.store.Get(ctx, batchID); err == nil && r.hub != nil {
		r.hub.BroadcastProgress(batchID, b.DoneRows, b.TotalRows)
	}
}

func (r *Runner) broadcast(msg ws.WSMessage) {
	if r.hub != nil {
		r.hub.Broadcast(msg)
	}
}

func (r *Runner) rowCounts(ctx context.Context, batchID int) (done, failed int) {
	_ = r.database.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM batch_rows WHERE batch_id=? AND status='done'`, batchID).Scan(&done)
	_ = r.database.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM batch_rows WHERE batch_id=? AND status='failed'`, batchID).Scan(&failed)
	return done, failed
}

// drainTimeout bounds how long Stop waits for in-flight rows.
const drainTimeout = 30 * time.Second

// Stop waits for the runner to drain or the timeout to pass.
func (r *Runner) Stop() {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(drainTimeout):
		log.Printf("batch: stop timed out after %s", drainTimeout)
	}
}
