// Package scheduler wraps robfig/cron to re-run named batches on a schedule.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/toolworks/cycletimed/internal/batch"
	"github.com/toolworks/cycletimed/internal/db"
)

// BatchEnqueuer queues a batch for processing.
type BatchEnqueuer interface {
	Enqueue(batchID int) bool
}

// Engine manages the cron scheduler. Each enabled schedule clones the most
// recent batch carrying its batch_name and queues the clone.
type Engine struct {
	cron     *cron.Cron
	database *db.DB
	store    *batch.Store
	runner   BatchEnqueuer
	entries  map[int]cron.EntryID
}

// New creates a new cron-based Engine.
func New(database *db.DB, store *batch.Store, runner BatchEnqueuer) *Engine {
	return &Engine{
		cron:     cron.New(cron.WithSeconds()),
		database: database,
		store:    store,
		runner:   runner,
		entries:  make(map[int]cron.EntryID),
	}
}

// Start begins the cron engine and loads all enabled schedules.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.LoadSchedules(ctx); err != nil {
		return fmt.Errorf("scheduler.Start: %w", err)
	}
	e.cron.Start()
	go func() {
		<-ctx.Done()
		e.cron.Stop()
	}()
	return nil
}

// LoadSchedules loads all enabled schedules from the DB and registers cron jobs.
func (e *Engine) LoadSchedules(ctx context.Context) error {
	rows, err := e.database.QueryContext(ctx,
		`SELECT id, name, cron_expr, batch_name FROM schedules WHERE enabled=1`)
	if err != nil {
		return fmt.Errorf("scheduler.LoadSchedules: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s db.Schedule
		if err := rows.Scan(&s.ID, &s.Name, &s.CronExpr, &s.BatchName); err != nil {
			log.Printf("scheduler: scan schedule: %v", err)
			continue
		}
		if err := e.addJob(s); err != nil {
			log.Printf("scheduler: add job %d: %v", s.ID, err)
		}
	}
	return rows.Err()
}

// AddJob registers a schedule in the cron engine by ID.
func (e *Engine) AddJob(ctx context.Context, scheduleID int) error {
	var s db.Schedule
	err := e.database.QueryRowContext(ctx,
		`SELECT id, name, cron_expr, batch_name FROM schedules WHERE id=?`, scheduleID,
	).Scan(&s.ID, &s.Name, &s.CronExpr, &s.BatchName)
	if err != nil {
		return fmt.Errorf("scheduler.AddJob: %w", err)
	}
	return e.addJob(s)
}

// RemoveJob deregisters a schedule from the cron engine.
func (e *Engine) RemoveJob(scheduleID int) {
	if entryID, ok := e.entries[scheduleID]; ok {
		e.cron.Remove(entryID)
		delete(e.entries, scheduleID)
	}
}

func (e *Engine) addJob(s db.Schedule) error {
	schedID := s.ID
	entryID, err := e.cron.AddFunc(s.CronExpr, func() {
		ctx := context.Background()
		if err := e.rerun(ctx, s.BatchName); err != nil {
			log.Printf("scheduler: schedule %d: %v", schedID, err)
			return
		}
		_, _ = e.database.Exec(
			`UPDATE schedules SET last_run=? WHERE id=?`, time.Now(), schedID)
		e.updateNextRun(schedID)
	})
	if err != nil {
		return fmt.Errorf("scheduler.addJob: parse cron: %w", err)
	}
	e.entries[s.ID] = entryID
	e.updateNextRun(s.ID)
	return nil
}

// rerun clones the latest batch with the given name and queues the clone.
func (e *Engine) rerun(ctx context.Context, batchName string) error {
	src, err := e.store.LatestByName(ctx, batchName)
	if err != nil {
		return fmt.Errorf("scheduler.rerun: %w", err)
	}
	requests, err := e.store.Requests(ctx, src.ID)
	if err != nil {
		return fmt.Errorf("scheduler.rerun: %w", err)
	}
	id, err := e.store.Create(ctx, batchName, requests)
	if err != nil {
		return fmt.Errorf("scheduler.rerun: %w", err)
	}
	if !e.runner.Enqueue(id) {
		return fmt.Errorf("scheduler.rerun: runner queue full, batch %d stays pending", id)
	}
	return nil
}

func (e *Engine) updateNextRun(scheduleID int) {
	if entryID, ok := e.entries[scheduleID]; ok {
		entry := e.cron.Entry(entryID)
		if !entry.Next.IsZero() {
			_, _ = e.database.Exec(
				`UPDATE schedules SET next_run=? WHERE id=?`,
				entry.Next, scheduleID,
			)
		}
	}
}
