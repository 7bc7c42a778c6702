package telegram

import (
	"context"
	"fmt"
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/toolworks/cycletimed/internal/batch"
	"github.com/toolworks/cycletimed/internal/db"
	"github.com/toolworks/cycletimed/internal/engine"
	"github.com/toolworks/cycletimed/internal/status"
)

// BatchEnqueuer queues a batch for processing.
type BatchEnqueuer interface {
	Enqueue(batchID int) bool
}

// CommandHandler handles Telegram bot commands.
type CommandHandler struct {
	database *db.DB
	store    *batch.Store
	eng      *engine.Engine
	runner   BatchEnqueuer
	bot      *Bot
}

// NewCommandHandler creates a CommandHandler.
func NewCommandHandler(database *db.DB, store *batch.Store, eng *engine.Engine, runner BatchEnqueuer) *CommandHandler {
	return &CommandHandler{database: database, store: store, eng: eng, runner: runner}
}

// Handle dispatches incoming messages to the correct command handler.
func (h *CommandHandler) Handle(msg *tgbotapi.Message) {
	if msg == nil || !msg.IsCommand() {
		return
	}
	ctx := context.Background()
	switch msg.Command() {
	case "status":
		h.handleStatus(ctx, msg)
	case "recent":
		h.handleRecent(ctx, msg)
	case "estimate":
		h.handleEstimate(msg)
	case "help":
		h.handleHelp(msg)
	default:
		h.bot.reply(msg.Chat.ID, "Unknown command. Use /help for a list of commands.")
	}
}

// HandleCallback processes inline keyboard button presses.
func (h *CommandHandler) HandleCallback(data, queryID string) {
	ctx := context.Background()
	switch {
	case strings.HasPrefix(data, "rerun_"):
		batchID := 0
		fmt.Sscanf(data, "rerun_%d", &batchID)
		if batchID > 0 {
			h.rerun(ctx, batchID)
		}
	case strings.HasPrefix(data, "delete_"):
		batchID := 0
		fmt.Sscanf(data, "delete_%d", &batchID)
		if batchID > 0 {
			if err := h.store.Delete(ctx, batchID); err != nil {
				log.Printf("telegram: delete batch %d: %v", batchID, err)
			}
		}
	}
}

func (h *CommandHandler) rerun(ctx context.Context, batchID int) {
	src, err := h.store.Get(ctx, batchID)
	if err != nil {
		log.Printf("telegram: rerun batch %d: %v", batchID, err)
		return
	}
	requests, err := h.store.Requests(ctx, batchID)
	if err != nil {
		log.Printf("telegram: rerun batch %d: %v", batchID, err)
		return
	}
	id, err := h.store.Create(ctx, src.Name, requests)
	if err != nil {
		log.Printf("telegram: rerun batch %d: %v", batchID, err)
		return
	}
	if !h.runner.Enqueue(id) {
		log.Printf("telegram: rerun batch %d: runner queue full", batchID)
	}
}

func (h *CommandHandler) handleStatus(ctx context.Context, msg *tgbotapi.Message) {
	rows, err := h.database.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM batches GROUP BY status ORDER BY status`)
	if err != nil {
		h.bot.reply(msg.Chat.ID, "Error fetching batch status.")
		return
	}
	defer rows.Close()

	var sb strings.Builder
	sb.WriteString("*Batch Status*\n\n")
	for rows.Next() {
		var st string
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			continue
		}
		sb.WriteString(fmt.Sprintf("%s %s — `%d`\n", statusIcon(st), st, n))
	}
	var pendingRows int
	_ = h.database.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM batch_rows WHERE status='pending'`).Scan(&pendingRows)
	sb.WriteString(fmt.Sprintf("\nPending rows: `%d`\n", pendingRows))
	h.bot.reply(msg.Chat.ID, sb.String())
}

func (h *CommandHandler) handleRecent(ctx context.Context, msg *tgbotapi.Message) {
	batches, err := h.store.List(ctx, 5)
	if err != nil {
		h.bot.reply(msg.Chat.ID, "Error fetching batches.")
		return
	}
	if len(batches) == 0 {
		h.bot.reply(msg.Chat.ID, "No batches yet.")
		return
	}
	var sb strings.Builder
	sb.WriteString("*Recent Batches*\n\n")
	for _, b := range batches {
		sb.WriteString(fmt.Sprintf("%s #%d %s — %d/%d (`%s`)\n",
			statusIcon(b.Status), b.ID, b.Name, b.DoneRows, b.TotalRows, b.Status))
	}
	h.bot.reply(msg.Chat.ID, sb.String())
}

// handleEstimate runs a one-off estimate from the command text. The argument
// is the tool description; an optional trailing "| N" or "| N/M" sets the
// flute count.
func (h *CommandHandler) handleEstimate(msg *tgbotapi.Message) {
	arg := strings.TrimSpace(msg.CommandArguments())
	if arg == "" {
		h.bot.reply(msg.Chat.ID, "Usage: `/estimate <description> | <flute count>`")
		return
	}
	req := engine.Request{Description: arg}
	if desc, flutes, ok := strings.Cut(arg, "|"); ok {
		req.Description = strings.TrimSpace(desc)
		req.FluteCount = strings.TrimSpace(flutes)
	}
	resp := h.eng.Estimate(req)
	if resp.StatusCode != status.Success {
		h.bot.reply(msg.Chat.ID, fmt.Sprintf("❌ `%d` %s", resp.StatusCode, resp.ErrorMessage))
		return
	}
	h.bot.reply(msg.Chat.ID, fmt.Sprintf(
		"✅ *%s*\nFamily: `%s`\nCycle: `%.3f min`\nPrep: `%.3f min`\nTotal: `%.3f min`",
		resp.Description, resp.Family, resp.CycleTime, resp.PrepTime, resp.TotalCycleTime))
}

func (h *CommandHandler) handleHelp(msg *tgbotapi.Message) {
	h.bot.reply(msg.Chat.ID, strings.Join([]string{
		"*Commands*",
		"",
		"/status — batch counts by status",
		"/recent — last 5 batches",
		"/estimate <description> | <flutes> — quick estimate",
		"/help — this message",
	}, "\n"))
}

func statusIcon(st string) string {
	switch st {
	case db.BatchRunning:
		return "🟢"
	case db.BatchCompleted:
		return "✅"
	case db.BatchFailed:
		return "❌"
	default:
		return "⏸"
	}
}
