package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/saifulwebid/ngobrol/internal/bus"
	"github.com/saifulwebid/ngobrol/internal/protocol"
)

// Engine handles idempotent ingestion of chat traffic into the archive.
// It subscribes to "chat." events on the bus and processes them, so the
// dispatcher and controller never touch the database directly.
type Engine struct {
	db     *DB
	bus    *bus.Bus
	owner  func() string
	logger *zap.Logger
	cancel context.CancelFunc
}

// NewEngine creates an archive engine. owner reports the session user and
// is used to tell which side of a transcript is the remote peer.
func NewEngine(db *DB, b *bus.Bus, owner func() string, logger *zap.Logger) *Engine {
	return &Engine{
		db:     db,
		bus:    b,
		owner:  owner,
		logger: logger,
	}
}

// Start subscribes to chat events on the bus.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	ch, unsub := e.bus.Subscribe("chat.", 256)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				e.handleEvent(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
}

func (e *Engine) handleEvent(evt bus.Event) {
	switch evt.Kind {
	case bus.KindMessage, bus.KindNotification:
		msg, ok := evt.Payload.(protocol.Message)
		if !ok {
			return
		}
		if err := e.db.UpsertMessage(msg); err != nil {
			e.logger.Error("failed to archive message", zap.Error(err), zap.Int64("id", msg.ID))
		}
	case bus.KindSent:
		msg, ok := evt.Payload.(protocol.Message)
		if !ok {
			return
		}
		if err := e.IngestSent(msg); err != nil {
			e.logger.Error("failed to archive sent message", zap.Error(err), zap.Int64("id", msg.ID))
		}
	case bus.KindRead:
		p, ok := evt.Payload.(protocol.ReadPayload)
		if !ok {
			return
		}
		if err := e.db.MarkRead(p.From, p.To); err != nil {
			e.logger.Error("failed to archive read flip", zap.Error(err), zap.String("from", p.From))
		}
	case bus.KindHistory:
		msgs, ok := evt.Payload.([]protocol.Message)
		if !ok {
			return
		}
		if err := e.IngestHistoryBatch(msgs); err != nil {
			e.logger.Error("failed to archive history batch", zap.Error(err), zap.Int("count", len(msgs)))
		} else if len(msgs) > 0 {
			e.logger.Info("history batch archived", zap.Int("messages", len(msgs)))
		}
	}
}

// IngestSent records an optimistic send: the provisional message plus an
// outbox entry under a fresh client id.
func (e *Engine) IngestSent(msg protocol.Message) error {
	if err := e.db.UpsertMessage(msg); err != nil {
		return fmt.Errorf("upsert message: %w", err)
	}
	if err := e.db.QueueOutbox(uuid.NewString(), msg.To, msg.Body, msg.ID); err != nil {
		return fmt.Errorf("queue outbox: %w", err)
	}
	return nil
}

// IngestHistoryBatch archives a server transcript in one transaction and
// clears the outbox for every peer it covers, since the transcript is the
// server's authoritative record of those sends.
func (e *Engine) IngestHistoryBatch(msgs []protocol.Message) error {
	tx, err := e.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	owner := e.owner()
	peers := make(map[string]struct{})
	now := time.Now().UnixMilli()

	for _, m := range msgs {
		if _, err := tx.Exec(`
			INSERT INTO messages (id, sender, recipient, body, read, timestamp, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				body = excluded.body,
				read = excluded.read`,
			m.ID, m.From, m.To, m.Body, m.Read, m.Timestamp.UnixMilli(), now); err != nil {
			return fmt.Errorf("upsert message in batch: %w", err)
		}
		if m.From != owner {
			peers[m.From] = struct{}{}
		}
		if m.To != owner {
			peers[m.To] = struct{}{}
		}
	}

	for peer := range peers {
		if _, err := tx.Exec(`DELETE FROM outbox WHERE peer = ?`, peer); err != nil {
			return fmt.Errorf("clear outbox: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}
