package db

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/postgate/postgate/internal/common/uuid"
)

// touchQueueSize bounds the number of pending last_used_at updates. The
// semantics of last_used_at tolerate loss, so the queue drops the oldest
// entry when full rather than blocking the response path.
const touchQueueSize = 1024

type touchEvent struct {
	tokenID uuid.UUID
	when    time.Time
}

// TouchWorker applies last_used_at updates out-of-band. Enqueue never
// blocks.
type TouchWorker struct {
	store Store
	ch    chan touchEvent
	done  chan struct{}
}

// StartTouchWorker starts the background worker draining the touch queue.
// Stop it with Stop during shutdown.
func StartTouchWorker(store Store) *TouchWorker {
	w := &TouchWorker{
		store: store,
		ch:    make(chan touchEvent, touchQueueSize),
		done:  make(chan struct{}),
	}
	go w.run()
	return w
}

// Enqueue records that a token was used at the given time. If the queue is
// full the oldest pending update is dropped.
func (w *TouchWorker) Enqueue(tokenID uuid.UUID, when time.Time) {
	ev := touchEvent{tokenID: tokenID, when: when}
	for {
		select {
		case w.ch <- ev:
			return
		default:
		}
		select {
		case <-w.ch: // drop oldest
		default:
		}
	}
}

// Stop closes the queue and waits for the worker to apply the updates still
// pending in it and exit.
func (w *TouchWorker) Stop() {
	close(w.ch)
	<-w.done
}

func (w *TouchWorker) run() {
	defer close(w.done)
	for ev := range w.ch {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := w.store.TouchToken(ctx, ev.tokenID, ev.when); err != nil {
			log.Error().Err(err).Str("token_id", ev.tokenID.String()).Msg("failed to update last_used_at")
		}
		cancel()
	}
}
