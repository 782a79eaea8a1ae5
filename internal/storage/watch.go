package storage

import (
	"sync"

	"rallymatch/backend/internal/models"
)

// Watch is a live feed of committed messages of one session. C may be closed
// by the backend when it loses the subscription; after Close nothing more is
// delivered, but C is not necessarily closed.
type Watch struct {
	C <-chan models.Message

	stop func()
	once sync.Once
}

func NewWatch(c <-chan models.Message, stop func()) *Watch {
	return &Watch{C: c, stop: stop}
}

// Close releases the underlying subscription. It is safe to call more than once.
func (w *Watch) Close() {
	w.once.Do(func() {
		if w.stop != nil {
			w.stop()
		}
	})
}
