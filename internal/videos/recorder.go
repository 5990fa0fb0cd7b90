package videos

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vidtube/backend/internal/logging"
)

// ViewCounter increments the view counter of a video.
type ViewCounter interface {
	IncrementViews(ctx context.Context, id primitive.ObjectID) error
}

// HistoryWriter records a video at the front of a user's watch history.
type HistoryWriter interface {
	PushWatchHistory(ctx context.Context, userID, videoID primitive.ObjectID) error
}

// View is one watch of a video. Viewer is zero for anonymous views.
type View struct {
	VideoID primitive.ObjectID
	Viewer  primitive.ObjectID
}

// RecorderConfig controls the concurrency characteristics of the recorder.
type RecorderConfig struct {
	QueueSize int
	Workers   int
}

// ViewRecorder applies the side effects of a view, the counter increment and
// the watch history push, on a background worker pool.
type ViewRecorder struct {
	counter ViewCounter
	history HistoryWriter
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
	jobs   chan View
	wg     sync.WaitGroup
}

// NewViewRecorder starts the worker pool.
func NewViewRecorder(counter ViewCounter, history HistoryWriter, cfg RecorderConfig, logger *slog.Logger) *ViewRecorder {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &ViewRecorder{
		counter: counter,
		history: history,
		logger:  logger,
		jobs:    make(chan View, cfg.QueueSize),
	}

	r.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go r.worker()
	}

	return r
}

// Enqueue schedules the view. It never blocks: when the queue is full the
// view is dropped and logged.
func (r *ViewRecorder) Enqueue(ctx context.Context, view View) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrRecorderClosed
	}

	select {
	case r.jobs <- view:
		return nil
	default:
		logging.FromContext(ctx).Warn("view recorder queue full, dropping view",
			slog.String("video_id", view.VideoID.Hex()),
		)
		return nil
	}
}

// Shutdown stops accepting views and waits for queued ones to be written.
func (r *ViewRecorder) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.jobs)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (r *ViewRecorder) worker() {
	defer r.wg.Done()

	for view := range r.jobs {
		r.handle(view)
	}
}

func (r *ViewRecorder) handle(view View) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ctx = logging.WithLogger(ctx, r.logger)
	ctx, span := logging.StartSpan(ctx, "videos.record_view")
	defer span.End()

	logger := logging.FromContext(ctx)

	if r.counter != nil {
		if err := r.counter.IncrementViews(ctx, view.VideoID); err != nil {
			logger.Error("increment views", "videoId", view.VideoID.Hex(), "error", err)
		}
	}
	if r.history != nil && !view.Viewer.IsZero() {
		if err := r.history.PushWatchHistory(ctx, view.Viewer, view.VideoID); err != nil {
			logger.Error("push watch history", "videoId", view.VideoID.Hex(), "userId", view.Viewer.Hex(), "error", err)
		}
	}
}
