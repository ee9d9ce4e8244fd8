package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/cloo-solutions/bookmind/internal/logging"
	"github.com/sirupsen/logrus"
)

// JobProcessor defines the interface for processing jobs
type JobProcessor interface {
	ProcessJobs(ctx context.Context) error
}

// Worker represents a background job worker
type Worker struct {
	processor    JobProcessor
	pollInterval time.Duration
	logger       logrus.FieldLogger
	stopChan     chan struct{}
	doneChan     chan struct{}
	stopOnce     sync.Once
}

// NewWorker creates a new Worker instance
func NewWorker(processor JobProcessor, pollInterval time.Duration, logger logrus.FieldLogger) *Worker {
	return &Worker{
		processor:    processor,
		pollInterval: pollInterval,
		logger:       logging.OrDiscard(logger),
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
}

// Start runs one pass immediately and then polls until stopped.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	defer close(w.doneChan)

	w.logger.WithField("poll_interval", w.pollInterval.String()).Info("Worker started")

	w.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Worker stopped: context cancelled")
			return
		case <-w.stopChan:
			w.logger.Info("Worker stopped: stop signal received")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *Worker) runOnce(ctx context.Context) {
	if err := w.processor.ProcessJobs(ctx); err != nil {
		w.logger.WithError(err).Error("Error processing jobs")
	}
}

// Stop gracefully stops the worker and waits for the current pass to finish.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
	<-w.doneChan
	w.logger.Info("Worker shutdown complete")
}
