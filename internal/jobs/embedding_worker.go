package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloo-solutions/bookmind/internal/domain"
	"github.com/cloo-solutions/bookmind/internal/logging"
	"github.com/cloo-solutions/bookmind/internal/telemetry"
	"github.com/sirupsen/logrus"
)

const (
	// MaxRetries is the maximum number of retries for a failed job
	MaxRetries = 3
)

// EmbeddingJobRepository defines the interface for embedding job persistence
type EmbeddingJobRepository interface {
	// GetPendingJobs retrieves and claims pending embedding jobs
	GetPendingJobs(ctx context.Context) ([]*domain.EmbeddingJob, error)

	// UpdateJobStatus updates the status of an embedding job
	UpdateJobStatus(ctx context.Context, jobID string, status domain.EmbeddingJobStatus, errMsg string) error

	// IncrementRetries increments the retry count for a job
	IncrementRetries(ctx context.Context, jobID string) error
}

// Embedder refreshes the stored vector of one bookmark
type Embedder interface {
	EmbedBookmark(ctx context.Context, bookmarkID string) (bool, error)
}

// EmbeddingWorker processes embedding jobs
type EmbeddingWorker struct {
	repo     EmbeddingJobRepository
	embedder Embedder
	logger   logrus.FieldLogger
}

// Stats summarizes one ProcessJobs pass.
type Stats struct {
	Claimed   int
	Embedded  int
	Unchanged int
	Failed    int
}

// NewEmbeddingWorker creates a new EmbeddingWorker instance
func NewEmbeddingWorker(repo EmbeddingJobRepository, embedder Embedder, logger logrus.FieldLogger) *EmbeddingWorker {
	return &EmbeddingWorker{
		repo:     repo,
		embedder: embedder,
		logger:   logging.OrDiscard(logger),
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *EmbeddingWorker) ProcessJobs(ctx context.Context) error {
	_, err := w.Run(ctx)
	return err
}

// Run claims one batch of pending jobs and processes them in order.
func (w *EmbeddingWorker) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	jobs, err := w.repo.GetPendingJobs(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to fetch pending jobs: %w", err)
	}
	stats.Claimed = len(jobs)
	if len(jobs) == 0 {
		return stats, nil
	}

	ctx, span := telemetry.StartTransaction(ctx, "EmbeddingWorker.ProcessJobs", "queue.process")
	defer span.End()

	w.logger.WithField("count", len(jobs)).Info("Processing pending embedding jobs")

	for _, job := range jobs {
		updated, err := w.processJob(ctx, job)
		switch {
		case err != nil:
			stats.Failed++
			w.logger.WithError(err).WithField("job_id", job.ID).Error("Error processing job")
		case updated:
			stats.Embedded++
		default:
			stats.Unchanged++
		}
	}

	return stats, nil
}

func (w *EmbeddingWorker) processJob(ctx context.Context, job *domain.EmbeddingJob) (bool, error) {
	log := w.logger.WithFields(logrus.Fields{
		"job_id":      job.ID,
		"bookmark_id": job.BookmarkID,
	})
	if job.BookmarkID == "" {
		return false, fmt.Errorf("job %s has no bookmark_id", job.ID)
	}

	log.Debug("Processing embedding job")
	updated, err := w.embedder.EmbedBookmark(ctx, job.BookmarkID)
	if err != nil {
		return false, w.handleJobFailure(ctx, job, err)
	}

	if err := w.repo.UpdateJobStatus(ctx, job.ID, domain.EmbeddingJobStatusCompleted, ""); err != nil {
		return false, fmt.Errorf("failed to update job status to completed: %w", err)
	}

	log.WithField("updated", updated).Debug("Job completed successfully")
	return updated, nil
}

// handleJobFailure handles a failed job with retry logic. Missing bookmarks
// fail immediately since retrying cannot help.
func (w *EmbeddingWorker) handleJobFailure(ctx context.Context, job *domain.EmbeddingJob, jobErr error) error {
	log := w.logger.WithField("job_id", job.ID).WithError(jobErr)

	if errors.Is(jobErr, domain.ErrBookmarkNotFound) {
		log.Warn("Bookmark no longer exists, marking job as failed")
		if err := w.repo.UpdateJobStatus(ctx, job.ID, domain.EmbeddingJobStatusFailed, jobErr.Error()); err != nil {
			return fmt.Errorf("failed to update job status to failed: %w", err)
		}
		return jobErr
	}

	if err := w.repo.IncrementRetries(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to increment retries: %w", err)
	}

	if job.Retries+1 >= MaxRetries {
		log.WithField("max_retries", MaxRetries).Warn("Job exceeded max retries, marking as failed")
		telemetry.CaptureError(ctx, jobErr)
		errMsg := fmt.Sprintf("max retries exceeded: %v", jobErr)
		if err := w.repo.UpdateJobStatus(ctx, job.ID, domain.EmbeddingJobStatusFailed, errMsg); err != nil {
			return fmt.Errorf("failed to update job status to failed: %w", err)
		}
		return jobErr
	}

	log.WithField("attempt", job.Retries+1).Warn("Job will be retried")
	errMsg := fmt.Sprintf("retry %d: %v", job.Retries+1, jobErr)
	if err := w.repo.UpdateJobStatus(ctx, job.ID, domain.EmbeddingJobStatusPending, errMsg); err != nil {
		return fmt.Errorf("failed to reset job status to pending: %w", err)
	}

	return jobErr
}
