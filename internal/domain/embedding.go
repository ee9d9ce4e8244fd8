package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Embedding is a stored vector for one bookmark under one model key
type Embedding struct {
	BookmarkID string
	Vector     []float32
	Dimensions int
	ModelKey   string
	Checksum   string
	CreatedAt  time.Time
}

// ModelKey builds the identifier tying a vector to the provider and model that produced it.
func ModelKey(provider, model string) string {
	return provider + ":" + model
}

// ContentChecksum hashes the text an embedding was computed from.
func ContentChecksum(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// ValidateEmbedding validates an Embedding instance
func ValidateEmbedding(e *Embedding) error {
	if e == nil {
		return fmt.Errorf("embedding cannot be nil")
	}
	if e.BookmarkID == "" {
		return fmt.Errorf("embedding BookmarkID is required")
	}
	if e.ModelKey == "" {
		return fmt.Errorf("embedding ModelKey is required")
	}
	if len(e.Vector) == 0 {
		return fmt.Errorf("embedding Vector cannot be empty")
	}
	if e.Dimensions != len(e.Vector) {
		return fmt.Errorf("embedding Dimensions %d does not match vector length %d", e.Dimensions, len(e.Vector))
	}
	return nil
}

// EmbeddingJobStatus represents the status of an embedding job
type EmbeddingJobStatus string

const (
	EmbeddingJobStatusPending    EmbeddingJobStatus = "pending"
	EmbeddingJobStatusProcessing EmbeddingJobStatus = "processing"
	EmbeddingJobStatusCompleted  EmbeddingJobStatus = "completed"
	EmbeddingJobStatusFailed     EmbeddingJobStatus = "failed"
)

// EmbeddingJob represents an async embedding generation job for a bookmark
type EmbeddingJob struct {
	ID          string
	BookmarkID  string
	Status      EmbeddingJobStatus
	Retries     int32
	Error       string
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// ValidateEmbeddingJob validates an EmbeddingJob instance
func ValidateEmbeddingJob(j *EmbeddingJob) error {
	if j == nil {
		return fmt.Errorf("embedding job cannot be nil")
	}
	if j.ID == "" {
		return fmt.Errorf("embedding job ID is required")
	}
	if j.BookmarkID == "" {
		return fmt.Errorf("embedding job BookmarkID is required")
	}
	if !isValidEmbeddingJobStatus(j.Status) {
		return fmt.Errorf("embedding job Status is invalid: %s", j.Status)
	}
	if j.Retries < 0 {
		return fmt.Errorf("embedding job Retries cannot be negative")
	}
	return nil
}

func isValidEmbeddingJobStatus(s EmbeddingJobStatus) bool {
	switch s {
	case EmbeddingJobStatusPending, EmbeddingJobStatusProcessing,
		EmbeddingJobStatusCompleted, EmbeddingJobStatusFailed:
		return true
	}
	return false
}
