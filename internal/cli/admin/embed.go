package admin

import (
	"context"
	"fmt"

	"github.com/cloo-solutions/bookmind/internal/domain"
	"github.com/cloo-solutions/bookmind/internal/jobs"
	"github.com/spf13/cobra"
)

func EmbedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "embed",
		Short: "Index bookmarks for semantic search",
		Long: `Queues every bookmark without a current embedding for the active model and
processes the queue until it is drained. Use --reindex after changing the
embedding model's behaviour to drop existing vectors first.`,
		Args: cobra.NoArgs,
		RunE: runEmbed,
	}

	cmd.Flags().Bool("reindex", false, "Delete stored vectors for the active model before indexing")

	return cmd
}

func runEmbed(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	_, _, semantic, err := a.retrieval()
	if err != nil {
		return err
	}
	if !semantic.IsAvailable() {
		return domain.ErrSemanticUnavailable
	}
	modelKey := semantic.ModelKey()

	if reindex, _ := cmd.Flags().GetBool("reindex"); reindex {
		deleted, err := a.embeddings.DeleteByModel(ctx, modelKey)
		if err != nil {
			return fmt.Errorf("failed to delete embeddings: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d stored vectors for %s\n", deleted, modelKey)
	}

	queued, err := a.jobs.EnqueueStale(ctx, modelKey)
	if err != nil {
		return fmt.Errorf("failed to queue stale embeddings: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Queued %d bookmarks\n", queued)

	worker := jobs.NewEmbeddingWorker(a.jobs, a.embeddingService(), a.logger)
	total, err := drain(ctx, worker)
	if err != nil {
		return err
	}

	counts, err := a.jobs.CountByStatus(ctx)
	if err != nil {
		return fmt.Errorf("failed to count jobs: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Embedded %d, unchanged %d, failed attempts %d (failed jobs: %d)\n",
		total.Embedded, total.Unchanged, total.Failed, counts[domain.EmbeddingJobStatusFailed])
	return nil
}

type batchRunner interface {
	Run(ctx context.Context) (jobs.Stats, error)
}

// drain runs batches until the queue yields nothing. Failed jobs are
// requeued by the worker until they exhaust their retries.
func drain(ctx context.Context, w batchRunner) (jobs.Stats, error) {
	var total jobs.Stats
	for {
		stats, err := w.Run(ctx)
		if err != nil {
			return total, err
		}
		if stats.Claimed == 0 {
			return total, nil
		}
		total.Claimed += stats.Claimed
		total.Embedded += stats.Embedded
		total.Unchanged += stats.Unchanged
		total.Failed += stats.Failed
		if err := ctx.Err(); err != nil {
			return total, err
		}
	}
}
