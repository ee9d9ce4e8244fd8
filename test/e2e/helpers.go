//go:build e2e

package e2e

import (
	"context"
	"math"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cloo-solutions/bookmind/internal/api/handlers"
	"github.com/cloo-solutions/bookmind/internal/cli/client"
	"github.com/cloo-solutions/bookmind/internal/domain"
	"github.com/cloo-solutions/bookmind/internal/jobs"
	"github.com/cloo-solutions/bookmind/internal/logging"
	"github.com/cloo-solutions/bookmind/internal/repository"
	"github.com/cloo-solutions/bookmind/internal/server"
	"github.com/cloo-solutions/bookmind/internal/service"
	"github.com/cloo-solutions/bookmind/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
)

// topicProvider embeds text as keyword counts over a fixed topic list, so
// bookmarks on the same topic are exactly similar and different topics are
// orthogonal.
type topicProvider struct{}

var topics = []string{"go", "react", "kafka", "pasta"}

func (topicProvider) Embed(_ context.Context, text string) ([]float32, error) {
	lower := strings.ToLower(text)
	v := make([]float32, len(topics))
	var norm float64
	for i, topic := range topics {
		n := float64(strings.Count(lower, topic))
		v[i] = float32(n)
		norm += n * n
	}
	if norm > 0 {
		for i := range v {
			v[i] = float32(float64(v[i]) / math.Sqrt(norm))
		}
	}
	return v, nil
}

func (topicProvider) ModelKey() string          { return domain.ModelKey("local", "topics") }
func (topicProvider) IsEnabled() bool           { return true }
func (topicProvider) IsProviderSupported() bool { return true }
func (topicProvider) HasCredential() bool       { return false }
func (topicProvider) IsLocal() bool             { return true }

// Env is a migrated database behind a running HTTP server.
type Env struct {
	T          *testing.T
	Ctx        context.Context
	Pool       *pgxpool.Pool
	Bookmarks  *repository.BookmarkRepository
	Embeddings *repository.EmbeddingRepository
	Jobs       *repository.EmbeddingJobRepository
	Worker     *jobs.EmbeddingWorker
	API        *client.APIClient
}

func SetupEnv(t *testing.T) *Env {
	t.Helper()
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")
	t.Cleanup(pool.Close)

	logger := logging.Discard()
	bookmarks := repository.NewBookmarkRepository(pool)
	embeddings := repository.NewEmbeddingRepository(pool)
	jobRepo := repository.NewEmbeddingJobRepository(pool)
	provider := topicProvider{}

	planner, err := service.NewQueryPlanner("en", nil, logger)
	if err != nil {
		t.Fatalf("failed to build planner: %v", err)
	}
	semantic := service.NewSemanticRetriever(embeddings, provider, logger)
	hybrid := service.NewHybridRetriever(bookmarks, embeddings, service.NewKeywordRetriever(bookmarks), semantic, service.DefaultWeights(), logger)
	agent := service.NewChatSearchAgent(bookmarks, planner, hybrid, nil, "en", logger)

	srv := httptest.NewServer(server.NewRouter(server.RouterConfig{
		Logger:        logger,
		ChatHandler:   handlers.NewChatHandler(agent),
		SearchHandler: handlers.NewSearchHandler(hybrid, semantic, bookmarks),
	}))
	t.Cleanup(srv.Close)

	return &Env{
		T:          t,
		Ctx:        ctx,
		Pool:       pool,
		Bookmarks:  bookmarks,
		Embeddings: embeddings,
		Jobs:       jobRepo,
		Worker:     jobs.NewEmbeddingWorker(jobRepo, service.NewEmbeddingService(bookmarks, embeddings, provider, logger), logger),
		API:        client.NewAPIClientWithConfig(srv.URL),
	}
}

// Seed stores bookmarks created ageDays ago; the insert trigger queues them
// for embedding.
func (e *Env) Seed(bs ...*domain.Bookmark) {
	e.T.Helper()
	for _, b := range bs {
		if err := e.Bookmarks.Upsert(e.Ctx, b); err != nil {
			e.T.Fatalf("failed to seed %s: %v", b.ID, err)
		}
	}
}

// DrainQueue processes embedding jobs until none are pending.
func (e *Env) DrainQueue() jobs.Stats {
	e.T.Helper()
	var total jobs.Stats
	for {
		stats, err := e.Worker.Run(e.Ctx)
		if err != nil {
			e.T.Fatalf("worker failed: %v", err)
		}
		if stats.Claimed == 0 {
			return total
		}
		total.Claimed += stats.Claimed
		total.Embedded += stats.Embedded
		total.Unchanged += stats.Unchanged
		total.Failed += stats.Failed
	}
}

func bookmark(id, url, title string, ageDays int, tags ...string) *domain.Bookmark {
	created := time.Now().UTC().Add(-time.Duration(ageDays) * 24 * time.Hour).Truncate(time.Microsecond)
	return domain.NewBookmark(id, url, title, "", tags, "", created)
}

func ids(bs []*handlers.BookmarkResponse) []string {
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = b.ID
	}
	return out
}
