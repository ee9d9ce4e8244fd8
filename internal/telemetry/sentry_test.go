package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_EmptyDSNIsNoop(t *testing.T) {
	flush, err := Init(Config{}, nil)
	require.NoError(t, err)
	require.NotNil(t, flush)
	flush()
}

func TestSpan_ZeroValueIsSafe(t *testing.T) {
	var s Span
	assert.NotPanics(t, func() {
		s.SetData("total", 3)
		s.SetError(errors.New("boom"))
		s.End()
	})
}

func TestStartSpan_NestsUnderParent(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "HybridRetriever.Search", SpanAttributes{Operation: "hybrid_search"})
	defer root.End()
	require.NotNil(t, sentry.SpanFromContext(ctx))

	_, child := StartSpan(ctx, "SemanticRetriever.Search", SpanAttributes{ModelKey: "openai:text-embedding-3-small"})
	defer child.End()
	assert.Equal(t, root.inner.SpanID, child.inner.ParentSpanID)
	assert.Equal(t, "openai:text-embedding-3-small", child.inner.Tags["model_key"])
}

func TestSampler(t *testing.T) {
	s := sampler(0.25)

	health := sentry.StartSpan(context.Background(), "http.server", sentry.WithTransactionName("GET /health"))
	assert.Equal(t, 0.0, s(sentry.SamplingContext{Span: health}))

	root := sentry.StartSpan(context.Background(), "http.server", sentry.WithTransactionName("POST /chat"))
	assert.Equal(t, 0.25, s(sentry.SamplingContext{Span: root}))
}
