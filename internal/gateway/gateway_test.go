package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitcore/aigateway/internal/collaborators"
	"github.com/fitcore/aigateway/internal/config"
	"github.com/fitcore/aigateway/internal/namespace"
	"github.com/fitcore/aigateway/internal/retrieval"
)

func TestNewRequiresSearchIndex(t *testing.T) {
	_, err := New(config.DefaultConfig(), Collaborators{})
	assert.Error(t, err)
}

func TestGatewayAdmitsAndServesProtectedRoute(t *testing.T) {
	idx := collaborators.NewMemorySearchIndex()
	gw, err := New(config.DefaultConfig(), Collaborators{SearchIndex: idx})
	require.NoError(t, err)
	defer gw.Close()

	handler := gw.Admission().Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/coach/ask", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Remaining"))
}

func TestGetUserContextBuildsFromSQLOnMiss(t *testing.T) {
	idx := collaborators.NewMemorySearchIndex()
	gw, err := New(config.DefaultConfig(), Collaborators{SearchIndex: idx})
	require.NoError(t, err)
	defer gw.Close()

	sql := collaborators.NewMemorySQLClient()
	sql.Put("u1", []byte(`{"name":"u1"}`))

	v, err := gw.GetUserContext(context.Background(), "u1", sql)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"name":"u1"}`), v)

	v2, err := gw.GetUserContext(context.Background(), "u1", sql)
	require.NoError(t, err)
	assert.Equal(t, v, v2)
}

func TestInvalidationAfterGetUserContext(t *testing.T) {
	idx := collaborators.NewMemorySearchIndex()
	gw, err := New(config.DefaultConfig(), Collaborators{SearchIndex: idx})
	require.NoError(t, err)
	defer gw.Close()

	sql := collaborators.NewMemorySQLClient()
	sql.Put("u2", []byte("P"))
	ctx := context.Background()

	_, err = gw.GetUserContext(ctx, "u2", sql)
	require.NoError(t, err)

	gw.Invalidation().WorkoutLogged(ctx, "u2")

	sql.Put("u2", []byte("P-prime"))
	v, err := gw.GetUserContext(ctx, "u2", sql)
	require.NoError(t, err)
	assert.Equal(t, []byte("P-prime"), v)
}

// TestKnowledgeBaseUpdatedInvalidatesCachedRetrievalContext proves the
// composition root actually wires C7's version counter into C5's cache
// key, not just into an isolated counter: a knowledge_base_updated event
// must make a subsequent identical retrieval re-query partitions instead
// of serving the stale cached blob.
func TestKnowledgeBaseUpdatedInvalidatesCachedRetrievalContext(t *testing.T) {
	idx := collaborators.NewMemorySearchIndex()
	idx.Seed("strength-fundamentals", []collaborators.Chunk{
		{ID: "c1", Text: "old chunk", Score: 0.9},
	})
	gw, err := New(config.DefaultConfig(), Collaborators{SearchIndex: idx})
	require.NoError(t, err)
	defer gw.Close()

	ctx := context.Background()
	params := retrieval.GetContextParams{
		Endpoint: "/api/coach/ask",
		Query:    "how to squat",
		Request:  namespace.RequestShape{IsProgrammingQuestion: true},
		User:     namespace.UserShape{Experience: "beginner"},
		MaxChunks: 5,
		UseCache:  true,
		TTL:       0,
	}

	blob1, err := gw.Retrieval().GetContext(ctx, params)
	require.NoError(t, err)

	idx.Seed("strength-fundamentals", []collaborators.Chunk{
		{ID: "c2", Text: "new chunk", Score: 0.9},
	})
	gw.Invalidation().KnowledgeBaseUpdated(ctx)

	blob2, err := gw.Retrieval().GetContext(ctx, params)
	require.NoError(t, err)
	assert.NotEqual(t, blob1.Text, blob2.Text)
}
