package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/starford/dagaz/internal/batch"
	"github.com/starford/dagaz/internal/sse"
	"github.com/starford/dagaz/internal/state"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// broker, if non-nil, provides the streaming endpoints inside the auth group.
func NewRouter(exec *batch.Executor, agg *state.Aggregator, authEnabled bool, token string, broker *sse.Broker) chi.Router {
	h := NewHandler(exec, agg)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Batch mutation endpoints.
	r.Post("/graph/batch", h.GraphBatch)
	r.Post("/display/batch", h.DisplayBatch)

	// One-shot reads.
	r.Get("/state", h.State)
	r.Get("/tasks", h.Tasks)
	r.Get("/nodes/{id}", h.GetNode)

	// Streaming endpoints, one per snapshot kind.
	if broker != nil {
		r.Get("/state/subscribe", broker.Handler(state.KindApp).ServeHTTP)
		r.Get("/tasks/subscribe", broker.Handler(state.KindTask).ServeHTTP)
		r.Get("/display/subscribe", broker.Handler(state.KindDisplay).ServeHTTP)
	}

	return r
}
