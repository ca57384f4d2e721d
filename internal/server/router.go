package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/minidefi/localrag/internal/api/handlers"
)

// NewRouter wires the RAG endpoints.
func NewRouter(chat *handlers.ChatHandler) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", chat.Health)
	r.Post("/chat", chat.Chat)
	r.Post("/retrieve", chat.Retrieve)

	return r
}
