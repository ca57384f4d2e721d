package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog/hlog"

	"github.com/minidefi/localrag/internal/api"
	"github.com/minidefi/localrag/internal/llm"
	"github.com/minidefi/localrag/pkg/models"
)

// systemPrompt frames every generation.
const systemPrompt = `You are a helpful AI assistant for Mini-DeFi, a decentralized lending platform.
Your role is to help users understand and use the platform effectively.

Use the provided context to answer questions accurately. If the context doesn't contain
relevant information, say so honestly and provide general DeFi guidance.

Keep answers concise, friendly, and actionable. Use bullet points and numbered steps when appropriate.
If users ask about specific transactions, remind them to always verify details in their wallet before confirming.`

// chunkSeparator joins retrieved chunks inside the prompt.
const chunkSeparator = "\n\n---\n\n"

// Retriever surfaces context chunks for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]models.RetrievalResult, error)
	Size() int
}

// Generator produces a completion for an assembled prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts llm.GenerateOptions) (string, error)
}

// ChatHandler serves the chat, retrieve and health endpoints.
type ChatHandler struct {
	retriever Retriever
	generator Generator
	modelName string
	topK      int
	threads   int

	// One in-flight generation at a time: the runtime owns all configured
	// CPU threads for the duration of a completion.
	genMu sync.Mutex
}

// NewChatHandler creates the handler set for the RAG endpoints.
func NewChatHandler(retriever Retriever, generator Generator, modelName string, topK, threads int) *ChatHandler {
	if topK < 1 {
		topK = 3
	}
	return &ChatHandler{
		retriever: retriever,
		generator: generator,
		modelName: modelName,
		topK:      topK,
		threads:   threads,
	}
}

type ChatRequest struct {
	Message string `json:"message"`
}

type ChatResponse struct {
	Response string   `json:"response"`
	Sources  []string `json:"sources"`
}

type RetrieveRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type RetrieveResponse struct {
	Results []models.RetrievalResult `json:"results"`
}

type HealthResponse struct {
	Status string `json:"status"`
	Model  string `json:"model"`
	Chunks int    `json:"chunks"`
}

// Health reports server liveness and the configured model.
func (h *ChatHandler) Health(w http.ResponseWriter, r *http.Request) {
	api.JSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Model:  h.modelName,
		Chunks: h.retriever.Size(),
	})
}

// Chat retrieves context for the message and generates an answer.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		api.Error(w, http.StatusBadRequest, "No message provided")
		return
	}

	chunks, err := h.retriever.Retrieve(r.Context(), message, h.topK)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("retrieval failed")
		api.Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	prompt := BuildPrompt(message, chunks)

	h.genMu.Lock()
	response, err := h.generator.Generate(r.Context(), prompt, llm.GenerateOptions{
		MaxTokens:   512,
		Temperature: 0.7,
		TopP:        0.9,
		Stop:        []string{"</s>", "[INST]"},
		Threads:     h.threads,
	})
	h.genMu.Unlock()
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("generation failed")
		api.Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	sources := make([]string, len(chunks))
	for i, c := range chunks {
		sources[i] = c.Metadata.Title
	}

	api.JSON(w, http.StatusOK, ChatResponse{
		Response: strings.TrimSpace(response),
		Sources:  sources,
	})
}

// Retrieve returns the context chunks a query would surface, without
// generating an answer.
func (h *ChatHandler) Retrieve(w http.ResponseWriter, r *http.Request) {
	var req RetrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		api.Error(w, http.StatusBadRequest, "No query provided")
		return
	}

	topK := req.TopK
	if topK < 1 {
		topK = 3
	}

	results, err := h.retriever.Retrieve(r.Context(), query, topK)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("retrieval failed")
		api.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	if results == nil {
		results = []models.RetrievalResult{}
	}

	api.JSON(w, http.StatusOK, RetrieveResponse{Results: results})
}

// BuildPrompt assembles the Mistral instruct prompt: system instructions,
// retrieved context joined by a separator, then the user question.
func BuildPrompt(query string, chunks []models.RetrievalResult) string {
	contents := make([]string, len(chunks))
	for i, c := range chunks {
		contents[i] = c.Content
	}
	var b strings.Builder
	b.WriteString("<s>[INST] ")
	b.WriteString(systemPrompt)
	b.WriteString("\n\nContext from knowledge base:\n")
	b.WriteString(strings.Join(contents, chunkSeparator))
	b.WriteString("\n\nUser question: ")
	b.WriteString(query)
	b.WriteString(" [/INST]")
	return b.String()
}
