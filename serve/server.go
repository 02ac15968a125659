// Package serve exposes the engine over HTTP: health and document info,
// vector and lexical search, and evidence-gated question answering.
package serve

import (
	"context"
	"fmt"
	"io"
	"net/http"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	ragengine "github.com/pck00223-oss/ai-rag-engine"
	"github.com/pck00223-oss/ai-rag-engine/index"
	"github.com/pck00223-oss/ai-rag-engine/store"
)

const maxTopK = 20

// Answerer is the question-answering surface the server depends on.
type Answerer interface {
	AnswerVerbose(ctx context.Context, question string) (ragengine.Answer, []ragengine.Hit, error)
	Search(ctx context.Context, question string) ([]ragengine.Hit, error)
}

// Server wires HTTP handlers to the store, vector index and answer engine.
type Server struct {
	store   *store.Store
	vectors *index.VectorIndex
	engine  Answerer
}

// NewServer creates the HTTP handler set. vectors may be nil when embedding
// is not configured; /search then only accepts lexical queries.
func NewServer(st *store.Store, vectors *index.VectorIndex, engine Answerer) *Server {
	return &Server{store: st, vectors: vectors, engine: engine}
}

// Register attaches all routes to e.
func (s *Server) Register(e *echo.Echo) {
	e.GET("/", s.handleInfo)
	e.GET("/health", s.handleHealth)
	e.GET("/docs", s.handleDocs)
	e.POST("/search", s.handleSearch)
	e.POST("/ask", s.handleAsk)
}

// Run serves the API until ctx is cancelled.
func Run(ctx context.Context, addr string, s *Server) error {
	e := echo.New()
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	s.Register(e)

	sc := echo.StartConfig{Address: addr}
	return sc.Start(ctx, e)
}

func (s *Server) handleInfo(c *echo.Context) error {
	vectorCount := 0
	if s.vectors != nil {
		vectorCount = s.vectors.Len()
	}
	return c.JSON(http.StatusOK, map[string]any{
		"service":   "rag-engine",
		"endpoints": []string{"/health", "/docs", "/search", "/ask"},
		"vectors":   vectorCount,
	})
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDocs(c *echo.Context) error {
	docs, err := s.store.DocIDs(c.Request().Context())
	if err != nil {
		return writeError(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"docs": docs})
}

type searchRequest struct {
	Query  string    `json:"query"`
	Vector []float32 `json:"vector"`
	TopK   int       `json:"topk"`
}

func (s *Server) handleSearch(c *echo.Context) error {
	req, err := decodeJSON[searchRequest](c.Request().Body)
	if err != nil {
		return writeError(c, http.StatusBadRequest, err.Error())
	}

	topK := req.TopK
	if topK == 0 {
		topK = 5
	}
	if topK < 1 || topK > maxTopK {
		return writeError(c, http.StatusBadRequest, fmt.Sprintf("topk must be in [1,%d]", maxTopK))
	}

	switch {
	case req.Query != "" && len(req.Vector) > 0:
		return writeError(c, http.StatusBadRequest, "query and vector are mutually exclusive")

	case len(req.Vector) > 0:
		if s.vectors == nil {
			return writeError(c, http.StatusBadRequest, "vector search is not configured")
		}
		if len(req.Vector) != s.vectors.Dimensions() {
			return writeError(c, http.StatusBadRequest,
				fmt.Sprintf("vector has %d dimensions, index expects %d", len(req.Vector), s.vectors.Dimensions()))
		}
		return c.JSON(http.StatusOK, map[string]any{"neighbors": s.vectors.Search(req.Vector, topK)})

	case req.Query != "":
		hits, err := s.engine.Search(c.Request().Context(), req.Query)
		if err != nil {
			return writeError(c, http.StatusInternalServerError, err.Error())
		}
		if len(hits) > topK {
			hits = hits[:topK]
		}
		return c.JSON(http.StatusOK, map[string]any{"hits": hits})

	default:
		return writeError(c, http.StatusBadRequest, "either query or vector is required")
	}
}

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	ID     string           `json:"id"`
	Answer ragengine.Answer `json:"answer"`
	Hits   []ragengine.Hit  `json:"hits,omitempty"`
}

func (s *Server) handleAsk(c *echo.Context) error {
	req, err := decodeJSON[askRequest](c.Request().Body)
	if err != nil {
		return writeError(c, http.StatusBadRequest, err.Error())
	}
	if req.Question == "" {
		return writeError(c, http.StatusBadRequest, "question is required")
	}

	answer, hits, err := s.engine.AnswerVerbose(c.Request().Context(), req.Question)
	if err != nil {
		return writeError(c, http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, askResponse{
		ID:     "ask_" + uuid.NewString(),
		Answer: answer,
		Hits:   hits,
	})
}

func writeError(c *echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]any{"error": msg})
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var v T
	dec := json.NewDecoder(r)
	if err := dec.Decode(&v); err != nil {
		return v, fmt.Errorf("invalid JSON body: %w", err)
	}
	return v, nil
}
