// Package api serves the pipeline over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/labsync/internal/intake"
	"github.com/sells-group/labsync/internal/model"
	"github.com/sells-group/labsync/internal/monitoring"
	"github.com/sells-group/labsync/internal/stage"
	"github.com/sells-group/labsync/internal/store"
)

// Ingester stores webhook updates.
type Ingester interface {
	HandleUpdate(ctx context.Context, raw []byte) (*model.Message, error)
}

// Extractor runs the extraction stage.
type Extractor interface {
	ExtractAndSave(ctx context.Context, messageID string) (*model.Meeting, error)
}

// Designer runs the design stage.
type Designer interface {
	DesignAndSave(ctx context.Context, meetingID string) (*model.Budget, error)
}

// Allocator manages allocations.
type Allocator interface {
	Create(ctx context.Context, in stage.AllocationInput) (*model.Allocation, error)
	UpdateSpent(ctx context.Context, id string, spent float64) (*model.Allocation, error)
	Get(ctx context.Context, id string) (*model.Allocation, error)
	List(ctx context.Context, budgetID string) ([]model.Allocation, error)
}

// Reader serves the read-only routes.
type Reader interface {
	GetMessage(ctx context.Context, id string) (*model.Message, error)
	ListMessages(ctx context.Context, filter store.MessageFilter) ([]model.Message, error)
	GetMeeting(ctx context.Context, id string) (*model.Meeting, error)
	ListMeetings(ctx context.Context, filter store.ListFilter) ([]model.Meeting, error)
	GetBudget(ctx context.Context, id string) (*model.Budget, error)
	ListBudgets(ctx context.Context, filter store.ListFilter) ([]model.Budget, error)
}

// Stats produces the monitoring snapshot.
type Stats interface {
	Collect(ctx context.Context) (*monitoring.Snapshot, error)
}

// Deps are the services behind the routes.
type Deps struct {
	Intake      Ingester
	Extraction  Extractor
	Design      Designer
	Allocations Allocator
	Reader      Reader
	Stats       Stats
}

// Config configures the handler.
type Config struct {
	CORSOrigins []string
}

type server struct {
	Deps
}

// errorBody is the error half of the response envelope.
type errorBody struct {
	status  int
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (e *errorBody) GetStatus() int { return e.status }
func (e *errorBody) Error() string  { return e.Message }

func newError(status int, msg string) huma.StatusError {
	return &errorBody{status: status, Message: msg}
}

// envelope is the success half of the response envelope.
type envelope[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
}

type response[T any] struct {
	Body envelope[T]
}

func ok[T any](v T) *response[T] {
	return &response[T]{Body: envelope[T]{Success: true, Data: v}}
}

// New returns the HTTP handler.
func New(deps Deps, cfg Config) http.Handler {
	huma.NewError = func(status int, msg string, _ ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity {
			status = http.StatusBadRequest
		}
		return newError(status, msg)
	}

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	hcfg := huma.DefaultConfig("labsync API", "1.0.0")
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(router, hcfg)

	s := &server{Deps: deps}
	s.registerHealth(api)
	s.registerWebhook(api)
	s.registerMessages(api)
	s.registerMeetings(api)
	s.registerBudgets(api)
	s.registerAllocations(api)
	s.registerStats(api)
	return router
}

// handleError maps service errors onto the envelope.
func handleError(err error) huma.StatusError {
	switch {
	case errors.Is(err, stage.ErrNotFound), errors.Is(err, store.ErrNotFound):
		return newError(http.StatusNotFound, err.Error())
	case errors.Is(err, stage.ErrInvalidInput), errors.Is(err, intake.ErrInvalidPayload):
		return newError(http.StatusBadRequest, err.Error())
	}
	zap.L().Error("api: request failed", zap.Error(err))
	return newError(http.StatusInternalServerError, "internal server error")
}

func notFound(what, id string) huma.StatusError {
	return newError(http.StatusNotFound, what+" not found: "+id)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		if strings.HasPrefix(r.URL.Path, "/health") {
			return
		}
		zap.L().Info("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
