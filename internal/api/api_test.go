package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/labsync/internal/intake"
	"github.com/sells-group/labsync/internal/model"
	"github.com/sells-group/labsync/internal/monitoring"
	"github.com/sells-group/labsync/internal/stage"
	"github.com/sells-group/labsync/internal/store"
)

const extraction = `{"project_name":"Atlas","client_details":{"name":"Acme"},"meeting_date":"2026-01-05","participants":["@ana"],"estimated_budget":20000,"timeline":"1 month","requirements":"Kickoff"}`

const design = `{"total_budget":0,"people_costs":{"lead":{"count":1,"rate":50,"hours":160},"developer":{"count":1,"rate":50,"hours":160}},"resource_costs":{"electricity":200,"rent":1000,"software_licenses":500,"hardware":500,"other":300},"breakdown":[]}`

const update = `{"update_id":1,"message":{"message_id":55,"from":{"id":3,"username":"sam"},"chat":{"id":9},"date":1767225600,"text":"Project Atlas kickoff, budget $20000"}}`

type fakeGen struct{}

func (fakeGen) Generate(_ context.Context, p string) (string, error) {
	if strings.HasPrefix(p, "Extract meeting details") {
		return extraction, nil
	}
	return design, nil
}

type testEnv struct {
	store   *store.SQLiteStore
	handler http.Handler
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	h := New(Deps{
		Intake:      intake.NewService(st, nil, false),
		Extraction:  stage.NewExtractionService(st, fakeGen{}, nil),
		Design:      stage.NewDesignService(st, fakeGen{}),
		Allocations: stage.NewAllocationService(st),
		Reader:      st,
		Stats:       monitoring.NewCollector(st),
	}, Config{})
	return &testEnv{store: st, handler: h}
}

type result struct {
	Code    int
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func (e *testEnv) do(t *testing.T, method, path, body string) result {
	t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, r)

	var res result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res), w.Body.String())
	res.Code = w.Code
	return res
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestHealth(t *testing.T) {
	env := newEnv(t)
	res := env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, res.Code)
	assert.True(t, res.Success)
	assert.JSONEq(t, `{"status":"ok"}`, string(res.Data))
}

func TestWebhook(t *testing.T) {
	env := newEnv(t)

	res := env.do(t, http.MethodPost, "/api/webhook/telegram", update)
	require.Equal(t, http.StatusCreated, res.Code)
	msg := decode[model.Message](t, res.Data)
	assert.Equal(t, "55", msg.MessageID)
	assert.Equal(t, "@sam", msg.SenderName)

	res = env.do(t, http.MethodPost, "/api/webhook/telegram", `{"update_id":2}`)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.False(t, res.Success)
	assert.Equal(t, "Invalid Telegram payload", res.Message)
}

func TestPipelineRoutes(t *testing.T) {
	env := newEnv(t)

	res := env.do(t, http.MethodPost, "/api/webhook/telegram", update)
	require.Equal(t, http.StatusCreated, res.Code)
	msg := decode[model.Message](t, res.Data)

	res = env.do(t, http.MethodPost, "/api/extract/"+msg.ID, "")
	require.Equal(t, http.StatusOK, res.Code, res.Message)
	meeting := decode[model.Meeting](t, res.Data)
	assert.Equal(t, "Atlas", meeting.ProjectName)

	res = env.do(t, http.MethodGet, "/api/meetings/"+meeting.ID, "")
	assert.Equal(t, http.StatusOK, res.Code)

	res = env.do(t, http.MethodPost, "/api/budgets/design/"+meeting.ID, "")
	require.Equal(t, http.StatusOK, res.Code, res.Message)
	budget := decode[model.Budget](t, res.Data)
	assert.Equal(t, meeting.ID, budget.MeetingID)
	assert.InDelta(t, 18500.0, budget.ComputedTotal(), 0.01)

	res = env.do(t, http.MethodGet, "/api/budgets", "")
	assert.Len(t, decode[[]model.Budget](t, res.Data), 1)

	body := `{"budget_id":"` + budget.ID + `","allocated_to":"Platform team","category":"people","allocated_amount":8000}`
	res = env.do(t, http.MethodPost, "/api/allocations", body)
	require.Equal(t, http.StatusCreated, res.Code, res.Message)
	alloc := decode[model.Allocation](t, res.Data)
	assert.Equal(t, stage.DefaultAllocatedBy, alloc.AllocatedBy)

	res = env.do(t, http.MethodPatch, "/api/allocations/"+alloc.ID+"/spent", `{"actual_spent":1250.5}`)
	require.Equal(t, http.StatusOK, res.Code, res.Message)
	assert.Equal(t, 1250.5, decode[model.Allocation](t, res.Data).ActualSpent)

	res = env.do(t, http.MethodGet, "/api/allocations?budget_id="+budget.ID, "")
	assert.Len(t, decode[[]model.Allocation](t, res.Data), 1)

	res = env.do(t, http.MethodGet, "/api/messages/"+msg.ID, "")
	got := decode[model.Message](t, res.Data)
	assert.Equal(t, model.StatusSucceeded, got.ExtractionStatus)
	assert.Equal(t, model.StatusSucceeded, got.DesignStatus)
	assert.Equal(t, model.StatusSucceeded, got.AllocationStatus)

	res = env.do(t, http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, res.Code)
	snap := decode[monitoring.Snapshot](t, res.Data)
	assert.Equal(t, 1, snap.Allocations.Count)
	assert.Equal(t, 8000.0, snap.Allocations.Allocated)
}

func TestListMessagesFilter(t *testing.T) {
	env := newEnv(t)
	env.do(t, http.MethodPost, "/api/webhook/telegram", update)

	res := env.do(t, http.MethodGet, "/api/messages?stage=extraction&status=pending", "")
	require.Equal(t, http.StatusOK, res.Code, res.Message)
	assert.Len(t, decode[[]model.Message](t, res.Data), 1)

	res = env.do(t, http.MethodGet, "/api/messages?stage=extraction&status=succeeded", "")
	assert.JSONEq(t, `[]`, string(res.Data))

	res = env.do(t, http.MethodGet, "/api/messages?stage=shipping", "")
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestErrors(t *testing.T) {
	env := newEnv(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"missing message", http.MethodGet, "/api/messages/nope", "", http.StatusNotFound},
		{"extract missing", http.MethodPost, "/api/extract/nope", "", http.StatusNotFound},
		{"design missing", http.MethodPost, "/api/budgets/design/nope", "", http.StatusNotFound},
		{"missing budget", http.MethodGet, "/api/budgets/nope", "", http.StatusNotFound},
		{"missing allocation", http.MethodGet, "/api/allocations/nope", "", http.StatusNotFound},
		{"allocation without budget", http.MethodPost, "/api/allocations",
			`{"budget_id":"nope","allocated_to":"x","category":"people","allocated_amount":1}`, http.StatusNotFound},
		{"allocation blank target", http.MethodPost, "/api/allocations",
			`{"budget_id":"nope","allocated_to":" ","category":"people","allocated_amount":1}`, http.StatusBadRequest},
		{"negative spend", http.MethodPatch, "/api/allocations/nope/spent", `{"actual_spent":-1}`, http.StatusBadRequest},
		{"malformed body", http.MethodPost, "/api/allocations", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := env.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, res.Code, res.Message)
			assert.False(t, res.Success)
			assert.NotEmpty(t, res.Message)
		})
	}
}
