package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/sells-group/labsync/internal/model"
	"github.com/sells-group/labsync/internal/monitoring"
	"github.com/sells-group/labsync/internal/stage"
	"github.com/sells-group/labsync/internal/store"
)

type idInput struct {
	ID string `path:"id"`
}

type listInput struct {
	Limit  int `query:"limit" minimum:"0" maximum:"500"`
	Offset int `query:"offset" minimum:"0"`
}

func (s *server) registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Liveness check",
	}, func(_ context.Context, _ *struct{}) (*response[map[string]string], error) {
		return ok(map[string]string{"status": "ok"}), nil
	})
}

func (s *server) registerWebhook(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "telegram-webhook",
		Method:        http.MethodPost,
		Path:          "/api/webhook/telegram",
		Summary:       "Receive a Telegram update",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, in *struct{ RawBody []byte }) (*response[*model.Message], error) {
		msg, err := s.Intake.HandleUpdate(ctx, in.RawBody)
		if err != nil {
			se := handleError(err)
			if se.GetStatus() == http.StatusBadRequest {
				return nil, newError(http.StatusBadRequest, "Invalid Telegram payload")
			}
			return nil, se
		}
		return ok(msg), nil
	})
}

type listMessagesInput struct {
	Stage  string `query:"stage"`
	Status string `query:"status"`
	Limit  int    `query:"limit" minimum:"0" maximum:"500"`
	Offset int    `query:"offset" minimum:"0"`
}

func (s *server) registerMessages(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-messages",
		Method:      http.MethodGet,
		Path:        "/api/messages",
		Summary:     "List messages",
	}, func(ctx context.Context, in *listMessagesInput) (*response[[]model.Message], error) {
		filter := store.MessageFilter{
			Stage:  model.Stage(in.Stage),
			Status: model.StageStatus(in.Status),
			Limit:  in.Limit,
			Offset: in.Offset,
		}
		if filter.Stage != "" && !filter.Stage.Valid() {
			return nil, newError(http.StatusBadRequest, "unknown stage: "+in.Stage)
		}
		if filter.Status != "" && !filter.Status.Valid() {
			return nil, newError(http.StatusBadRequest, "unknown status: "+in.Status)
		}
		if filter.Status != "" && filter.Stage == "" {
			return nil, newError(http.StatusBadRequest, "status filter requires stage")
		}
		msgs, err := s.Reader.ListMessages(ctx, filter)
		if err != nil {
			return nil, handleError(err)
		}
		return ok(nonNil(msgs)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-message",
		Method:      http.MethodGet,
		Path:        "/api/messages/{id}",
		Summary:     "Get a message",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, in *idInput) (*response[*model.Message], error) {
		msg, err := s.Reader.GetMessage(ctx, in.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if msg == nil {
			return nil, notFound("message", in.ID)
		}
		return ok(msg), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "extract-meeting",
		Method:      http.MethodPost,
		Path:        "/api/extract/{messageId}",
		Summary:     "Extract meeting details from a message",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, in *struct {
		MessageID string `path:"messageId"`
	}) (*response[*model.Meeting], error) {
		meeting, err := s.Extraction.ExtractAndSave(ctx, in.MessageID)
		if err != nil {
			return nil, handleError(err)
		}
		return ok(meeting), nil
	})
}

func (s *server) registerMeetings(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-meetings",
		Method:      http.MethodGet,
		Path:        "/api/meetings",
		Summary:     "List meetings",
	}, func(ctx context.Context, in *listInput) (*response[[]model.Meeting], error) {
		meetings, err := s.Reader.ListMeetings(ctx, store.ListFilter{Limit: in.Limit, Offset: in.Offset})
		if err != nil {
			return nil, handleError(err)
		}
		return ok(nonNil(meetings)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-meeting",
		Method:      http.MethodGet,
		Path:        "/api/meetings/{id}",
		Summary:     "Get a meeting",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, in *idInput) (*response[*model.Meeting], error) {
		meeting, err := s.Reader.GetMeeting(ctx, in.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if meeting == nil {
			return nil, notFound("meeting", in.ID)
		}
		return ok(meeting), nil
	})
}

func (s *server) registerBudgets(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "design-budget",
		Method:      http.MethodPost,
		Path:        "/api/budgets/design/{meetingId}",
		Summary:     "Design a budget for a meeting",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, in *struct {
		MeetingID string `path:"meetingId"`
	}) (*response[*model.Budget], error) {
		budget, err := s.Design.DesignAndSave(ctx, in.MeetingID)
		if err != nil {
			return nil, handleError(err)
		}
		return ok(budget), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-budgets",
		Method:      http.MethodGet,
		Path:        "/api/budgets",
		Summary:     "List budgets",
	}, func(ctx context.Context, in *listInput) (*response[[]model.Budget], error) {
		budgets, err := s.Reader.ListBudgets(ctx, store.ListFilter{Limit: in.Limit, Offset: in.Offset})
		if err != nil {
			return nil, handleError(err)
		}
		return ok(nonNil(budgets)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-budget",
		Method:      http.MethodGet,
		Path:        "/api/budgets/{id}",
		Summary:     "Get a budget",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, in *idInput) (*response[*model.Budget], error) {
		budget, err := s.Reader.GetBudget(ctx, in.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if budget == nil {
			return nil, notFound("budget", in.ID)
		}
		return ok(budget), nil
	})
}

type spentInput struct {
	ID   string `path:"id"`
	Body struct {
		ActualSpent float64 `json:"actual_spent" minimum:"0"`
	}
}

func (s *server) registerAllocations(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-allocations",
		Method:      http.MethodGet,
		Path:        "/api/allocations",
		Summary:     "List allocations",
	}, func(ctx context.Context, in *struct {
		BudgetID string `query:"budget_id"`
	}) (*response[[]model.Allocation], error) {
		allocs, err := s.Allocations.List(ctx, in.BudgetID)
		if err != nil {
			return nil, handleError(err)
		}
		return ok(nonNil(allocs)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-allocation",
		Method:        http.MethodPost,
		Path:          "/api/allocations",
		Summary:       "Allocate budget to a team or category",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, in *struct {
		Body stage.AllocationInput
	}) (*response[*model.Allocation], error) {
		alloc, err := s.Allocations.Create(ctx, in.Body)
		if err != nil {
			return nil, handleError(err)
		}
		return ok(alloc), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-allocation",
		Method:      http.MethodGet,
		Path:        "/api/allocations/{id}",
		Summary:     "Get an allocation",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, in *idInput) (*response[*model.Allocation], error) {
		alloc, err := s.Allocations.Get(ctx, in.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return ok(alloc), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-allocation-spent",
		Method:      http.MethodPatch,
		Path:        "/api/allocations/{id}/spent",
		Summary:     "Record actual spend",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, in *spentInput) (*response[*model.Allocation], error) {
		alloc, err := s.Allocations.UpdateSpent(ctx, in.ID, in.Body.ActualSpent)
		if err != nil {
			return nil, handleError(err)
		}
		return ok(alloc), nil
	})
}

func (s *server) registerStats(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "stats",
		Method:      http.MethodGet,
		Path:        "/api/stats",
		Summary:     "Pipeline snapshot",
	}, func(ctx context.Context, _ *struct{}) (*response[*monitoring.Snapshot], error) {
		snap, err := s.Stats.Collect(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return ok(snap), nil
	})
}

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
