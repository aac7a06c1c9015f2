package stage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/labsync/internal/chain"
	"github.com/sells-group/labsync/internal/model"
	"github.com/sells-group/labsync/internal/normalize"
	"github.com/sells-group/labsync/internal/store"
)

// memStore is an in-memory Store keyed the same way the real stores are.
type memStore struct {
	mu          sync.Mutex
	seq         int
	messages    map[string]*model.Message
	meetings    map[string]*model.Meeting // by message ID
	budgets     map[string]*model.Budget  // by meeting ID
	allocations map[string]*model.Allocation
	history     []string

	upsertMeetingErr error
	upsertBudgetErr  error
}

func newMemStore() *memStore {
	return &memStore{
		messages:    map[string]*model.Message{},
		meetings:    map[string]*model.Meeting{},
		budgets:     map[string]*model.Budget{},
		allocations: map[string]*model.Allocation{},
	}
}

func (s *memStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

func (s *memStore) addMessage(text string) *model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := &model.Message{ID: s.nextID("msg"), MessageID: s.nextID("ext"), Text: text}
	msg.ResetStatuses()
	s.messages[msg.ID] = msg
	cp := *msg
	return &cp
}

func (s *memStore) GetMessage(_ context.Context, id string) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (s *memStore) ListMessages(_ context.Context, f store.MessageFilter) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Message
	for i := 1; i <= s.seq; i++ {
		m, ok := s.messages[fmt.Sprintf("msg-%d", i)]
		if !ok {
			continue
		}
		if f.Stage != "" && m.Status(f.Stage) != f.Status {
			continue
		}
		if f.NotStage != "" && m.Status(f.NotStage) == f.NotStatus {
			continue
		}
		out = append(out, *m)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (s *memStore) UpdateStageStatus(_ context.Context, id string, stage model.Stage, status model.StageStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return store.ErrNotFound
	}
	m.SetStatus(stage, status)
	s.history = append(s.history, string(stage)+":"+string(status))
	return nil
}

func (s *memStore) GetMeeting(_ context.Context, id string) (*model.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.meetings {
		if m.ID == id {
			cp := *m
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) GetMeetingByMessage(_ context.Context, messageID string) (*model.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[messageID]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (s *memStore) UpsertMeeting(_ context.Context, m model.Meeting) (*model.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertMeetingErr != nil {
		return nil, s.upsertMeetingErr
	}
	if prev, ok := s.meetings[m.MessageID]; ok {
		m.ID = prev.ID
	} else {
		m.ID = s.nextID("meeting")
	}
	s.meetings[m.MessageID] = &m
	cp := m
	return &cp, nil
}

func (s *memStore) GetBudget(_ context.Context, id string) (*model.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.budgets {
		if b.ID == id {
			cp := *b
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) GetBudgetByMeeting(_ context.Context, meetingID string) (*model.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[meetingID]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (s *memStore) UpsertBudget(_ context.Context, b model.Budget) (*model.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertBudgetErr != nil {
		return nil, s.upsertBudgetErr
	}
	if prev, ok := s.budgets[b.MeetingID]; ok {
		b.ID = prev.ID
	} else {
		b.ID = s.nextID("budget")
	}
	s.budgets[b.MeetingID] = &b
	cp := b
	return &cp, nil
}

func (s *memStore) CreateAllocation(_ context.Context, a model.Allocation) (*model.Allocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = s.nextID("alloc")
	s.allocations[a.ID] = &a
	cp := a
	return &cp, nil
}

func (s *memStore) GetAllocation(_ context.Context, id string) (*model.Allocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.allocations[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (s *memStore) ListAllocations(_ context.Context, budgetID string) ([]model.Allocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Allocation
	for _, a := range s.allocations {
		if budgetID == "" || a.BudgetID == budgetID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *memStore) UpdateAllocationSpent(_ context.Context, id string, spent float64) (*model.Allocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.allocations[id]
	if !ok {
		return nil, fmt.Errorf("allocation %s: %w", id, store.ErrNotFound)
	}
	a.ActualSpent = spent
	cp := *a
	return &cp, nil
}

func (s *memStore) message(id string) model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.messages[id]
}

// scriptedGen answers by prompt kind and counts calls.
type scriptedGen struct {
	mu          sync.Mutex
	extraction  string
	design      string
	extractErr  error
	designErr   error
	extractions int
	designs     int

	// gate, when set, is called before answering an extraction prompt.
	gate func()
}

func (g *scriptedGen) Generate(_ context.Context, p string) (string, error) {
	if strings.HasPrefix(p, "Extract meeting details") {
		if g.gate != nil {
			g.gate()
		}
		g.mu.Lock()
		defer g.mu.Unlock()
		g.extractions++
		return g.extraction, g.extractErr
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.designs++
	return g.design, g.designErr
}

func (g *scriptedGen) calls() (int, int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.extractions, g.designs
}

type recordingQueue struct {
	mu    sync.Mutex
	tasks []chain.Task
	err   error
}

func (q *recordingQueue) Enqueue(_ context.Context, t chain.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, t)
	return nil
}

const atlasText = "Project Atlas kickoff, budget $20000, timeline 1 month"

const atlasExtraction = `{
  "project_name": "Atlas",
  "client_details": {"name": "Acme", "email": null, "company": "Acme Corp"},
  "meeting_date": "2026-01-05",
  "participants": ["@ana", "@ben"],
  "estimated_budget": 20000,
  "timeline": "1 month",
  "requirements": "Kickoff for the Atlas platform"
}`

const atlasDesign = "```json\n" + `{
  "total_budget": 99999,
  "people_costs": {
    "lead": {"count": 1, "rate": 50, "hours": 160},
    "manager": {"count": 0, "rate": 80, "hours": 160},
    "developer": {"count": 1, "rate": 50, "hours": 160},
    "designer": {"count": 0, "rate": 55, "hours": 160},
    "qa": {"count": 0, "rate": 45, "hours": 160}
  },
  "resource_costs": {
    "electricity": 200,
    "rent": 1000,
    "software_licenses": 500,
    "hardware": 500,
    "other": 300
  },
  "breakdown": []
}` + "\n```"

func atlasGen() *scriptedGen {
	return &scriptedGen{extraction: atlasExtraction, design: atlasDesign}
}

func TestExtractAndSave_Success(t *testing.T) {
	st := newMemStore()
	msg := st.addMessage(atlasText)
	q := &recordingQueue{}
	svc := NewExtractionService(st, atlasGen(), q)

	meeting, err := svc.ExtractAndSave(context.Background(), msg.ID)
	require.NoError(t, err)

	assert.Equal(t, "Atlas", meeting.ProjectName)
	assert.Equal(t, "Acme", meeting.Client.Name)
	assert.Equal(t, "Acme Corp", meeting.Client.Company)
	assert.Equal(t, "", meeting.Client.Email)
	assert.Equal(t, 20000.0, meeting.EstimatedBudget)
	assert.Equal(t, "1 month", meeting.Timeline)
	assert.Equal(t, []string{"@ana", "@ben"}, meeting.Participants)
	assert.Equal(t, msg.ID, meeting.MessageID)
	assert.False(t, meeting.ExtractedAt.IsZero())

	assert.Equal(t, model.StatusSucceeded, st.message(msg.ID).ExtractionStatus)
	assert.Equal(t, []string{"extraction:pending", "extraction:succeeded"}, st.history)
	assert.Equal(t, []chain.Task{{SourceID: meeting.ID, Stage: model.StageDesign}}, q.tasks)
}

func TestExtractAndSave_Idempotent(t *testing.T) {
	st := newMemStore()
	msg := st.addMessage(atlasText)
	gen := atlasGen()
	q := &recordingQueue{}
	svc := NewExtractionService(st, gen, q)

	first, err := svc.ExtractAndSave(context.Background(), msg.ID)
	require.NoError(t, err)
	second, err := svc.ExtractAndSave(context.Background(), msg.ID)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	extractions, _ := gen.calls()
	assert.Equal(t, 1, extractions)
	assert.Len(t, q.tasks, 1)
}

func TestExtractAndSave_NotFound(t *testing.T) {
	st := newMemStore()
	gen := atlasGen()
	svc := NewExtractionService(st, gen, nil)

	_, err := svc.ExtractAndSave(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	extractions, _ := gen.calls()
	assert.Zero(t, extractions)
	assert.Empty(t, st.history)
}

func TestExtractAndSave_ModelFailure(t *testing.T) {
	st := newMemStore()
	msg := st.addMessage(atlasText)
	boom := errors.New("model unavailable")
	q := &recordingQueue{}
	svc := NewExtractionService(st, &scriptedGen{extractErr: boom}, q)

	_, err := svc.ExtractAndSave(context.Background(), msg.ID)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, model.StatusFailed, st.message(msg.ID).ExtractionStatus)
	assert.Equal(t, []string{"extraction:pending", "extraction:failed"}, st.history)
	assert.Empty(t, q.tasks)
}

func TestExtractAndSave_RerunFailureKeepsPriorMeeting(t *testing.T) {
	st := newMemStore()
	msg := st.addMessage(atlasText)
	gen := atlasGen()
	svc := NewExtractionService(st, gen, nil)

	prior, err := svc.ExtractAndSave(context.Background(), msg.ID)
	require.NoError(t, err)

	// Force a rerun that fails on save.
	require.NoError(t, st.UpdateStageStatus(context.Background(), msg.ID, model.StageExtraction, model.StatusPending))
	st.upsertMeetingErr = errors.New("disk full")

	_, err = svc.ExtractAndSave(context.Background(), msg.ID)
	require.Error(t, err)
	assert.Equal(t, model.StatusFailed, st.message(msg.ID).ExtractionStatus)

	kept, err := st.GetMeetingByMessage(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.Equal(t, prior, kept)
}

func TestExtractAndSave_UnparsableResponseUsesDefaults(t *testing.T) {
	st := newMemStore()
	msg := st.addMessage("hello there")
	svc := NewExtractionService(st, &scriptedGen{extraction: "I could not find anything."}, nil)

	meeting, err := svc.ExtractAndSave(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.Equal(t, normalize.DefaultProjectName, meeting.ProjectName)
	assert.Equal(t, normalize.DefaultClientName, meeting.Client.Name)
	assert.Equal(t, normalize.DefaultTimeline, meeting.Timeline)
	assert.Zero(t, meeting.EstimatedBudget)
	assert.Equal(t, model.StatusSucceeded, st.message(msg.ID).ExtractionStatus)
}

func TestExtractAndSave_EnqueueFailureIsNotFatal(t *testing.T) {
	st := newMemStore()
	msg := st.addMessage(atlasText)
	svc := NewExtractionService(st, atlasGen(), &recordingQueue{err: chain.ErrQueueFull})

	meeting, err := svc.ExtractAndSave(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.NotNil(t, meeting)
	assert.Equal(t, model.StatusSucceeded, st.message(msg.ID).ExtractionStatus)
}

// Two concurrent runs for one message both pass the succeeded check before
// either saves, so both call the model. The upsert keeps a single meeting.
func TestExtractAndSave_ConcurrentRunsBothCallModel(t *testing.T) {
	st := newMemStore()
	msg := st.addMessage(atlasText)

	var arrived sync.WaitGroup
	arrived.Add(2)
	gen := atlasGen()
	gen.gate = func() {
		arrived.Done()
		arrived.Wait()
	}
	svc := NewExtractionService(st, gen, nil)

	var wg sync.WaitGroup
	results := make([]*model.Meeting, 2)
	errs := make([]error, 2)
	for i := range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = svc.ExtractAndSave(context.Background(), msg.ID)
		}()
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	extractions, _ := gen.calls()
	assert.Equal(t, 2, extractions)
	assert.Equal(t, results[0].ID, results[1].ID)
	assert.Len(t, st.meetings, 1)
}

func extracted(t *testing.T, st *memStore, gen *scriptedGen) (*model.Message, *model.Meeting) {
	t.Helper()
	msg := st.addMessage(atlasText)
	meeting, err := NewExtractionService(st, gen, nil).ExtractAndSave(context.Background(), msg.ID)
	require.NoError(t, err)
	return msg, meeting
}

func TestDesignAndSave_EndToEnd(t *testing.T) {
	st := newMemStore()
	gen := atlasGen()
	msg, meeting := extracted(t, st, gen)

	budget, err := NewDesignService(st, gen).DesignAndSave(context.Background(), meeting.ID)
	require.NoError(t, err)

	assert.Equal(t, meeting.ID, budget.MeetingID)
	assert.Equal(t, "Atlas", budget.ProjectName)
	assert.Equal(t, model.DesignedBy, budget.DesignedBy)
	assert.False(t, budget.DesignedAt.IsZero())

	assert.Equal(t, 160.0, budget.PeopleCosts.Lead.Hours)
	assert.Equal(t, 8000.0, budget.PeopleCosts.Lead.Total)
	assert.Equal(t, 8000.0, budget.PeopleCosts.Developer.Total)
	assert.Zero(t, budget.PeopleCosts.Manager.Total)
	assert.Equal(t, 2500.0, budget.ResourceCosts.Total())
	assert.Empty(t, budget.Breakdown)

	computed := budget.ComputedTotal()
	assert.Equal(t, 18500.0, computed)
	assert.Less(t, math.Abs(computed-20000)/20000, normalize.ReconcileTolerance)
	assert.Equal(t, 20000.0, budget.TotalBudget)

	got := st.message(msg.ID)
	assert.Equal(t, model.StatusSucceeded, got.ExtractionStatus)
	assert.Equal(t, model.StatusSucceeded, got.DesignStatus)
	assert.Equal(t, model.StatusPending, got.AllocationStatus)
}

func TestDesignAndSave_Idempotent(t *testing.T) {
	st := newMemStore()
	gen := atlasGen()
	_, meeting := extracted(t, st, gen)
	svc := NewDesignService(st, gen)

	first, err := svc.DesignAndSave(context.Background(), meeting.ID)
	require.NoError(t, err)
	second, err := svc.DesignAndSave(context.Background(), meeting.ID)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	_, designs := gen.calls()
	assert.Equal(t, 1, designs)
}

func TestDesignAndSave_NotFound(t *testing.T) {
	st := newMemStore()
	gen := atlasGen()
	_, err := NewDesignService(st, gen).DesignAndSave(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, designs := gen.calls()
	assert.Zero(t, designs)
}

func TestDesignAndSave_ModelFailure(t *testing.T) {
	st := newMemStore()
	gen := atlasGen()
	msg, meeting := extracted(t, st, gen)
	gen.designErr = errors.New("overloaded")

	_, err := NewDesignService(st, gen).DesignAndSave(context.Background(), meeting.ID)
	require.Error(t, err)
	assert.Equal(t, model.StatusFailed, st.message(msg.ID).DesignStatus)
	assert.Equal(t, model.StatusSucceeded, st.message(msg.ID).ExtractionStatus)

	b, err := st.GetBudgetByMeeting(context.Background(), meeting.ID)
	require.NoError(t, err)
	assert.Nil(t, b)
}

func TestDesignAndSave_MissingMessageSkipsStatus(t *testing.T) {
	st := newMemStore()
	gen := atlasGen()
	msg, meeting := extracted(t, st, gen)

	st.mu.Lock()
	delete(st.messages, msg.ID)
	st.history = nil
	st.mu.Unlock()

	budget, err := NewDesignService(st, gen).DesignAndSave(context.Background(), meeting.ID)
	require.NoError(t, err)
	assert.Equal(t, meeting.ID, budget.MeetingID)
	assert.Empty(t, st.history)
}

func TestDesignAndSave_FallbackBudget(t *testing.T) {
	st := newMemStore()
	gen := atlasGen()
	_, meeting := extracted(t, st, gen)
	gen.design = "Sorry, I cannot help with that."

	budget, err := NewDesignService(st, gen).DesignAndSave(context.Background(), meeting.ID)
	require.NoError(t, err)
	assert.Equal(t, 2.0, budget.PeopleCosts.Developer.Count)
	assert.Positive(t, budget.ComputedTotal())
	assert.Equal(t, math.Round(budget.TotalBudget), budget.TotalBudget)
}

func designed(t *testing.T, st *memStore) (*model.Message, *model.Budget) {
	t.Helper()
	gen := atlasGen()
	msg, meeting := extracted(t, st, gen)
	b, err := NewDesignService(st, gen).DesignAndSave(context.Background(), meeting.ID)
	require.NoError(t, err)
	return msg, b
}

func TestAllocation_Create(t *testing.T) {
	st := newMemStore()
	msg, budget := designed(t, st)
	svc := NewAllocationService(st)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }

	a, err := svc.Create(context.Background(), AllocationInput{
		BudgetID:        budget.ID,
		AllocatedTo:     " Team Atlas ",
		Category:        "development",
		AllocatedAmount: 12000,
	})
	require.NoError(t, err)
	assert.Equal(t, "Team Atlas", a.AllocatedTo)
	assert.Equal(t, DefaultAllocatedBy, a.AllocatedBy)
	assert.Zero(t, a.ActualSpent)
	assert.Equal(t, 12000.0, a.Remaining())
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), a.AllocatedAt)
	assert.Equal(t, model.StatusSucceeded, st.message(msg.ID).AllocationStatus)

	list, err := svc.List(context.Background(), budget.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestAllocation_CreateValidation(t *testing.T) {
	st := newMemStore()
	_, budget := designed(t, st)
	svc := NewAllocationService(st)

	tests := []struct {
		name string
		in   AllocationInput
		want error
	}{
		{"missing budget", AllocationInput{BudgetID: "nope", AllocatedTo: "a", Category: "c", AllocatedAmount: 1}, ErrNotFound},
		{"empty recipient", AllocationInput{BudgetID: budget.ID, Category: "c", AllocatedAmount: 1}, ErrInvalidInput},
		{"empty category", AllocationInput{BudgetID: budget.ID, AllocatedTo: "a", AllocatedAmount: 1}, ErrInvalidInput},
		{"negative amount", AllocationInput{BudgetID: budget.ID, AllocatedTo: "a", Category: "c", AllocatedAmount: -1}, ErrInvalidInput},
		{"nan amount", AllocationInput{BudgetID: budget.ID, AllocatedTo: "a", Category: "c", AllocatedAmount: math.NaN()}, ErrInvalidInput},
		{"infinite spend", AllocationInput{BudgetID: budget.ID, AllocatedTo: "a", Category: "c", ActualSpent: math.Inf(1)}, ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAllocation_UpdateSpent(t *testing.T) {
	st := newMemStore()
	_, budget := designed(t, st)
	svc := NewAllocationService(st)

	a, err := svc.Create(context.Background(), AllocationInput{
		BudgetID: budget.ID, AllocatedTo: "ops", Category: "hardware", AllocatedAmount: 500, AllocatedBy: "dana",
	})
	require.NoError(t, err)
	assert.Equal(t, "dana", a.AllocatedBy)

	updated, err := svc.UpdateSpent(context.Background(), a.ID, 650)
	require.NoError(t, err)
	assert.Equal(t, -150.0, updated.Remaining())

	_, err = svc.UpdateSpent(context.Background(), a.ID, -1)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.UpdateSpent(context.Background(), "missing", 1)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := svc.Get(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, 650.0, got.ActualSpent)
}

func TestSweeper_ProcessPending(t *testing.T) {
	st := newMemStore()
	gen := atlasGen()

	// One message extracted but never designed, two never extracted.
	_, meeting := extracted(t, st, gen)
	st.addMessage(atlasText)
	st.addMessage(atlasText)

	extraction := NewExtractionService(st, gen, nil)
	design := NewDesignService(st, gen)
	res, err := NewSweeper(st, extraction, design).ProcessPending(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, &SweepResult{Extracted: 2, Designed: 1}, res)
	b, err := st.GetBudgetByMeeting(context.Background(), meeting.ID)
	require.NoError(t, err)
	assert.NotNil(t, b)

	// Second sweep designs the two meetings extracted above.
	res, err = NewSweeper(st, extraction, design).ProcessPending(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, &SweepResult{Designed: 2}, res)
}

func TestSweeper_CountsFailures(t *testing.T) {
	st := newMemStore()
	st.addMessage("a")
	st.addMessage("b")
	st.addMessage("c")
	gen := &scriptedGen{extractErr: errors.New("down")}

	res, err := NewSweeper(st, NewExtractionService(st, gen, nil), NewDesignService(st, gen)).
		ProcessPending(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, &SweepResult{Failed: 2}, res)
}
