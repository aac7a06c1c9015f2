package normalize

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/labsync/internal/model"
	"github.com/sells-group/labsync/internal/parse"
)

var fixedNow = time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)

func TestMeeting_FromCleanJSON(t *testing.T) {
	f := parse.Extraction(`{
		"project_name": "Atlas",
		"client_details": {"name": "Dana", "email": "dana@acme.com", "company": "Acme"},
		"meeting_date": "2026-03-01T10:00:00Z",
		"participants": ["dana", "", 7, {"x": 1}],
		"estimated_budget": "$20,000",
		"timeline": "1 month",
		"requirements": "API"
	}`, "")
	m := Meeting(f, fixedNow)

	assert.Equal(t, "Atlas", m.ProjectName)
	assert.Equal(t, model.ClientDetails{Name: "Dana", Email: "dana@acme.com", Company: "Acme"}, m.Client)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), m.MeetingDate)
	assert.Equal(t, []string{"dana", "7"}, m.Participants)
	assert.InDelta(t, 20000, m.EstimatedBudget, 0.001)
	assert.Equal(t, "1 month", m.Timeline)
	assert.Equal(t, "API", m.Requirements)
}

func TestMeeting_UnparseableResponse(t *testing.T) {
	m := Meeting(parse.Extraction("Sorry, I cannot help with that.", ""), fixedNow)

	assert.Equal(t, "Unnamed Project", m.ProjectName)
	assert.Equal(t, "Unknown Client", m.Client.Name)
	assert.Empty(t, m.Client.Email)
	assert.Equal(t, fixedNow, m.MeetingDate)
	assert.NotNil(t, m.Participants)
	assert.Empty(t, m.Participants)
	assert.Zero(t, m.EstimatedBudget)
	assert.Equal(t, "Not specified", m.Timeline)
	assert.Equal(t, "No requirements specified", m.Requirements)
}

func TestMeeting_InvalidValuesFallBack(t *testing.T) {
	f := parse.Extraction(`{
		"project_name": "   ",
		"client_details": {"name": ["x"]},
		"meeting_date": "next tuesday",
		"participants": "dana",
		"estimated_budget": -500,
		"timeline": null,
		"requirements": {"a": 1}
	}`, "")
	m := Meeting(f, fixedNow)

	assert.Equal(t, DefaultProjectName, m.ProjectName)
	assert.Equal(t, DefaultClientName, m.Client.Name)
	assert.Equal(t, fixedNow, m.MeetingDate)
	assert.Empty(t, m.Participants)
	assert.Zero(t, m.EstimatedBudget)
	assert.Equal(t, DefaultTimeline, m.Timeline)
	assert.Equal(t, DefaultRequirements, m.Requirements)
}

func TestDate_Variants(t *testing.T) {
	cases := []struct {
		raw  string
		want time.Time
	}{
		{`"2026-03-01"`, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
		{`"2026-03-01 14:30"`, time.Date(2026, 3, 1, 14, 30, 0, 0, time.UTC)},
		{`"March 1, 2026"`, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
		{`1772359200000`, time.UnixMilli(1772359200000).UTC()},
		{`-5`, fixedNow},
		{`true`, fixedNow},
		{`"soon"`, fixedNow},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			got := Date(parse.Present(parse.Value(tc.raw)), fixedNow)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNumber_Lenient(t *testing.T) {
	cases := []struct {
		raw  string
		want float64
	}{
		{`12.5`, 12.5},
		{`"$1,200"`, 1200},
		{`"20000 USD"`, 20000},
		{`" 75 "`, 75},
		{`"-3"`, 9},
		{`-3`, 9},
		{`"abc"`, 9},
		{`""`, 9},
		{`[1]`, 9},
		{`{"n":1}`, 9},
		{`1e400`, 9},
		{`"1e400"`, 9},
		{`0`, 0},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			assert.InDelta(t, tc.want, Number(parse.Present(parse.Value(tc.raw)), 9), 0.0001)
		})
	}
	assert.InDelta(t, 9.0, Number(parse.Missing[parse.Value](), 9), 0.0001)
}

func TestPeopleCostArithmetic(t *testing.T) {
	b := Budget(parse.Budget(`{"people_costs": {"developer": {"count": 2, "rate": 65, "hours": 160, "total": 1}}}`), 0)
	assert.InDelta(t, 20800, b.PeopleCosts.Developer.Total, 0.001)
}

func TestBudget_DefaultsPerRoleAndResource(t *testing.T) {
	b := Budget(parse.Budget(`{"people_costs": {}, "resource_costs": {"rent": "1500"}}`), 0)

	for _, r := range model.Roles {
		def := RoleDefaults[r]
		got := b.PeopleCosts.Get(r)
		assert.Equal(t, model.NewRoleCost(def.Count, def.Rate, def.Hours), got, string(r))
	}
	assert.InDelta(t, 1500, b.ResourceCosts.Rent, 0.001)
	assert.InDelta(t, 200, b.ResourceCosts.Electricity, 0.001)
	assert.NotNil(t, b.Breakdown)
	assert.Empty(t, b.Breakdown)
}

func TestBudget_FallbackDesignProfile(t *testing.T) {
	b := Budget(parse.Budget("no json at all"), 0)

	assert.InDelta(t, 2, b.PeopleCosts.Developer.Count, 0.001)
	assert.InDelta(t, 20800, b.PeopleCosts.Developer.Total, 0.001)
	// 16000 + 12800 + 20800 + 4400 + 3600 people, 6200 resources
	assert.InDelta(t, 63800, b.TotalBudget, 0.001)
}

func TestBudget_BreakdownDefaults(t *testing.T) {
	b := Budget(parse.Budget(`{"breakdown": [{"total": 300}, "junk", {"category": "Design", "item": "Logo", "quantity": "3", "unit_cost": 50, "total": 150}]}`), 0)

	require.Len(t, b.Breakdown, 3)
	assert.Equal(t, model.LineItem{Category: "Other", Item: "Unspecified", Quantity: 1, UnitCost: 0, Total: 300}, b.Breakdown[0])
	assert.Equal(t, model.LineItem{Category: "Other", Item: "Unspecified", Quantity: 1}, b.Breakdown[1])
	assert.Equal(t, model.LineItem{Category: "Design", Item: "Logo", Quantity: 3, UnitCost: 50, Total: 150}, b.Breakdown[2])
	assert.InDelta(t, 450, b.BreakdownTotal(), 0.001)
}

func TestReconcile_Boundary(t *testing.T) {
	assert.InDelta(t, 10000, Reconcile(14900, 10000), 0.001)
	assert.InDelta(t, 15100, Reconcile(15100, 10000), 0.001)
	assert.InDelta(t, 10000, Reconcile(5100, 10000), 0.001)
	assert.InDelta(t, 4900, Reconcile(4900, 10000), 0.001)
	assert.InDelta(t, 15000, Reconcile(15000, 10000), 0.001, "exactly 50% deviation keeps the sum")
	assert.InDelta(t, 1235, Reconcile(1234.5, 0), 0.001)
	assert.InDelta(t, 20001, Reconcile(20000.6, 0), 0.001)
}

func TestBudget_IgnoresModelTotal(t *testing.T) {
	b := Budget(parse.Budget(`{"total_budget": 1}`), 0)
	assert.InDelta(t, b.ComputedTotal(), b.TotalBudget, 0.5)
}

func TestBudget_ReconcilesToEstimate(t *testing.T) {
	raw := `{
		"people_costs": {
			"lead": {"count": 1, "rate": 100, "hours": 40},
			"manager": {"count": 0, "rate": 80, "hours": 40},
			"developer": {"count": 1, "rate": 65, "hours": 160},
			"designer": {"count": 0, "rate": 55, "hours": 80},
			"qa": {"count": 1, "rate": 45, "hours": 40}
		},
		"resource_costs": {"electricity": 100, "rent": 1000, "software_licenses": 500, "hardware": 500, "other": 200},
		"breakdown": []
	}`
	b := Budget(parse.Budget(raw), 20000)
	// 4000 + 10400 + 1800 people, 2300 resources = 18500, within 50% of 20000
	assert.InDelta(t, 18500, b.ComputedTotal(), 0.001)
	assert.InDelta(t, 20000, b.TotalBudget, 0.001)
}

// Every output number is finite and non-negative and every required string
// is non-empty, whatever the model said.
func TestTotalDefaulting(t *testing.T) {
	inputs := []string{
		"",
		"null",
		"[]",
		"{}",
		`{"people_costs": null, "resource_costs": "lots", "breakdown": {"a": 1}}`,
		`{"people_costs": {"lead": {"count": -1, "rate": "NaN", "hours": "Infinity"}}}`,
		`{"breakdown": [{"quantity": -4, "unit_cost": -1, "total": -99, "category": "", "item": 0}]}`,
		`{"project_name": 12, "client_details": null, "estimated_budget": "-1", "participants": null}`,
		"```json\n{broken\n```",
		"{{{{}}}}",
		"\x00\x01\x02",
	}
	for _, in := range inputs {
		m := Meeting(parse.Extraction(in, in), fixedNow)
		assert.NotEmpty(t, m.ProjectName, in)
		assert.NotEmpty(t, m.Client.Name, in)
		assert.NotEmpty(t, m.Timeline, in)
		assert.NotEmpty(t, m.Requirements, in)
		assert.NotNil(t, m.Participants, in)
		assertNonNegative(t, m.EstimatedBudget, in)

		b := Budget(parse.Budget(in), m.EstimatedBudget)
		for _, r := range model.Roles {
			rc := b.PeopleCosts.Get(r)
			for _, v := range []float64{rc.Count, rc.Rate, rc.Hours, rc.Total} {
				assertNonNegative(t, v, in)
			}
		}
		for _, r := range model.Resources {
			assertNonNegative(t, b.ResourceCosts.Get(r), in)
		}
		for _, li := range b.Breakdown {
			assert.NotEmpty(t, li.Category, in)
			assert.NotEmpty(t, li.Item, in)
			for _, v := range []float64{li.Quantity, li.UnitCost, li.Total} {
				assertNonNegative(t, v, in)
			}
		}
		assertNonNegative(t, b.TotalBudget, in)
	}
}

func assertNonNegative(t *testing.T, v float64, msg string) {
	t.Helper()
	assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), msg)
	assert.GreaterOrEqual(t, v, 0.0, msg)
}
