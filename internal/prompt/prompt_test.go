package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/labsync/internal/model"
)

func TestExtraction_EmbedsTextAndShape(t *testing.T) {
	p := Extraction("Project Atlas kickoff, budget $20000, timeline 1 month")

	assert.Contains(t, p, `Message: "Project Atlas kickoff, budget $20000, timeline 1 month"`)
	for _, field := range []string{
		`"project_name"`, `"client_details"`, `"meeting_date"`, `"participants"`,
		`"estimated_budget"`, `"timeline"`, `"requirements"`,
	} {
		assert.Contains(t, p, field)
	}
	assert.Contains(t, p, "Return ONLY the JSON object")
}

func TestExtraction_Deterministic(t *testing.T) {
	assert.Equal(t, Extraction("hello"), Extraction("hello"))
	assert.NotEqual(t, Extraction("hello"), Extraction("goodbye"))
}

func TestBudget_EmbedsMeetingAndGuidance(t *testing.T) {
	m := model.Meeting{
		ProjectName:     "Atlas",
		Client:          model.ClientDetails{Name: "Dana", Company: "Acme"},
		EstimatedBudget: 20000,
		Timeline:        "1 month",
		Requirements:    "Build an API",
	}
	p := Budget(m)

	assert.Contains(t, p, "- Project Name: Atlas")
	assert.Contains(t, p, "- Client: Dana (Acme)")
	assert.Contains(t, p, "- Estimated Budget: $20000")
	assert.Contains(t, p, "- Timeline: 1 month")
	assert.Contains(t, p, "- Requirements: Build an API")
	assert.Contains(t, p, "should be close to estimated_budget: 20000")
	assert.Contains(t, p, "within 10% variance")
	assert.Contains(t, p, "60-70% of total budget")
	assert.Contains(t, p, "20-30% of total budget")
	assert.Contains(t, p, `"1 month" = 160 hours`)
	assert.Contains(t, p, "Lead: $80-120/hour")
	assert.Contains(t, p, "QA: $35-60/hour")
	assert.NotContains(t, p, "%!")
}

func TestBudget_ClientWithoutCompany(t *testing.T) {
	p := Budget(model.Meeting{Client: model.ClientDetails{Name: "Dana"}, EstimatedBudget: 1500.5})
	assert.Contains(t, p, "- Client: Dana\n")
	assert.Contains(t, p, "$1500.5")
}
