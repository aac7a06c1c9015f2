// Package prompt builds the model prompts for the extraction and budget
// design stages.
package prompt

import (
	"fmt"
	"strconv"

	"github.com/sells-group/labsync/internal/model"
)

const extractionPrompt = `Extract meeting details from the following Telegram message. Return ONLY valid JSON with these exact fields:

{
  "project_name": "string (required)",
  "client_details": {
    "name": "string (required)",
    "email": "string (optional, null if not found)",
    "company": "string (optional, null if not found)"
  },
  "meeting_date": "ISO 8601 date string (required, use current date if not specified)",
  "participants": ["array of participant names or usernames"],
  "estimated_budget": number (required, 0 if not specified),
  "timeline": "string (required, e.g., '2 weeks', '1 month', '3 months')",
  "requirements": "string (required, detailed project requirements)"
}

Message: "%s"

IMPORTANT:
- Extract all information accurately
- If a field is not found, use null rather than guessing
- Return ONLY the JSON object, no markdown, no explanations
- Ensure all required fields are present`

const budgetPrompt = `Design a comprehensive project budget based on the following meeting details. Return ONLY valid JSON with these exact fields:

{
  "total_budget": number (should be close to estimated_budget: %[1]s),
  "people_costs": {
    "lead": { "count": number, "rate": number (hourly), "hours": number, "total": number },
    "manager": { "count": number, "rate": number (hourly), "hours": number, "total": number },
    "developer": { "count": number, "rate": number (hourly), "hours": number, "total": number },
    "designer": { "count": number, "rate": number (hourly), "hours": number, "total": number },
    "qa": { "count": number, "rate": number (hourly), "hours": number, "total": number }
  },
  "resource_costs": {
    "electricity": number (monthly cost),
    "rent": number (monthly cost),
    "software_licenses": number (total project cost),
    "hardware": number (total project cost),
    "other": number (miscellaneous costs)
  },
  "breakdown": [
    {
      "category": "string (e.g., 'Development', 'Design', 'Infrastructure')",
      "item": "string (specific item name)",
      "quantity": number,
      "unit_cost": number,
      "total": number
    }
  ]
}

Meeting Details:
- Project Name: %[2]s
- Client: %[3]s
- Estimated Budget: $%[1]s
- Timeline: %[4]s
- Requirements: %[5]s

IMPORTANT GUIDELINES:
1. Total budget should be approximately %[1]s (within 10%% variance)
2. People costs should account for 60-70%% of total budget
3. Resource costs should account for 20-30%% of total budget
4. Breakdown should include detailed line items
5. Calculate hours based on timeline (e.g., "2 weeks" = 80 hours per person, "1 month" = 160 hours)
6. Use realistic hourly rates:
   - Lead: $80-120/hour
   - Manager: $60-100/hour
   - Developer: $50-80/hour
   - Designer: $40-70/hour
   - QA: $35-60/hour
7. Resource costs should be prorated based on timeline
8. Return ONLY the JSON object, no markdown, no explanations`

// Extraction returns the prompt that turns a raw message into meeting JSON.
func Extraction(text string) string {
	return fmt.Sprintf(extractionPrompt, text)
}

// Budget returns the prompt that turns a meeting into budget JSON.
func Budget(m model.Meeting) string {
	client := m.Client.Name
	if m.Client.Company != "" {
		client = fmt.Sprintf("%s (%s)", client, m.Client.Company)
	}
	return fmt.Sprintf(budgetPrompt,
		formatAmount(m.EstimatedBudget),
		m.ProjectName,
		client,
		m.Timeline,
		m.Requirements,
	)
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
