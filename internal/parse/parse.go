// Package parse turns raw model output into field sets. It is lenient by
// construction: every input yields a field set, possibly with every field
// missing.
package parse

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/labsync/internal/model"
)

// requirementsScrapeLimit caps the source text used as requirements when the
// model output could not be decoded.
const requirementsScrapeLimit = 500

// ExtractionFields is the parsed form of an extraction response.
type ExtractionFields struct {
	ProjectName     Field[Value]
	ClientName      Field[Value]
	ClientEmail     Field[Value]
	ClientCompany   Field[Value]
	MeetingDate     Field[Value]
	Participants    Field[[]Value]
	EstimatedBudget Field[Value]
	Timeline        Field[Value]
	Requirements    Field[Value]
	Origin          Origin
}

// RoleFields is one parsed people-cost role.
type RoleFields struct {
	Count Field[Value]
	Rate  Field[Value]
	Hours Field[Value]
}

// ItemFields is one parsed breakdown line.
type ItemFields struct {
	Category Field[Value]
	Item     Field[Value]
	Quantity Field[Value]
	UnitCost Field[Value]
	Total    Field[Value]
}

// BudgetFields is the parsed form of a budget design response.
type BudgetFields struct {
	TotalBudget Field[Value]
	People      map[model.Role]RoleFields
	Resources   map[model.Resource]Field[Value]
	Breakdown   Field[[]ItemFields]
	Origin      Origin
}

// scrapePattern pairs a field with its patterns, most specific first.
type scrapePattern struct {
	quoted *regexp.Regexp
	labels []*regexp.Regexp
}

func (p scrapePattern) find(text string) (string, bool) {
	for _, re := range append([]*regexp.Regexp{p.quoted}, p.labels...) {
		if re == nil {
			continue
		}
		if m := re.FindStringSubmatch(text); len(m) > 1 {
			if v := strings.TrimSpace(m[1]); v != "" {
				return v, true
			}
		}
	}
	return "", false
}

var (
	projectPattern = scrapePattern{
		quoted: regexp.MustCompile(`"project_name"\s*:\s*"([^"]*)"`),
		labels: []*regexp.Regexp{regexp.MustCompile(`(?i)project[:\s]+([^\n,]+)`)},
	}
	clientPattern = scrapePattern{
		quoted: regexp.MustCompile(`"name"\s*:\s*"([^"]*)"`),
		labels: []*regexp.Regexp{
			regexp.MustCompile(`(?i)client[:\s]+([^\n,]+)`),
			regexp.MustCompile(`(?i)name[:\s]+([^\n,]+)`),
		},
	}
	budgetPattern = scrapePattern{
		quoted: regexp.MustCompile(`"estimated_budget"\s*:\s*"?\$?([\d,]+(?:\.\d+)?)`),
		labels: []*regexp.Regexp{regexp.MustCompile(`(?i)budget[:\s]+\$?\s*([\d,]+(?:\.\d+)?)`)},
	}
	timelinePattern = scrapePattern{
		quoted: regexp.MustCompile(`"timeline"\s*:\s*"([^"]*)"`),
		labels: []*regexp.Regexp{regexp.MustCompile(`(?i)timeline[:\s]+([^\n,]+)`)},
	}
)

var smartQuotes = strings.NewReplacer("“", `"`, "”", `"`, "‘", "'", "’", "'")

// Extraction parses an extraction response. sourceText is the original
// message, used for requirements when the output cannot be decoded.
func Extraction(raw, sourceText string) ExtractionFields {
	text := fold(raw)
	if obj, ok := locateObject(text); ok {
		return extractionFromObject(obj)
	}
	return scrapeExtraction(smartQuotes.Replace(text), sourceText)
}

func extractionFromObject(obj object) ExtractionFields {
	f := ExtractionFields{
		ProjectName:     obj.field("project_name"),
		MeetingDate:     obj.field("meeting_date"),
		Participants:    obj.list("participants"),
		EstimatedBudget: obj.field("estimated_budget"),
		Timeline:        obj.field("timeline"),
		Requirements:    obj.field("requirements"),
		ClientName:      Missing[Value](),
		ClientEmail:     Missing[Value](),
		ClientCompany:   Missing[Value](),
		Origin:          OriginJSON,
	}
	if client, ok := obj.sub("client_details"); ok {
		f.ClientName = client.field("name")
		f.ClientEmail = client.field("email")
		f.ClientCompany = client.field("company")
	} else if name := obj.field("client_details"); name.IsPresent() {
		// A bare string is taken as the client name.
		f.ClientName = name
	}
	return f
}

func scrapeExtraction(text, sourceText string) ExtractionFields {
	f := ExtractionFields{
		ProjectName:     Missing[Value](),
		ClientName:      Missing[Value](),
		ClientEmail:     Missing[Value](),
		ClientCompany:   Missing[Value](),
		MeetingDate:     Missing[Value](),
		Participants:    Missing[[]Value](),
		EstimatedBudget: Missing[Value](),
		Timeline:        Missing[Value](),
		Requirements:    Missing[Value](),
		Origin:          OriginScraped,
	}
	if v, ok := projectPattern.find(text); ok {
		f.ProjectName = quoted(v)
	}
	if v, ok := clientPattern.find(text); ok {
		f.ClientName = quoted(v)
	}
	if v, ok := budgetPattern.find(text); ok {
		f.EstimatedBudget = quoted(v)
	}
	if v, ok := timelinePattern.find(text); ok {
		f.Timeline = quoted(v)
	}
	if req := truncateRunes(strings.TrimSpace(sourceText), requirementsScrapeLimit); req != "" {
		f.Requirements = quoted(req)
	}
	return f
}

// Budget parses a budget design response.
func Budget(raw string) BudgetFields {
	text := fold(raw)
	if obj, ok := locateObject(text); ok {
		return budgetFromObject(obj)
	}
	return scrapeBudget(smartQuotes.Replace(text))
}

func budgetFromObject(obj object) BudgetFields {
	f := newBudgetFields(OriginJSON)
	f.TotalBudget = obj.field("total_budget")

	if people, ok := obj.sub("people_costs"); ok {
		for _, r := range model.Roles {
			if role, ok := people.sub(string(r)); ok {
				f.People[r] = roleFields(role)
			}
		}
	}
	if resources, ok := obj.sub("resource_costs"); ok {
		for _, r := range model.Resources {
			f.Resources[r] = resources.field(string(r))
		}
	}
	if items := obj.list("breakdown"); items.IsPresent() {
		raws, _ := items.Get()
		out := make([]ItemFields, 0, len(raws))
		for _, raw := range raws {
			item, ok := decodeObject(raw)
			if !ok {
				item = object{}
			}
			out = append(out, ItemFields{
				Category: item.field("category"),
				Item:     item.field("item"),
				Quantity: item.field("quantity"),
				UnitCost: item.field("unit_cost"),
				Total:    item.field("total"),
			})
		}
		f.Breakdown = Present(out)
	}
	return f
}

var (
	rolePatterns     = map[model.Role]*regexp.Regexp{}
	resourcePatterns = map[model.Resource]*regexp.Regexp{}
)

func init() {
	for _, r := range model.Roles {
		rolePatterns[r] = regexp.MustCompile(`"` + string(r) + `"\s*:\s*(\{[^{}]*\})`)
	}
	for _, r := range model.Resources {
		resourcePatterns[r] = regexp.MustCompile(`"` + string(r) + `"\s*:\s*"?\$?([\d,]+(?:\.\d+)?)`)
	}
}

func scrapeBudget(text string) BudgetFields {
	f := newBudgetFields(OriginScraped)
	found := false
	for r, re := range rolePatterns {
		m := re.FindStringSubmatch(text)
		if len(m) < 2 {
			continue
		}
		if role, ok := decodeObject([]byte(m[1])); ok {
			f.People[r] = roleFields(role)
			found = true
		}
	}
	for r, re := range resourcePatterns {
		if m := re.FindStringSubmatch(text); len(m) > 1 {
			f.Resources[r] = quoted(m[1])
			found = true
		}
	}
	if !found {
		f.Origin = OriginUnparsed
	}
	return f
}

func newBudgetFields(origin Origin) BudgetFields {
	f := BudgetFields{
		TotalBudget: Missing[Value](),
		People:      make(map[model.Role]RoleFields, len(model.Roles)),
		Resources:   make(map[model.Resource]Field[Value], len(model.Resources)),
		Breakdown:   Missing[[]ItemFields](),
		Origin:      origin,
	}
	for _, r := range model.Roles {
		f.People[r] = RoleFields{Count: Missing[Value](), Rate: Missing[Value](), Hours: Missing[Value]()}
	}
	for _, r := range model.Resources {
		f.Resources[r] = Missing[Value]()
	}
	return f
}

func roleFields(o object) RoleFields {
	return RoleFields{
		Count: o.field("count"),
		Rate:  o.field("rate"),
		Hours: o.field("hours"),
	}
}

// fold applies NFKC so full-width braces, quotes and digits behave like
// their ASCII forms, and drops a leading byte-order mark.
func fold(raw string) string {
	return strings.TrimPrefix(norm.NFKC.String(raw), "\ufeff")
}

// locateObject tries the greedy {...} span first, then the whole text.
func locateObject(text string) (object, bool) {
	stripped := stripFences(text)
	start := strings.Index(stripped, "{")
	end := strings.LastIndex(stripped, "}")
	if start >= 0 && end > start {
		if obj, ok := decodeObject([]byte(stripped[start : end+1])); ok {
			return obj, true
		}
	}
	return decodeObject([]byte(stripped))
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	for _, fence := range []string{"```json", "```JSON", "```"} {
		if strings.HasPrefix(text, fence) {
			text = strings.TrimPrefix(text, fence)
			if idx := strings.LastIndex(text, "```"); idx >= 0 {
				text = text[:idx]
			}
			break
		}
	}
	return strings.TrimSpace(text)
}

func truncateRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
