// Package export writes budgets to spreadsheets.
package export

import (
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/labsync/internal/model"
)

const (
	SheetSummary   = "Summary"
	SheetPeople    = "People"
	SheetResources = "Resources"
	SheetBreakdown = "Breakdown"
)

const moneyFormat = "#,##0.00"

// Summary is the Summary sheet read back from a workbook.
type Summary struct {
	ProjectName    string
	BudgetID       string
	MeetingID      string
	TotalBudget    float64
	PeopleTotal    float64
	ResourcesTotal float64
	BreakdownTotal float64
}

// BudgetXLSX writes b to path as a workbook with summary, people,
// resources and breakdown sheets.
func BudgetXLSX(b *model.Budget, path string) error {
	f := xlsx.NewFile()

	summary, err := f.AddSheet(SheetSummary)
	if err != nil {
		return eris.Wrap(err, "export: add summary sheet")
	}
	textRow(summary, "Project", b.ProjectName)
	textRow(summary, "Budget ID", b.ID)
	textRow(summary, "Meeting ID", b.MeetingID)
	moneyRow(summary, "Total Budget", b.TotalBudget)
	moneyRow(summary, "People", b.PeopleCosts.Total())
	moneyRow(summary, "Resources", b.ResourceCosts.Total())
	moneyRow(summary, "Breakdown", b.BreakdownTotal())
	textRow(summary, "Designed At", b.DesignedAt.UTC().Format(time.RFC3339))
	textRow(summary, "Designed By", b.DesignedBy)

	people, err := f.AddSheet(SheetPeople)
	if err != nil {
		return eris.Wrap(err, "export: add people sheet")
	}
	header(people, "Role", "Count", "Rate", "Hours", "Total")
	for _, r := range model.Roles {
		c := b.PeopleCosts.Get(r)
		row := people.AddRow()
		row.AddCell().SetString(string(r))
		row.AddCell().SetFloat(c.Count)
		row.AddCell().SetFloatWithFormat(c.Rate, moneyFormat)
		row.AddCell().SetFloat(c.Hours)
		row.AddCell().SetFloatWithFormat(c.Total, moneyFormat)
	}

	resources, err := f.AddSheet(SheetResources)
	if err != nil {
		return eris.Wrap(err, "export: add resources sheet")
	}
	header(resources, "Category", "Amount")
	for _, r := range model.Resources {
		moneyRow(resources, string(r), b.ResourceCosts.Get(r))
	}

	breakdown, err := f.AddSheet(SheetBreakdown)
	if err != nil {
		return eris.Wrap(err, "export: add breakdown sheet")
	}
	header(breakdown, "Category", "Item", "Quantity", "Unit Cost", "Total")
	for _, li := range b.Breakdown {
		row := breakdown.AddRow()
		row.AddCell().SetString(li.Category)
		row.AddCell().SetString(li.Item)
		row.AddCell().SetFloat(li.Quantity)
		row.AddCell().SetFloatWithFormat(li.UnitCost, moneyFormat)
		row.AddCell().SetFloatWithFormat(li.Total, moneyFormat)
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

// ReadBudgetSummary reads the Summary sheet of a workbook written by
// BudgetXLSX.
func ReadBudgetSummary(path string) (*Summary, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "export: open file")
	}
	sheet, ok := f.Sheet[SheetSummary]
	if !ok {
		return nil, eris.Errorf("export: sheet %q not found", SheetSummary)
	}

	values := make(map[string]string, len(sheet.Rows))
	for _, row := range sheet.Rows {
		if len(row.Cells) < 2 {
			continue
		}
		values[row.Cells[0].String()] = row.Cells[1].Value
	}

	s := &Summary{
		ProjectName: values["Project"],
		BudgetID:    values["Budget ID"],
		MeetingID:   values["Meeting ID"],
	}
	for key, dst := range map[string]*float64{
		"Total Budget": &s.TotalBudget,
		"People":       &s.PeopleTotal,
		"Resources":    &s.ResourcesTotal,
		"Breakdown":    &s.BreakdownTotal,
	} {
		v, err := strconv.ParseFloat(values[key], 64)
		if err != nil {
			return nil, eris.Wrapf(err, "export: parse %s", key)
		}
		*dst = v
	}
	return s, nil
}

func header(sheet *xlsx.Sheet, cols ...string) {
	row := sheet.AddRow()
	for _, c := range cols {
		row.AddCell().SetString(c)
	}
}

func textRow(sheet *xlsx.Sheet, label, value string) {
	row := sheet.AddRow()
	row.AddCell().SetString(label)
	row.AddCell().SetString(value)
}

func moneyRow(sheet *xlsx.Sheet, label string, v float64) {
	row := sheet.AddRow()
	row.AddCell().SetString(label)
	row.AddCell().SetFloatWithFormat(v, moneyFormat)
}
