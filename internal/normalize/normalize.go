// Package normalize converts parsed field sets into complete, typed records.
// It is the only place defaults are applied, and it never fails.
package normalize

import (
	"math"
	"time"

	"github.com/sells-group/labsync/internal/model"
	"github.com/sells-group/labsync/internal/parse"
)

// Extraction defaults.
const (
	DefaultProjectName  = "Unnamed Project"
	DefaultClientName   = "Unknown Client"
	DefaultTimeline     = "Not specified"
	DefaultRequirements = "No requirements specified"
)

// Breakdown line defaults.
const (
	DefaultCategory = "Other"
	DefaultItem     = "Unspecified"
)

// ReconcileTolerance is the relative deviation below which the stated
// estimate wins over the computed sum.
const ReconcileTolerance = 0.5

// RoleDefault is the fallback count, rate and hours for a role.
type RoleDefault struct {
	Count float64
	Rate  float64
	Hours float64
}

// RoleDefaults are applied field by field when the model omits a value.
var RoleDefaults = map[model.Role]RoleDefault{
	model.RoleLead:      {Count: 1, Rate: 100, Hours: 160},
	model.RoleManager:   {Count: 1, Rate: 80, Hours: 160},
	model.RoleDeveloper: {Count: 1, Rate: 65, Hours: 160},
	model.RoleDesigner:  {Count: 1, Rate: 55, Hours: 80},
	model.RoleQA:        {Count: 1, Rate: 45, Hours: 80},
}

// fallbackDeveloperCount staffs the fallback design used when the response
// could not be parsed at all.
const fallbackDeveloperCount = 2

// ResourceDefaults are applied when a resource category is missing.
var ResourceDefaults = map[model.Resource]float64{
	model.ResourceElectricity:      200,
	model.ResourceRent:             2000,
	model.ResourceSoftwareLicenses: 1000,
	model.ResourceHardware:         2000,
	model.ResourceOther:            1000,
}

// Meeting builds a meeting from parsed extraction fields. IDs and
// timestamps owned by the store are left for the caller.
func Meeting(f parse.ExtractionFields, now time.Time) model.Meeting {
	return model.Meeting{
		ProjectName: String(f.ProjectName, DefaultProjectName),
		Client: model.ClientDetails{
			Name:    String(f.ClientName, DefaultClientName),
			Email:   String(f.ClientEmail, ""),
			Company: String(f.ClientCompany, ""),
		},
		MeetingDate:     Date(f.MeetingDate, now),
		Participants:    StringList(f.Participants),
		EstimatedBudget: Number(f.EstimatedBudget, 0),
		Timeline:        String(f.Timeline, DefaultTimeline),
		Requirements:    String(f.Requirements, DefaultRequirements),
	}
}

// Budget builds a budget from parsed design fields and reconciles its total
// against estimate. The model's own total_budget is never used.
func Budget(f parse.BudgetFields, estimate float64) model.Budget {
	var b model.Budget

	for _, r := range model.Roles {
		def := RoleDefaults[r]
		if r == model.RoleDeveloper && f.Origin == parse.OriginUnparsed {
			def.Count = fallbackDeveloperCount
		}
		rf := f.People[r]
		b.PeopleCosts.Set(r, model.NewRoleCost(
			Number(rf.Count, def.Count),
			Number(rf.Rate, def.Rate),
			Number(rf.Hours, def.Hours),
		))
	}

	for _, r := range model.Resources {
		b.ResourceCosts.Set(r, Number(f.Resources[r], ResourceDefaults[r]))
	}

	b.Breakdown = []model.LineItem{}
	if items, ok := f.Breakdown.Get(); ok {
		for _, it := range items {
			b.Breakdown = append(b.Breakdown, model.LineItem{
				Category: String(it.Category, DefaultCategory),
				Item:     String(it.Item, DefaultItem),
				Quantity: Number(it.Quantity, 1),
				UnitCost: Number(it.UnitCost, 0),
				Total:    Number(it.Total, 0),
			})
		}
	}

	b.TotalBudget = Reconcile(b.ComputedTotal(), estimate)
	return b
}

// Reconcile picks the stated estimate when the computed sum is within
// ReconcileTolerance of it, and the sum otherwise, rounded to a whole unit.
func Reconcile(sum, estimate float64) float64 {
	total := sum
	if estimate > 0 && math.Abs(sum-estimate)/estimate < ReconcileTolerance {
		total = estimate
	}
	return math.Round(total)
}
