package model

import "time"

// DesignedBy is recorded on every budget produced by the design stage.
const DesignedBy = "BudgetDesignAgent"

// Role is a people-cost role.
type Role string

const (
	RoleLead      Role = "lead"
	RoleManager   Role = "manager"
	RoleDeveloper Role = "developer"
	RoleDesigner  Role = "designer"
	RoleQA        Role = "qa"
)

// Roles lists the fixed people-cost roles in display order.
var Roles = []Role{RoleLead, RoleManager, RoleDeveloper, RoleDesigner, RoleQA}

// Resource is a resource-cost category.
type Resource string

const (
	ResourceElectricity      Resource = "electricity"
	ResourceRent             Resource = "rent"
	ResourceSoftwareLicenses Resource = "software_licenses"
	ResourceHardware         Resource = "hardware"
	ResourceOther            Resource = "other"
)

// Resources lists the fixed resource categories in display order.
var Resources = []Resource{
	ResourceElectricity,
	ResourceRent,
	ResourceSoftwareLicenses,
	ResourceHardware,
	ResourceOther,
}

// RoleCost is the cost of one role. Total is always Count*Rate*Hours.
type RoleCost struct {
	Count float64 `json:"count" bson:"count"`
	Rate  float64 `json:"rate" bson:"rate"`
	Hours float64 `json:"hours" bson:"hours"`
	Total float64 `json:"total" bson:"total"`
}

// NewRoleCost builds a RoleCost with its total computed.
func NewRoleCost(count, rate, hours float64) RoleCost {
	return RoleCost{Count: count, Rate: rate, Hours: hours, Total: count * rate * hours}
}

// PeopleCosts holds the five fixed roles.
type PeopleCosts struct {
	Lead      RoleCost `json:"lead" bson:"lead"`
	Manager   RoleCost `json:"manager" bson:"manager"`
	Developer RoleCost `json:"developer" bson:"developer"`
	Designer  RoleCost `json:"designer" bson:"designer"`
	QA        RoleCost `json:"qa" bson:"qa"`
}

// Get returns the cost for a role.
func (p *PeopleCosts) Get(r Role) RoleCost {
	if ptr := p.ref(r); ptr != nil {
		return *ptr
	}
	return RoleCost{}
}

// Set replaces the cost for a role.
func (p *PeopleCosts) Set(r Role, c RoleCost) {
	if ptr := p.ref(r); ptr != nil {
		*ptr = c
	}
}

func (p *PeopleCosts) ref(r Role) *RoleCost {
	switch r {
	case RoleLead:
		return &p.Lead
	case RoleManager:
		return &p.Manager
	case RoleDeveloper:
		return &p.Developer
	case RoleDesigner:
		return &p.Designer
	case RoleQA:
		return &p.QA
	}
	return nil
}

// Total sums every role total.
func (p PeopleCosts) Total() float64 {
	var sum float64
	for _, r := range Roles {
		sum += p.Get(r).Total
	}
	return sum
}

// ResourceCosts holds the five fixed resource categories.
type ResourceCosts struct {
	Electricity      float64 `json:"electricity" bson:"electricity"`
	Rent             float64 `json:"rent" bson:"rent"`
	SoftwareLicenses float64 `json:"software_licenses" bson:"software_licenses"`
	Hardware         float64 `json:"hardware" bson:"hardware"`
	Other            float64 `json:"other" bson:"other"`
}

// Get returns the amount for a resource category.
func (rc *ResourceCosts) Get(r Resource) float64 {
	if ptr := rc.ref(r); ptr != nil {
		return *ptr
	}
	return 0
}

// Set replaces the amount for a resource category.
func (rc *ResourceCosts) Set(r Resource, v float64) {
	if ptr := rc.ref(r); ptr != nil {
		*ptr = v
	}
}

func (rc *ResourceCosts) ref(r Resource) *float64 {
	switch r {
	case ResourceElectricity:
		return &rc.Electricity
	case ResourceRent:
		return &rc.Rent
	case ResourceSoftwareLicenses:
		return &rc.SoftwareLicenses
	case ResourceHardware:
		return &rc.Hardware
	case ResourceOther:
		return &rc.Other
	}
	return nil
}

// Total sums every resource category.
func (rc ResourceCosts) Total() float64 {
	return rc.Electricity + rc.Rent + rc.SoftwareLicenses + rc.Hardware + rc.Other
}

// LineItem is a single breakdown entry.
type LineItem struct {
	Category string  `json:"category" bson:"category"`
	Item     string  `json:"item" bson:"item"`
	Quantity float64 `json:"quantity" bson:"quantity"`
	UnitCost float64 `json:"unit_cost" bson:"unit_cost"`
	Total    float64 `json:"total" bson:"total"`
}

// Budget is the structured result of the design stage. There is at most one
// budget per meeting.
type Budget struct {
	ID            string        `json:"id" bson:"_id"`
	MeetingID     string        `json:"meeting_id" bson:"meeting_id"`
	ProjectName   string        `json:"project_name" bson:"project_name"`
	TotalBudget   float64       `json:"total_budget" bson:"total_budget"`
	PeopleCosts   PeopleCosts   `json:"people_costs" bson:"people_costs"`
	ResourceCosts ResourceCosts `json:"resource_costs" bson:"resource_costs"`
	Breakdown     []LineItem    `json:"breakdown" bson:"breakdown"`
	DesignedAt    time.Time     `json:"designed_at" bson:"designed_at"`
	DesignedBy    string        `json:"designed_by" bson:"designed_by"`
}

// BreakdownTotal sums the breakdown line totals.
func (b *Budget) BreakdownTotal() float64 {
	var sum float64
	for _, li := range b.Breakdown {
		sum += li.Total
	}
	return sum
}

// ComputedTotal is people + resources + breakdown, before reconciliation.
func (b *Budget) ComputedTotal() float64 {
	return b.PeopleCosts.Total() + b.ResourceCosts.Total() + b.BreakdownTotal()
}
