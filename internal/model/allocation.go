package model

import "time"

// Allocation records spend assigned against a budget.
type Allocation struct {
	ID              string    `json:"id" bson:"_id"`
	BudgetID        string    `json:"budget_id" bson:"budget_id"`
	AllocatedTo     string    `json:"allocated_to" bson:"allocated_to"`
	Category        string    `json:"category" bson:"category"`
	AllocatedAmount float64   `json:"allocated_amount" bson:"allocated_amount"`
	ActualSpent     float64   `json:"actual_spent" bson:"actual_spent"`
	AllocatedAt     time.Time `json:"allocated_at" bson:"allocated_at"`
	AllocatedBy     string    `json:"allocated_by" bson:"allocated_by"`
	Notes           string    `json:"notes,omitempty" bson:"notes,omitempty"`
}

// Remaining is the allocated amount not yet spent. It can be negative when
// spend overruns the allocation.
func (a *Allocation) Remaining() float64 {
	return a.AllocatedAmount - a.ActualSpent
}
