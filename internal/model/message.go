package model

import (
	"encoding/json"
	"time"
)

// Stage identifies one pipeline phase.
type Stage string

const (
	StageExtraction Stage = "extraction"
	StageDesign     Stage = "design"
	StageAllocation Stage = "allocation"
)

// Stages lists every stage in pipeline order.
var Stages = []Stage{StageExtraction, StageDesign, StageAllocation}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	switch s {
	case StageExtraction, StageDesign, StageAllocation:
		return true
	}
	return false
}

// StageStatus is the per-stage state of a message.
type StageStatus string

const (
	StatusPending   StageStatus = "pending"
	StatusSucceeded StageStatus = "succeeded"
	StatusFailed    StageStatus = "failed"
)

// Valid reports whether s is a known status.
func (s StageStatus) Valid() bool {
	switch s {
	case StatusPending, StatusSucceeded, StatusFailed:
		return true
	}
	return false
}

// Message is an inbound Telegram message plus its stage statuses.
type Message struct {
	ID               string          `json:"id" bson:"_id"`
	MessageID        string          `json:"message_id" bson:"message_id"` // external Telegram id
	ChatID           string          `json:"chat_id,omitempty" bson:"chat_id,omitempty"`
	SenderID         string          `json:"sender_id" bson:"sender_id"`
	SenderName       string          `json:"sender_name,omitempty" bson:"sender_name,omitempty"`
	Text             string          `json:"text" bson:"text"`
	DateReceived     time.Time       `json:"date_received" bson:"date_received"`
	RawPayload       json.RawMessage `json:"raw_payload,omitempty" bson:"raw_payload,omitempty"`
	ExtractionStatus StageStatus     `json:"extraction_status" bson:"extraction_status"`
	DesignStatus     StageStatus     `json:"design_status" bson:"design_status"`
	AllocationStatus StageStatus     `json:"allocation_status" bson:"allocation_status"`
	CreatedAt        time.Time       `json:"created_at" bson:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" bson:"updated_at"`
}

// Status returns the status of the given stage.
func (m *Message) Status(stage Stage) StageStatus {
	switch stage {
	case StageExtraction:
		return m.ExtractionStatus
	case StageDesign:
		return m.DesignStatus
	case StageAllocation:
		return m.AllocationStatus
	}
	return ""
}

// SetStatus sets the status of the given stage. Unknown stages are ignored.
func (m *Message) SetStatus(stage Stage, status StageStatus) {
	switch stage {
	case StageExtraction:
		m.ExtractionStatus = status
	case StageDesign:
		m.DesignStatus = status
	case StageAllocation:
		m.AllocationStatus = status
	}
}

// ResetStatuses puts every stage back to pending.
func (m *Message) ResetStatuses() {
	for _, s := range Stages {
		m.SetStatus(s, StatusPending)
	}
}
