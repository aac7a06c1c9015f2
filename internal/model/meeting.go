package model

import "time"

// ClientDetails identifies the client discussed in a meeting.
type ClientDetails struct {
	Name    string `json:"name" bson:"name"`
	Email   string `json:"email,omitempty" bson:"email,omitempty"`
	Company string `json:"company,omitempty" bson:"company,omitempty"`
}

// Meeting is the structured result of the extraction stage. There is at most
// one meeting per message.
type Meeting struct {
	ID              string        `json:"id" bson:"_id"`
	MessageID       string        `json:"message_id" bson:"message_id"`
	ProjectName     string        `json:"project_name" bson:"project_name"`
	Client          ClientDetails `json:"client_details" bson:"client_details"`
	MeetingDate     time.Time     `json:"meeting_date" bson:"meeting_date"`
	Participants    []string      `json:"participants" bson:"participants"`
	EstimatedBudget float64       `json:"estimated_budget" bson:"estimated_budget"`
	Timeline        string        `json:"timeline" bson:"timeline"`
	Requirements    string        `json:"requirements" bson:"requirements"`
	ExtractedAt     time.Time     `json:"extracted_at" bson:"extracted_at"`
}
