package domain

import "time"

// Defect is a follow-up problem reported after a repair was confirmed.
type Defect struct {
	ID          string
	TicketID    string
	Number      int
	Title       string
	Description string
	Attachments []Attachment
	RaisedBy    string
	CreatedAt   time.Time
}

// Rating is the owner's one-time assessment of a finished repair.
type Rating struct {
	ID        string
	TicketID  string
	Score     int
	Comment   string
	RatedBy   string
	CreatedAt time.Time
}

const (
	MinRatingScore = 1
	MaxRatingScore = 5
)
