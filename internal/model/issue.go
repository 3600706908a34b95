package model

import (
	"time"
)

// IssueStatus is the lifecycle status of an issue report. The
// application only ever writes "open"; resolution happens out of band.
type IssueStatus string

const (
	IssueOpen     IssueStatus = "open"
	IssueResolved IssueStatus = "resolved"
)

// Issue is a one-shot, non-conversational problem report.
type Issue struct {
	ID            string      `json:"id" gorm:"primaryKey;size:36"`
	CaseNumber    string      `json:"case_number" gorm:"index;size:32"`
	ReporterID    string      `json:"reporter_id" gorm:"size:64"`
	ReporterEmail string      `json:"reporter_email" gorm:"size:256"`
	Description   string      `json:"description"`
	Status        IssueStatus `json:"status" gorm:"index;size:16"`
	CreatedAt     time.Time   `json:"created_at"`
}

// SubmitIssueRequest is the request to file an issue report.
type SubmitIssueRequest struct {
	Description string `json:"description" validate:"required"`
}

// SubmitIssueResponse is returned after a successful submission.
// WebhookDelivered is informational only; webhook failure never fails
// the submission.
type SubmitIssueResponse struct {
	CaseNumber       string `json:"case_number"`
	SubmittedAt      string `json:"submitted_at"`
	WebhookDelivered bool   `json:"webhook_delivered"`
}
