package models

import "time"

// Outcome statuses.
const (
	StatusAccepted = "accepted"
	StatusFailed   = "failed"
	StatusAborted  = "aborted"
)

// SendOutcome is the record of one mailer run. Aborted runs never reached the
// sendMail call.
type SendOutcome struct {
	ID                 int64     `json:"id"`
	Sender             string    `json:"sender"`
	Recipients         []string  `json:"recipients"`
	CcRecipients       []string  `json:"cc_recipients"`
	BccRecipients      []string  `json:"bcc_recipients"`
	Subject            string    `json:"subject"`
	AuthMode           string    `json:"auth_mode"`
	Status             string    `json:"status"`
	StatusCode         int       `json:"status_code"`
	ErrorMessage       string    `json:"error_message"`
	Attachments        int       `json:"attachments"`
	SkippedAttachments int       `json:"skipped_attachments"`
	CreatedAt          time.Time `json:"created_at"`
}
