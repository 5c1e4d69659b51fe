package graph

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// BodyType is the Graph itemBody content type.
type BodyType string

const (
	BodyText BodyType = "Text"
	BodyHTML BodyType = "HTML"
)

// Importance of a message as understood by Graph.
type Importance string

const (
	ImportanceLow    Importance = "low"
	ImportanceNormal Importance = "normal"
	ImportanceHigh   Importance = "high"
)

func ParseImportance(s string) (Importance, error) {
	switch i := Importance(strings.ToLower(strings.TrimSpace(s))); i {
	case "":
		return ImportanceNormal, nil
	case ImportanceLow, ImportanceNormal, ImportanceHigh:
		return i, nil
	}
	return "", errors.Errorf("unknown importance %q, want low, normal or high", s)
}

// Options are the optional parts of a message. The zero value sends with
// normal importance, no attachments, and no copy in Sent Items.
type Options struct {
	ReplyTo         string
	Cc              []string
	Bcc             []string
	Importance      Importance
	Attachments     []string
	SaveToSentItems bool
}

// Message is one outbound mail. Address lists keep their order; blank
// entries are dropped and the rest go to Graph unchecked. The sender and at
// least one non-blank to-recipient must be present. BodyType and Importance
// must be one of the constants above or empty.
type Message struct {
	Sender   string
	To       []string
	Subject  string
	Body     string
	BodyType BodyType
	Options
}

func (m Message) validate() error {
	if strings.TrimSpace(m.Sender) == "" {
		return ErrMissingSender
	}
	if len(recipients(m.To)) == 0 {
		return ErrNoRecipients
	}
	switch m.BodyType {
	case "", BodyText, BodyHTML:
	default:
		return errors.Wrapf(ErrUnsupportedOption, "body type %q", m.BodyType)
	}
	switch m.Importance {
	case "", ImportanceLow, ImportanceNormal, ImportanceHigh:
	default:
		return errors.Wrapf(ErrUnsupportedOption, "importance %q", m.Importance)
	}
	return nil
}

// AttachmentReadError is logged for each attachment left out of a message.
type AttachmentReadError struct {
	Path string
	Err  error
}

func (e *AttachmentReadError) Error() string {
	return fmt.Sprintf("failed to read attachment %s: %v", e.Path, e.Err)
}

func (e *AttachmentReadError) Unwrap() error { return e.Err }

// SendError is a sendMail call that did not end in 202 Accepted. Either
// StatusCode is set (Graph answered) or Err is (the request never completed).
type SendError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *SendError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("sendMail failed: %v", e.Err)
	}
	return fmt.Sprintf("sendMail returned status %d: %s", e.StatusCode, e.Body)
}

func (e *SendError) Unwrap() error { return e.Err }

// sendMailRequest is the JSON payload posted to users/{id}/sendMail.
type sendMailRequest struct {
	Message         message `json:"message"`
	SaveToSentItems bool    `json:"saveToSentItems"`
}

type message struct {
	Subject       string       `json:"subject"`
	Body          body         `json:"body"`
	ToRecipients  []recipient  `json:"toRecipients"`
	CcRecipients  []recipient  `json:"ccRecipients,omitempty"`
	BccRecipients []recipient  `json:"bccRecipients,omitempty"`
	ReplyTo       []recipient  `json:"replyTo,omitempty"`
	Importance    string       `json:"importance"`
	Attachments   []attachment `json:"attachments,omitempty"`
}

type body struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type recipient struct {
	EmailAddress emailAddress `json:"emailAddress"`
}

type emailAddress struct {
	Address string `json:"address"`
}

type attachment struct {
	ODataType    string `json:"@odata.type"`
	Name         string `json:"name"`
	ContentType  string `json:"contentType"`
	ContentBytes string `json:"contentBytes"`
}
