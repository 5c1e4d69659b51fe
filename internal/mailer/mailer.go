// Package mailer runs one send: settings to credential, credential to token,
// token to a Graph sendMail call, and the outcome to the configured recorders.
package mailer

import (
	"context"
	"time"

	"graph-mailer/internal/auth"
	"graph-mailer/internal/graph"
	"graph-mailer/internal/models"

	"go.uber.org/zap"
)

// TokenResolver is satisfied by *auth.Resolver.
type TokenResolver interface {
	Resolve(ctx context.Context, cred auth.Credential) (auth.AccessToken, error)
}

// Sender is satisfied by *graph.Client.
type Sender interface {
	Send(ctx context.Context, token string, msg graph.Message) (*graph.Result, error)
}

// Recorder keeps the outcome of a run somewhere (send log, event stream).
type Recorder interface {
	RecordOutcome(ctx context.Context, outcome models.SendOutcome) error
}

// Request is everything one run needs.
type Request struct {
	Mode     auth.Mode
	Settings map[string]string
	Message  graph.Message
}

type Mailer struct {
	resolver  TokenResolver
	sender    Sender
	recorders []Recorder
	logger    *zap.Logger
	now       func() time.Time
}

type Option func(*Mailer)

func WithRecorder(r Recorder) Option {
	return func(m *Mailer) { m.recorders = append(m.recorders, r) }
}

func WithLogger(logger *zap.Logger) Option {
	return func(m *Mailer) { m.logger = logger }
}

func New(resolver TokenResolver, sender Sender, opts ...Option) *Mailer {
	m := &Mailer{
		resolver: resolver,
		sender:   sender,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run sends req.Message and reports whether Graph accepted it. Configuration
// and credential errors stop the run before any mail call is made. The
// returned error explains every false result. Recorder failures are logged
// and never change the result.
func (m *Mailer) Run(ctx context.Context, req Request) (bool, error) {
	msg := req.Message
	outcome := models.SendOutcome{
		Sender:        msg.Sender,
		Recipients:    msg.To,
		CcRecipients:  msg.Cc,
		BccRecipients: msg.Bcc,
		Subject:       msg.Subject,
		AuthMode:      req.Mode.String(),
		CreatedAt:     m.now().UTC(),
	}

	cred, err := auth.FromSettings(req.Mode, req.Settings)
	if err != nil {
		m.abort(ctx, outcome, err)
		return false, err
	}

	token, err := m.resolver.Resolve(ctx, cred)
	if err != nil {
		m.abort(ctx, outcome, err)
		return false, err
	}

	res, err := m.sender.Send(ctx, token.Token, msg)
	if res != nil {
		outcome.StatusCode = res.StatusCode
		outcome.Attachments = res.Attached
		outcome.SkippedAttachments = len(res.Skipped)
	}

	accepted := err == nil && res != nil && res.Accepted
	if accepted {
		outcome.Status = models.StatusAccepted
	} else {
		outcome.Status = models.StatusFailed
		if err != nil {
			outcome.ErrorMessage = err.Error()
		}
		m.logger.Error("email was not sent", zap.String("sender", msg.Sender), zap.Error(err))
	}

	m.record(ctx, outcome)
	return accepted, err
}

func (m *Mailer) abort(ctx context.Context, outcome models.SendOutcome, err error) {
	m.logger.Error("run aborted before sending",
		zap.String("mode", outcome.AuthMode),
		zap.Error(err),
	)
	outcome.Status = models.StatusAborted
	outcome.ErrorMessage = err.Error()
	m.record(ctx, outcome)
}

func (m *Mailer) record(ctx context.Context, outcome models.SendOutcome) {
	for _, r := range m.recorders {
		if err := r.RecordOutcome(ctx, outcome); err != nil {
			m.logger.Warn("failed to record outcome", zap.String("status", outcome.Status), zap.Error(err))
		}
	}
}
