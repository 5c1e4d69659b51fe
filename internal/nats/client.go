package nats

import (
	"context"
	"encoding/json"

	"graph-mailer/internal/models"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	StreamName     = "MAILS"
	StreamSubj     = "MAILS.*"
	OutcomeSubject = "MAILS.outcome"
)

// Connect connects to natsURL, opens JetStream and makes sure the MAILS
// stream exists.
func Connect(natsURL string, logger *zap.Logger) (*nats.Conn, nats.JetStreamContext, error) {
	nc, err := nats.Connect(natsURL, nats.Name("graph-mailer"))
	if err != nil {
		return nil, nil, errors.Wrapf(err, "error connecting to NATS at %s", natsURL)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, nil, errors.Wrap(err, "error creating JetStream context")
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:     StreamName,
		Subjects: []string{StreamSubj},
	})
	if err != nil {
		logger.Warn("could not create stream (it likely already exists)", zap.String("stream", StreamName), zap.Error(err))
	}

	return nc, js, nil
}

// jetStreamPublisher is the part of nats.JetStreamContext the publisher uses.
type jetStreamPublisher interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// Publisher announces send outcomes on OutcomeSubject.
type Publisher struct {
	js jetStreamPublisher
}

func NewPublisher(js jetStreamPublisher) *Publisher {
	return &Publisher{js: js}
}

// RecordOutcome publishes outcome as JSON and waits for the stream ack.
func (p *Publisher) RecordOutcome(ctx context.Context, outcome models.SendOutcome) error {
	data, err := json.Marshal(outcome)
	if err != nil {
		return errors.Wrap(err, "failed to marshal outcome")
	}
	if _, err := p.js.Publish(OutcomeSubject, data, nats.Context(ctx)); err != nil {
		return errors.Wrapf(err, "failed to publish outcome to %s", OutcomeSubject)
	}
	return nil
}
