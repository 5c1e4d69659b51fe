// Package graph sends mail through the Microsoft Graph sendMail API.
package graph

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	httptrace "gopkg.in/DataDog/dd-trace-go.v1/contrib/net/http"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/ext"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
)

const (
	DefaultBaseURL = "https://graph.microsoft.com/v1.0"

	fileAttachmentType = "#microsoft.graph.fileAttachment"
	defaultContentType = "application/octet-stream"
	maxErrorBody       = 4 << 10
)

var (
	ErrMissingSender = errors.New("sender is required")
	ErrNoRecipients  = errors.New("at least one to-recipient is required")

	// ErrUnsupportedOption wraps a body type or importance Graph does not know.
	ErrUnsupportedOption = errors.New("unsupported message option")
)

type Client struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

type Option func(*Client)

// WithBaseURL points the client at another Graph root, e.g. a test server.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a Graph mail client. The HTTP client is traced; a client
// given through WithHTTPClient is copied first and left untouched.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		client:  &http.Client{Timeout: 20 * time.Second},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	hc := *c.client
	c.client = httptrace.WrapClient(&hc)
	return c
}

// Result describes what happened to one send.
type Result struct {
	Accepted   bool
	StatusCode int
	Attached   int
	Skipped    []*AttachmentReadError
}

// SendMail sends one message as sender and reports whether Graph accepted it.
// A false result always comes with a non-nil error describing why.
func (c *Client) SendMail(
	ctx context.Context,
	token, sender string,
	to []string,
	subject, body string,
	bodyType BodyType,
	opts Options) (bool, error) {

	res, err := c.Send(ctx, token, Message{
		Sender:   sender,
		To:       to,
		Subject:  subject,
		Body:     body,
		BodyType: bodyType,
		Options:  opts,
	})
	if err != nil {
		return false, err
	}
	return res.Accepted, nil
}

// Send builds the sendMail request for msg and posts it with token. Only
// 202 Accepted counts as success; everything else yields a *SendError.
// Unreadable attachments are logged and left out of the message. Messages
// failing validation never reach the network.
func (c *Client) Send(ctx context.Context, token string, msg Message) (res *Result, err error) {
	res = &Result{}

	if err := msg.validate(); err != nil {
		return res, err
	}

	span, ctx := tracer.StartSpanFromContext(ctx, "graph.sendmail",
		tracer.ResourceName("POST /users/{id}/sendMail"),
		tracer.Tag("mail.recipients", len(msg.To)+len(msg.Cc)+len(msg.Bcc)),
	)
	defer func() { span.Finish(tracer.WithError(err)) }()

	payload, skipped := c.buildRequest(msg)
	res.Attached = len(payload.Message.Attachments)
	res.Skipped = skipped

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return res, &SendError{Err: errors.Wrap(err, "failed to marshal email message")}
	}

	endpoint := fmt.Sprintf("%s/users/%s/sendMail", c.baseURL, url.PathEscape(msg.Sender))
	c.logger.Debug("sending email via Graph API", zap.String("endpoint", endpoint), zap.Int("attachments", res.Attached))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payloadBytes))
	if err != nil {
		return res, &SendError{Err: errors.Wrap(err, "failed to create email request")}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("failed to send email", zap.String("sender", msg.Sender), zap.Error(err))
		return res, &SendError{Err: err}
	}
	defer resp.Body.Close()

	res.StatusCode = resp.StatusCode
	span.SetTag(ext.HTTPCode, resp.StatusCode)

	if resp.StatusCode == http.StatusAccepted {
		io.Copy(io.Discard, resp.Body)
		res.Accepted = true
		c.logger.Info("email has been sent",
			zap.String("sender", msg.Sender),
			zap.Strings("to", msg.To),
			zap.Int("attachments", res.Attached),
		)
		return res, nil
	}

	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	sendErr := &SendError{StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	c.logger.Error("email was not accepted",
		zap.String("sender", msg.Sender),
		zap.Int("status", resp.StatusCode),
		zap.String("response", sendErr.Body),
	)
	return res, sendErr
}

// buildRequest converts msg to the Graph JSON shape. Attachments that cannot
// be read are returned separately.
func (c *Client) buildRequest(msg Message) (sendMailRequest, []*AttachmentReadError) {
	importance := msg.Importance
	if importance == "" {
		importance = ImportanceNormal
	}
	bodyType := msg.BodyType
	if bodyType == "" {
		bodyType = BodyText
	}

	m := message{
		Subject:       msg.Subject,
		Body:          body{ContentType: string(bodyType), Content: msg.Body},
		ToRecipients:  recipients(msg.To),
		CcRecipients:  recipients(msg.Cc),
		BccRecipients: recipients(msg.Bcc),
		Importance:    string(importance),
	}
	if msg.ReplyTo != "" {
		m.ReplyTo = recipients([]string{msg.ReplyTo})
	}

	attachments, skipped := c.readAttachments(msg.Attachments)
	m.Attachments = attachments

	return sendMailRequest{Message: m, SaveToSentItems: msg.SaveToSentItems}, skipped
}

func (c *Client) readAttachments(paths []string) ([]attachment, []*AttachmentReadError) {
	var attachments []attachment
	var skipped []*AttachmentReadError
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			readErr := &AttachmentReadError{Path: path, Err: err}
			c.logger.Warn("failed to add attachment", zap.String("path", path), zap.Error(err))
			skipped = append(skipped, readErr)
			continue
		}

		name := filepath.Base(path)
		contentType := mime.TypeByExtension(filepath.Ext(name))
		if contentType == "" {
			contentType = defaultContentType
		}
		attachments = append(attachments, attachment{
			ODataType:    fileAttachmentType,
			Name:         name,
			ContentType:  contentType,
			ContentBytes: base64.StdEncoding.EncodeToString(content),
		})
	}
	return attachments, skipped
}

// recipients drops blank addresses.
func recipients(addresses []string) []recipient {
	var out []recipient
	for _, address := range addresses {
		if strings.TrimSpace(address) == "" {
			continue
		}
		out = append(out, recipient{EmailAddress: emailAddress{Address: address}})
	}
	return out
}
