package main

import (
	"context"
	"os"

	"graph-mailer/internal/auth"
	"graph-mailer/internal/config"
	"graph-mailer/internal/db"
	"graph-mailer/internal/graph"
	"graph-mailer/internal/logger"
	"graph-mailer/internal/mailer"
	natsclient "graph-mailer/internal/nats"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
)

type sendFlags struct {
	envFile     string
	mode        string
	from        string
	to          []string
	cc          []string
	bcc         []string
	replyTo     string
	subject     string
	body        string
	html        bool
	importance  string
	attachments []string
	saveToSent  bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &sendFlags{}

	cmd := &cobra.Command{
		Use:   "mailer",
		Short: "Send one email through Microsoft Graph using app-only credentials",
		Example: `  mailer --env-file app.env --mode secret --from alexw@contoso.com \
    --to lidiah@contoso.com --to henriettam@contoso.com \
    --subject "Send mail" --body "<b>hello</b>" --html --attach ./report.pdf`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(cmd.Context(), f)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&f.envFile, "env-file", ".env", "settings file with tenantId, clientId and the credential keys")
	fs.StringVar(&f.mode, "mode", "", "authentication mode: secret, certificate or thumbprint (default from authMode setting, else secret)")
	fs.StringVar(&f.from, "from", "", "sender mailbox (default from senderEmail setting)")
	fs.StringArrayVar(&f.to, "to", nil, "to recipient, repeatable")
	fs.StringArrayVar(&f.cc, "cc", nil, "cc recipient, repeatable")
	fs.StringArrayVar(&f.bcc, "bcc", nil, "bcc recipient, repeatable")
	fs.StringVar(&f.replyTo, "reply-to", "", "reply-to address")
	fs.StringVar(&f.subject, "subject", "", "message subject")
	fs.StringVar(&f.body, "body", "", "message body")
	fs.BoolVar(&f.html, "html", false, "send the body as HTML")
	fs.StringVar(&f.importance, "importance", "normal", "low, normal or high")
	fs.StringArrayVar(&f.attachments, "attach", nil, "file to attach, repeatable")
	fs.BoolVar(&f.saveToSent, "save-to-sent", false, "keep a copy in the sender's Sent Items")

	return cmd
}

func runSend(ctx context.Context, f *sendFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Runtime settings (LOG_LEVEL, DB_*, NATS_URL, DD_ENV) may live in the same file.
	envErr := godotenv.Load(f.envFile)
	rt := config.LoadRuntime()

	tracer.Start(
		tracer.WithService("graph-mailer"),
		tracer.WithEnv(rt.DDEnv),
	)
	defer tracer.Stop()

	log, err := logger.New(logger.Config{Level: rt.LogLevel, Format: rt.LogFormat})
	if err != nil {
		return errors.Wrap(err, "failed to build logger")
	}
	defer log.Sync()

	if envErr != nil {
		log.Warn("settings file not loaded, reading settings from environment",
			zap.String("file", f.envFile), zap.Error(envErr))
	}

	settings, err := config.Load(f.envFile)
	if err != nil {
		log.Error("failed to load settings", zap.Error(err))
		return err
	}

	mode, err := auth.ParseMode(firstNonEmpty(f.mode, settings.GetOr(config.KeyAuthMode, "secret")))
	if err != nil {
		return err
	}
	importance, err := graph.ParseImportance(f.importance)
	if err != nil {
		return err
	}
	bodyType := graph.BodyText
	if f.html {
		bodyType = graph.BodyHTML
	}

	resolver := auth.NewResolver(
		auth.WithStore(auth.DirStore{Path: settings.GetOr(config.KeyCertificateStore, auth.DefaultStorePath)}),
		auth.WithLogger(log),
	)
	client := graph.NewClient(graph.WithLogger(log))

	opts := []mailer.Option{mailer.WithLogger(log)}
	recorders, closeRecorders := openRecorders(log, rt)
	defer closeRecorders()
	for _, r := range recorders {
		opts = append(opts, mailer.WithRecorder(r))
	}

	m := mailer.New(resolver, client, opts...)
	ok, err := m.Run(ctx, mailer.Request{
		Mode:     mode,
		Settings: settings,
		Message: graph.Message{
			Sender:   firstNonEmpty(f.from, settings.Get(config.KeySenderEmail)),
			To:       f.to,
			Subject:  f.subject,
			Body:     f.body,
			BodyType: bodyType,
			Options: graph.Options{
				ReplyTo:         f.replyTo,
				Cc:              f.cc,
				Bcc:             f.bcc,
				Importance:      importance,
				Attachments:     f.attachments,
				SaveToSentItems: f.saveToSent,
			},
		},
	})
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("email was not accepted")
	}
	return nil
}

// openRecorders connects the optional send log and outcome stream. Either
// one failing to connect is logged and skipped.
func openRecorders(log *zap.Logger, rt config.Runtime) ([]mailer.Recorder, func()) {
	var recorders []mailer.Recorder
	var closers []func()

	dbCfg, err := db.Load()
	switch {
	case errors.Is(err, db.ErrNotConfigured):
	case err != nil:
		log.Warn("send log disabled", zap.Error(err))
	default:
		dbClient, err := db.NewClient(dbCfg.Driver, dbCfg.DSN)
		if err != nil {
			log.Warn("send log disabled", zap.Error(err))
			break
		}
		recorders = append(recorders, dbClient)
		closers = append(closers, func() { dbClient.Close() })
	}

	if rt.NatsURL != "" {
		nc, js, err := natsclient.Connect(rt.NatsURL, log)
		if err != nil {
			log.Warn("outcome events disabled", zap.Error(err))
		} else {
			recorders = append(recorders, natsclient.NewPublisher(js))
			closers = append(closers, nc.Close)
		}
	}

	return recorders, func() {
		for _, c := range closers {
			c()
		}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
