// Package auth turns tenant settings into a Microsoft Graph access token.
//
// Exactly one of three credential kinds is used per run: a client secret, a
// certificate file (PFX or PEM), or a certificate looked up by thumbprint in a
// certificate store. Every Resolve call performs a fresh token exchange.
package auth

import (
	"context"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/cloud"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"go.uber.org/zap"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
)

const (
	// GraphScope requests every application permission granted to the app on Microsoft Graph.
	GraphScope = "https://graph.microsoft.com/.default"

	DefaultAuthorityHost = "https://login.microsoftonline.com/"
)

// Authority returns the v2.0 authority of tenantID on host.
func Authority(host, tenantID string) string {
	return strings.TrimRight(host, "/") + "/" + tenantID + "/v2.0"
}

// AccessToken is a bearer token. It is handed to exactly one send and never stored.
type AccessToken struct {
	Token     string
	ExpiresOn time.Time
}

// CredentialRequest carries what a CredentialFactory needs. Exactly one of
// Secret and Certificate is set.
type CredentialRequest struct {
	AuthorityHost string
	TenantID      string
	ClientID      string
	Secret        string
	Certificate   *Certificate

	// ClientOptions carries transport and retry settings. Its Cloud is
	// replaced by AuthorityHost.
	ClientOptions azcore.ClientOptions
	// DisableInstanceDiscovery skips the authority validation request, for
	// authority hosts unknown to Microsoft Entra ID.
	DisableInstanceDiscovery bool
}

// CredentialFactory builds the token credential for one resolution.
type CredentialFactory func(req CredentialRequest) (azcore.TokenCredential, error)

// NewAzureCredential builds an azidentity client-credential for req.
func NewAzureCredential(req CredentialRequest) (azcore.TokenCredential, error) {
	opts := req.ClientOptions
	opts.Cloud = cloud.Configuration{ActiveDirectoryAuthorityHost: req.AuthorityHost}

	if req.Certificate != nil {
		return azidentity.NewClientCertificateCredential(
			req.TenantID,
			req.ClientID,
			req.Certificate.Chain,
			req.Certificate.Key,
			&azidentity.ClientCertificateCredentialOptions{
				ClientOptions:            opts,
				DisableInstanceDiscovery: req.DisableInstanceDiscovery,
				SendCertificateChain:     true,
			},
		)
	}
	return azidentity.NewClientSecretCredential(
		req.TenantID,
		req.ClientID,
		req.Secret,
		&azidentity.ClientSecretCredentialOptions{
			ClientOptions:            opts,
			DisableInstanceDiscovery: req.DisableInstanceDiscovery,
		},
	)
}

// Resolver turns a Credential into an access token for Microsoft Graph.
type Resolver struct {
	authorityHost    string
	clientOptions    azcore.ClientOptions
	noInstanceLookup bool
	store            CertificateStore
	newCredential    CredentialFactory
	logger           *zap.Logger
}

type Option func(*Resolver)

func WithAuthorityHost(host string) Option {
	return func(r *Resolver) { r.authorityHost = host }
}

// WithClientOptions sets the transport, retry and logging options of the
// identity client.
func WithClientOptions(o azcore.ClientOptions) Option {
	return func(r *Resolver) { r.clientOptions = o }
}

// WithoutInstanceDiscovery trusts the authority host as is. Use it for
// private clouds and local token endpoints.
func WithoutInstanceDiscovery() Option {
	return func(r *Resolver) { r.noInstanceLookup = true }
}

func WithStore(store CertificateStore) Option {
	return func(r *Resolver) { r.store = store }
}

func WithCredentialFactory(f CredentialFactory) Option {
	return func(r *Resolver) { r.newCredential = f }
}

func WithLogger(logger *zap.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

// NewResolver returns a Resolver talking to the public Microsoft cloud and
// looking thumbprints up in DefaultStorePath unless told otherwise.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		authorityHost: DefaultAuthorityHost,
		store:         DirStore{Path: DefaultStorePath},
		newCredential: NewAzureCredential,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve loads the certificate the credential refers to, if any, and runs a
// client-credential exchange for GraphScope. Nothing is cached: every call
// performs a fresh exchange.
func (r *Resolver) Resolve(ctx context.Context, cred Credential) (token AccessToken, err error) {
	if cred == nil {
		return AccessToken{}, &ConfigurationError{Reason: "no credential given"}
	}
	mode := cred.Mode()

	span, ctx := tracer.StartSpanFromContext(ctx, "auth.resolve", tracer.ResourceName(mode.String()))
	defer func() { span.Finish(tracer.WithError(err)) }()

	if missing := cred.missing(); len(missing) > 0 {
		return AccessToken{}, &ConfigurationError{Mode: mode, Missing: missing}
	}

	id := cred.identity()
	req := CredentialRequest{
		AuthorityHost:            r.authorityHost,
		TenantID:                 id.TenantID,
		ClientID:                 id.ClientID,
		ClientOptions:            r.clientOptions,
		DisableInstanceDiscovery: r.noInstanceLookup,
	}

	switch c := cred.(type) {
	case ClientSecret:
		req.Secret = c.Secret
	case CertificateFile:
		cert, err := LoadCertificateFile(c.Path, c.Passphrase)
		if err != nil {
			return AccessToken{}, err
		}
		req.Certificate = cert
	case CertificateThumbprint:
		cert, err := r.store.Find(c.Thumbprint)
		if err != nil {
			return AccessToken{}, err
		}
		req.Certificate = cert
	}

	authority := Authority(r.authorityHost, id.TenantID)
	r.logger.Debug("requesting access token",
		zap.Stringer("mode", mode),
		zap.String("authority", authority),
		zap.String("clientId", id.ClientID),
	)

	tc, err := r.newCredential(req)
	if err != nil {
		return AccessToken{}, &TokenAcquisitionError{Authority: authority, Err: err}
	}
	at, err := tc.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{GraphScope}})
	if err != nil {
		return AccessToken{}, &TokenAcquisitionError{Authority: authority, Err: err}
	}

	r.logger.Debug("access token acquired", zap.Time("expiresOn", at.ExpiresOn))
	return AccessToken{Token: at.Token, ExpiresOn: at.ExpiresOn}, nil
}
