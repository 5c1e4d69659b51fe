package auth

import (
	"strings"

	"graph-mailer/internal/config"
)

// Credential is one of ClientSecret, CertificateFile or CertificateThumbprint.
type Credential interface {
	Mode() Mode
	identity() Identity
	missing() []string
}

// Identity names the tenant and the application registration.
type Identity struct {
	TenantID string
	ClientID string
}

func (i Identity) identity() Identity { return i }

func (i Identity) missing() []string {
	var keys []string
	if strings.TrimSpace(i.TenantID) == "" {
		keys = append(keys, config.KeyTenantID)
	}
	if strings.TrimSpace(i.ClientID) == "" {
		keys = append(keys, config.KeyClientID)
	}
	return keys
}

type ClientSecret struct {
	Identity
	Secret string
}

func (ClientSecret) Mode() Mode { return ModeClientSecret }

func (c ClientSecret) missing() []string {
	keys := c.Identity.missing()
	if c.Secret == "" {
		keys = append(keys, config.KeyClientSecret)
	}
	return keys
}

// CertificateFile authenticates with a PKCS#12 or PEM file. An empty
// Passphrase is valid for unprotected files.
type CertificateFile struct {
	Identity
	Path       string
	Passphrase string
}

func (CertificateFile) Mode() Mode { return ModeCertificateFile }

func (c CertificateFile) missing() []string {
	keys := c.Identity.missing()
	if strings.TrimSpace(c.Path) == "" {
		keys = append(keys, config.KeyCertificatePath)
	}
	return keys
}

// CertificateThumbprint authenticates with a certificate looked up in a store.
type CertificateThumbprint struct {
	Identity
	Thumbprint string
}

func (CertificateThumbprint) Mode() Mode { return ModeCertificateThumbprint }

func (c CertificateThumbprint) missing() []string {
	keys := c.Identity.missing()
	if NormalizeThumbprint(c.Thumbprint) == "" {
		keys = append(keys, config.KeyCertificateThumbprint)
	}
	return keys
}

// FromSettings picks the fields required by mode out of settings. Keys that
// belong to other modes are ignored. The certificate passphrase key must be
// present for ModeCertificateFile, but its value may be empty.
func FromSettings(mode Mode, settings map[string]string) (Credential, error) {
	id := Identity{
		TenantID: settings[config.KeyTenantID],
		ClientID: settings[config.KeyClientID],
	}

	var cred Credential
	var extra []string
	switch mode {
	case ModeClientSecret:
		cred = ClientSecret{Identity: id, Secret: settings[config.KeyClientSecret]}
	case ModeCertificateFile:
		pass, ok := settings[config.KeyCertificatePass]
		if !ok {
			extra = append(extra, config.KeyCertificatePass)
		}
		cred = CertificateFile{Identity: id, Path: settings[config.KeyCertificatePath], Passphrase: pass}
	case ModeCertificateThumbprint:
		cred = CertificateThumbprint{Identity: id, Thumbprint: settings[config.KeyCertificateThumbprint]}
	default:
		return nil, &ConfigurationError{Mode: mode, Reason: "unknown authentication mode"}
	}

	if missing := append(cred.missing(), extra...); len(missing) > 0 {
		return nil, &ConfigurationError{Mode: mode, Missing: missing}
	}
	return cred, nil
}
