package auth

import (
	"strings"

	"github.com/pkg/errors"
)

// Mode selects how the application proves its identity to the identity provider.
type Mode int

const (
	ModeClientSecret Mode = iota
	ModeCertificateFile
	ModeCertificateThumbprint
)

func (m Mode) String() string {
	switch m {
	case ModeClientSecret:
		return "clientSecret"
	case ModeCertificateFile:
		return "certificatePath"
	case ModeCertificateThumbprint:
		return "certificateThumbprint"
	default:
		return "unknown"
	}
}

// ParseMode maps a mode name from the command line or a settings file to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "secret", "clientsecret":
		return ModeClientSecret, nil
	case "certificate", "certificatepath", "pfx":
		return ModeCertificateFile, nil
	case "thumbprint", "certificatethumbprint", "store":
		return ModeCertificateThumbprint, nil
	}
	return 0, errors.Errorf("unknown authentication mode %q", s)
}
