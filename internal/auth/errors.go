package auth

import (
	"fmt"
	"strings"
)

// ConfigurationError reports settings that do not satisfy the selected mode.
type ConfigurationError struct {
	Mode    Mode
	Missing []string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("configuration for %s: missing %s", e.Mode, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("configuration for %s: %s", e.Mode, e.Reason)
}

// CertificateLoadError is returned when a certificate file cannot be read or decoded.
type CertificateLoadError struct {
	Path string
	Err  error
}

func (e *CertificateLoadError) Error() string {
	return fmt.Sprintf("failed to load certificate %s: %v", e.Path, e.Err)
}

func (e *CertificateLoadError) Unwrap() error { return e.Err }

// CertificateNotFoundError is returned when no store entry matches a thumbprint.
// Err is set when the store itself could not be opened.
type CertificateNotFoundError struct {
	Thumbprint string
	Location   string
	Err        error
}

func (e *CertificateNotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("certificate %s not found in %s: %v", e.Thumbprint, e.Location, e.Err)
	}
	return fmt.Sprintf("certificate %s not found in %s", e.Thumbprint, e.Location)
}

func (e *CertificateNotFoundError) Unwrap() error { return e.Err }

// TokenAcquisitionError wraps any failure of the client-credential exchange.
type TokenAcquisitionError struct {
	Authority string
	Err       error
}

func (e *TokenAcquisitionError) Error() string {
	return fmt.Sprintf("failed to acquire token from %s: %v", e.Authority, e.Err)
}

func (e *TokenAcquisitionError) Unwrap() error { return e.Err }
