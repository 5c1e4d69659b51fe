package auth

import (
	"crypto"
	"crypto/sha1"
	"crypto/x509"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/pkg/errors"
	"golang.org/x/crypto/pkcs12"
)

// Certificate is a client certificate chain with its private key. The key
// only ever lives in process memory.
type Certificate struct {
	Chain []*x509.Certificate
	Key   crypto.PrivateKey
}

// Leaf returns the certificate that identifies the application.
func (c *Certificate) Leaf() *x509.Certificate {
	if c == nil || len(c.Chain) == 0 {
		return nil
	}
	return c.Chain[0]
}

// Thumbprint returns the upper-case hex SHA-1 of the leaf certificate.
func (c *Certificate) Thumbprint() string {
	leaf := c.Leaf()
	if leaf == nil {
		return ""
	}
	return Thumbprint(leaf)
}

// Thumbprint returns the upper-case hex SHA-1 of the DER encoding of cert.
func Thumbprint(cert *x509.Certificate) string {
	sum := sha1.Sum(cert.Raw)
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// NormalizeThumbprint drops everything that is not a hex digit (spaces,
// colons, invisible marks picked up when copying) and upper-cases the rest.
func NormalizeThumbprint(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r >= 'A' && r <= 'F':
			return r
		case r >= 'a' && r <= 'f':
			return r - 'a' + 'A'
		}
		return -1
	}, s)
}

// LoadCertificateFile reads a PKCS#12 or PEM file protected by passphrase.
// PKCS#12 files may carry the issuing chain next to the client certificate.
func LoadCertificateFile(path, passphrase string) (*Certificate, error) {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &CertificateLoadError{Path: path, Err: err}
	}

	var pass []byte
	if passphrase != "" {
		pass = []byte(passphrase)
	}
	cert, err := parseCertificate(data, pass)
	if err != nil {
		if errors.Is(err, pkcs12.ErrIncorrectPassword) {
			if passphrase == "" {
				err = errors.Wrap(err, "file is passphrase protected")
			} else {
				err = errors.Wrap(err, "wrong passphrase")
			}
		}
		return nil, &CertificateLoadError{Path: path, Err: err}
	}
	return cert, nil
}

// parseCertificate decodes PEM or PKCS#12 data and puts the certificate that
// belongs to the private key first in the chain.
func parseCertificate(data, pass []byte) (*Certificate, error) {
	certs, key, err := azidentity.ParseCertificates(data, pass)
	if err != nil {
		return nil, err
	}
	if len(certs) == 0 || key == nil {
		return nil, errors.New("no certificate with a private key found")
	}
	return &Certificate{Chain: leafFirst(certs, key), Key: key}, nil
}

func leafFirst(certs []*x509.Certificate, key crypto.PrivateKey) []*x509.Certificate {
	signer, ok := key.(crypto.Signer)
	if !ok {
		return certs
	}
	pub, ok := signer.Public().(interface{ Equal(crypto.PublicKey) bool })
	if !ok {
		return certs
	}
	for i, c := range certs {
		if !pub.Equal(c.PublicKey) {
			continue
		}
		if i == 0 {
			return certs
		}
		chain := append([]*x509.Certificate{c}, certs[:i]...)
		return append(chain, certs[i+1:]...)
	}
	return certs
}
