package auth

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// DefaultStorePath is the machine-wide personal certificate store.
const DefaultStorePath = "/etc/graph-mailer/certs/my"

// CertificateStore finds a client certificate by thumbprint.
type CertificateStore interface {
	Find(thumbprint string) (*Certificate, error)
}

// DirStore is a certificate store backed by a directory. Each entry is either
// a PEM file holding a certificate and its unencrypted key (.pem, .crt, .cer)
// or an unprotected PKCS#12 bundle (.pfx, .p12), with or without its issuing
// chain. Entries that cannot be decoded or carry no private key are skipped.
type DirStore struct {
	Path string
}

// Find opens the store read-only, returns the first entry whose thumbprint
// matches, and closes the store again. Entries are visited in lexical
// file-name order, so that order breaks ties between duplicates.
func (s DirStore) Find(thumbprint string) (*Certificate, error) {
	want := NormalizeThumbprint(thumbprint)

	dir, err := os.Open(s.Path)
	if err != nil {
		return nil, &CertificateNotFoundError{Thumbprint: thumbprint, Location: s.Path, Err: err}
	}
	defer dir.Close()

	names, err := dir.Readdirnames(-1)
	if err != nil {
		return nil, &CertificateNotFoundError{Thumbprint: thumbprint, Location: s.Path, Err: err}
	}
	sort.Strings(names)

	for _, name := range names {
		cert, err := readStoreEntry(filepath.Join(s.Path, name))
		if err != nil || cert == nil {
			continue
		}
		if cert.Thumbprint() == want {
			return cert, nil
		}
	}
	return nil, &CertificateNotFoundError{Thumbprint: thumbprint, Location: s.Path}
}

func readStoreEntry(path string) (*Certificate, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".pem", ".crt", ".cer", ".pfx", ".p12":
	default:
		return nil, nil
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cert, err := parseCertificate(data, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	return cert, nil
}
