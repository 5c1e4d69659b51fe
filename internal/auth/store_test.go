package auth

import (
	"crypto/x509"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeThumbprint(t *testing.T) {
	assert.Equal(t, "ABCDEF0123", NormalizeThumbprint("ab:cd:ef:01:23"))
	assert.Equal(t, "ABCDEF0123", NormalizeThumbprint("\u200eab cd ef 01 23 "))
	assert.Equal(t, "", NormalizeThumbprint("  "))
}

func TestDirStoreFindNormalizesThumbprint(t *testing.T) {
	dir := t.TempDir()
	writeTestCertificate(t, dir, "a.pem", "a")
	leaf := writeTestCertificate(t, dir, "b.crt", "b")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.pem"), []byte("-----BEGIN nothing"), 0o600))

	var spaced []string
	tp := strings.ToLower(Thumbprint(leaf))
	for i := 0; i < len(tp); i += 2 {
		spaced = append(spaced, tp[i:i+2])
	}

	cert, err := DirStore{Path: dir}.Find(strings.Join(spaced, " "))
	require.NoError(t, err)
	assert.Equal(t, "b", cert.Leaf().Subject.CommonName)
}

func TestDirStoreFindFirstMatchWins(t *testing.T) {
	dir := t.TempDir()
	leaf, certPEM, keyPEM := generateTestCertificate(t, "dup")
	_, _, otherKeyPEM := generateTestCertificate(t, "other")

	// Same certificate twice, paired with different keys, so the returned
	// key tells which entry won.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.pem"), append(certPEM, keyPEM...), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.pem"), append(certPEM, otherKeyPEM...), 0o600))

	fromA, err := LoadCertificateFile(filepath.Join(dir, "a.pem"), "")
	require.NoError(t, err)

	cert, err := DirStore{Path: dir}.Find(Thumbprint(leaf))
	require.NoError(t, err)
	assert.Equal(t, fromA.Key, cert.Key)
}

func TestDirStoreFindMissingStore(t *testing.T) {
	_, err := DirStore{Path: filepath.Join(t.TempDir(), "absent")}.Find("ABCD")
	var nf *CertificateNotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Error(t, nf.Err)
}

func TestLoadCertificateFile(t *testing.T) {
	dir := t.TempDir()
	leaf := writeTestCertificate(t, dir, "app.pem", "graph-mailer")

	cert, err := LoadCertificateFile(filepath.Join(dir, "app.pem"), "")
	require.NoError(t, err)
	assert.Equal(t, Thumbprint(leaf), cert.Thumbprint())
	assert.Equal(t, "graph-mailer", cert.Leaf().Subject.CommonName)
}

func TestDirStoreFindPFXWithChain(t *testing.T) {
	dir := t.TempDir()
	copyFixture(t, chainPFX, dir, "app.pfx")
	writeTestCertificate(t, dir, "other.pem", "other")

	cert, err := DirStore{Path: dir}.Find(fixtureLeafThumbprint)
	require.NoError(t, err)
	require.Len(t, cert.Chain, 2)
	assert.Equal(t, "graph-mailer test app", cert.Leaf().Subject.CommonName)
	assert.Equal(t, "graph-mailer test CA", cert.Chain[1].Subject.CommonName)
	assert.NotNil(t, cert.Key)

	// The issuer is carried along but is not a client certificate itself.
	_, err = DirStore{Path: dir}.Find(fixtureCAThumbprint)
	var nf *CertificateNotFoundError
	assert.True(t, errors.As(err, &nf), "got %v", err)
}

func TestDirStoreAndFileAgreeOnPFXChain(t *testing.T) {
	dir := t.TempDir()
	copyFixture(t, chainPFX, dir, "app.p12")

	fromFile, err := LoadCertificateFile(filepath.Join(dir, "app.p12"), "")
	require.NoError(t, err)
	fromStore, err := DirStore{Path: dir}.Find(fromFile.Thumbprint())
	require.NoError(t, err)
	assert.Equal(t, fromFile.Chain, fromStore.Chain)
}

func TestLeafFirstReordersChain(t *testing.T) {
	cert, err := LoadCertificateFile(chainPFX, "")
	require.NoError(t, err)
	require.Len(t, cert.Chain, 2)

	reversed := []*x509.Certificate{cert.Chain[1], cert.Chain[0]}
	chain := leafFirst(reversed, cert.Key)
	assert.Equal(t, NormalizeThumbprint(fixtureLeafThumbprint), Thumbprint(chain[0]))
	assert.Equal(t, NormalizeThumbprint(fixtureCAThumbprint), Thumbprint(chain[1]))
}
