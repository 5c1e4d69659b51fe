package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Fixtures in testdata, built with openssl using 3DES key and certificate bags.
// chain.pfx holds the client certificate, its key and the issuing CA, with an
// empty passphrase. protected.pfx holds the same client certificate and key
// under testPFXPassphrase.
const (
	chainPFX          = "testdata/chain.pfx"
	protectedPFX      = "testdata/protected.pfx"
	testPFXPassphrase = "s3cret"

	fixtureLeafThumbprint = "66:87:66:8F:15:4C:14:23:5E:1D:01:F7:90:D2:4F:97:F0:54:AE:69"
	fixtureCAThumbprint   = "43:49:56:1A:E2:00:DF:17:6C:D3:43:5D:56:F3:A0:66:2E:B8:3B:5A"
)

// copyFixture copies a testdata file into dir under name.
func copyFixture(t *testing.T, fixture, dir, name string) {
	t.Helper()
	data, err := os.ReadFile(fixture)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o600))
}

// writeTestCertificate writes a self-signed certificate and its PKCS#8 key to
// dir/name as a single PEM file and returns the parsed certificate.
func writeTestCertificate(t *testing.T, dir, name, commonName string) *x509.Certificate {
	t.Helper()

	cert, certPEM, keyPEM := generateTestCertificate(t, commonName)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), append(certPEM, keyPEM...), 0o600))
	return cert
}

// generateTestCertificate returns a self-signed RSA certificate with its PEM
// encoding and the PEM encoding of its PKCS#8 key.
func generateTestCertificate(t *testing.T, commonName string) (*x509.Certificate, []byte, []byte) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	serial, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: commonName},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)

	return cert,
		pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
		pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})
}

type fakeTokenCredential struct {
	token   string
	err     error
	options []policy.TokenRequestOptions
}

func (f *fakeTokenCredential) GetToken(_ context.Context, opts policy.TokenRequestOptions) (azcore.AccessToken, error) {
	f.options = append(f.options, opts)
	if f.err != nil {
		return azcore.AccessToken{}, f.err
	}
	return azcore.AccessToken{Token: f.token, ExpiresOn: time.Now().Add(time.Hour)}, nil
}

// recordingFactory returns a CredentialFactory that hands out cred and keeps
// every request it was asked to build.
func recordingFactory(cred azcore.TokenCredential, requests *[]CredentialRequest) CredentialFactory {
	return func(req CredentialRequest) (azcore.TokenCredential, error) {
		*requests = append(*requests, req)
		return cred, nil
	}
}

// tokenServer is a Microsoft Entra ID stand-in serving the OpenID
// configuration and the token endpoint of every tenant. With an empty access
// token every token request is refused as invalid_client.
type tokenServer struct {
	*httptest.Server

	mu    sync.Mutex
	paths []string
	forms []url.Values
}

func newTokenServer(t *testing.T, accessToken string) *tokenServer {
	t.Helper()
	ts := &tokenServer{}
	ts.Server = httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		tenant := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/"), "/", 2)[0]
		base := ts.URL + "/" + tenant
		switch {
		case strings.HasSuffix(r.URL.Path, "/v2.0/.well-known/openid-configuration"):
			json.NewEncoder(w).Encode(map[string]string{
				"issuer":                 base + "/v2.0",
				"authorization_endpoint": base + "/oauth2/v2.0/authorize",
				"token_endpoint":         base + "/oauth2/v2.0/token",
			})
		case strings.HasSuffix(r.URL.Path, "/oauth2/v2.0/token"):
			assert.NoError(t, r.ParseForm())
			ts.mu.Lock()
			ts.paths = append(ts.paths, r.URL.Path)
			ts.forms = append(ts.forms, r.PostForm)
			ts.mu.Unlock()
			if accessToken == "" {
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{
					"error":             "invalid_client",
					"error_description": "AADSTS7000215: Invalid client secret provided.",
				})
				return
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"token_type":   "Bearer",
				"expires_in":   3600,
				"access_token": accessToken,
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

// resolverOptions point a Resolver at the token server.
func (ts *tokenServer) resolverOptions() []Option {
	return []Option{
		WithAuthorityHost(ts.URL),
		WithClientOptions(azcore.ClientOptions{Transport: ts.Client()}),
		WithoutInstanceDiscovery(),
	}
}

func (ts *tokenServer) tokenRequests() ([]string, []url.Values) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.paths, ts.forms
}
