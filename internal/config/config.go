package config

import (
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Setting keys, named as in the application settings file.
const (
	KeyTenantID              = "tenantId"
	KeyClientID              = "clientId"
	KeyClientSecret          = "clientSecret"
	KeyCertificatePath       = "certificatePath"
	KeyCertificatePass       = "certificatePass"
	KeyCertificateThumbprint = "certificateThumbprint"
	KeyCertificateStore      = "certificateStore"
	KeyAuthMode              = "authMode"
	KeySenderEmail           = "senderEmail"
)

// envNames maps each setting key to the environment variable overriding it.
var envNames = map[string]string{
	KeyTenantID:              "TENANT_ID",
	KeyClientID:              "CLIENT_ID",
	KeyClientSecret:          "CLIENT_SECRET",
	KeyCertificatePath:       "CERTIFICATE_PATH",
	KeyCertificatePass:       "CERTIFICATE_PASS",
	KeyCertificateThumbprint: "CERTIFICATE_THUMBPRINT",
	KeyCertificateStore:      "CERTIFICATE_STORE",
	KeyAuthMode:              "AUTH_MODE",
	KeySenderEmail:           "SENDER_EMAIL",
}

// Settings is the flat key/value view of the application settings.
type Settings map[string]string

// Get returns the value for key, or "" when unset.
func (s Settings) Get(key string) string {
	return s[key]
}

// GetOr returns the value for key, or def when unset or empty.
func (s Settings) GetOr(key, def string) string {
	if v := strings.TrimSpace(s[key]); v != "" {
		return v
	}
	return def
}

// Load reads the given settings files in order, later files winning, and then
// applies environment variables on top. Files that do not exist are skipped,
// so the environment alone can carry every setting. A non-empty variable
// overrides the file; an empty one only defines a key no file set.
func Load(files ...string) (Settings, error) {
	settings := Settings{}
	for _, file := range files {
		values, err := godotenv.Read(file)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read settings file %s", file)
		}
		for k, v := range values {
			settings[k] = v
		}
	}

	for key, env := range envNames {
		v, ok := os.LookupEnv(env)
		if !ok {
			continue
		}
		if _, set := settings[key]; v != "" || !set {
			settings[key] = v
		}
	}
	return settings, nil
}

// Runtime holds process-level settings that are not part of a send request.
type Runtime struct {
	LogLevel  string
	LogFormat string
	NatsURL   string
	DDEnv     string
}

// LoadRuntime reads the runtime settings from the environment.
func LoadRuntime() Runtime {
	rt := Runtime{
		LogLevel:  os.Getenv("LOG_LEVEL"),
		LogFormat: os.Getenv("LOG_FORMAT"),
		NatsURL:   os.Getenv("NATS_URL"),
		DDEnv:     os.Getenv("DD_ENV"),
	}
	if rt.LogLevel == "" {
		rt.LogLevel = "info"
	}
	if rt.LogFormat == "" {
		rt.LogFormat = "console"
	}
	return rt
}
