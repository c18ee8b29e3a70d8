package authgate

import (
	"errors"
	"time"

	"github.com/pressops/authgate/password"
	"github.com/pressops/authgate/token"
)

// Config is the engine's full configuration surface. Start from
// DefaultConfig and override; Build validates the result.
type Config struct {
	Token     token.Config
	Headers   HeaderConfig
	Keys      KeyConfig
	Password  password.Config
	Provision ProvisionConfig
}

// HeaderConfig names the request/response header fields carrying each token
// kind. The names are configuration, not fixed strings.
type HeaderConfig struct {
	Access  string
	Refresh string
}

// KeyConfig holds the key-derivation parameters. Every process sharing one
// session store must use the same seed or derived keys will not line up.
type KeyConfig struct {
	Seed uint32
}

// ProvisionConfig locates the account-provisioning collaborator consulted
// during signup. An empty URL disables the side-call.
type ProvisionConfig struct {
	URL     string
	Timeout time.Duration
}

// DefaultConfig returns the baseline configuration. Signing secrets have no
// default and must always be supplied.
func DefaultConfig() Config {
	return Config{
		Token: token.Config{
			AccessTTL:  30 * time.Minute,
			RefreshTTL: 14 * 24 * time.Hour,
			Issuer:     "authgate",
		},
		Headers: HeaderConfig{
			Access:  "AccessToken",
			Refresh: "RefreshToken",
		},
		Keys: KeyConfig{
			Seed: 0x9747b28c,
		},
		Password: password.DefaultConfig(),
		Provision: ProvisionConfig{
			Timeout: 5 * time.Second,
		},
	}
}

func validateConfig(cfg Config) error {
	if cfg.Headers.Access == "" || cfg.Headers.Refresh == "" {
		return errors.New("both token header names are required")
	}
	if cfg.Headers.Access == cfg.Headers.Refresh {
		return errors.New("token header names must differ")
	}
	if cfg.Provision.URL != "" && cfg.Provision.Timeout <= 0 {
		return errors.New("provisioning timeout must be positive")
	}
	// Token and password sub-configs are validated by their own
	// constructors during Build.
	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.AccessSecret = append([]byte(nil), cfg.Token.AccessSecret...)
	out.Token.RefreshSecret = append([]byte(nil), cfg.Token.RefreshSecret...)
	return out
}
