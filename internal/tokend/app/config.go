package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/aussiebroadwan/tokend/internal/tokend/service"
	"github.com/aussiebroadwan/tokend/pkg/httpx"
	"github.com/aussiebroadwan/tokend/pkg/jwtx"
)

// EnvProduction disables development keys and plain HTTP.
const EnvProduction = "prod"

type Config struct {
	Issuer   string   `env:"AUTH_ISSUER"   envDefault:"tokend"`
	Audience []string `env:"AUTH_AUDIENCE" envSeparator:","`
	// PublicURL overrides the base URL advertised in the metadata document.
	PublicURL string `env:"AUTH_PUBLIC_URL"`

	TokenLifetimeSeconds int      `env:"AUTH_TOKEN_LIFETIME_SECONDS" envDefault:"90"`
	AllowedGrants        []string `env:"AUTH_ALLOWED_GRANTS"         envDefault:"password" envSeparator:","`
	AllowedScopes        []string `env:"AUTH_ALLOWED_SCOPES"         envSeparator:","`

	KeySource      string        `env:"AUTH_KEY_SOURCE"` // file, persistent, ephemeral
	SigningKeyFile string        `env:"AUTH_SIGNING_KEY_FILE"`
	Algorithm      string        `env:"AUTH_ALGORITHM"        envDefault:"EdDSA"`
	RSABits        int           `env:"AUTH_RSA_BITS"         envDefault:"4096"`
	KeyGracePeriod time.Duration `env:"AUTH_KEY_GRACE_PERIOD" envDefault:"720h"`
	MasterKeyPath  string        `env:"AUTH_MASTER_KEY_PATH"`
	MasterKey      string        `env:"AUTH_MASTER_KEY"`

	AllowDevelopmentKeys   bool `env:"AUTH_ALLOW_DEVELOPMENT_KEYS"   envDefault:"false"`
	AllowInsecureTransport bool `env:"AUTH_ALLOW_INSECURE_TRANSPORT" envDefault:"false"`

	// TrustedProxies are CIDR ranges or addresses whose X-Forwarded-Proto
	// and X-Forwarded-For headers are honoured.
	TrustedProxies []string `env:"AUTH_TRUSTED_PROXIES" envSeparator:","`
	TLSCertFile    string   `env:"AUTH_TLS_CERT_FILE"`
	TLSKeyFile     string   `env:"AUTH_TLS_KEY_FILE"`

	CredentialTimeout time.Duration `env:"AUTH_CREDENTIAL_TIMEOUT" envDefault:"3s"`
	DatabaseFile      string        `env:"AUTH_DATABASE_FILE"      envDefault:"tokend.db"`
	PepperFile        string        `env:"AUTH_PEPPER_FILE"        envDefault:"pepper"`

	Env                  string        `env:"ENV"                   envDefault:"dev"` // dev, staging, prod
	LogLevel             string        `env:"LOG_LEVEL"             envDefault:"info"`
	LogFormat            string        `env:"LOG_FORMAT"            envDefault:"json"`
	Port                 int           `env:"PORT"                  envDefault:"8080"`
	ShutdownGracePeriod  time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`
	HousekeepingInterval time.Duration `env:"HOUSEKEEPING_INTERVAL" envDefault:"1h"`

	TokenLimit      httpx.RateLimitConfig `envPrefix:"RATELIMIT_TOKEN_"`
	IntrospectLimit httpx.RateLimitConfig `envPrefix:"RATELIMIT_INTROSPECT_"`
	PublicLimit     httpx.RateLimitConfig `envPrefix:"RATELIMIT_PUBLIC_"`
}

// LoadConfig reads the configuration from the environment. Unset rate limit
// variables keep the httpx profile values.
func LoadConfig() (Config, error) {
	return loadConfig(env.Options{})
}

func loadConfig(opts env.Options) (Config, error) {
	cfg := Config{
		TokenLimit:      httpx.StrictLimit,
		IntrospectLimit: httpx.ModerateLimit,
		PublicLimit:     httpx.PublicLimit,
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// TokenLifetime is TokenLifetimeSeconds as a duration.
func (c Config) TokenLifetime() time.Duration {
	return time.Duration(c.TokenLifetimeSeconds) * time.Second
}

func (c Config) IsProduction() bool { return c.Env == EnvProduction }

// ServesTLS reports whether the listener terminates TLS itself.
func (c Config) ServesTLS() bool { return c.TLSCertFile != "" && c.TLSKeyFile != "" }

// Proxies parses TrustedProxies. Validate has already rejected bad entries.
func (c Config) Proxies() httpx.TrustedProxies {
	trusted, _ := httpx.ParseTrustedProxies(c.TrustedProxies)
	return trusted
}

// Validate rejects configurations the service must not start with. Every
// failure wraps service.ErrInvalidConfiguration.
func (c Config) Validate() error {
	var errs []error

	if c.Issuer == "" {
		errs = append(errs, errors.New("AUTH_ISSUER must not be empty"))
	}
	if err := service.ValidateLifetime(c.TokenLifetime()); err != nil {
		errs = append(errs, fmt.Errorf("AUTH_TOKEN_LIFETIME_SECONDS: %w", err))
	}
	for _, grant := range c.AllowedGrants {
		if grant != service.GrantTypePassword {
			errs = append(errs, fmt.Errorf("AUTH_ALLOWED_GRANTS: unsupported grant %q", grant))
		}
	}

	switch c.Algorithm {
	case jwtx.AlgorithmRS256, jwtx.AlgorithmES256, jwtx.AlgorithmEdDSA:
	default:
		errs = append(errs, fmt.Errorf("AUTH_ALGORITHM: unsupported algorithm %q", c.Algorithm))
	}

	switch c.KeySource {
	case "", jwtx.KeySourcePersistent, jwtx.KeySourceEphemeral:
	case jwtx.KeySourceFile:
		if c.SigningKeyFile == "" {
			errs = append(errs, errors.New("AUTH_SIGNING_KEY_FILE is required for the file key source"))
		}
	default:
		errs = append(errs, fmt.Errorf("AUTH_KEY_SOURCE: unknown source %q", c.KeySource))
	}
	if c.KeyGracePeriod < 0 {
		errs = append(errs, errors.New("AUTH_KEY_GRACE_PERIOD must not be negative"))
	}

	if c.IsProduction() {
		if c.AllowDevelopmentKeys {
			errs = append(errs, errors.New("AUTH_ALLOW_DEVELOPMENT_KEYS is not allowed in prod"))
		}
		if c.AllowInsecureTransport {
			errs = append(errs, errors.New("AUTH_ALLOW_INSECURE_TRANSPORT is not allowed in prod"))
		}
	}

	if _, err := httpx.ParseTrustedProxies(c.TrustedProxies); err != nil {
		errs = append(errs, fmt.Errorf("AUTH_TRUSTED_PROXIES: %w", err))
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		errs = append(errs, errors.New("AUTH_TLS_CERT_FILE and AUTH_TLS_KEY_FILE must be set together"))
	}

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT: %d out of range", c.Port))
	}
	limits := []struct {
		name  string
		limit httpx.RateLimitConfig
	}{
		{"TOKEN", c.TokenLimit},
		{"INTROSPECT", c.IntrospectLimit},
		{"PUBLIC", c.PublicLimit},
	}
	for _, l := range limits {
		if !l.limit.Enabled() {
			errs = append(errs, fmt.Errorf("RATELIMIT_%s_* must all be positive", l.name))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", service.ErrInvalidConfiguration, errors.Join(errs...))
}
