package authgate

import (
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/pressops/authgate/keys"
	"github.com/pressops/authgate/password"
	"github.com/pressops/authgate/provision"
	"github.com/pressops/authgate/session"
	"github.com/pressops/authgate/token"
)

// Builder assembles an Engine from long-lived collaborators. All clients are
// constructed once here and reused for the process lifetime; nothing is
// rebuilt per request.
type Builder struct {
	config      Config
	redis       redis.UniversalClient
	accounts    AccountProvider
	provisioner *provision.Client
	metrics     *Metrics
	logger      zerolog.Logger
	now         func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
		logger: zerolog.Nop(),
		now:    time.Now,
	}
}

// WithConfig replaces the configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the shared session-store client. The connection pool stays
// owned by the caller.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAccounts sets the member-persistence provider.
func (b *Builder) WithAccounts(provider AccountProvider) *Builder {
	b.accounts = provider
	return b
}

// WithProvisioner overrides the provisioning client built from
// Config.Provision. Mainly for tests.
func (b *Builder) WithProvisioner(client *provision.Client) *Builder {
	b.provisioner = client
	return b
}

// WithMetrics attaches Prometheus collectors.
func (b *Builder) WithMetrics(m *Metrics) *Builder {
	b.metrics = m
	return b
}

// WithLogger attaches a structured logger.
func (b *Builder) WithLogger(log zerolog.Logger) *Builder {
	b.logger = log
	return b
}

// WithNow overrides the engine clock, primarily for tests.
func (b *Builder) WithNow(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and returns a ready Engine. A Builder
// builds at most once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client is required")
	}
	if b.accounts == nil {
		return nil, errors.New("account provider is required")
	}
	if err := validateConfig(b.config); err != nil {
		return nil, err
	}

	codec, err := token.NewCodec(b.config.Token, token.WithNow(b.now))
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(b.config.Password)
	if err != nil {
		return nil, err
	}

	provisioner := b.provisioner
	if provisioner == nil && b.config.Provision.URL != "" {
		provisioner = provision.NewClient(
			b.config.Provision.URL,
			provision.WithTimeout(b.config.Provision.Timeout),
			provision.WithLogger(b.logger),
		)
	}

	b.built = true
	return &Engine{
		config:      b.config,
		codec:       codec,
		deriver:     keys.NewDeriver(b.config.Keys.Seed),
		store:       session.NewStore(b.redis),
		accounts:    b.accounts,
		hasher:      hasher,
		provisioner: provisioner,
		metrics:     b.metrics,
		log:         b.logger,
	}, nil
}
