package db

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"userStore/internal/config"
)

// Property keys read verbatim from the properties resource.
const (
	KeyDriver   = "postgres.driver"
	KeyURL      = "postgres.url"
	KeyName     = "postgres.name"
	KeyPassword = "postgres.password"
)

// ErrUnavailable is returned by a Provider whose configuration could not be loaded.
var ErrUnavailable = errors.New("datasource unavailable")

var validate = validator.New()

// PropertiesSource yields the properties a Provider builds its Descriptor from.
type PropertiesSource func() (*config.Properties, error)

// FileSource reads root/name strictly: a missing or unreadable resource is an error.
func FileSource(root, name string) PropertiesSource {
	return func() (*config.Properties, error) {
		return config.ReadProperties(root, name)
	}
}

// LenientFileSource never fails; an unreadable resource yields empty properties,
// which later fail Descriptor validation on Connect.
func LenientFileSource(root, name string, logger zerolog.Logger) PropertiesSource {
	return func() (*config.Properties, error) {
		return config.LoadProperties(root, name, logger), nil
	}
}

// StaticSource serves a fixed set of properties.
func StaticSource(p *config.Properties) PropertiesSource {
	return func() (*config.Properties, error) { return p, nil }
}

// Descriptor holds what is needed to open a connection. It is immutable.
type Descriptor struct {
	driver   string
	url      string
	name     string
	password string
}

// NewDescriptor builds a descriptor from raw property values.
func NewDescriptor(driver, url, name, password string) *Descriptor {
	return &Descriptor{
		driver:   strings.TrimSpace(driver),
		url:      strings.TrimSpace(url),
		name:     name,
		password: password,
	}
}

func (d *Descriptor) Driver() string   { return d.driver }
func (d *Descriptor) URL() string      { return d.url }
func (d *Descriptor) Name() string     { return d.name }
func (d *Descriptor) Password() string { return d.password }

// Validate checks that the descriptor names a driver and a URL.
func (d *Descriptor) Validate() error {
	return validate.Struct(struct {
		Driver string `validate:"required"`
		URL    string `validate:"required"`
	}{d.driver, d.url})
}

// String returns a representation with the password masked.
func (d *Descriptor) String() string {
	return fmt.Sprintf("Descriptor{Driver: %s, URL: %s, Name: %s, Password: ***}", d.driver, d.url, d.name)
}

// DSN builds the data source name handed to the driver for the given credentials.
// PostgreSQL URLs get the credentials embedded; SQLite ignores them.
func (d *Descriptor) DSN(user, password string) (Dialect, string, error) {
	if err := d.Validate(); err != nil {
		return Dialect{}, "", fmt.Errorf("invalid descriptor: %w", err)
	}
	dialect, err := DialectFor(d.driver)
	if err != nil {
		return Dialect{}, "", err
	}
	raw := normalizeURL(dialect, d.url)
	if !dialect.IsPostgres() || user == "" {
		return dialect, raw, nil
	}

	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		// keyword/value connection string
		return dialect, fmt.Sprintf("%s user=%s password=%s", raw, quoteKV(user), quoteKV(password)), nil
	}
	u.User = url.UserPassword(user, password)
	return dialect, u.String(), nil
}

func (d *Descriptor) connect(ctx context.Context, user, password string) (*Conn, error) {
	dialect, dsn, err := d.DSN(user, password)
	if err != nil {
		return nil, err
	}
	return Open(ctx, dialect.Name, dsn)
}

func quoteKV(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return "'" + strings.ReplaceAll(s, `'`, `\'`) + "'"
}

// Provider lazily builds exactly one Descriptor from its PropertiesSource and
// opens connections with it. The source is consulted at most once; if it fails
// the provider stays unavailable for its whole lifetime.
type Provider struct {
	source PropertiesSource
	logger zerolog.Logger

	once sync.Once
	desc *Descriptor
	err  error
}

// NewProvider returns a provider that reads source on first use.
func NewProvider(source PropertiesSource, logger zerolog.Logger) *Provider {
	return &Provider{source: source, logger: logger}
}

// Descriptor returns the shared descriptor, building it on the first call.
// Concurrent first callers block until construction finishes and all observe the same value.
func (p *Provider) Descriptor() (*Descriptor, error) {
	p.once.Do(p.init)
	return p.desc, p.err
}

func (p *Provider) init() {
	if p.source == nil {
		p.err = fmt.Errorf("%w: no properties source", ErrUnavailable)
		return
	}
	props, err := p.source()
	if err != nil {
		p.logger.Warn().Err(err).Msg("failed to create datasource")
		p.err = fmt.Errorf("%w: %v", ErrUnavailable, err)
		return
	}
	p.desc = NewDescriptor(
		props.Get(KeyDriver),
		props.Get(KeyURL),
		props.Get(KeyName),
		props.Get(KeyPassword),
	)
	p.logger.Debug().Stringer("descriptor", p.desc).Msg("datasource initialized")
}

// Connect opens a new connection with the configured name and password.
// Nothing is cached here; every call dials again.
func (p *Provider) Connect(ctx context.Context) (*Conn, error) {
	d, err := p.Descriptor()
	if err != nil {
		return nil, err
	}
	return d.connect(ctx, d.name, d.password)
}

// ConnectAs opens a new connection with explicit credentials.
func (p *Provider) ConnectAs(ctx context.Context, user, password string) (*Conn, error) {
	d, err := p.Descriptor()
	if err != nil {
		return nil, err
	}
	return d.connect(ctx, user, password)
}

// LogWriter always returns nil; the provider has no log writer.
func (p *Provider) LogWriter() io.Writer { return nil }

// SetLogWriter is not supported.
func (p *Provider) SetLogWriter(io.Writer) error {
	return fmt.Errorf("set log writer: %w", errors.ErrUnsupported)
}

// LoginTimeout always returns zero.
func (p *Provider) LoginTimeout() time.Duration { return 0 }

// SetLoginTimeout is not supported.
func (p *Provider) SetLoginTimeout(time.Duration) error {
	return fmt.Errorf("set login timeout: %w", errors.ErrUnsupported)
}
