// internal/config/model.go
//
// Typed configuration model for the intake service.
//
// Context
// -------
// These structs define the shape of the configuration tree that
// `internal/config/loader.go` builds from three overlay layers:
//
//   • optional `.env`                          – dotenv values,
//   • `conf/global.yaml`                       – primary static file,
//   • `INTAKE_`-prefixed environment overrides – highest precedence.
//
// Any value whose string begins with the prefix `vault:` is resolved
// through the secret resolver *before* unmarshalling, so the model never
// stores Vault references, only plain strings.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`, not `yaml:"…"`.
//   • The `Paths` block is filled at runtime; YAML must not try to set it.
//   • Durations accept Go syntax (`15m`, `90s`).

package config

import "time"

//
// HTTP section
//

// HTTP holds web-server tunables.
type HTTP struct {
	ListenAddr      string        `koanf:"listen_addr"      validate:"required,hostname_port"`
	ForceHTTPS      bool          `koanf:"force_https"`
	MaxBodyBytes    int64         `koanf:"max_body_bytes"   validate:"gte=0"`
	ReadTimeout     time.Duration `koanf:"read_timeout"     validate:"gte=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout"    validate:"gte=0"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"     validate:"gte=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gte=0"`
}

//
// Database section
//

// Database selects the persistence backend.  Driver `memory` keeps rows in
// process and needs no DSN; it exists for local runs and demos.
type Database struct {
	Driver  string `koanf:"driver"   validate:"required,oneof=mysql pgx memory"`
	DSN     string `koanf:"dsn"      validate:"required_unless=Driver memory"`
	MaxOpen int    `koanf:"max_open" validate:"gte=0"`
	MaxIdle int    `koanf:"max_idle" validate:"gte=0"`
}

//
// Rate-limit section
//

// Limit is one fixed-window budget.
type Limit struct {
	Window  time.Duration `koanf:"window"   validate:"gt=0"`
	Max     int           `koanf:"max"      validate:"gt=0"`
	MaxKeys int           `koanf:"max_keys" validate:"gte=0"`
}

// RateLimit holds one budget per intake endpoint.
type RateLimit struct {
	Contact       Limit         `koanf:"contact"`
	Booking       Limit         `koanf:"booking"`
	EvictInterval time.Duration `koanf:"evict_interval" validate:"gt=0"`
}

//
// Webhook section
//

// Webhook holds provider signing secrets.  An empty secret disables
// verification for that provider.
type Webhook struct {
	CalcomSecret   string        `koanf:"calcom_secret"`
	CalendlySecret string        `koanf:"calendly_secret"`
	Tolerance      time.Duration `koanf:"tolerance" validate:"gte=0"`
}

//
// Mail section
//

// Mail configures lead notifications.  Without a domain and key the
// notifier only logs.
type Mail struct {
	Domain   string   `koanf:"domain"`
	APIKey   string   `koanf:"api_key"`
	From     string   `koanf:"from"      validate:"omitempty,email"`
	FromName string   `koanf:"from_name"`
	To       []string `koanf:"to"        validate:"dive,email"`
}

// Enabled reports whether Mailgun delivery is configured.
func (m Mail) Enabled() bool {
	return m.Domain != "" && m.APIKey != "" && m.From != "" && len(m.To) > 0
}

// GeoIP points at an optional GeoLite2-City database.
type GeoIP struct {
	Path string `koanf:"path"`
}

// Log holds logger tunables.
type Log struct {
	Level string `koanf:"level" validate:"omitempty,oneof=debug info warn error"`
}

//
// Paths section (runtime only)
//

// Paths is resolved at runtime, never set in YAML or env.
type Paths struct {
	Root string // INTAKE_ROOT or discovered parent
}

//
// Root aggregate
//

// Config is the immutable aggregate returned by Load() and cached in an
// atomic.Pointer for lock-free reads throughout the app lifetime.
type Config struct {
	HTTP      HTTP      `koanf:"http"`
	Database  Database  `koanf:"database"`
	RateLimit RateLimit `koanf:"ratelimit"`
	Webhook   Webhook   `koanf:"webhook"`
	Mail      Mail      `koanf:"mail"`
	GeoIP     GeoIP     `koanf:"geoip"`
	Log       Log       `koanf:"log"`
	Paths     Paths     `koanf:"-"`
}
