// internal/vault/vault.go
//
// Vault client wrapper for config secret references.
//
// Context
// -------
//   - Wraps the HashiCorp Vault Go SDK behind a small, concurrency-safe type.
//   - Resolves `<mount/path>#<key>` references found in the configuration
//     tree (database DSN, webhook secrets, Mailgun key) from KV-v2 secrets.
//   - Keeps a per-reference cache and renews its token in the background.
//
// Public workflow
// ---------------
//  1. cli, err := vault.New(ctx, log.Infof)            // during boot.
//  2. cfg, err := config.Load(ctx, cli)                // resolves refs.
//
// The client is only built when VAULT_ADDR is set.
package vault

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	vault "github.com/hashicorp/vault/api"
)

// DefaultTTL is how long a resolved reference is cached.
const DefaultTTL = 10 * time.Minute

// ErrBadRef is returned for references without a `#key` suffix.
var ErrBadRef = errors.New("vault: reference must look like mount/path#key")

// KV reads one KV-v2 secret.  The SDK client satisfies it through kvAdapter;
// tests inject a map-backed fake.
type KV interface {
	Get(ctx context.Context, mount, path string) (map[string]any, error)
}

// Client is safe for concurrent use.  Zero value is invalid.
type Client struct {
	api   *vault.Client
	kv    KV
	logFn func(string, ...any)
	now   func() time.Time

	cacheMu sync.RWMutex
	cache   map[string]cached
}

type cached struct {
	val string
	exp time.Time
}

// Configured reports whether the environment points at a Vault server.
func Configured() bool { return os.Getenv("VAULT_ADDR") != "" }

// New constructs a Vault client from VAULT_ADDR / VAULT_TOKEN and starts a
// background token-renewal loop bound to ctx.
func New(ctx context.Context, logFn func(string, ...any)) (*Client, error) {
	cfg := vault.DefaultConfig()
	if err := cfg.ReadEnvironment(); err != nil {
		return nil, fmt.Errorf("vault env cfg: %w", err)
	}

	apiCli, err := vault.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vault api: %w", err)
	}
	if tok := os.Getenv("VAULT_TOKEN"); tok != "" {
		apiCli.SetToken(tok)
	}

	c := NewWithKV(kvAdapter{api: apiCli}, logFn)
	c.api = apiCli
	go c.renewLoop(ctx)
	return c, nil
}

// NewWithKV builds a client around an arbitrary KV reader without token
// renewal.
func NewWithKV(kv KV, logFn func(string, ...any)) *Client {
	if logFn == nil {
		logFn = func(string, ...any) {}
	}
	return &Client{
		kv:    kv,
		logFn: logFn,
		now:   time.Now,
		cache: make(map[string]cached),
	}
}

// Resolve implements config.SecretResolver for `mount/path#key` refs.
func (c *Client) Resolve(ctx context.Context, ref string) (string, error) {
	path, key, ok := strings.Cut(ref, "#")
	if !ok || path == "" || key == "" {
		return "", fmt.Errorf("%w: %q", ErrBadRef, ref)
	}
	return c.GetKV(ctx, path, key, DefaultTTL)
}

// GetKV fetches a single key from a KV-v2 secret.  If ttl > 0 the result is
// cached for that duration.
func (c *Client) GetKV(ctx context.Context, secretPath, key string, ttl time.Duration) (string, error) {
	canonical := secretPath + "#" + key

	if ttl > 0 {
		c.cacheMu.RLock()
		cv, ok := c.cache[canonical]
		c.cacheMu.RUnlock()
		if ok && c.now().Before(cv.exp) {
			return cv.val, nil
		}
	}

	mount, rel := splitMount(secretPath)
	data, err := c.kv.Get(ctx, mount, rel)
	if err != nil {
		return "", fmt.Errorf("vault get %s: %w", secretPath, err)
	}

	raw, ok := data[key]
	if !ok {
		return "", fmt.Errorf("key %q not found in secret %q", key, secretPath)
	}
	sval, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("value at %s is not a string", canonical)
	}

	if ttl > 0 {
		c.cacheMu.Lock()
		c.cache[canonical] = cached{val: sval, exp: c.now().Add(ttl)}
		c.cacheMu.Unlock()
	}
	c.logFn("vault: resolved %s", canonical)
	return sval, nil
}

type kvAdapter struct{ api *vault.Client }

func (a kvAdapter) Get(ctx context.Context, mount, path string) (map[string]any, error) {
	sec, err := a.api.KVv2(mount).Get(ctx, path)
	if err != nil {
		return nil, err
	}
	if sec == nil {
		return nil, errors.New("secret not found")
	}
	return sec.Data, nil
}

//
// Background token renewal
//

func (c *Client) renewLoop(ctx context.Context) {
	for ctx.Err() == nil {
		sec, err := c.api.Auth().Token().RenewSelfWithContext(ctx, 0)
		if err != nil {
			c.logFn("vault: token renew self failed: %v", err)
			backoff(ctx, 30*time.Second)
			continue
		}
		if sec == nil || sec.Auth == nil || !sec.Auth.Renewable {
			c.logFn("vault: token is not renewable, sleeping 1h")
			backoff(ctx, time.Hour)
			continue
		}

		watcher, err := c.api.NewLifetimeWatcher(&vault.LifetimeWatcherInput{Secret: sec})
		if err != nil {
			c.logFn("vault: watcher init error: %v", err)
			backoff(ctx, 30*time.Second)
			continue
		}
		go watcher.Start()
		c.watch(ctx, watcher)
		backoff(ctx, 15*time.Second)
	}
}

func (c *Client) watch(ctx context.Context, w *vault.LifetimeWatcher) {
	defer w.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-w.DoneCh():
			if err != nil {
				c.logFn("vault: token renewal stopped: %v", err)
			}
			return
		case ev := <-w.RenewCh():
			if ev != nil && ev.Secret != nil && ev.Secret.Auth != nil {
				c.logFn("vault: token renewed, ttl=%ds", ev.Secret.Auth.LeaseDuration)
			}
		}
	}
}

//
// Helpers
//

func splitMount(p string) (mount, rel string) {
	mount, rel, _ = strings.Cut(p, "/")
	return mount, rel
}

func backoff(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
