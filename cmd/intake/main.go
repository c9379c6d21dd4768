// cmd/intake/main.go
//
// Adept Intake – HTTP entry point.
//
// Start-up sequence
// -----------------
//
//  1. Bootstrap console logger so early failures are visible.
//
//  2. Connect to Vault when VAULT_ADDR is set, then load config
//     (.env → conf/global.yaml → INTAKE_* env, vault: refs resolved).
//
//  3. Start the daily rotating logger (tees to console in a TTY).
//
//  4. Open the store selected by database.driver (mysql, pgx, memory).
//
//  5. Build limiters, notifier, webhook verifier, and the chi router.
//
//  6. Run the HTTP server and the limiter evictors under one errgroup.
//     SIGINT/SIGTERM cancels the group and drains the server within
//     http.shutdown_timeout.
//
// Large comment blocks are framed by blank “//” lines; inline comments use
// a single “//”.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yanizio/adept-intake/internal/config"
	"github.com/yanizio/adept-intake/internal/database"
	"github.com/yanizio/adept-intake/internal/intake"
	"github.com/yanizio/adept-intake/internal/logger"
	"github.com/yanizio/adept-intake/internal/message"
	"github.com/yanizio/adept-intake/internal/ratelimit"
	"github.com/yanizio/adept-intake/internal/requestinfo"
	"github.com/yanizio/adept-intake/internal/server"
	"github.com/yanizio/adept-intake/internal/store"
	"github.com/yanizio/adept-intake/internal/submission"
	"github.com/yanizio/adept-intake/internal/vault"
)

// runningInTTY returns true when stdout is a character device.
func runningInTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func main() {
	boot := logger.Bootstrap()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, boot); err != nil {
		boot.Errorw("intake exited", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, boot *zap.SugaredLogger) error {
	//
	// ── 1.  Config (Vault optional) ─────────────────────────────────────
	//
	var sec config.SecretResolver
	if vault.Configured() {
		vc, err := vault.New(ctx, boot.Infof)
		if err != nil {
			return err
		}
		sec = vc
	}

	cfg, err := config.Load(ctx, sec)
	if err != nil {
		return err
	}

	//
	// ── 2.  Logger ──────────────────────────────────────────────────────
	//
	log, err := logger.New(cfg.Paths.Root, runningInTTY(), cfg.Log.Level)
	if err != nil {
		return err
	}
	defer log.Sync()

	//
	// ── 3.  Store ───────────────────────────────────────────────────────
	//
	st, err := openStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer st.Close()
	log.Infow("store online", "driver", cfg.Database.Driver)

	//
	// ── 4.  Pipeline pieces ─────────────────────────────────────────────
	//
	rl := cfg.RateLimit
	contactLimiter := ratelimit.New("contact", rl.Contact.Window, rl.Contact.Max, ratelimit.WithMaxKeys(rl.Contact.MaxKeys))
	bookingLimiter := ratelimit.New("booking", rl.Booking.Window, rl.Booking.Max, ratelimit.WithMaxKeys(rl.Booking.MaxKeys))

	notifier := message.NewNotifier(message.SenderFor(cfg.Mail, log), cfg.Mail.To, log)
	defer notifier.Wait()

	enricher, err := requestinfo.New(cfg.GeoIP.Path, log)
	if err != nil {
		return err
	}
	defer enricher.Close()

	router := server.NewRouter(cfg.HTTP, server.Routes{
		Contact:  intake.NewContactHandler(contactLimiter, st, notifier, cfg.HTTP.MaxBodyBytes),
		Booking:  intake.NewBookingHandler(bookingLimiter, st, notifier, intake.NewVerifier(cfg.Webhook), cfg.HTTP.MaxBodyBytes),
		Enricher: enricher,
		Ready:    st,
	})
	srv := server.New(cfg.HTTP, router)

	//
	// ── 5.  Run until signalled ─────────────────────────────────────────
	//
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Infow("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		log.Infow("shutting down", "timeout", cfg.HTTP.ShutdownTimeout)
		return srv.Shutdown(shutCtx)
	})
	for _, l := range []*ratelimit.Limiter{contactLimiter, bookingLimiter} {
		l := l
		g.Go(func() error { return l.Run(gctx, rl.EvictInterval, log) })
	}

	return g.Wait()
}

// openStore returns the Store selected by database.driver.
func openStore(ctx context.Context, cfg config.Database) (store.Store, error) {
	if cfg.Driver == "memory" {
		return store.NewMemory(store.WithUnique(submission.TableBookings, submission.ConflictExternalEventID)), nil
	}
	db, err := database.OpenWithOptions(ctx, cfg.Driver, cfg.DSN, cfg.MaxOpen, cfg.MaxIdle)
	if err != nil {
		return nil, err
	}
	s, err := store.NewSQL(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}
