package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"authgate.io/internal/auth"
	"authgate.io/internal/config"
	"authgate.io/internal/httpapi"
	"authgate.io/internal/obs"
	"authgate.io/internal/store/pg"
)

var (
	version = "1.0.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	codec, err := auth.NewCodec(cfg.SigningSecret, auth.WithCodecIssuer(cfg.Issuer))
	if err != nil {
		log.Fatalf("codec: %v", err)
	}

	var (
		store       auth.Store
		revocations auth.RevocationStore
		probe       httpapi.ReadyProbe
		closeStore  func() error
	)
	if cfg.PostgresDSN != "" {
		pgStore, err := pg.Open(cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("open postgres: %v", err)
		}
		store = pgStore
		revocations = pg.NewRevocations(pgStore)
		probe = httpapi.ReadyProbe{DB: pgStore.DB()}
		closeStore = pgStore.Close
	} else {
		log.Printf("AUTHGATE_PG_DSN not set, running with in-memory state")
		store = auth.NewMemoryStore()
		revocations = auth.NewMemoryRevocations()
		closeStore = func() error { return nil }
	}

	tokens, err := auth.NewService(store, revocations, codec,
		auth.WithAccessTTL(cfg.AccessTTL),
		auth.WithRefreshTTL(cfg.RefreshTTL),
	)
	if err != nil {
		log.Fatalf("token service: %v", err)
	}
	rbac, err := auth.NewRBACService(store)
	if err != nil {
		log.Fatalf("rbac service: %v", err)
	}

	// Expired blacklist entries only waste space once their tokens can
	// no longer verify; sweep them on a slow cadence.
	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-janitorCtx.Done():
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(janitorCtx, 30*time.Second)
				if n, err := revocations.PurgeExpired(ctx, time.Now()); err != nil {
					log.Printf("purge revocations: %v", err)
				} else if n > 0 {
					log.Printf("purged %d expired revocations", n)
				}
				cancel()
			}
		}
	}()

	api := httpapi.New(tokens, rbac, probe, version)
	handler := httpapi.RequestID(
		httpapi.Logging(
			httpapi.SecurityHeaders(
				httpapi.CORS(
					httpapi.MaxBodyBytes(
						httpapi.RateLimit(api.Handler(), cfg.RateBurst, cfg.RatePerSec),
						1<<20)))))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting authgate-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	stopJanitor()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	_ = closeStore()
	log.Println("Stopped")
}
