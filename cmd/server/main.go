package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/example/roadside-dispatch/internal/config"
	"github.com/example/roadside-dispatch/internal/coordinator"
	"github.com/example/roadside-dispatch/internal/geo"
	"github.com/example/roadside-dispatch/internal/geocode"
	httpapi "github.com/example/roadside-dispatch/internal/http"
	"github.com/example/roadside-dispatch/internal/location"
	"github.com/example/roadside-dispatch/internal/logging"
	"github.com/example/roadside-dispatch/internal/models"
	"github.com/example/roadside-dispatch/internal/notify"
	"github.com/example/roadside-dispatch/internal/payments"
	"github.com/example/roadside-dispatch/internal/reconciler"
	"github.com/example/roadside-dispatch/internal/settlement"
	"github.com/example/roadside-dispatch/internal/store"
	"github.com/example/roadside-dispatch/internal/stream"
	"github.com/example/roadside-dispatch/internal/visibility"
)

func main() {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// optional migration: run migrations/001_create_emergencies.sql if requested
	if cfg.PGDSN != "" && cfg.RunMigrations {
		if db, err := sql.Open("postgres", cfg.PGDSN); err == nil {
			if b, err := os.ReadFile(filepath.Join("migrations", "001_create_emergencies.sql")); err == nil {
				if _, err := db.Exec(string(b)); err != nil {
					logger.Error("migration exec error", "error", err)
				} else {
					logger.Info("migration applied", "file", "001_create_emergencies.sql")
				}
			}
			_ = db.Close()
		} else {
			logger.Error("migration db open error", "error", err)
		}
	}

	var emergencies store.EmergencyStore
	var offers store.OfferStore
	var settlements store.SettlementStore
	if cfg.PGDSN != "" {
		ps, err := store.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			logger.Error("postgres connect failed", "error", err)
			os.Exit(1)
		}
		emergencies, offers, settlements = ps, ps.Offers(), ps.Settlements()
	} else {
		ms := store.NewMemoryStore()
		emergencies, offers, settlements = ms, ms.Offers(), ms.Settlements()
		logger.Warn("no PG_DSN, using in-memory store")
	}

	var gidx geo.Index
	var redisGeo *geo.RedisIndex
	if cfg.RedisAddr != "" {
		redisGeo = geo.NewRedisIndex(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisGeoKey)
		gidx = redisGeo
	} else {
		gidx = geo.NewMemoryIndex()
	}

	var geocoder geocode.Client
	if cfg.GeocodeEndpoint != "" {
		geocoder = &geocode.CachedClient{
			Inner: geocode.NewNominatimClient(cfg.GeocodeEndpoint),
			Cache: geocode.NewCache(cfg.GeocodeCacheTTL),
		}
	}
	profiles := coordinator.NewStaticProfiles()
	enricher := &coordinator.Enricher{Geocoder: geocoder, Profiles: profiles}

	wsreg := notify.NewWSRegistry(logger)
	notifiers := notify.Fanout{wsreg}
	if cfg.FCMEndpoint != "" {
		notifiers = append(notifiers, notify.NewFCMNotifier(cfg.FCMEndpoint, cfg.FCMKey))
	}

	gate := visibility.Gate{AgeThreshold: cfg.AgeThreshold, DistanceKm: cfg.DistanceKm}
	recon := reconciler.New(gate, enricher, notifiers, logger)
	go recon.Run(ctx)

	var pub stream.Publisher
	var locProducer *stream.LocationProducer
	if len(cfg.KafkaBrokers) > 0 {
		kp := stream.NewKafkaProducer(cfg.KafkaBrokers, cfg.ChangeTopic)
		defer kp.Close()
		pub = kp
		locProducer = stream.NewLocationProducer(cfg.KafkaBrokers, cfg.LocationTopic)
		defer locProducer.Close()
	}

	var gateway payments.Gateway = payments.NopGateway{}
	if os.Getenv("STRIPE_API_KEY") != "" {
		gateway = payments.NewStripeGateway()
	}

	calc := settlement.NewCalculator(cfg.ZeroFeeCategories)
	coord := coordinator.New(coordinator.Config{
		RefreshInterval:  cfg.RefreshInterval,
		DistanceFeePerKm: cfg.DistanceFeePerKm,
		Currency:         cfg.Currency,
	}, emergencies, offers, settlements, pub, recon, calc, gateway, logger)

	// seed the observer from the last known provider position, if any
	if cfg.ProviderID != "" && redisGeo != nil {
		src := location.NewRedisSource(redisGeo.Client(), cfg.RedisGeoKey)
		if perm, _ := src.Permission(ctx, cfg.ProviderID); perm == location.PermissionGranted {
			if pos, err := src.LastKnown(ctx, cfg.ProviderID, 10*time.Minute); err == nil && pos != nil {
				coord.SetObserverPosition(pos.Coord)
			}
		}
	}

	if len(cfg.KafkaBrokers) > 0 {
		sub := stream.NewSubscriber(cfg.KafkaBrokers, cfg.ChangeTopic, cfg.KafkaGroup, logger)
		go sub.Run(ctx, recon.ApplyEvent)
	}
	go coord.RunRefreshLoop(ctx, cfg.DistanceKm, cfg.AgeThreshold)
	if err := coord.Refresh(ctx, cfg.DistanceKm, cfg.AgeThreshold); err != nil {
		logger.Warn("initial refresh failed", "error", err)
	}

	srv := httpapi.NewServer(coord, gidx, wsreg, cfg.ProviderID, logger)
	if locProducer != nil {
		srv.Locations = func(p models.Provider) {
			pctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := locProducer.PublishLocation(pctx, p); err != nil {
				logger.Warn("location publish failed", "provider", p.ID, "error", err)
			}
		}
	}

	httpSrv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Info("roadside-dispatch listening", "addr", cfg.HTTPAddr, "provider", cfg.ProviderID)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
