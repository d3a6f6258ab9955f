package main

import (
	"context"
	"database/sql"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"reelhub.org/internal/auth"
	"reelhub.org/internal/config"
	"reelhub.org/internal/httpapi"
	"reelhub.org/internal/obs"
	"reelhub.org/internal/quota"
	"reelhub.org/internal/reviews"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	configPath := flag.String("config", "", "path to config file (falls back to CONFIG_PATH, then local.yaml)")
	flag.Parse()

	obs.Init()
	obs.InitBuildInfo(version, commit)
	log := obs.Logger()

	cfg := config.MustLoad(*configPath)

	var db *sql.DB
	if cfg.DB.DSN != "" {
		var err error
		db, err = sql.Open("pgx", cfg.DB.DSN)
		if err != nil {
			log.Fatal().Err(err).Msg("open db")
		}
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	codec, err := auth.NewCodec(cfg.Auth.Secret, cfg.Auth.Issuer)
	if err != nil {
		log.Fatal().Err(err).Msg("token codec")
	}
	issuer, err := auth.NewIssuer(codec, auth.NewPGStore(db),
		auth.WithAccessTTL(cfg.Auth.AccessTTL),
		auth.WithRefreshTTL(cfg.Auth.RefreshTTL),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("token issuer")
	}

	policies, err := policySet(cfg.Policies)
	if err != nil {
		log.Fatal().Err(err).Msg("bandwidth policies")
	}

	// The shared Redis store keeps budgets global across replicas; without
	// a configured endpoint each instance enforces its own.
	var store quota.Store
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		redisOpts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("parse redis url")
		}
		redisClient = redis.NewClient(redisOpts)
		store = quota.NewRedisStore(redisClient, quota.WithTimeout(cfg.Redis.Timeout))
	} else {
		log.Warn().Msg("no redis endpoint configured, using per-instance quota store")
		store = quota.NewMemoryStore()
	}

	api := httpapi.New(httpapi.Options{
		Codec:         codec,
		Issuer:        issuer,
		Reviews:       reviews.NewService(reviews.NewPGStore(db)),
		Selector:      quota.NewSelector(policies),
		Quota:         store,
		Ready:         httpapi.ReadyProbe{DB: db, Redis: redisClient},
		Version:       version,
		SecureCookies: cfg.Env != "local",
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr(),
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Info().Str("version", version).Str("addr", srv.Addr).Msg("starting reelhub-api")

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if db != nil {
		_ = db.Close()
	}
	log.Info().Msg("stopped")
}

func policySet(cfg config.PoliciesConfig) (quota.PolicySet, error) {
	var set quota.PolicySet
	for _, p := range []struct {
		dst *quota.Policy
		src config.PolicyConfig
	}{
		{&set.Anonymous, cfg.Anonymous},
		{&set.Authenticated, cfg.Authenticated},
		{&set.WriteOperation, cfg.WriteOperation},
		{&set.ReviewCreation, cfg.ReviewCreation},
		{&set.LoginAttempt, cfg.LoginAttempt},
	} {
		mode, err := quota.ParseFailMode(p.src.FailMode)
		if err != nil {
			return quota.PolicySet{}, err
		}
		*p.dst = quota.Policy{
			Capacity:       p.src.Capacity,
			RefillQuantity: p.src.RefillQuantity,
			RefillInterval: p.src.RefillInterval,
			FailMode:       mode,
		}
	}
	return set, nil
}
