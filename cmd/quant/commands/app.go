package commands

import (
	"fmt"
	"time"

	"github.com/wonny/sectorpulse/backend/internal/batch"
	"github.com/wonny/sectorpulse/backend/internal/external/krx"
	"github.com/wonny/sectorpulse/backend/internal/external/naver"
	"github.com/wonny/sectorpulse/backend/internal/s0_data"
	"github.com/wonny/sectorpulse/backend/internal/s1_sector"
	"github.com/wonny/sectorpulse/backend/internal/s1_universe"
	"github.com/wonny/sectorpulse/backend/internal/s4_scoring"
	"github.com/wonny/sectorpulse/backend/pkg/config"
	"github.com/wonny/sectorpulse/backend/pkg/database"
	"github.com/wonny/sectorpulse/backend/pkg/httputil"
	"github.com/wonny/sectorpulse/backend/pkg/logger"
	"github.com/wonny/sectorpulse/backend/pkg/metrics"
	"github.com/wonny/sectorpulse/backend/pkg/redis"
	"github.com/wonny/sectorpulse/backend/pkg/retry"
)

const dateLayout = "2006-01-02"

// app holds the wired dependencies shared by all commands
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	db      *database.DB
	repo    *s0_data.Repository
	redis   *redis.Client
	metrics *metrics.Recorder
}

// newApp loads config, the logger and the database pool
func newApp() (*app, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Connect to database
	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	return &app{
		cfg:     cfg,
		log:     log,
		db:      db,
		repo:    s0_data.NewRepository(db.Pool),
		metrics: metrics.New(),
	}, nil
}

// Close releases the database pool and redis connection
func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.WithError(err).Warn("Failed to close redis")
		}
	}
	a.db.Close()
}

// runner wires providers, cache and rules into a pipeline runner
func (a *app) runner() (*batch.Runner, error) {
	// 1. Sector rules (파일이 없으면 내장 기본값)
	rules, err := a.rules()
	if err != nil {
		return nil, err
	}

	// 2. HTTP clients: 재시도는 httputil에서만, 호출 간격은 batch pacer가 담당
	policy := retry.DefaultPolicy()
	policy.Attempts = a.cfg.Batch.RetryAttempts
	policy.Wait = a.cfg.Batch.RetryWait

	krxClient := krx.NewClient(httputil.New(a.log).WithRetry(policy), a.cfg.KRX.BaseURL, a.log)
	naverClient := naver.NewClient(httputil.New(a.log).WithRetry(policy), a.cfg.Naver.BaseURL, "", a.log)

	// 3. Redis cache (비활성화 시 no-op)
	rc, err := redis.New(a.cfg)
	if err != nil {
		a.log.WithError(err).Warn("Redis unavailable, index changes will not be cached")
	} else {
		a.redis = rc
	}

	deps := batch.Deps{
		Store:   a.repo,
		Market:  krxClient,
		History: naverClient,
		Rules:   rules,
		Tiers: s1_universe.Config{
			CoreMarketCap:     a.cfg.Tier.CoreMarketCap,
			CoreTradedValue:   a.cfg.Tier.CoreTradedValue,
			ExtendedMarketCap: a.cfg.Tier.ExtendedMarketCap,
		},
		Weights: s4_scoring.DefaultWeights(),
		Metrics: a.metrics,
	}
	if a.redis != nil {
		deps.Cache = redis.NewCache(a.redis, "sectorpulse")
	}

	return batch.NewRunner(deps, batch.ConfigFrom(a.cfg.Batch), a.log), nil
}

func (a *app) rules() (*s1_sector.Rules, error) {
	if a.cfg.SectorRulesFile == "" {
		return s1_sector.DefaultRules()
	}
	rules, err := s1_sector.LoadRules(a.cfg.SectorRulesFile)
	if err != nil {
		return nil, fmt.Errorf("load sector rules: %w", err)
	}
	return rules, nil
}

// parseDate parses --date, defaulting to today
func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		now := time.Now()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	d, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", raw, err)
	}
	return d, nil
}
