// Package scheduler runs the periodic cache maintenance jobs
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/damon-houk/exchange-rate-chart/internal/infrastructure/cache"
	"github.com/damon-houk/exchange-rate-chart/internal/infrastructure/logger"
)

// CurrencyRefresher reloads the cached currency list from the rate source
type CurrencyRefresher interface {
	RefreshCurrencies(ctx context.Context) ([]string, error)
}

// Scheduler manages all cron tasks.
type Scheduler struct {
	cron      *cron.Cron
	cache     cache.ListCache
	refresher CurrencyRefresher
	logger    logger.Logger
	ctx       context.Context
	timeout   time.Duration
}

// NewScheduler creates a new Scheduler. Specs use six fields, seconds first.
func NewScheduler(ctx context.Context, listCache cache.ListCache, refresher CurrencyRefresher, log logger.Logger) *Scheduler {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return &Scheduler{
		cron:      cron.New(cron.WithSeconds()),
		cache:     listCache,
		refresher: refresher,
		logger:    log,
		ctx:       ctx,
		timeout:   30 * time.Second,
	}
}

// RegisterAll registers the cache cleanup and currency refresh tasks
func (s *Scheduler) RegisterAll(cleanupCron, refreshCron string) error {
	if s.cache != nil {
		if _, err := s.cron.AddFunc(cleanupCron, s.cleanCache); err != nil {
			return fmt.Errorf("register cache cleanup task: %w", err)
		}
	}
	if s.refresher != nil {
		if _, err := s.cron.AddFunc(refreshCron, s.refreshCurrencies); err != nil {
			return fmt.Errorf("register currency refresh task: %w", err)
		}
	}
	return nil
}

// Entries returns the number of registered tasks
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Scheduler started", map[string]interface{}{
		"tasks": s.Entries(),
	})
}

// Stop stops the cron scheduler and waits for running tasks to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped", nil)
}

func (s *Scheduler) cleanCache() {
	removed := s.cache.CleanExpired()
	s.logger.Debug("Expired cache entries removed", map[string]interface{}{
		"removed": removed,
	})
}

func (s *Scheduler) refreshCurrencies() {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	currencies, err := s.refresher.RefreshCurrencies(ctx)
	if err != nil {
		s.logger.Warn("Currency refresh failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	s.logger.Info("Currencies refreshed", map[string]interface{}{
		"count": len(currencies),
	})
}
