// Package scheduler runs the scrape pipeline on a cron expression or a
// fixed interval when the daemon flag is set.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"japanhouse/config"
	"japanhouse/models"
	"japanhouse/scraper"
)

type Scheduler struct {
	cfg          *config.Config
	orchestrator *scraper.Orchestrator
	sites        []string
	params       models.RunParams
	cron         *cron.Cron
	ticker       *time.Ticker
	stopCh       chan struct{}
}

func New(cfg *config.Config, orchestrator *scraper.Orchestrator, sites []string, params models.RunParams) *Scheduler {
	return &Scheduler{
		cfg:          cfg,
		orchestrator: orchestrator,
		sites:        sites,
		params:       params,
		cron:         cron.New(),
		stopCh:       make(chan struct{}),
	}
}

// Start schedules recurring runs. Cron takes precedence over the interval;
// with neither configured the daemon runs hourly.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.Scheduler.Cron != "" {
		log.Printf("Starting scheduler with cron: %s", s.cfg.Scheduler.Cron)
		_, err := s.cron.AddFunc(s.cfg.Scheduler.Cron, func() {
			s.runOnce(ctx)
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
		return nil
	}

	interval := s.cfg.Scheduler.Interval
	if interval <= 0 {
		interval = time.Hour
		log.Printf("No schedule configured, defaulting to %s interval", interval)
	} else {
		log.Printf("Starting scheduler with interval: %s", interval)
	}

	s.ticker = time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-s.ticker.C:
				s.runOnce(ctx)
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
}

// TriggerNow runs one scrape outside the schedule.
func (s *Scheduler) TriggerNow(ctx context.Context) error {
	_, err := s.orchestrator.RunSites(ctx, s.sites, s.params)
	return err
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if _, err := s.orchestrator.RunSites(ctx, s.sites, s.params); err != nil {
		log.Printf("Scheduled run error: %v", err)
	}
}
