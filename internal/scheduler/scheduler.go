// Package scheduler runs the periodic maintenance jobs that keep the
// broker's pending-entry stores bounded and its whitelist-extension
// suggestions fresh, on top of github.com/robfig/cron/v3.
package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/marcus-qen/linux-broker/internal/engine"
	"github.com/marcus-qen/linux-broker/internal/learning"
	"github.com/marcus-qen/linux-broker/internal/remediation"
	"github.com/marcus-qen/linux-broker/internal/types"
)

// Config controls sweep cadence and retention.
type Config struct {
	// SweepCron is the cron expression for the pending-entry expiry
	// sweep. Default: every 10 minutes.
	SweepCron string
	// MaxAge is how old a pending entry may get before the sweep
	// removes it. Default: 24h.
	MaxAge time.Duration

	// DigestCron is the cron expression for the learning-suggestion
	// digest. Default: hourly.
	DigestCron string
	// DigestMinCount/DigestMinAgeHours gate which commands appear in
	// the digest log line.
	DigestMinCount    int
	DigestMinAgeHours int
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		SweepCron:         "@every 10m",
		MaxAge:            24 * time.Hour,
		DigestCron:        "@hourly",
		DigestMinCount:    5,
		DigestMinAgeHours: 24,
	}
}

// Scheduler wraps a cron.Cron running the broker's background maintenance
// jobs against the already-constructed Engine, Remediation Manager, and
// Auto-Learning Collector.
type Scheduler struct {
	cron *cron.Cron
	log  *zap.Logger

	eng   *engine.Engine
	rem   *remediation.Manager
	learn *learning.Collector
	cfg   Config
}

// New builds a Scheduler. rem may be nil if remediation sweeping is not
// wired in this process.
func New(eng *engine.Engine, rem *remediation.Manager, learn *learning.Collector, log *zap.Logger, cfg Config) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.SweepCron == "" {
		cfg = DefaultConfig()
	}
	return &Scheduler{
		cron:  cron.New(),
		log:   log,
		eng:   eng,
		rem:   rem,
		learn: learn,
		cfg:   cfg,
	}
}

// Start registers the jobs and starts the cron scheduler in the
// background. Returns an error if a cron expression fails to parse.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.SweepCron, s.sweep); err != nil {
		return err
	}
	if s.learn != nil {
		if _, err := s.cron.AddFunc(s.cfg.DigestCron, s.digest); err != nil {
			return err
		}
	}
	s.cron.Start()
	return nil
}

// Stop halts the cron scheduler and waits for any running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) sweep() {
	if s.eng != nil {
		if n := s.eng.Cleanup(s.cfg.MaxAge); n > 0 {
			s.log.Info("scheduler: swept expired pending commands", zap.Int("count", n))
		}
	}
	if s.rem != nil {
		if n := s.rem.Cleanup(s.cfg.MaxAge); n > 0 {
			s.log.Info("scheduler: swept expired remediation actions", zap.Int("count", n))
		}
	}
}

func (s *Scheduler) digest() {
	suggestions := s.learn.Suggest(s.cfg.DigestMinCount, s.cfg.DigestMinAgeHours, types.RiskLow)
	if len(suggestions) == 0 {
		return
	}
	s.log.Info("scheduler: whitelist-extension suggestions available", zap.Int("count", len(suggestions)))
}
