package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// RefresherConfig schedules periodic re-ingestion of indexed tickers.
type RefresherConfig struct {
	Enabled bool `yaml:"enabled"`
	// Spec is a standard cron expression, default daily at 01:00.
	Spec string `yaml:"spec" default:"0 1 * * *"`
	// Lookback bounds how far back each refresh fetches.
	Lookback time.Duration `yaml:"lookback" default:"8760h"`
}

// Refresher periodically re-ingests every ticker in storage so indexed
// chunks keep up with new bars.
type Refresher struct {
	cron     *cron.Cron
	ingestor *Ingestor
	cfg      RefresherConfig
	logger   *zap.Logger
}

// NewRefresher registers the refresh task. Call Start to begin scheduling.
func NewRefresher(ing *Ingestor, cfg RefresherConfig, logger *zap.Logger) (*Refresher, error) {
	r := &Refresher{
		cron:     cron.New(),
		ingestor: ing,
		cfg:      cfg,
		logger:   logger,
	}
	spec := cfg.Spec
	if spec == "" {
		spec = "0 1 * * *"
	}
	if _, err := r.cron.AddFunc(spec, r.refresh); err != nil {
		return nil, fmt.Errorf("register refresh task: %w", err)
	}
	return r, nil
}

// Start begins the schedule.
func (r *Refresher) Start() {
	r.cron.Start()
	r.logger.Info("refresh scheduler started", zap.String("spec", r.cfg.Spec))
}

// Stop stops scheduling and waits for a running refresh to finish.
func (r *Refresher) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.logger.Info("refresh scheduler stopped")
}

func (r *Refresher) refresh() {
	ctx := context.Background()
	fetch := FetchRange{}
	if r.cfg.Lookback > 0 {
		fetch.Start = time.Now().UTC().Add(-r.cfg.Lookback)
	}

	report, err := r.ingestor.RefreshIndexed(ctx, fetch)
	if err != nil {
		r.logger.Error("scheduled refresh failed", zap.Error(err))
		return
	}
	r.logger.Info("scheduled refresh complete",
		zap.Int("tickers", len(report.Results)),
		zap.Int("chunks", report.TotalChunks()),
		zap.Int("failed", len(report.Failed())))
}
