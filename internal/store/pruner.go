package store

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Pruner periodically removes plays older than the retention window.
type Pruner struct {
	plays     *Plays
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

func NewPruner(plays *Plays, retention, interval time.Duration, log zerolog.Logger) *Pruner {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Pruner{plays: plays, retention: retention, interval: interval, now: time.Now, log: log}
}

// Run blocks until ctx is done. It returns at once when the play log is
// disabled or retention is not positive.
func (p *Pruner) Run(ctx context.Context) {
	if !p.plays.Enabled() || p.retention <= 0 {
		p.log.Info().Msg("play pruner: nothing to do")
		return
	}
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		p.RunOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (p *Pruner) RunOnce(ctx context.Context) (int64, error) {
	cutoff := p.now().Add(-p.retention)
	n, err := p.plays.Purge(ctx, cutoff)
	if err != nil {
		p.log.Error().Err(err).Time("cutoff", cutoff).Msg("play pruner failed")
		return 0, err
	}
	if n > 0 {
		p.log.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("old plays pruned")
	}
	return n, nil
}
