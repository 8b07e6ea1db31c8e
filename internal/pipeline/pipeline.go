// Package pipeline orchestrates a discovery run: walk the firm's careers
// listing, classify links, resolve them against known roles, extract the
// surviving postings, and persist review drafts.
package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/careers-cli/internal/config"
	"github.com/sells-group/careers-cli/internal/cost"
	"github.com/sells-group/careers-cli/internal/model"
	"github.com/sells-group/careers-cli/internal/roleindex"
	"github.com/sells-group/careers-cli/internal/store"
	"github.com/sells-group/careers-cli/pkg/anthropic"
	"github.com/sells-group/careers-cli/pkg/browser"
)

// Pipeline wires the discovery run's dependencies. One Pipeline serves many
// runs; per-run state lives on the run struct.
type Pipeline struct {
	store   store.Store
	browser browser.Client
	ai      anthropic.Client
	limiter *rate.Limiter
	calc    *cost.Calculator
	aiCfg   config.AnthropicConfig
	scrCfg  config.ScraperConfig
}

// New creates a Pipeline from its dependencies and configuration.
func New(st store.Store, bc browser.Client, ai anthropic.Client, cfg *config.Config) *Pipeline {
	return &Pipeline{
		store:   st,
		browser: bc,
		ai:      ai,
		limiter: newLimiter(cfg.Anthropic.RateLimitPerSec),
		calc:    cost.NewCalculator(cfg.Pricing),
		aiCfg:   cfg.Anthropic,
		scrCfg:  cfg.Scraper,
	}
}

// RunRequest identifies what to scrape.
type RunRequest struct {
	FirmID     int64
	ListingURL string
	Hints      *Hints
}

// run is the per-invocation state: the run record, the firm's role index,
// and the accumulating cost ledger.
type run struct {
	*Pipeline
	req       RunRequest
	rec       *model.ScrapeRun
	idx       *roleindex.Index
	tracker   *cost.Tracker
	pageLoads atomic.Int64
}

// Run executes one discovery run end to end and returns the completed run
// record. A fatal error fails the run record with zeroed metrics; per-role
// failures are counted in the metrics instead.
func (p *Pipeline) Run(ctx context.Context, req RunRequest) (*model.ScrapeRun, error) {
	rec, err := p.store.CreateRun(ctx, req.FirmID, req.ListingURL)
	if err != nil {
		return nil, err
	}
	zap.L().Info("pipeline: run started",
		zap.String("run_id", rec.ID),
		zap.Int64("firm_id", req.FirmID),
		zap.String("listing_url", req.ListingURL),
	)

	if p.scrCfg.RunTimeoutSecs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(p.scrCfg.RunTimeoutSecs)*time.Second)
		defer cancel()
	}

	r := &run{
		Pipeline: p,
		req:      req,
		rec:      rec,
		tracker:  cost.NewTracker(),
	}

	metrics, runErr := r.execute(ctx)
	if runErr != nil {
		// Nothing from a failed run is trustworthy enough to report.
		failCtx := context.WithoutCancel(ctx)
		if err := p.store.FailRun(failCtx, rec.ID, runErr.Error(), &model.RunMetrics{}); err != nil {
			zap.L().Error("pipeline: record run failure", zap.Error(err))
		}
		rec.Status = model.RunStatusFailed
		rec.Error = runErr.Error()
		return rec, runErr
	}

	if err := p.store.CompleteRun(ctx, rec.ID, metrics); err != nil {
		return rec, eris.Wrap(err, "pipeline: record run completion")
	}
	rec.Status = model.RunStatusCompleted
	rec.Metrics = metrics

	if pruned, err := p.store.PruneRunHistory(ctx, req.ListingURL, p.scrCfg.RunHistoryLimit); err != nil {
		zap.L().Warn("pipeline: prune run history", zap.Error(err))
	} else if pruned > 0 {
		zap.L().Debug("pipeline: pruned run history", zap.Int("removed", pruned))
	}

	zap.L().Info("pipeline: run completed",
		zap.String("run_id", rec.ID),
		zap.Int("roles_found", metrics.RolesFound),
		zap.Int("roles_new", metrics.RolesNew),
		zap.Float64("cost_usd", metrics.TotalCostUSD),
	)
	return rec, nil
}

func (r *run) execute(ctx context.Context) (*model.RunMetrics, error) {
	start := time.Now()

	// Fail-open: a degraded index means everything resolves as new, which the
	// reviewer can still sort out. The run proceeds either way.
	r.idx = roleindex.Build(ctx, r.store, r.req.FirmID)

	listRes, err := r.runListPhase(ctx)
	if err != nil {
		return nil, err
	}

	programs, err := r.store.ListFirmPrograms(ctx, r.req.FirmID)
	if err != nil {
		zap.L().Warn("pipeline: list firm programmes, suggestions will see none", zap.Error(err))
		programs = nil
	}

	var newRoles, urlChanged, reopened, failed atomic.Int64

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.scrCfg.Concurrency)
	for _, cand := range listRes.candidates {
		g.Go(func() error {
			detailCtx := gCtx
			if r.scrCfg.DetailTimeoutSecs > 0 {
				var cancel context.CancelFunc
				detailCtx, cancel = context.WithTimeout(gCtx, time.Duration(r.scrCfg.DetailTimeoutSecs)*time.Second)
				defer cancel()
			}

			if err := r.runDetailPhase(detailCtx, cand, programs, listRes.titleURLs); err != nil {
				failed.Add(1)
				zap.L().Warn("pipeline: detail failed",
					zap.String("url", cand.URL),
					zap.String("action", string(cand.Action)),
					zap.Error(err),
				)
				return nil
			}
			switch cand.Action {
			case model.ActionNewRole:
				newRoles.Add(1)
			case model.ActionURLChanged:
				urlChanged.Add(1)
			case model.ActionReopening:
				reopened.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "pipeline: run cancelled")
	}

	usage := r.tracker.Total()
	return &model.RunMetrics{
		RolesFound:      listRes.found,
		RolesSkipped:    listRes.skipped,
		RolesNew:        int(newRoles.Load()),
		RolesURLChanged: int(urlChanged.Load()),
		RolesReopened:   int(reopened.Load()),
		RolesFailed:     int(failed.Load()),
		PagesVisited:    listRes.pages,
		TotalTokensUsed: usage.TotalTokens,
		TotalCostUSD:    r.totalCost(),
		DurationSeconds: time.Since(start).Seconds(),
	}, nil
}

// totalCost prices each call label at its model's rates and adds the
// rendering service's per-page-load charge.
func (r *run) totalCost() float64 {
	total := r.calc.Render(int(r.pageLoads.Load()))
	for label, usage := range r.tracker.ByLabel() {
		total += r.calc.Claude(r.modelForLabel(label), usage)
	}
	return total
}

func (r *run) modelForLabel(label string) string {
	switch label {
	case "classify":
		return r.aiCfg.ClassifyModel
	case "extract":
		return r.aiCfg.ExtractModel
	case "suggest":
		return r.aiCfg.SuggestModel
	}
	return r.aiCfg.ExtractModel
}
