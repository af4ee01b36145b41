// Package compare runs one product search across several shops and merges the
// results into a single price-sorted report.
package compare

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/shop-compare/internal/captcha"
	"github.com/maltedev/shop-compare/internal/models"
	"github.com/maltedev/shop-compare/internal/ratelimit"
	"github.com/maltedev/shop-compare/internal/report"
)

var ErrNoProducts = errors.New("no products found on any site")

// Session is one shop opened in the browser.
type Session interface {
	captcha.Page
	Name() string
	Open(ctx context.Context) error
	Search(ctx context.Context, query string) error
	Results(ctx context.Context, limit int) ([]models.Product, error)
	Screenshot(path string) error
	Close() error
}

// SessionFactory opens a session for a configured site name.
type SessionFactory func(ctx context.Context, site string) (Session, error)

type Solver interface {
	Solve(ctx context.Context, site string, page captcha.Page) (*captcha.Result, error)
}

type Publisher interface {
	PublishRunCompleted(ctx context.Context, r *models.RunReport) error
}

// History persists finished runs across restarts.
type History interface {
	Save(r *models.RunReport) error
	Latest() *models.RunReport
}

type Options struct {
	Sites       []string
	ResultLimit int
	ReportDir   string
}

type Runner struct {
	open      SessionFactory
	solver    Solver
	limiter   ratelimit.Limiter
	textLog   *report.TextLog
	publisher Publisher
	history   History
	opts      Options
	logger    *slog.Logger

	mu   sync.RWMutex
	last *models.RunReport
}

func NewRunner(open SessionFactory, solver Solver, limiter ratelimit.Limiter, textLog *report.TextLog, logger *slog.Logger, opts Options) *Runner {
	if opts.ResultLimit < 0 {
		opts.ResultLimit = 0
	}

	return &Runner{
		open:    open,
		solver:  solver,
		limiter: limiter,
		textLog: textLog,
		opts:    opts,
		logger:  logger.With("component", "compare_runner"),
	}
}

func (r *Runner) SetPublisher(p Publisher) {
	r.publisher = p
}

func (r *Runner) SetHistory(h History) {
	r.history = h
}

// Last returns the most recent finished run. Before the first run of this
// process it falls back to the history, if any.
func (r *Runner) Last() *models.RunReport {
	r.mu.RLock()
	last := r.last
	r.mu.RUnlock()

	if last == nil && r.history != nil {
		return r.history.Latest()
	}
	return last
}

// Run searches every configured site for query. A site that fails is recorded
// in the report and the run moves on to the next one. The report is returned
// even when err is non-nil.
func (r *Runner) Run(ctx context.Context, query string) (*models.RunReport, error) {
	rep := &models.RunReport{
		ID:        uuid.New().String(),
		Query:     query,
		StartedAt: time.Now(),
	}
	logger := r.logger.With("run_id", rep.ID, "query", query)
	logger.Info("starting search run", "sites", r.opts.Sites, "limit", r.opts.ResultLimit)

	var runErr error
	for _, site := range r.opts.Sites {
		if err := r.limiter.Wait(ctx); err != nil {
			runErr = fmt.Errorf("run interrupted before %s: %w", site, err)
			break
		}

		result := r.runSite(ctx, logger.With("site", site), site, query)
		rep.Sites = append(rep.Sites, result)
		rep.Products = append(rep.Products, result.Products...)

		if err := ctx.Err(); err != nil {
			runErr = fmt.Errorf("run interrupted after %s: %w", site, err)
			break
		}
	}

	models.SortByPrice(rep.Products)
	rep.FinishedAt = time.Now()

	if runErr == nil && len(rep.Products) == 0 {
		runErr = ErrNoProducts
	}
	rep.Passed = runErr == nil
	if runErr != nil {
		rep.Error = runErr.Error()
	}

	for _, p := range rep.Products {
		logger.Info("product", "website", p.Website, "name", p.Name, "price", p.Price, "link", p.Link)
	}

	if r.textLog != nil {
		if err := r.textLog.Append(query, rep.StartedAt, rep.Products); err != nil {
			logger.Error("failed to append product log", "error", err)
		}
	}

	if r.publisher != nil {
		if err := r.publisher.PublishRunCompleted(context.WithoutCancel(ctx), rep); err != nil {
			logger.Error("failed to publish run completion", "error", err)
		}
	}

	if r.history != nil {
		if err := r.history.Save(rep); err != nil {
			logger.Error("failed to save run history", "error", err)
		}
	}

	r.mu.Lock()
	r.last = rep
	r.mu.Unlock()

	logger.Info("search run finished",
		"passed", rep.Passed,
		"products", len(rep.Products),
		"duration", rep.Duration())

	return rep, runErr
}

func (r *Runner) runSite(ctx context.Context, logger *slog.Logger, site, query string) models.SiteResult {
	result := models.SiteResult{Website: site}

	sess, err := r.open(ctx, site)
	if err != nil {
		logger.Error("failed to open session", "error", err)
		result.Error = err.Error()
		r.limiter.RecordError()
		return result
	}
	defer func() {
		if err := sess.Close(); err != nil {
			logger.Debug("failed to close session", "error", err)
		}
	}()
	result.Website = sess.Name()

	challenged := false
	fail := func(err error) models.SiteResult {
		logger.Error("site failed", "error", err)
		result.Error = err.Error()
		r.screenshot(logger, sess, report.ErrorScreenshotPath(r.opts.ReportDir, result.Website), &result)
		r.limiter.RecordError()
		return result
	}

	if err := sess.Open(ctx); err != nil {
		return fail(fmt.Errorf("failed to open %s: %w", site, err))
	}

	if err := r.clearChallenge(ctx, logger, sess, &result, &challenged); err != nil {
		return fail(err)
	}

	if err := sess.Search(ctx, query); err != nil {
		return fail(fmt.Errorf("failed to search: %w", err))
	}

	if err := r.clearChallenge(ctx, logger, sess, &result, &challenged); err != nil {
		return fail(err)
	}

	products, err := sess.Results(ctx, r.opts.ResultLimit)
	if err != nil {
		return fail(fmt.Errorf("failed to scrape results: %w", err))
	}
	result.Products = products

	r.screenshot(logger, sess, report.ScreenshotPath(r.opts.ReportDir, result.Website), &result)

	if challenged {
		r.limiter.RecordError()
	} else {
		r.limiter.RecordSuccess()
	}

	logger.Info("site done", "products", len(products), "challenged", challenged)
	return result
}

// clearChallenge hands the page to the solver only when a challenge is
// actually showing.
func (r *Runner) clearChallenge(ctx context.Context, logger *slog.Logger, sess Session, result *models.SiteResult, challenged *bool) error {
	present, err := sess.ChallengePresent(ctx)
	if err != nil {
		logger.Warn("failed to check for challenge", "error", err)
		return nil
	}
	if !present {
		return nil
	}

	*challenged = true
	res, err := r.solver.Solve(ctx, result.Website, sess)
	if res != nil {
		result.Challenge = res.State.String()
		result.ChallengeAttempts += res.Attempts
	}
	if err != nil {
		return fmt.Errorf("challenge not handled: %w", err)
	}
	return nil
}

func (r *Runner) screenshot(logger *slog.Logger, sess Session, path string, result *models.SiteResult) {
	if r.opts.ReportDir == "" {
		return
	}
	if err := sess.Screenshot(path); err != nil {
		logger.Warn("failed to take screenshot", "path", path, "error", err)
		return
	}
	result.Screenshot = path
}
