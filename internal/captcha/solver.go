package captcha

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/disintegration/imaging"
	"github.com/maltedev/shop-compare/internal/captcha/ocr"
	"github.com/maltedev/shop-compare/internal/captcha/preprocess"
)

type Options struct {
	MaxAttempts int
	SettleDelay time.Duration
}

func DefaultOptions() Options {
	return Options{
		MaxAttempts: 3,
		SettleDelay: 2 * time.Second,
	}
}

type Solver struct {
	fetcher   Fetcher
	runner    *ocr.Runner
	operator  Operator
	recorders []Recorder
	opts      Options
	logger    *slog.Logger
	active    atomic.Bool
}

func NewSolver(fetcher Fetcher, runner *ocr.Runner, operator Operator, logger *slog.Logger, opts Options) *Solver {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = DefaultOptions().MaxAttempts
	}
	if opts.SettleDelay < 0 {
		opts.SettleDelay = 0
	}

	return &Solver{
		fetcher:  fetcher,
		runner:   runner,
		operator: operator,
		opts:     opts,
		logger:   logger.With("component", "captcha_solver"),
	}
}

func (s *Solver) AddRecorder(r Recorder) {
	s.recorders = append(s.recorders, r)
}

// Solve drives the challenge on page until it clears or the attempt budget is
// spent. With no challenge on the page it returns StateCleared after zero
// attempts. Failures inside an attempt are logged and end that attempt; only
// re-entrant use, an undeterminable entry state and an interrupted manual
// fallback are returned as errors.
func (s *Solver) Solve(ctx context.Context, site string, page Page) (*Result, error) {
	if !s.active.CompareAndSwap(false, true) {
		return nil, ErrSolveInProgress
	}
	defer s.active.Store(false)

	logger := s.logger.With("site", site)
	result := &Result{State: StateIdle}

	present, err := page.ChallengePresent(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check for challenge: %w", err)
	}
	if !present {
		result.State = StateCleared
		return result, nil
	}

	started := time.Now()
	logger.Info("challenge detected", "max_attempts", s.opts.MaxAttempts)

	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		if attempt > 1 && s.gone(ctx, logger, page) {
			result.State = StateCleared
			logger.Info("challenge cleared after refresh", "attempts", result.Attempts)
			s.record(ctx, site, result, nil, started)
			return result, nil
		}
		result.Attempts = attempt

		state, submitted := s.attempt(ctx, logger.With("attempt", attempt), page)
		if submitted != "" {
			result.Submitted = append(result.Submitted, submitted)
		}

		if state == StateCleared {
			result.State = StateCleared
			logger.Info("challenge cleared", "attempts", attempt, "answer", submitted)
			s.record(ctx, site, result, nil, started)
			return result, nil
		}

		if attempt < s.opts.MaxAttempts {
			if err := page.RefreshChallenge(ctx); err != nil {
				logger.Warn("failed to refresh challenge", "attempt", attempt, "error", err)
			}
		}
	}

	result.State = StateManualFallback
	logger.Warn("automated attempts exhausted, waiting for operator", "attempts", result.Attempts)
	s.record(ctx, site, result, ErrAttemptsExhausted, started)

	prompt := fmt.Sprintf("%s: challenge not solved after %d attempts, solve it in the browser and acknowledge to continue", site, result.Attempts)
	if err := s.operator.AwaitAcknowledgement(ctx, prompt); err != nil {
		return result, fmt.Errorf("manual fallback interrupted: %w", err)
	}

	logger.Info("operator acknowledged challenge")
	return result, nil
}

// attempt runs one preprocess, recognize, submit, check cycle and returns
// StateCleared or StateNeedsRefresh together with the submitted text.
func (s *Solver) attempt(ctx context.Context, logger *slog.Logger, page Page) (State, string) {
	logger.Debug("state transition", "state", StatePreprocessing)
	variants, err := s.prepare(ctx, page)
	if err != nil {
		logger.Warn("failed to prepare challenge image", "error", err)
		if s.gone(ctx, logger, page) {
			return StateCleared, ""
		}
		return StateNeedsRefresh, ""
	}

	logger.Debug("state transition", "state", StateRecognizing)
	submitted := ""
	for candidate := range s.runner.Candidates(ctx, variants) {
		err := page.SubmitResponse(ctx, candidate.Text)
		if err == nil {
			logger.Info("candidate submitted",
				"text", candidate.Text,
				"variant", candidate.Variant,
				"config", candidate.Config.String())
			submitted = candidate.Text
			break
		}

		logger.Warn("candidate submission failed",
			"text", candidate.Text,
			"variant", candidate.Variant,
			"config", candidate.Config.String(),
			"error", err)

		// The failed submission may still have reached the site. Never
		// submit again without looking.
		present, checkErr := page.ChallengePresent(ctx)
		if checkErr != nil {
			logger.Warn("failed to check challenge after failed submission", "error", checkErr)
			return StateNeedsRefresh, ""
		}
		if !present {
			return StateCleared, candidate.Text
		}
	}

	if submitted == "" {
		logger.Info("no plausible candidate")
		if s.gone(ctx, logger, page) {
			return StateCleared, ""
		}
		return StateNeedsRefresh, ""
	}

	logger.Debug("state transition", "state", StateSubmitted)
	if err := sleep(ctx, s.opts.SettleDelay); err != nil {
		return StateNeedsRefresh, submitted
	}

	present, err := page.ChallengePresent(ctx)
	if err != nil {
		logger.Warn("failed to check challenge after submission", "error", err)
		return StateNeedsRefresh, submitted
	}
	if present {
		logger.Debug("state transition", "state", StateNeedsRefresh)
		return StateNeedsRefresh, submitted
	}

	return StateCleared, submitted
}

// gone reports whether the challenge has left the page. A failed check counts
// as still present.
func (s *Solver) gone(ctx context.Context, logger *slog.Logger, page Page) bool {
	present, err := page.ChallengePresent(ctx)
	if err != nil {
		logger.Warn("failed to check for challenge", "error", err)
		return false
	}
	return !present
}

func (s *Solver) prepare(ctx context.Context, page Page) ([]preprocess.Variant, error) {
	url, err := page.ChallengeImageURL(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to locate challenge image: %w", err)
	}

	data, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch challenge image: %w", err)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode challenge image: %w", err)
	}

	return preprocess.Run(img), nil
}

func (s *Solver) record(ctx context.Context, site string, result *Result, err error, started time.Time) {
	rec := Record{
		Site:      site,
		State:     result.State,
		Attempts:  result.Attempts,
		Submitted: append([]string(nil), result.Submitted...),
		Err:       err,
		StartedAt: started,
		Duration:  time.Since(started),
	}

	for _, r := range s.recorders {
		if err := r.RecordSolve(ctx, rec); err != nil {
			s.logger.Error("failed to record solve", "site", site, "error", err)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
