// Package captcha clears simple distorted-text challenges: it preprocesses the
// challenge image, runs OCR over the variants, submits the first plausible
// answer and refreshes and retries until the attempt budget is spent, after
// which a human operator takes over.
package captcha

import (
	"context"
	"errors"
	"time"
)

var (
	ErrAttemptsExhausted = errors.New("captcha attempts exhausted")
	ErrSolveInProgress   = errors.New("captcha solve already in progress")
)

// Page is the browser-side boundary of a challenge.
type Page interface {
	ChallengePresent(ctx context.Context) (bool, error)
	ChallengeImageURL(ctx context.Context) (string, error)
	SubmitResponse(ctx context.Context, text string) error
	RefreshChallenge(ctx context.Context) error
}

// Fetcher downloads the challenge image.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Operator is the human escape hatch. AwaitAcknowledgement blocks until the
// operator signals that the challenge has been handled.
type Operator interface {
	AwaitAcknowledgement(ctx context.Context, prompt string) error
}

// Recorder receives one record per finished solve.
type Recorder interface {
	RecordSolve(ctx context.Context, rec Record) error
}

type State int

const (
	StateIdle State = iota
	StatePreprocessing
	StateRecognizing
	StateSubmitted
	StateCleared
	StateNeedsRefresh
	StateManualFallback
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePreprocessing:
		return "preprocessing"
	case StateRecognizing:
		return "recognizing"
	case StateSubmitted:
		return "submitted"
	case StateCleared:
		return "cleared"
	case StateNeedsRefresh:
		return "needs_refresh"
	case StateManualFallback:
		return "manual_fallback"
	default:
		return "unknown"
	}
}

// Result is the outcome of Solve. State is either StateCleared or
// StateManualFallback.
type Result struct {
	State     State
	Attempts  int
	Submitted []string
}

type Record struct {
	Site      string
	State     State
	Attempts  int
	Submitted []string
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}
