package models

import (
	"time"
)

// SiteResult is what one shop contributed to a run.
type SiteResult struct {
	Website           string    `json:"website"`
	Products          []Product `json:"products"`
	Screenshot        string    `json:"screenshot,omitempty"`
	Challenge         string    `json:"challenge,omitempty"`
	ChallengeAttempts int       `json:"challenge_attempts,omitempty"`
	Error             string    `json:"error,omitempty"`
}

func (s SiteResult) Failed() bool {
	return s.Error != ""
}

// RunReport summarizes one search across all shops.
type RunReport struct {
	ID         string       `json:"id"`
	Query      string       `json:"query"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Sites      []SiteResult `json:"sites"`
	Products   []Product    `json:"products"`
	Passed     bool         `json:"passed"`
	Error      string       `json:"error,omitempty"`
}

func (r *RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
