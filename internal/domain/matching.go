package domain

import (
	"context"

	"github.com/google/uuid"
)

type MatchCandidate struct {
	SpecialistID    uuid.UUID `json:"specialist_id"`
	FullName        string    `json:"full_name"`
	HourlyRateCents int64     `json:"hourly_rate_cents"`
	Score           float64   `json:"score"`
	Reason          string    `json:"reason"`
}

// TextGenerator is the external AI completion service. GenerateJSON returns
// the raw JSON text produced for prompt.
type TextGenerator interface {
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}
