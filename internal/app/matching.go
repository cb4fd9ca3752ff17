package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Abdulah-eng/newhitsapp-sub002/internal/domain"
	apperrors "github.com/Abdulah-eng/newhitsapp-sub002/internal/platform/errors"
	"github.com/google/uuid"
)

const (
	maxMatches     = 5
	maxBioInPrompt = 300
)

var errNoUsableRanking = errors.New("ranking contained no known specialists")

// MatchingService suggests specialists for a described problem.
type MatchingService struct {
	specialists domain.SpecialistRepository
	generator   domain.TextGenerator
}

// NewMatchingService creates the service. Without a generator only the
// skill-overlap ranking is used.
func NewMatchingService(specialists domain.SpecialistRepository, generator domain.TextGenerator) *MatchingService {
	return &MatchingService{specialists: specialists, generator: generator}
}

// Match ranks bookable specialists for issue. The AI ranking is preferred;
// any failure of it falls back to skill overlap so seniors always get
// suggestions.
func (s *MatchingService) Match(ctx context.Context, issue string) ([]domain.MatchCandidate, error) {
	issue = strings.TrimSpace(issue)
	if issue == "" {
		return nil, apperrors.ValidationError("describe the issue you need help with")
	}
	if len(issue) > maxIssueLength {
		return nil, apperrors.ValidationError("issue description is too long").WithField("max_length", maxIssueLength)
	}

	specialists, err := s.specialists.ListBookable(ctx)
	if err != nil {
		return nil, err
	}
	if len(specialists) == 0 {
		return []domain.MatchCandidate{}, nil
	}

	if s.generator != nil {
		ranked, err := s.rankWithAI(ctx, issue, specialists)
		if err == nil {
			return ranked, nil
		}
		slog.WarnContext(ctx, "AI matching failed, using skill overlap", "error", err)
	}
	return RankBySkills(issue, specialists), nil
}

type promptSpecialist struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Skills []string  `json:"skills"`
	Bio    string    `json:"bio"`
	Rating float64   `json:"rating"`
}

type aiRanking struct {
	SpecialistID string  `json:"specialist_id"`
	Score        float64 `json:"score"`
	Reason       string  `json:"reason"`
}

// truncateBio caps bio at maxBioInPrompt bytes without splitting a rune.
func truncateBio(bio string) string {
	if len(bio) <= maxBioInPrompt {
		return bio
	}
	cut := maxBioInPrompt
	for cut > 0 && !utf8.RuneStart(bio[cut]) {
		cut--
	}
	return bio[:cut]
}

func (s *MatchingService) rankWithAI(ctx context.Context, issue string, specialists []domain.SpecialistProfile) ([]domain.MatchCandidate, error) {
	roster := make([]promptSpecialist, 0, len(specialists))
	byID := make(map[uuid.UUID]domain.SpecialistProfile, len(specialists))
	for _, sp := range specialists {
		roster = append(roster, promptSpecialist{ID: sp.ProfileID, Name: sp.FullName, Skills: sp.Skills, Bio: truncateBio(sp.Bio), Rating: sp.Rating})
		byID[sp.ProfileID] = sp
	}

	rosterJSON, err := json.Marshal(roster)
	if err != nil {
		return nil, fmt.Errorf("encode roster: %w", err)
	}

	prompt := fmt.Sprintf(`You match older adults with technology support specialists.
Problem description: %q
Specialists (JSON): %s
Return a JSON array of at most %d objects {"specialist_id": string, "score": number between 0 and 1, "reason": short sentence}, best match first. Only use ids from the list.`,
		issue, rosterJSON, maxMatches)

	raw, err := s.generator.GenerateJSON(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var rankings []aiRanking
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &rankings); err != nil {
		return nil, fmt.Errorf("decode ranking: %w", err)
	}

	seen := make(map[uuid.UUID]bool, len(rankings))
	out := make([]domain.MatchCandidate, 0, maxMatches)
	for _, r := range rankings {
		id, err := uuid.Parse(r.SpecialistID)
		if err != nil {
			continue
		}
		sp, ok := byID[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, domain.MatchCandidate{
			SpecialistID:    id,
			FullName:        sp.FullName,
			HourlyRateCents: sp.HourlyRateCents,
			Score:           clamp01(r.Score),
			Reason:          strings.TrimSpace(r.Reason),
		})
	}
	if len(out) == 0 {
		return nil, errNoUsableRanking
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > maxMatches {
		out = out[:maxMatches]
	}
	return out, nil
}

// RankBySkills scores each specialist by the share of their skills mentioned
// in issue. Ties go to the higher rating, then the lower rate.
func RankBySkills(issue string, specialists []domain.SpecialistProfile) []domain.MatchCandidate {
	text := strings.ToLower(issue)
	words := make(map[string]bool)
	for _, w := range strings.FieldsFunc(text, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) }) {
		words[w] = true
	}

	type scored struct {
		sp      domain.SpecialistProfile
		score   float64
		matched []string
	}
	all := make([]scored, 0, len(specialists))
	for _, sp := range specialists {
		var matched []string
		for _, skill := range sp.Skills {
			k := strings.ToLower(strings.TrimSpace(skill))
			if k == "" {
				continue
			}
			if words[k] || (strings.Contains(k, " ") && strings.Contains(text, k)) {
				matched = append(matched, skill)
			}
		}
		score := 0.0
		if len(sp.Skills) > 0 {
			score = float64(len(matched)) / float64(len(sp.Skills))
		}
		all = append(all, scored{sp: sp, score: score, matched: matched})
	}

	sort.SliceStable(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.sp.Rating != b.sp.Rating {
			return a.sp.Rating > b.sp.Rating
		}
		if a.sp.HourlyRateCents != b.sp.HourlyRateCents {
			return a.sp.HourlyRateCents < b.sp.HourlyRateCents
		}
		return a.sp.FullName < b.sp.FullName
	})

	n := min(len(all), maxMatches)
	out := make([]domain.MatchCandidate, 0, n)
	for _, c := range all[:n] {
		reason := "Highly rated specialist available now"
		if len(c.matched) > 0 {
			reason = "Skilled in " + strings.Join(c.matched, ", ")
		}
		out = append(out, domain.MatchCandidate{
			SpecialistID:    c.sp.ProfileID,
			FullName:        c.sp.FullName,
			HourlyRateCents: c.sp.HourlyRateCents,
			Score:           c.score,
			Reason:          reason,
		})
	}
	return out
}

// stripCodeFence removes a markdown fence some models wrap JSON in.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func clamp01(v float64) float64 {
	return max(0, min(1, v))
}
