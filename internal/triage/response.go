package triage

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/marcus/triage/internal/providers"
	"github.com/marcus/triage/internal/tasks"
)

// Score bounds. Provider scores outside the range are clamped.
const (
	MinScore = 1
	MaxScore = 100
)

// Response errors.
var (
	ErrInvalidJSON            = errors.New("response is not valid JSON")
	ErrMissingRecommendations = errors.New("response has no recommendations field")
	ErrContractViolation      = errors.New("recommendation violates the response contract")
)

// ResponseSchema declares the reply shape the provider must produce.
func ResponseSchema() *providers.Schema {
	return &providers.Schema{
		Type: providers.TypeObject,
		Properties: map[string]*providers.Schema{
			"recommendations": {
				Type: providers.TypeArray,
				Items: &providers.Schema{
					Type: providers.TypeObject,
					Properties: map[string]*providers.Schema{
						"taskId":               {Type: providers.TypeString},
						"suggestedAssociateId": {Type: providers.TypeString},
						"reasoning":            {Type: providers.TypeString},
						"priorityScore":        {Type: providers.TypeNumber},
					},
					Required: []string{"taskId", "suggestedAssociateId", "reasoning", "priorityScore"},
				},
			},
		},
		Required: []string{"recommendations"},
	}
}

// rawRecommendation keeps pointers so missing fields can be told apart
// from zero values.
type rawRecommendation struct {
	TaskID               *string  `json:"taskId"`
	SuggestedAssociateID *string  `json:"suggestedAssociateId"`
	Reasoning            *string  `json:"reasoning"`
	PriorityScore        *float64 `json:"priorityScore"`
}

type rawResponse struct {
	Recommendations *[]rawRecommendation `json:"recommendations"`
}

// ParseResponse decodes a provider reply into recommendations. A markdown
// code fence around the JSON is tolerated. Scores are clamped to
// [MinScore, MaxScore].
func ParseResponse(text string) ([]tasks.Recommendation, error) {
	body := stripFence(strings.TrimSpace(text))

	var raw rawResponse
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if raw.Recommendations == nil {
		return nil, ErrMissingRecommendations
	}

	recs := make([]tasks.Recommendation, 0, len(*raw.Recommendations))
	for i, r := range *raw.Recommendations {
		rec, err := r.validate()
		if err != nil {
			return nil, fmt.Errorf("recommendations[%d]: %w", i, err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func (r rawRecommendation) validate() (tasks.Recommendation, error) {
	var missing []string
	if r.TaskID == nil || *r.TaskID == "" {
		missing = append(missing, "taskId")
	}
	if r.SuggestedAssociateID == nil {
		missing = append(missing, "suggestedAssociateId")
	}
	if r.Reasoning == nil {
		missing = append(missing, "reasoning")
	}
	if r.PriorityScore == nil {
		missing = append(missing, "priorityScore")
	}
	if len(missing) > 0 {
		return tasks.Recommendation{}, fmt.Errorf("%w: missing %s", ErrContractViolation, strings.Join(missing, ", "))
	}
	score := *r.PriorityScore
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return tasks.Recommendation{}, fmt.Errorf("%w: priorityScore is not finite", ErrContractViolation)
	}
	return tasks.Recommendation{
		TaskID:               *r.TaskID,
		SuggestedAssociateID: *r.SuggestedAssociateID,
		Reasoning:            *r.Reasoning,
		PriorityScore:        ClampScore(score),
	}, nil
}

// ClampScore bounds a provider score to [MinScore, MaxScore].
func ClampScore(score float64) float64 {
	return math.Max(MinScore, math.Min(MaxScore, score))
}

// stripFence removes a surrounding ```json ... ``` block.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
