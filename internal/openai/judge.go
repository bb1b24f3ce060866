package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultJudgeModel is the OpenAI model used for quality judgments
const DefaultJudgeModel = openai.GPT4oMini

var (
	// ErrNoCandidates is returned when a judgment is requested for an empty group
	ErrNoCandidates = errors.New("no candidates to judge")
	// ErrMalformedJudgment is returned when the judge response cannot be parsed
	ErrMalformedJudgment = errors.New("judge returned a malformed judgment")
)

// Candidate is one segment submitted to the judge for comparison.
type Candidate struct {
	SegmentID  string
	Transcript string
}

// CandidateScore is the judge's verdict for one candidate. All dimensions are
// in [0,1]. Overall is the judge's own weighting and is not recomputed.
type CandidateScore struct {
	SegmentID    string  `json:"segment_id"`
	Delivery     float64 `json:"delivery"`
	Clarity      float64 `json:"clarity"`
	Completeness float64 `json:"completeness"`
	Overall      float64 `json:"overall"`
	Notes        string  `json:"notes"`
}

// GroupJudgment is the judge's comparative verdict for a whole group.
// Certainty expresses how clearly the judge could separate the candidates;
// values near zero indicate the takes were too close to rank confidently.
type GroupJudgment struct {
	Candidates []CandidateScore `json:"candidates"`
	Certainty  float64          `json:"certainty"`
	Summary    string           `json:"summary"`
}

// ChatAPI defines the interface for chat completion calls
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Judge scores groups of redundant segment candidates with a single
// comparative chat completion per group.
type Judge struct {
	api   ChatAPI
	model string
}

type JudgeConfig struct {
	APIKey string
	Model  string
}

// NewJudge creates a new Judge using defaults.
func NewJudge(apiKey string) *Judge {
	return NewJudgeWithConfig(JudgeConfig{APIKey: apiKey})
}

// NewJudgeWithConfig creates a new Judge with explicit configuration.
func NewJudgeWithConfig(cfg JudgeConfig) *Judge {
	model := cfg.Model
	if model == "" {
		model = DefaultJudgeModel
	}
	return &Judge{
		api:   openai.NewClient(cfg.APIKey),
		model: model,
	}
}

const judgeSystemPrompt = `You are an editor reviewing multiple takes of the same spoken content.
Score every candidate on delivery, clarity and completeness, each between 0 and 1,
and give an overall score reflecting your own weighting of the dimensions.
Write short comparative notes per candidate referencing the other takes.
Report a certainty between 0 and 1 for how clearly the takes can be ranked;
use a low certainty when the takes are effectively interchangeable.
Respond with JSON only, in this shape:
{"candidates":[{"segment_id":"...","delivery":0.0,"clarity":0.0,"completeness":0.0,"overall":0.0,"notes":"..."}],"certainty":0.0,"summary":"..."}`

// JudgeGroup requests one comparative judgment covering every candidate in the
// group. creatorProfile is optional project-level context about the speaker.
func (j *Judge) JudgeGroup(ctx context.Context, creatorProfile string, candidates []Candidate) (*GroupJudgment, error) {
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}

	var sb strings.Builder
	if creatorProfile != "" {
		sb.WriteString("Creator profile:\n")
		sb.WriteString(creatorProfile)
		sb.WriteString("\n\n")
	}
	sb.WriteString(fmt.Sprintf("Compare the following %d takes of the same content:\n", len(candidates)))
	for i, c := range candidates {
		sb.WriteString(fmt.Sprintf("\nTake %d (segment_id: %s):\n%s\n", i+1, c.SegmentID, c.Transcript))
	}

	resp, err := j.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: j.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: judgeSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: sb.String()},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.2,
	})
	if err != nil {
		return nil, fmt.Errorf("judge call failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, ErrMalformedJudgment
	}

	judgment, err := parseJudgment(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	if err := validateJudgment(judgment, candidates); err != nil {
		return nil, err
	}

	return judgment, nil
}

func parseJudgment(content string) (*GroupJudgment, error) {
	content = strings.TrimSpace(content)
	// Some models wrap JSON in markdown fences despite the response format.
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var judgment GroupJudgment
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &judgment); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedJudgment, err)
	}
	return &judgment, nil
}

func validateJudgment(j *GroupJudgment, candidates []Candidate) error {
	if len(j.Candidates) != len(candidates) {
		return fmt.Errorf("%w: expected %d candidate scores, got %d",
			ErrMalformedJudgment, len(candidates), len(j.Candidates))
	}

	scored := make(map[string]bool, len(j.Candidates))
	for i := range j.Candidates {
		s := &j.Candidates[i]
		if !inUnitRange(s.Delivery) || !inUnitRange(s.Clarity) ||
			!inUnitRange(s.Completeness) || !inUnitRange(s.Overall) {
			return fmt.Errorf("%w: score out of [0,1] for segment %s", ErrMalformedJudgment, s.SegmentID)
		}
		scored[s.SegmentID] = true
	}

	for _, c := range candidates {
		if !scored[c.SegmentID] {
			return fmt.Errorf("%w: missing score for segment %s", ErrMalformedJudgment, c.SegmentID)
		}
	}

	if j.Certainty < 0 {
		j.Certainty = 0
	}
	if j.Certainty > 1 {
		j.Certainty = 1
	}

	return nil
}

func inUnitRange(v float64) bool {
	return v >= 0 && v <= 1
}
