package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"canvasflow/internal/canvas"
	"canvasflow/internal/router"
)

const systemPrompt = "You are a helpful academic advisor that analyzes student assignments " +
	"and creates actionable study plans."

// Planner generates study plans from cached assignment data, falling back
// across model candidates.
type Planner struct {
	client     *Client
	gemini     *GeminiClient
	candidates []router.Candidate
	maxTokens  int
	logger     *zap.Logger
}

// NewPlanner wires the planner. gemini may be nil; when present it joins the
// fallback chain after the OpenAI-compatible candidates.
func NewPlanner(client *Client, gemini *GeminiClient, maxTokens int, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxTokens <= 0 {
		maxTokens = 1500
	}
	candidates := DefaultCandidates()
	if gemini != nil {
		candidates = append(candidates, router.Candidate{
			ID:       "gemini/" + gemini.Model(),
			Name:     "Gemini",
			Priority: 20,
		})
	}
	return &Planner{
		client:     client,
		gemini:     gemini,
		candidates: candidates,
		maxTokens:  maxTokens,
		logger:     logger,
	}
}

// GeneratePlan prepares the assignment projection, then executes the prompt
// through the fallback chain. The returned router.Result carries the plan
// text, the winning model, and the trace of any prior failures.
func (p *Planner) GeneratePlan(ctx context.Context, assignments []canvas.Assignment, tr canvas.TimeRange, observe Observer) (*router.Result, error) {
	input := canvas.PreparePlanInput(assignments, tr, time.Now())
	prompt := BuildPlanPrompt(input, time.Now())

	work := func(ctx context.Context, candidateID string) (string, error) {
		if geminiModel, ok := strings.CutPrefix(candidateID, "gemini/"); ok {
			if p.gemini == nil {
				return "", fmt.Errorf("gemini candidate %s not configured", geminiModel)
			}
			return p.gemini.Stream(ctx, systemPrompt+"\n\n"+prompt, observe)
		}
		return p.client.Stream(ctx, StreamRequest{
			Model:     candidateID,
			System:    systemPrompt,
			Prompt:    prompt,
			MaxTokens: p.maxTokens,
		}, observe)
	}

	return router.ExecuteWithFallback(ctx, p.candidates, work, p.logger)
}

// BuildPlanPrompt renders the study-plan prompt from the prepared
// assignment projection.
func BuildPlanPrompt(input canvas.PlanInput, now time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Analyze this student's Canvas assignments and create a Weekly Battle Plan.\n\n")
	fmt.Fprintf(&b, "TODAY'S DATE: %s\n\n", now.Format("Monday, January 2, 2006"))
	fmt.Fprintf(&b, "Current Status:\n")
	fmt.Fprintf(&b, "- Total Assignments: %d\n", input.TotalAssignments)
	fmt.Fprintf(&b, "- Courses: %s\n", strings.Join(input.Courses, ", "))
	fmt.Fprintf(&b, "- Due this week: %d\n", len(input.Upcoming))
	fmt.Fprintf(&b, "- Overdue: %d\n", len(input.Overdue))
	fmt.Fprintf(&b, "- Completed: %d\n\n", input.Completed)

	b.WriteString("Upcoming Assignments (next 7 days):\n")
	for i, a := range input.Upcoming {
		if i == 8 {
			break
		}
		fmt.Fprintf(&b, "- %s (%s) - Due: %s, %.0f points\n",
			a.Name, a.Course, a.DueDate.Format("1/2/2006"), a.Points)
	}

	b.WriteString("\nOverdue Assignments:\n")
	for i, a := range input.Overdue {
		if i == 5 {
			break
		}
		fmt.Fprintf(&b, "- %s (%s) - Was due: %s, %.0f points\n",
			a.Name, a.Course, a.DueDate.Format("1/2/2006"), a.Points)
	}

	b.WriteString("\nProvide practical, actionable advice. Be realistic with time estimates. Keep it concise.")
	return b.String()
}
