package types

import (
	"fmt"
	"strings"
	"time"
)

// PlanStep is one entry of the model-produced execution plan.
type PlanStep struct {
	Step    int    `json:"step"`
	Action  string `json:"action"`
	Target  string `json:"target"`
	Purpose string `json:"purpose"`
}

// Plan is the structured strategy produced by the planner's single model
// call before any tool use begins. A nil *Plan means planning was
// unavailable and the orchestrator runs with an adaptive strategy.
type Plan struct {
	ProjectAnalysis      string     `json:"projectAnalysis"`
	UserRequestBreakdown string     `json:"userRequestBreakdown"`
	ExecutionPlan        []PlanStep `json:"executionPlan"`
	EstimatedSteps       int        `json:"estimatedSteps"`
	Dependencies         []string   `json:"dependencies"`
	PotentialChallenges  []string   `json:"potentialChallenges"`
	Confidence           int        `json:"confidence"`
}

// Summary renders the plan as a human-readable assistant message.
func (p *Plan) Summary() string {
	var sb strings.Builder
	sb.WriteString("Here's my plan:\n\n")
	if p.UserRequestBreakdown != "" {
		sb.WriteString(p.UserRequestBreakdown)
		sb.WriteString("\n\n")
	}
	for _, step := range p.ExecutionPlan {
		fmt.Fprintf(&sb, "%d. %s %s: %s\n", step.Step, step.Action, step.Target, step.Purpose)
	}
	if p.EstimatedSteps > 0 {
		fmt.Fprintf(&sb, "\nEstimated steps: %d (confidence %d%%)", p.EstimatedSteps, p.Confidence)
	}
	return sb.String()
}

// Clone creates a deep copy of the Plan
func (p *Plan) Clone() *Plan {
	if p == nil {
		return nil
	}
	clone := *p
	if p.ExecutionPlan != nil {
		clone.ExecutionPlan = make([]PlanStep, len(p.ExecutionPlan))
		copy(clone.ExecutionPlan, p.ExecutionPlan)
	}
	if p.Dependencies != nil {
		clone.Dependencies = append([]string(nil), p.Dependencies...)
	}
	if p.PotentialChallenges != nil {
		clone.PotentialChallenges = append([]string(nil), p.PotentialChallenges...)
	}
	return &clone
}

// Reflection is a model-generated judgment of progress after one
// tool-execution batch. Immutable after creation; Confidence and
// ShouldContinue drive loop termination.
type Reflection struct {
	ID                 string    `json:"id"`
	Step               int       `json:"step"`
	ToolResults        []string  `json:"toolResults"`
	CurrentSituation   string    `json:"currentSituation"`
	NextSteps          []string  `json:"nextSteps"`
	Reasoning          string    `json:"reasoning"`
	Confidence         int       `json:"confidence"` // 0-100
	ShouldContinue     bool      `json:"shouldContinue"`
	ProgressPercentage int       `json:"progressPercentage"`
	Timestamp          time.Time `json:"timestamp"`
}

// Clone creates a deep copy of the Reflection
func (r Reflection) Clone() Reflection {
	clone := r
	if r.ToolResults != nil {
		clone.ToolResults = append([]string(nil), r.ToolResults...)
	}
	if r.NextSteps != nil {
		clone.NextSteps = append([]string(nil), r.NextSteps...)
	}
	return clone
}

// ExecutionPhase is the orchestrator's state-machine phase.
type ExecutionPhase string

const (
	PhasePlanning   ExecutionPhase = "planning"
	PhaseExecuting  ExecutionPhase = "executing"
	PhaseReflecting ExecutionPhase = "reflecting"
	PhaseCompleted  ExecutionPhase = "completed"
)

// PlanningExecution tracks one user goal from planning through completion.
// Mutated by the orchestrator as it advances; terminal when Status is
// PhaseCompleted.
type PlanningExecution struct {
	ID          string         `json:"id"`
	Goal        string         `json:"goal"`
	Status      ExecutionPhase `json:"status"`
	CurrentStep int            `json:"current_step"`
	TotalSteps  int            `json:"total_steps"`
	Reflections []Reflection   `json:"reflections"`
	StartTime   time.Time      `json:"start_time"`
	EndTime     *time.Time     `json:"end_time,omitempty"`
}

// Clone creates a deep copy of the PlanningExecution
func (p *PlanningExecution) Clone() *PlanningExecution {
	if p == nil {
		return nil
	}
	clone := *p
	if p.Reflections != nil {
		clone.Reflections = make([]Reflection, len(p.Reflections))
		for i, r := range p.Reflections {
			clone.Reflections[i] = r.Clone()
		}
	}
	if p.EndTime != nil {
		t := *p.EndTime
		clone.EndTime = &t
	}
	return &clone
}
