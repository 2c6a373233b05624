// Package planner produces the next plan action for an agent run by
// calling an LLM provider and strictly decoding its reply.
package planner

import (
	"context"
	"fmt"

	"github.com/Tarun553/study-coach/pkg/plan"
	"github.com/rs/zerolog"
)

// Snapshot carries the counts the planner uses to decide the next action.
type Snapshot struct {
	TasksCount     int `json:"tasks_count"`
	ResourcesCount int `json:"resources_count"`
}

// RunContext is the assembled context for one planning call.
type RunContext struct {
	Topic         string
	Goal          string
	TimeAvailable *int // minutes, nil when the user gave none
	Iteration     int
	Snapshot      Snapshot
}

// Planner decides the next action for a run. Implementations may fail or
// return output that does not decode; callers treat decode failures as fatal.
type Planner interface {
	PlanNextAction(ctx context.Context, rc RunContext) (*plan.Action, error)
}

// LLMPlanner asks a text-generation provider for the next action.
type LLMPlanner struct {
	provider    Provider
	model       string
	temperature float64
	maxTokens   int
	logger      zerolog.Logger
}

// Config holds LLM planner configuration.
type Config struct {
	Provider    Provider
	Model       string
	Temperature float64
	MaxTokens   int
	Logger      zerolog.Logger
}

// NewLLMPlanner creates a planner backed by an LLM provider.
func NewLLMPlanner(cfg Config) (*LLMPlanner, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}

	return &LLMPlanner{
		provider:    cfg.Provider,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      cfg.Logger.With().Str("component", "planner").Logger(),
	}, nil
}

// PlanNextAction builds the prompt, calls the provider and decodes the reply.
func (p *LLMPlanner) PlanNextAction(ctx context.Context, rc RunContext) (*plan.Action, error) {
	prompt := BuildPrompt(rc)

	reply, err := p.provider.Complete(ctx, CompletionRequest{
		Model:       p.model,
		Prompt:      prompt,
		Temperature: p.temperature,
		MaxTokens:   p.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("planner call failed: %w", err)
	}

	p.logger.Debug().
		Str("provider", p.provider.Name()).
		Int("iteration", rc.Iteration).
		Str("reply", reply).
		Msg("Planner replied")

	return plan.Decode(reply)
}
