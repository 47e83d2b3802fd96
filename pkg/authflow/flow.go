package authflow

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/tendant/simple-auth/pkg/user"
)

// LoginFlowStep is one stage of the login state machine
type LoginFlowStep interface {
	// Name returns the unique name of this step
	Name() string

	// Order returns the execution order (lower numbers execute first)
	Order() int

	// Execute performs the step's logic. A returned error is an upstream
	// failure; expected rejections are reported through StepResult.
	Execute(ctx context.Context, flowContext *FlowContext) (*StepResult, error)

	// ShouldSkip determines if this step should be skipped based on current context
	ShouldSkip(ctx context.Context, flowContext *FlowContext) bool
}

// FlowContext carries state between login flow steps
type FlowContext struct {
	Request LoginRequest
	Result  *Result
	User    *user.User

	// Step-specific data (can be used by steps to store intermediate results)
	StepData map[string]interface{}

	Services *Service
}

// StepResult is what a step hands back to the executor
type StepResult struct {
	// Continue indicates whether the flow should continue to the next step
	Continue bool

	// EarlyReturn stops the flow and returns FlowContext.Result as is
	EarlyReturn bool

	// Data is merged into FlowContext.StepData
	Data map[string]interface{}
}

// StepRegistry manages and orders login flow steps
type StepRegistry struct {
	steps []LoginFlowStep
}

func NewStepRegistry() *StepRegistry {
	return &StepRegistry{
		steps: make([]LoginFlowStep, 0),
	}
}

func (r *StepRegistry) AddStep(step LoginFlowStep) *StepRegistry {
	r.steps = append(r.steps, step)
	return r
}

// GetOrderedSteps returns steps sorted by their order
func (r *StepRegistry) GetOrderedSteps() []LoginFlowStep {
	orderedSteps := make([]LoginFlowStep, len(r.steps))
	copy(orderedSteps, r.steps)

	sort.SliceStable(orderedSteps, func(i, j int) bool {
		return orderedSteps[i].Order() < orderedSteps[j].Order()
	})

	return orderedSteps
}

// FlowExecutor runs registered steps in order
type FlowExecutor struct {
	registry *StepRegistry
	services *Service
}

func NewFlowExecutor(registry *StepRegistry, services *Service) *FlowExecutor {
	return &FlowExecutor{
		registry: registry,
		services: services,
	}
}

// Execute runs the flow. A flow that runs out of steps without producing a
// result is a wiring error and is reported as such.
func (e *FlowExecutor) Execute(ctx context.Context, request LoginRequest) (Result, error) {
	flowContext := &FlowContext{
		Request:  request,
		Result:   &Result{},
		StepData: make(map[string]interface{}),
		Services: e.services,
	}

	for _, step := range e.registry.GetOrderedSteps() {
		if step.ShouldSkip(ctx, flowContext) {
			slog.Debug("Login step skipped", "step", step.Name())
			continue
		}

		stepResult, err := step.Execute(ctx, flowContext)
		if err != nil {
			return Result{}, fmt.Errorf("login step %s: %w", step.Name(), err)
		}

		for key, value := range stepResult.Data {
			flowContext.StepData[key] = value
		}

		if stepResult.EarlyReturn || !stepResult.Continue {
			break
		}
	}

	if flowContext.Result.Outcome == "" {
		return Result{}, fmt.Errorf("login flow ended without a result")
	}
	return *flowContext.Result, nil
}

// Step orders
const (
	OrderInputValidation       = 100
	OrderUserLookup            = 200
	OrderEmailVerificationGate = 300
	OrderTwoFactorGate         = 400
	OrderPasswordCheck         = 500
	OrderSessionIssuance       = 600
)

// NewLoginFlow builds the credentials login flow
func NewLoginFlow(services *Service) *FlowExecutor {
	registry := NewStepRegistry().
		AddStep(&InputValidationStep{}).
		AddStep(&UserLookupStep{}).
		AddStep(&EmailVerificationGateStep{}).
		AddStep(&TwoFactorGateStep{}).
		AddStep(&PasswordCheckStep{}).
		AddStep(&SessionIssuanceStep{})
	return NewFlowExecutor(registry, services)
}
