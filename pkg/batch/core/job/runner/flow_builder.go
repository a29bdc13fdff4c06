package runner

import (
	"fmt"
	"sort"
	"strings"

	port "github.com/tigerroll/surfin-tutorial/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
	exception "github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/exception"
)

// Flow is a validated step graph: the transition rules and the steps they refer to.
type Flow struct {
	JobName    string
	Definition *model.FlowDefinition
	Steps      map[string]port.Step
}

// FlowBuilder assembles a Flow. Every method records problems instead of failing; Build
// reports them all at once.
//
//	flow, err := runner.NewFlowBuilder("conditionalStepJob").
//		Start(startStep).
//		On("FAILED").To(failStep).
//		From(startStep).On("COMPLETED").To(completedStep).
//		From(startStep).On("*").To(allStep).
//		Build()
type FlowBuilder struct {
	jobName  string
	start    string
	current  string
	steps    map[string]port.Step
	rules    []model.TransitionRule
	problems []string
}

// TransitionBuilder completes a transition started with FlowBuilder.On.
type TransitionBuilder struct {
	parent  *FlowBuilder
	pattern string
}

// NewFlowBuilder starts the graph of job jobName.
func NewFlowBuilder(jobName string) *FlowBuilder {
	return &FlowBuilder{jobName: jobName, steps: make(map[string]port.Step)}
}

// Start sets the first step of the flow.
func (b *FlowBuilder) Start(step port.Step) *FlowBuilder {
	if b.start != "" {
		b.problem("start step already set to '%s'", b.start)
		return b
	}
	if name, ok := b.register(step); ok {
		b.start = name
		b.current = name
	}
	return b
}

// Next continues with step when the current step exits COMPLETED.
func (b *FlowBuilder) Next(step port.Step) *FlowBuilder {
	return b.On(string(model.ExitStatusCompleted)).To(step)
}

// From moves the cursor back to an already added step so that further transitions can
// leave it.
func (b *FlowBuilder) From(step port.Step) *FlowBuilder {
	if name, ok := b.register(step); ok {
		b.current = name
	}
	return b
}

// On starts a transition from the current step taken when its exit status equals pattern.
// The pattern "*" matches any exit status without an exact transition.
func (b *FlowBuilder) On(pattern string) *TransitionBuilder {
	if b.current == "" {
		b.problem("transition on '%s' has no source step; call Start or From first", pattern)
	}
	return &TransitionBuilder{parent: b, pattern: pattern}
}

// To routes the transition to step and makes step the current step.
func (t *TransitionBuilder) To(step port.Step) *FlowBuilder {
	b := t.parent
	name, ok := b.register(step)
	if !ok {
		return b
	}
	b.addRule(model.Transition{On: t.pattern, To: name})
	b.current = name
	return b
}

// ToName routes the transition to a step added elsewhere in the builder by name.
func (t *TransitionBuilder) ToName(name string) *FlowBuilder {
	b := t.parent
	b.addRule(model.Transition{On: t.pattern, To: name})
	b.current = name
	return b
}

// End completes the job on the transition.
func (t *TransitionBuilder) End() *FlowBuilder {
	t.parent.addRule(model.Transition{On: t.pattern, End: true})
	return t.parent
}

// Fail fails the job on the transition.
func (t *TransitionBuilder) Fail() *FlowBuilder {
	t.parent.addRule(model.Transition{On: t.pattern, Fail: true})
	return t.parent
}

// Stop stops the job on the transition; a restart resumes after the source step.
func (t *TransitionBuilder) Stop() *FlowBuilder {
	t.parent.addRule(model.Transition{On: t.pattern, Stop: true})
	return t.parent
}

// Build validates the graph. It fails with a *exception.TransitionConfigError when the
// start step is missing, two steps share a name, a (step, pattern) pair has two
// transitions, a transition targets an unknown step, or the transitions form a cycle.
func (b *FlowBuilder) Build() (*Flow, error) {
	if b.start == "" {
		b.problem("no start step")
	}

	seen := make(map[string]bool)
	for _, r := range b.rules {
		key := r.From + "\x00" + r.Transition.On
		if seen[key] {
			b.problem("ambiguous transitions from '%s' on '%s'", r.From, r.Transition.On)
		}
		seen[key] = true
		if !r.Transition.IsTerminal() {
			if _, ok := b.steps[r.Transition.To]; !ok {
				b.problem("transition from '%s' on '%s' targets unknown step '%s'", r.From, r.Transition.On, r.Transition.To)
			}
		}
	}
	if cycle := b.findCycle(); cycle != nil {
		b.problem("cycle detected: %s", strings.Join(cycle, " -> "))
	}

	if len(b.problems) > 0 {
		return nil, exception.NewTransitionConfigError(b.jobName, "%s", strings.Join(b.problems, "; "))
	}

	def := model.NewFlowDefinition(b.start)
	for name, step := range b.steps {
		_ = def.AddElement(name, step)
	}
	def.TransitionRules = append(def.TransitionRules, b.rules...)
	return &Flow{JobName: b.jobName, Definition: def, Steps: b.steps}, nil
}

func (b *FlowBuilder) register(step port.Step) (string, bool) {
	if step == nil {
		b.problem("nil step")
		return "", false
	}
	name := step.StepName()
	if name == "" {
		b.problem("step without a name")
		return "", false
	}
	if existing, ok := b.steps[name]; ok && existing != step {
		b.problem("duplicate step name '%s'", name)
		return "", false
	}
	b.steps[name] = step
	return name, true
}

func (b *FlowBuilder) addRule(t model.Transition) {
	if b.current == "" {
		return
	}
	b.rules = append(b.rules, model.TransitionRule{From: b.current, Transition: t})
}

func (b *FlowBuilder) problem(format string, a ...interface{}) {
	b.problems = append(b.problems, fmt.Sprintf(format, a...))
}

// findCycle returns the steps of one cycle, or nil.
func (b *FlowBuilder) findCycle() []string {
	edges := make(map[string][]string)
	for _, r := range b.rules {
		if !r.Transition.IsTerminal() {
			edges[r.From] = append(edges[r.From], r.Transition.To)
		}
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int)
	var path []string
	var visit func(n string) []string
	visit = func(n string) []string {
		state[n] = visiting
		path = append(path, n)
		for _, next := range edges[n] {
			switch state[next] {
			case visiting:
				for i, p := range path {
					if p == next {
						return append(append([]string(nil), path[i:]...), next)
					}
				}
			case unvisited:
				if c := visit(next); c != nil {
					return c
				}
			}
		}
		path = path[:len(path)-1]
		state[n] = done
		return nil
	}

	names := make([]string, 0, len(edges))
	for n := range edges {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		if state[n] == unvisited {
			if c := visit(n); c != nil {
				return c
			}
		}
	}
	return nil
}
