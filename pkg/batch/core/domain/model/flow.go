package model

import "fmt"

// WildcardPattern matches any exit status that has no exact transition.
const WildcardPattern = "*"

// Transition is the target of a transition rule: either another step (To) or one of the
// terminal actions End, Fail or Stop.
type Transition struct {
	On   string `yaml:"on"`
	To   string `yaml:"to,omitempty"`
	End  bool   `yaml:"end,omitempty"`
	Fail bool   `yaml:"fail,omitempty"`
	Stop bool   `yaml:"stop,omitempty"`
}

// IsTerminal reports whether the transition ends the job instead of moving to a step.
func (t Transition) IsTerminal() bool {
	return t.End || t.Fail || t.Stop
}

func (t Transition) String() string {
	switch {
	case t.End:
		return fmt.Sprintf("on '%s' end", t.On)
	case t.Fail:
		return fmt.Sprintf("on '%s' fail", t.On)
	case t.Stop:
		return fmt.Sprintf("on '%s' stop", t.On)
	}
	return fmt.Sprintf("on '%s' to '%s'", t.On, t.To)
}

// TransitionRule is an edge of the job graph: (From, On) -> To | End | Fail | Stop.
type TransitionRule struct {
	From       string
	Transition Transition
}

// FlowDefinition is the step graph of a job. Elements holds the steps keyed by name.
// Structural checks (unknown targets, ambiguity, cycles) are performed by the flow builder.
type FlowDefinition struct {
	StartElement    string
	Elements        map[string]interface{}
	TransitionRules []TransitionRule
}

// NewFlowDefinition creates a FlowDefinition starting at startElement.
func NewFlowDefinition(startElement string) *FlowDefinition {
	return &FlowDefinition{
		StartElement: startElement,
		Elements:     make(map[string]interface{}),
	}
}

// AddElement registers a step under id.
func (fd *FlowDefinition) AddElement(id string, element interface{}) error {
	if _, exists := fd.Elements[id]; exists {
		return fmt.Errorf("flow element ID '%s' already exists", id)
	}
	fd.Elements[id] = element
	return nil
}

// AddTransitionRule appends a transition rule.
func (fd *FlowDefinition) AddTransitionRule(from, on, to string, end, fail, stop bool) {
	fd.TransitionRules = append(fd.TransitionRules, TransitionRule{
		From:       from,
		Transition: Transition{On: on, To: to, End: end, Fail: fail, Stop: stop},
	})
}

// GetTransitionRule selects the rule to follow after element from finished with exitStatus.
// An exact match on the exit status wins; the wildcard rule is used only when no exact
// rule exists.
func (fd *FlowDefinition) GetTransitionRule(from string, exitStatus ExitStatus) (TransitionRule, bool) {
	var wildcard *TransitionRule
	for i := range fd.TransitionRules {
		r := &fd.TransitionRules[i]
		if r.From != from {
			continue
		}
		if r.Transition.On == string(exitStatus) {
			return *r, true
		}
		if r.Transition.On == WildcardPattern && wildcard == nil {
			wildcard = r
		}
	}
	if wildcard != nil {
		return *wildcard, true
	}
	return TransitionRule{}, false
}
