package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/aretw0/easel/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Script is a replayable editing session.
//
//	name: rename title
//	config:
//	  maxEventActionsNesting: 8
//	state:
//	  rootElement: root
//	  elements:
//	    root: {type: page, elements: []}
//	steps:
//	  - action: CREATE_ELEMENT
//	    args: {id: title, type: heading}
//	  - do: undo
type Script struct {
	Name   string         `yaml:"name"`
	Config map[string]any `yaml:"config"`
	State  map[string]any `yaml:"state"`
	Steps  []Step         `yaml:"steps"`
}

// Step is either an action to trigger or a history operation.
type Step struct {
	Action string      `yaml:"action,omitempty"`
	Args   domain.Args `yaml:"args,omitempty"`
	Do     string      `yaml:"do,omitempty"`
	// ExpectError lets a script assert that a step fails without aborting.
	ExpectError bool `yaml:"expectError,omitempty"`
}

// History operations a step may name in Do.
const (
	OpUndo           = "undo"
	OpRedo           = "redo"
	OpStartBatch     = "startBatch"
	OpEndBatch       = "endBatch"
	OpDisableHistory = "disableHistory"
	OpEnableHistory  = "enableHistory"
)

var knownOps = map[string]bool{
	OpUndo: true, OpRedo: true,
	OpStartBatch: true, OpEndBatch: true,
	OpDisableHistory: true, OpEnableHistory: true,
}

// LoadScript reads and validates a YAML script.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return ParseScript(data)
}

// ParseScript decodes and validates a YAML script.
func ParseScript(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	for i, step := range s.Steps {
		switch {
		case step.Action != "" && step.Do != "":
			return nil, fmt.Errorf("step %d: action and do are mutually exclusive", i+1)
		case step.Action == "" && step.Do == "":
			return nil, fmt.Errorf("step %d: needs an action or a do", i+1)
		case step.Do != "" && !knownOps[step.Do]:
			return nil, fmt.Errorf("step %d: unknown operation %q", i+1, step.Do)
		}
	}
	return &s, nil
}

// InitialState converts the script state into typed slices.
func (s *Script) InitialState() (domain.State, error) {
	state := make(domain.State, len(s.State))
	for k, v := range s.State {
		state[domain.SliceName(k)] = v
	}
	snap := &domain.Snapshot{Slices: state}
	if err := snap.Normalize(); err != nil {
		return nil, err
	}
	return snap.Slices, nil
}

func (s Step) String() string {
	if s.Do != "" {
		return s.Do
	}
	return s.Action
}

func jsonIndent(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}
