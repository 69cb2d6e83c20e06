package statemachine

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// DefaultMaxTransitionDepth bounds nested ChangeState calls when the policy
// leaves MaxTransitionDepth at zero.
const DefaultMaxTransitionDepth = 64

// maxConfigurableDepth keeps a bounded policy well below the point where the
// goroutine stack would be exhausted anyway.
const maxConfigurableDepth = 10_000

// Policy controls what ChangeState does when the target is already the
// current state. With every switch off, a same-state transition only updates
// the previous-state reference.
type Policy struct {
	// EnterOnReenter re-runs enter on the target of a same-state transition.
	EnterOnReenter bool `env:"ENTER_ON_REENTER" json:"enterOnReenter" yaml:"enterOnReenter"`

	// ExitOnReenter runs exit on the current state of a same-state transition.
	ExitOnReenter bool `env:"EXIT_ON_REENTER" json:"exitOnReenter" yaml:"exitOnReenter"`

	// NotifyOnReenter fires the state-changed notification on a same-state transition.
	NotifyOnReenter bool `env:"NOTIFY_ON_REENTER" json:"notifyOnReenter" yaml:"notifyOnReenter"`

	// MaxTransitionDepth bounds ChangeState calls nested inside hooks of
	// another ChangeState. Zero selects DefaultMaxTransitionDepth; a negative
	// value disables the bound.
	MaxTransitionDepth int `env:"MAX_TRANSITION_DEPTH" json:"maxTransitionDepth" yaml:"maxTransitionDepth"`
}

// ReenterAll is a policy that refreshes a state fully on same-state transitions.
func ReenterAll() Policy {
	return Policy{
		EnterOnReenter:  true,
		ExitOnReenter:   true,
		NotifyOnReenter: true,
	}
}

// Validate checks if the policy is usable. The three reenter switches are
// independent, so only the depth bound is checked.
func (p Policy) Validate() error {
	if p.MaxTransitionDepth > maxConfigurableDepth {
		return fmt.Errorf("%w: maxTransitionDepth %d exceeds %d",
			ErrInvalidPolicy, p.MaxTransitionDepth, maxConfigurableDepth)
	}

	return nil
}

// maxDepth resolves MaxTransitionDepth. A negative result means unbounded.
func (p Policy) maxDepth() int {
	if p.MaxTransitionDepth == 0 {
		return DefaultMaxTransitionDepth
	}

	return p.MaxTransitionDepth
}

// LoadPolicy loads a policy from a YAML file.
func LoadPolicy(path string) (Policy, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Intentional path-based loading
	if err != nil {
		return Policy{}, fmt.Errorf("failed to read policy file %q: %w", path, err)
	}

	return LoadPolicyFromBytes(data)
}

// LoadPolicyFromBytes loads a policy from YAML bytes.
func LoadPolicyFromBytes(data []byte) (Policy, error) {
	var policy Policy

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	err := decoder.Decode(&policy)
	if err != nil && !errors.Is(err, io.EOF) {
		return Policy{}, fmt.Errorf("%w: failed to parse YAML: %w", ErrInvalidPolicy, err)
	}

	err = policy.Validate()
	if err != nil {
		return Policy{}, err
	}

	return policy, nil
}

// LoadPolicyFromFS loads a policy from an embedded filesystem.
func LoadPolicyFromFS(fsys fs.FS, path string) (Policy, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return Policy{}, fmt.Errorf("failed to read policy from FS: %w", err)
	}

	return LoadPolicyFromBytes(data)
}

// PolicyFromEnv reads a policy from HSM_* environment variables, e.g.
// HSM_ENTER_ON_REENTER=true. Unset variables keep their zero value.
func PolicyFromEnv() (Policy, error) {
	return PolicyFromEnvMap(nil)
}

// PolicyFromEnvMap is PolicyFromEnv with an explicit environment. A nil map
// reads the process environment.
func PolicyFromEnvMap(environment map[string]string) (Policy, error) {
	opts := env.Options{Prefix: "HSM_"}
	if environment != nil {
		opts.Environment = environment
	}

	policy, err := env.ParseAsWithOptions[Policy](opts)
	if err != nil {
		return Policy{}, fmt.Errorf("failed to parse policy from environment: %w", err)
	}

	err = policy.Validate()
	if err != nil {
		return Policy{}, err
	}

	return policy, nil
}
