package bridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/openminiapp/miniapp/internal/shared/types"
)

// ActionSpec declares one bridge action a capability handles, optionally
// gated by a custom permission the user must have granted.
type ActionSpec struct {
	Action     string
	Permission types.CustomPermission
}

// Definition describes a capability and the actions it serves.
type Definition struct {
	ID          string
	Name        string
	Description string
	Actions     []ActionSpec
}

// Capability executes bridge actions for one concern (profile, storage,
// sharing). Execute returns an error only for internal failures; expected
// failures travel in the Result's error kind.
type Capability interface {
	Definition() Definition
	Execute(ctx context.Context, action string, params map[string]interface{}, appCtx *types.Context) (*types.Result, error)
}

// Registry maps actions to capabilities.
type Registry struct {
	actions sync.Map // action -> Capability
}

// NewRegistry creates an empty capability registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a capability, claiming every action its definition lists.
func (r *Registry) Register(capability Capability) error {
	def := capability.Definition()
	if def.ID == "" {
		return fmt.Errorf("capability ID cannot be empty")
	}
	for _, spec := range def.Actions {
		if spec.Action == "" {
			return fmt.Errorf("capability %s declares an empty action", def.ID)
		}
		if _, taken := r.actions.LoadOrStore(spec.Action, registration{capability, spec}); taken {
			return fmt.Errorf("action %s already registered", spec.Action)
		}
	}
	return nil
}

// Resolve returns the capability and gate for an action.
func (r *Registry) Resolve(action string) (Capability, ActionSpec, bool) {
	val, ok := r.actions.Load(action)
	if !ok {
		return nil, ActionSpec{}, false
	}
	reg := val.(registration)
	return reg.capability, reg.spec, true
}

// Actions returns every registered action name.
func (r *Registry) Actions() []string {
	var out []string
	r.actions.Range(func(key, _ interface{}) bool {
		out = append(out, key.(string))
		return true
	})
	return out
}

type registration struct {
	capability Capability
	spec       ActionSpec
}
