package capabilities

import (
	"context"

	"github.com/openminiapp/miniapp/internal/bridge"
	"github.com/openminiapp/miniapp/internal/shared/id"
	"github.com/openminiapp/miniapp/internal/shared/types"
)

// Identity serves the unique-id action. The id is stable for the lifetime
// of the capability, which the host scopes to whatever identity lifetime it
// wants (device, login session).
type Identity struct {
	uniqueID string
}

// NewIdentity creates the identity capability. An empty uniqueID generates
// a fresh one.
func NewIdentity(uniqueID string) *Identity {
	if uniqueID == "" {
		uniqueID = id.Default().GenerateWithPrefix("uid")
	}
	return &Identity{uniqueID: uniqueID}
}

func (i *Identity) Definition() bridge.Definition {
	return bridge.Definition{
		ID:          "identity",
		Name:        "Identity",
		Description: "Stable unique identifier for the embedding host",
		Actions: []bridge.ActionSpec{
			{Action: "getUniqueId"},
		},
	}
}

func (i *Identity) Execute(ctx context.Context, action string, params map[string]interface{}, appCtx *types.Context) (*types.Result, error) {
	switch action {
	case "getUniqueId":
		return bridge.Success(map[string]interface{}{"uniqueId": i.uniqueID})
	default:
		return bridge.Failure(bridge.ErrKindUnknownAction)
	}
}
