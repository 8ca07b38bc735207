package capabilities

import (
	"context"

	"github.com/openminiapp/miniapp/internal/bridge"
	"github.com/openminiapp/miniapp/internal/shared/types"
)

// Share relays content to the host share sheet.
type Share struct {
	host bridge.Host
}

// NewShare creates the share capability.
func NewShare(host bridge.Host) *Share {
	return &Share{host: host}
}

func (s *Share) Definition() bridge.Definition {
	return bridge.Definition{
		ID:          "share",
		Name:        "Content Sharing",
		Description: "Hands content to the host share sheet",
		Actions: []bridge.ActionSpec{
			{Action: "shareInfo"},
		},
	}
}

func (s *Share) Execute(ctx context.Context, action string, params map[string]interface{}, appCtx *types.Context) (*types.Result, error) {
	if action != "shareInfo" {
		return bridge.Failure(bridge.ErrKindUnknownAction)
	}
	content, ok := params["content"].(string)
	if !ok || content == "" {
		return bridge.Failure(bridge.ErrKindInvalidParam)
	}
	if err := s.host.ShareContent(ctx, appCtx, content); err != nil {
		return hostFailure(err)
	}
	return bridge.Success(map[string]interface{}{"shared": true})
}
