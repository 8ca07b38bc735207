package capabilities

import (
	"context"

	"github.com/openminiapp/miniapp/internal/bridge"
	"github.com/openminiapp/miniapp/internal/shared/types"
)

// Purchase relays in-app purchases to the host.
type Purchase struct {
	host bridge.Host
}

// NewPurchase creates the purchase capability.
func NewPurchase(host bridge.Host) *Purchase {
	return &Purchase{host: host}
}

func (p *Purchase) Definition() bridge.Definition {
	return bridge.Definition{
		ID:          "purchase",
		Name:        "In-App Purchase",
		Description: "Runs purchases through the host billing flow",
		Actions: []bridge.ActionSpec{
			{Action: "purchaseItem"},
		},
	}
}

func (p *Purchase) Execute(ctx context.Context, action string, params map[string]interface{}, appCtx *types.Context) (*types.Result, error) {
	if action != "purchaseItem" {
		return bridge.Failure(bridge.ErrKindUnknownAction)
	}
	productID, ok := params["productId"].(string)
	if !ok || productID == "" {
		return bridge.Failure(bridge.ErrKindInvalidParam)
	}
	transactionID, err := p.host.Purchase(ctx, appCtx, productID)
	if err != nil {
		return hostFailure(err)
	}
	return bridge.Success(map[string]interface{}{
		"productId":     productID,
		"transactionId": transactionID,
	})
}
