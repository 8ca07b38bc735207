package capabilities

import (
	"context"
	"errors"

	"github.com/openminiapp/miniapp/internal/bridge"
	"github.com/openminiapp/miniapp/internal/securestorage"
	"github.com/openminiapp/miniapp/internal/shared/types"
)

// Storage exposes the per-app secure storage engine over the bridge. The
// engine instance is session-scoped; the host loads it before the session
// starts serving bridge traffic.
type Storage struct {
	engine *securestorage.Engine
}

// NewStorage creates the storage capability over a loaded engine.
func NewStorage(engine *securestorage.Engine) *Storage {
	return &Storage{engine: engine}
}

func (s *Storage) Definition() bridge.Definition {
	return bridge.Definition{
		ID:          "storage",
		Name:        "Secure Storage",
		Description: "Quota-limited per-app key/value store",
		Actions: []bridge.ActionSpec{
			{Action: "getSecureStorageItem"},
			{Action: "setSecureStorageItems"},
			{Action: "removeSecureStorageItems"},
			{Action: "getSecureStorageSize"},
			{Action: "clearSecureStorage"},
		},
	}
}

func (s *Storage) Execute(ctx context.Context, action string, params map[string]interface{}, appCtx *types.Context) (*types.Result, error) {
	switch action {
	case "getSecureStorageItem":
		key, ok := params["secureStorageKey"].(string)
		if !ok || key == "" {
			return bridge.Failure(bridge.ErrKindInvalidParam)
		}
		value, found, err := s.engine.Get(key)
		if err != nil {
			return storageFailure(err)
		}
		if !found {
			return bridge.Success(map[string]interface{}{"secureStorageItem": nil})
		}
		return bridge.Success(map[string]interface{}{"secureStorageItem": value})

	case "setSecureStorageItems":
		raw, ok := params["secureStorageItems"].(map[string]interface{})
		if !ok || len(raw) == 0 {
			return bridge.Failure(bridge.ErrKindInvalidParam)
		}
		items := make(map[string]string, len(raw))
		for key, value := range raw {
			str, ok := value.(string)
			if !ok {
				return bridge.Failure(bridge.ErrKindInvalidParam)
			}
			items[key] = str
		}
		if err := s.engine.Set(ctx, items); err != nil {
			return storageFailure(err)
		}
		return bridge.Success(map[string]interface{}{"stored": len(items)})

	case "removeSecureStorageItems":
		keys := stringSlice(params["secureStorageKeyList"])
		if len(keys) == 0 {
			return bridge.Failure(bridge.ErrKindInvalidParam)
		}
		if err := s.engine.Remove(ctx, keys); err != nil {
			return storageFailure(err)
		}
		return bridge.Success(map[string]interface{}{"removed": len(keys)})

	case "getSecureStorageSize":
		usage, err := s.engine.Size()
		if err != nil {
			return storageFailure(err)
		}
		return bridge.Success(map[string]interface{}{
			"used": usage.Used,
			"max":  usage.Max,
		})

	case "clearSecureStorage":
		if err := s.engine.Clear(); err != nil {
			return storageFailure(err)
		}
		return bridge.Success(map[string]interface{}{"cleared": true})

	default:
		return bridge.Failure(bridge.ErrKindUnknownAction)
	}
}

func storageFailure(err error) (*types.Result, error) {
	switch {
	case errors.Is(err, securestorage.ErrStorageUnavailable):
		return bridge.Failure(bridge.ErrKindStorageUnavailable)
	case errors.Is(err, securestorage.ErrStorageBusy):
		return bridge.Failure(bridge.ErrKindStorageBusy)
	case errors.Is(err, securestorage.ErrStorageFull):
		return bridge.Failure(bridge.ErrKindStorageFull)
	default:
		return bridge.Failure(bridge.ErrKindHostFailure)
	}
}
