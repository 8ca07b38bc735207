package capabilities

import (
	"context"

	"github.com/openminiapp/miniapp/internal/bridge"
	"github.com/openminiapp/miniapp/internal/shared/types"
)

// Download relays file downloads to the host, gated by the file-download
// permission.
type Download struct {
	host bridge.Host
}

// NewDownload creates the download capability.
func NewDownload(host bridge.Host) *Download {
	return &Download{host: host}
}

func (d *Download) Definition() bridge.Definition {
	return bridge.Definition{
		ID:          "download",
		Name:        "File Download",
		Description: "Saves remote files through the host",
		Actions: []bridge.ActionSpec{
			{Action: "downloadFile", Permission: types.PermissionFileDownload},
		},
	}
}

func (d *Download) Execute(ctx context.Context, action string, params map[string]interface{}, appCtx *types.Context) (*types.Result, error) {
	if action != "downloadFile" {
		return bridge.Failure(bridge.ErrKindUnknownAction)
	}
	url, _ := params["url"].(string)
	filename, _ := params["filename"].(string)
	if url == "" || filename == "" {
		return bridge.Failure(bridge.ErrKindInvalidParam)
	}
	headers := make(map[string]string)
	if raw, ok := params["headers"].(map[string]interface{}); ok {
		for key, value := range raw {
			if s, ok := value.(string); ok {
				headers[key] = s
			}
		}
	}
	saved, err := d.host.DownloadFile(ctx, appCtx, url, filename, headers)
	if err != nil {
		return hostFailure(err)
	}
	return bridge.Success(map[string]interface{}{"filename": saved})
}
