package platform

import (
	"context"
	"fmt"

	"github.com/specialistvlad/amlpipe/internal/ctxlog"
)

// DataAsset is one version of a registered data asset.
type DataAsset struct {
	Name    string
	Version string
	ID      string
}

type dataVersion struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// GetLatestData returns the newest version of the named data asset.
func (c *RESTClient) GetLatestData(ctx context.Context, name string) (*DataAsset, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}
	var list versionList[dataVersion]
	resp, err := latestQuery(req).
		SetPathParam("name", name).
		SetResult(&list).
		Get(workspacePath + "/data/{name}/versions")
	if err := check(resp, err); err != nil {
		return nil, fmt.Errorf("failed to look up data asset %s: %w", name, err)
	}
	if len(list.Value) == 0 {
		return nil, fmt.Errorf("data asset %s has no versions", name)
	}

	v := list.Value[0]
	ctxlog.FromContext(ctx).Debug("Resolved data asset.", "name", name, "version", v.Name)
	return &DataAsset{Name: name, Version: v.Name, ID: v.ID}, nil
}
