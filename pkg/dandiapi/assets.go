package dandiapi

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/marmos91/dandifs/pkg/vfs"
)

// digestKey is the identity token entry of an asset's digest map.
const digestKey = "dandi:dandi-etag"

// ListAssetPaths pages through the path listing of a version under
// pathPrefix. The service reports records for the prefix itself and one
// level below it, tagged folder or asset, ordered by path.
func (c *Client) ListAssetPaths(ctx context.Context, dandisetID, versionID, pathPrefix string) vfs.AssetPathPager {
	first := c.endpoint("dandisets", dandisetID, "versions", versionID, "assets", "paths") +
		"?path_prefix=" + url.QueryEscape(pathPrefix)
	return &assetPathPager{c: c, next: first}
}

type assetPathPager struct {
	c    *Client
	next string
}

func (p *assetPathPager) HasMorePages() bool { return p.next != "" }

func (p *assetPathPager) NextPage(ctx context.Context) ([]vfs.AssetPathRecord, error) {
	results, next, err := p.c.fetchPage(ctx, "list_asset_paths", p.next)
	if err != nil {
		return nil, err
	}
	p.next = next

	var items []apiAssetPath
	if err := json.Unmarshal(results, &items); err != nil {
		return nil, vfs.NewUpstream("assets/paths", err)
	}
	records := make([]vfs.AssetPathRecord, len(items))
	for i := range items {
		records[i] = items[i].record()
	}
	return records, nil
}

// GetAsset fetches the full record of one asset within a version.
func (c *Client) GetAsset(ctx context.Context, dandisetID, versionID, assetID string) (*vfs.AssetRecord, error) {
	var item apiAsset
	url := c.endpoint("dandisets", dandisetID, "versions", versionID, "assets", assetID)
	if err := c.getJSON(ctx, "get_asset", url, &item); err != nil {
		return nil, err
	}
	return c.assetRecord(&item), nil
}

// GetAssetDigest fetches an asset's identity token from its metadata
// document. An asset without the digest entry reports not-found; callers
// treat that as "token absent", distinct from the asset itself missing.
func (c *Client) GetAssetDigest(ctx context.Context, assetID string) (string, error) {
	var doc map[string]any
	if err := c.getJSON(ctx, "get_asset_digest", c.endpoint("assets", assetID), &doc); err != nil {
		return "", err
	}

	digests, ok := doc["digest"].(map[string]any)
	if !ok {
		return "", vfs.NewNotFound("assets/" + assetID + "/digest")
	}
	token, ok := digests[digestKey].(string)
	if !ok || token == "" {
		return "", vfs.NewNotFound("assets/" + assetID + "/digest")
	}
	return token, nil
}
