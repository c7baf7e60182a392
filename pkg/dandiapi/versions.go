package dandiapi

import (
	"context"
	"encoding/json"

	"github.com/marmos91/dandifs/pkg/vfs"
)

// ListVersions pages through all versions of a dandiset, the draft
// included.
func (c *Client) ListVersions(ctx context.Context, dandisetID string) vfs.VersionPager {
	return &versionPager{c: c, next: c.endpoint("dandisets", dandisetID, "versions")}
}

type versionPager struct {
	c    *Client
	next string
}

func (p *versionPager) HasMorePages() bool { return p.next != "" }

func (p *versionPager) NextPage(ctx context.Context) ([]vfs.VersionRecord, error) {
	results, next, err := p.c.fetchPage(ctx, "list_versions", p.next)
	if err != nil {
		return nil, err
	}
	p.next = next

	var items []apiVersion
	if err := json.Unmarshal(results, &items); err != nil {
		return nil, vfs.NewUpstream("versions", err)
	}
	records := make([]vfs.VersionRecord, len(items))
	for i := range items {
		records[i] = *items[i].record()
	}
	return records, nil
}

// GetVersion fetches one version's record through the info endpoint.
func (c *Client) GetVersion(ctx context.Context, dandisetID, versionID string) (*vfs.VersionRecord, error) {
	var item apiVersion
	url := c.endpoint("dandisets", dandisetID, "versions", versionID, "info")
	if err := c.getJSON(ctx, "get_version", url, &item); err != nil {
		return nil, err
	}
	return item.record(), nil
}

// GetVersionMetadata fetches the raw metadata document of a version. The
// version endpoint without /info/ returns the document itself.
func (c *Client) GetVersionMetadata(ctx context.Context, dandisetID, versionID string) (map[string]any, error) {
	var doc map[string]any
	url := c.endpoint("dandisets", dandisetID, "versions", versionID)
	if err := c.getJSON(ctx, "get_version_metadata", url, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
