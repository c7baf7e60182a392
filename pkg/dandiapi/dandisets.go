package dandiapi

import (
	"context"
	"encoding/json"

	"github.com/marmos91/dandifs/pkg/vfs"
)

// ListDandisets pages through every dandiset in the archive in the
// service's order.
func (c *Client) ListDandisets(ctx context.Context) vfs.DandisetPager {
	return &dandisetPager{c: c, next: c.endpoint("dandisets")}
}

type dandisetPager struct {
	c    *Client
	next string
}

func (p *dandisetPager) HasMorePages() bool { return p.next != "" }

func (p *dandisetPager) NextPage(ctx context.Context) ([]vfs.DandisetRecord, error) {
	results, next, err := p.c.fetchPage(ctx, "list_dandisets", p.next)
	if err != nil {
		return nil, err
	}
	p.next = next

	var items []apiDandiset
	if err := json.Unmarshal(results, &items); err != nil {
		return nil, vfs.NewUpstream("dandisets", err)
	}
	records := make([]vfs.DandisetRecord, len(items))
	for i := range items {
		records[i] = *items[i].record()
	}
	return records, nil
}

// GetDandiset fetches one dandiset record with its draft and most recent
// published versions.
func (c *Client) GetDandiset(ctx context.Context, dandisetID string) (*vfs.DandisetRecord, error) {
	var item apiDandiset
	if err := c.getJSON(ctx, "get_dandiset", c.endpoint("dandisets", dandisetID), &item); err != nil {
		return nil, err
	}
	return item.record(), nil
}
