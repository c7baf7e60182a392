package dandiapi

import (
	"time"

	"github.com/marmos91/dandifs/pkg/vfs"
)

// Wire shapes of the DANDI API. Only the fields the gateway consumes are
// decoded; everything else in the payloads is ignored.

type apiVersion struct {
	Version    string    `json:"version"`
	Name       string    `json:"name"`
	AssetCount int       `json:"asset_count"`
	Size       int64     `json:"size"`
	Created    time.Time `json:"created"`
	Modified   time.Time `json:"modified"`
}

func (v *apiVersion) record() *vfs.VersionRecord {
	return &vfs.VersionRecord{
		ID:         v.Version,
		Name:       v.Name,
		Size:       v.Size,
		AssetCount: v.AssetCount,
		Created:    v.Created,
		Modified:   v.Modified,
	}
}

type apiDandiset struct {
	Identifier                 string      `json:"identifier"`
	Created                    time.Time   `json:"created"`
	Modified                   time.Time   `json:"modified"`
	DraftVersion               *apiVersion `json:"draft_version"`
	MostRecentPublishedVersion *apiVersion `json:"most_recent_published_version"`
}

func (d *apiDandiset) record() *vfs.DandisetRecord {
	record := &vfs.DandisetRecord{
		Identifier: d.Identifier,
		Created:    d.Created,
		Modified:   d.Modified,
	}
	if d.DraftVersion != nil {
		record.Draft = d.DraftVersion.record()
	}
	if d.MostRecentPublishedVersion != nil {
		record.MostRecentPublished = d.MostRecentPublishedVersion.record()
	}
	return record
}

type apiAsset struct {
	AssetID  string         `json:"asset_id"`
	Blob     *string        `json:"blob"`
	Zarr     *string        `json:"zarr"`
	Path     string         `json:"path"`
	Size     int64          `json:"size"`
	Created  time.Time      `json:"created"`
	Modified time.Time      `json:"modified"`
	Metadata map[string]any `json:"metadata"`
}

// record converts the wire asset. A non-null zarr reference makes it a
// chunked asset rooted at "zarr/<zarrID>/" in the configured bucket.
func (c *Client) assetRecord(a *apiAsset) *vfs.AssetRecord {
	record := &vfs.AssetRecord{
		ID:       a.AssetID,
		Path:     a.Path,
		Kind:     vfs.AssetBlob,
		Size:     a.Size,
		Created:  a.Created,
		Modified: a.Modified,
		Metadata: a.Metadata,
	}
	if a.Zarr != nil {
		record.Kind = vfs.AssetZarr
		record.Bucket = c.zarrBucket
		record.KeyPrefix = "zarr/" + *a.Zarr + "/"
	}
	return record
}

type apiAssetPath struct {
	Path           string           `json:"path"`
	AggregateFiles int64            `json:"aggregate_files"`
	AggregateSize  int64            `json:"aggregate_size"`
	Asset          *apiAssetPathRef `json:"asset"`
}

type apiAssetPathRef struct {
	AssetID string `json:"asset_id"`
}

// record converts one path listing entry. The null-ness of the asset
// reference is the authoritative folder/asset tag.
func (p *apiAssetPath) record() vfs.AssetPathRecord {
	record := vfs.AssetPathRecord{Path: p.Path}
	if p.Asset != nil {
		record.IsAsset = true
		record.AssetID = p.Asset.AssetID
	}
	return record
}
