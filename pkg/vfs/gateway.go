package vfs

import (
	"context"
	"io"
	"time"
)

// AssetKind distinguishes the two storage layouts an asset can have.
type AssetKind int

const (
	// AssetBlob is a single stored object whose bytes are served through
	// the archive service.
	AssetBlob AssetKind = iota

	// AssetZarr is a chunked tree of objects stored under a key prefix in
	// an object store bucket.
	AssetZarr
)

// DandisetRecord describes one dandiset as reported by the archive service.
type DandisetRecord struct {
	Identifier string
	Created    time.Time
	Modified   time.Time

	// Draft is the dandiset's draft version. Every dandiset has one.
	Draft *VersionRecord

	// MostRecentPublished is nil while the dandiset has no published
	// release. Its presence decides whether "latest" and "releases" are
	// addressable under the dandiset.
	MostRecentPublished *VersionRecord
}

// VersionRecord describes one version of a dandiset.
type VersionRecord struct {
	// ID is "draft" or a published identifier such as "0.210831.2033".
	ID string

	Name       string
	Size       int64
	AssetCount int
	Created    time.Time
	Modified   time.Time
}

// AssetPathRecord is one entry of a version's path listing.
//
// IsAsset is authoritative: a true tag means the path is an asset, a
// false tag means it is a folder. Consumers never issue a second call to
// re-check what a record already states. Folder paths may arrive with a
// trailing slash.
type AssetPathRecord struct {
	Path    string
	IsAsset bool

	// AssetID is set when IsAsset is true.
	AssetID string
}

// AssetRecord is the full record of one asset within a version.
type AssetRecord struct {
	ID       string
	Path     string
	Kind     AssetKind
	Size     int64
	Created  time.Time
	Modified time.Time

	// Metadata is the asset's raw metadata document as returned by the
	// archive service.
	Metadata map[string]any

	// Bucket and KeyPrefix locate a zarr asset's chunk tree in the object
	// store. KeyPrefix is slash-terminated. Both are empty for blobs.
	Bucket    string
	KeyPrefix string
}

// ObjectRecord describes one stored object from an object store listing.
type ObjectRecord struct {
	Key          string
	Size         int64
	LastModified time.Time

	// ETag is the object's content identity token, stripped of quotes.
	ETag string

	// URL is the object's direct public address.
	URL string
}

// ObjectPage is one page of a delimited object store listing. Folder-like
// groupings arrive in CommonPrefixes, directly contained objects in
// Objects. Order within the page is the store's order.
type ObjectPage struct {
	CommonPrefixes []string
	Objects        []ObjectRecord
}

// DandisetPager yields pages of dandiset records lazily. A caller that
// stops calling NextPage abandons the remaining pages at no cost.
type DandisetPager interface {
	// HasMorePages reports whether another page is available.
	HasMorePages() bool

	// NextPage fetches the next page of records.
	NextPage(ctx context.Context) ([]DandisetRecord, error)
}

// VersionPager yields pages of version records lazily.
type VersionPager interface {
	HasMorePages() bool
	NextPage(ctx context.Context) ([]VersionRecord, error)
}

// AssetPathPager yields pages of asset path records lazily.
type AssetPathPager interface {
	HasMorePages() bool
	NextPage(ctx context.Context) ([]AssetPathRecord, error)
}

// ObjectPager yields pages of a delimited object listing lazily.
type ObjectPager interface {
	HasMorePages() bool
	NextPage(ctx context.Context) (*ObjectPage, error)
}

// Archive is the metadata service capability the resolver consumes.
//
// Implementations report missing identifiers through *Error with
// ErrNotFound and transport or decode failures through *Error with
// ErrUpstream. Listings are paged so callers fetch exactly as many pages
// as they consume; records within a page keep the service's order.
//
// Implementations must be safe for concurrent use. The resolver shares
// one Archive across all in-flight requests.
type Archive interface {
	// ListDandisets pages through every dandiset in the archive.
	ListDandisets(ctx context.Context) DandisetPager

	// GetDandiset fetches one dandiset with its draft version and, when
	// one exists, its most recent published version.
	GetDandiset(ctx context.Context, dandisetID string) (*DandisetRecord, error)

	// ListVersions pages through all versions of a dandiset, draft
	// included.
	ListVersions(ctx context.Context, dandisetID string) VersionPager

	// GetVersion fetches one version of a dandiset by identifier.
	GetVersion(ctx context.Context, dandisetID, versionID string) (*VersionRecord, error)

	// GetVersionMetadata fetches the raw metadata document of a version.
	GetVersionMetadata(ctx context.Context, dandisetID, versionID string) (map[string]any, error)

	// ListAssetPaths pages through path records under pathPrefix within a
	// version, ordered by path. The listing covers records at the prefix
	// itself and one level below it.
	ListAssetPaths(ctx context.Context, dandisetID, versionID, pathPrefix string) AssetPathPager

	// GetAsset fetches the full record of one asset within a version.
	GetAsset(ctx context.Context, dandisetID, versionID, assetID string) (*AssetRecord, error)

	// GetAssetDigest fetches the content identity token of an asset.
	// Returns ErrNotFound when the asset carries no digest; that outcome
	// is independent of the asset's own existence.
	GetAssetDigest(ctx context.Context, assetID string) (string, error)

	// OpenBlob opens a byte range of a blob asset's content. length < 0
	// reads through the end. The caller owns the returned reader.
	OpenBlob(ctx context.Context, assetID string, offset, length int64) (io.ReadCloser, error)
}

// ObjectStore is the bucket listing and retrieval capability backing
// chunked assets. Implementations must be safe for concurrent use; one
// client is shared across all chunk trees.
type ObjectStore interface {
	// ListObjects pages through the bucket under prefix, grouping keys at
	// delimiter boundaries into common prefixes.
	ListObjects(ctx context.Context, bucket, prefix, delimiter string) ObjectPager

	// OpenObject opens a byte range of one stored object. length < 0
	// reads through the end. The caller owns the returned reader.
	OpenObject(ctx context.Context, bucket, key string, offset, length int64) (io.ReadCloser, error)
}
