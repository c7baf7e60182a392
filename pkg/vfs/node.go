package vfs

import "time"

// NodeKind identifies the level of the archive tree a node sits at.
type NodeKind int

const (
	// KindRoot is the tree root. Its only child is the dandiset index.
	KindRoot NodeKind = iota

	// KindDandisetIndex holds every dandiset, addressed by identifier.
	KindDandisetIndex

	// KindDandiset exposes the addressable version names of one dandiset.
	KindDandiset

	// KindReleases holds the published versions of a dandiset.
	KindReleases

	// KindVersion is the file tree root of one dandiset version.
	KindVersion

	// KindAssetFolder is an interior folder of a version's file tree.
	KindAssetFolder

	// KindBlob is a file-like asset whose bytes come from the archive.
	KindBlob

	// KindMetadataDocument is the synthesized dandiset.yaml of a version.
	KindMetadataDocument

	// KindZarr is the root folder of a chunked asset's object tree.
	KindZarr

	// KindZarrFolder is an interior folder of a chunked asset.
	KindZarrFolder

	// KindZarrEntry is one stored chunk object.
	KindZarrEntry
)

// String returns the kind's label as used in logs and metrics.
func (k NodeKind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindDandisetIndex:
		return "dandiset_index"
	case KindDandiset:
		return "dandiset"
	case KindReleases:
		return "releases"
	case KindVersion:
		return "version"
	case KindAssetFolder:
		return "asset_folder"
	case KindBlob:
		return "blob"
	case KindMetadataDocument:
		return "metadata_document"
	case KindZarr:
		return "zarr"
	case KindZarrFolder:
		return "zarr_folder"
	case KindZarrEntry:
		return "zarr_entry"
	default:
		return "unknown"
	}
}

// Node is one resolved position in the archive tree.
//
// A node proves the path to it exists. It holds the records gathered
// while resolving and performs no remote work of its own until asked for
// children, attributes or content. Nodes are immutable once built and
// safe to use from multiple goroutines.
type Node struct {
	kind NodeKind
	svc  *Service

	path string // full tree path, "/" separated, no leading slash
	name string // last path segment, "/" for the root

	dandiset *DandisetRecord
	version  *VersionRecord
	asset    *AssetRecord
	object   *ObjectRecord

	// prefix is the asset-path prefix for version and asset folder nodes
	// (empty at the version root), or the slash-terminated object key
	// prefix for zarr nodes.
	prefix string
}

// Kind returns the node's tree level.
func (n *Node) Kind() NodeKind { return n.kind }

// Name returns the node's display name, its last path segment.
func (n *Node) Name() string { return n.name }

// Path returns the node's full tree path without a leading slash.
func (n *Node) Path() string { return n.path }

// IsCollection reports whether the node can have children.
func (n *Node) IsCollection() bool {
	switch n.kind {
	case KindBlob, KindMetadataDocument, KindZarrEntry:
		return false
	}
	return true
}

// PathPrefix returns the node's listing prefix: the asset-path prefix of
// version and folder nodes or the object key prefix of zarr nodes. Empty
// at the version root and on levels that do not list by prefix.
func (n *Node) PathPrefix() string { return n.prefix }

// Dandiset returns the dandiset record in the node's lineage, if any.
func (n *Node) Dandiset() *DandisetRecord { return n.dandiset }

// Version returns the version record in the node's lineage, if any.
func (n *Node) Version() *VersionRecord { return n.version }

// Asset returns the asset record of blob and zarr nodes, if any.
func (n *Node) Asset() *AssetRecord { return n.asset }

// Modified returns the node's last-modified time where one is known.
// Structural collections report the zero time.
func (n *Node) Modified() time.Time {
	switch n.kind {
	case KindDandiset:
		return n.dandiset.Modified
	case KindVersion, KindMetadataDocument:
		return n.version.Modified
	case KindZarr, KindBlob:
		return n.asset.Modified
	case KindZarrEntry:
		return n.object.LastModified
	default:
		return time.Time{}
	}
}

func (n *Node) childPath(name string) string {
	if n.path == "" {
		return name
	}
	return n.path + "/" + name
}
