package vfs

import (
	"context"
	"regexp"
	"strings"
	"time"
)

const (
	dandisetIndexName = "dandisets"
	draftVersionID    = "draft"
	latestName        = "latest"
	releasesName      = "releases"
	metadataFileName  = "dandiset.yaml"
)

var (
	dandisetIDRe       = regexp.MustCompile(`^[0-9]{6}$`)
	publishedVersionRe = regexp.MustCompile(`^[0-9]+\.[0-9]+\.[0-9]+$`)
)

// fastNotExist lists names that client tooling probes for constantly.
// They are answered locally so speculative lookups never reach the
// archive service or object store. Enumeration is unaffected: a stored
// entry with one of these names still lists normally.
var fastNotExist = map[string]struct{}{
	".git":  {},
	".svn":  {},
	".bzr":  {},
	".nols": {},
}

// Child looks up one immediate child of the node by name. The answer is
// definitive: a nil error means the child exists, IsNotFound means it
// does not, and an upstream error means the question went unanswered.
func (n *Node) Child(ctx context.Context, name string) (*Node, error) {
	start := time.Now()
	child, err := n.lookupChild(ctx, name)
	n.svc.metrics.ObserveLookup(n.kind.String(), time.Since(start), err)
	return child, err
}

func (n *Node) lookupChild(ctx context.Context, name string) (*Node, error) {
	switch n.kind {
	case KindRoot:
		if name == dandisetIndexName {
			return n.dandisetIndexNode(), nil
		}
		return nil, NewNotFound(n.childPath(name))
	case KindDandisetIndex:
		return n.lookupDandiset(ctx, name)
	case KindDandiset:
		return n.lookupVersionName(name)
	case KindReleases:
		return n.lookupRelease(ctx, name)
	case KindVersion:
		if name == metadataFileName {
			return n.metadataDocumentNode(), nil
		}
		return n.lookupAssetChild(ctx, name)
	case KindAssetFolder:
		return n.lookupAssetChild(ctx, name)
	case KindZarr, KindZarrFolder:
		return n.lookupZarrChild(ctx, name)
	default:
		// Leaves have no children; a path cannot descend through them.
		return nil, NewNotFound(n.childPath(name))
	}
}

func (n *Node) lookupDandiset(ctx context.Context, name string) (*Node, error) {
	if !dandisetIDRe.MatchString(name) {
		return nil, NewMalformed(n.childPath(name), "not a dandiset identifier")
	}
	dandiset, err := n.svc.archive.GetDandiset(ctx, name)
	if err != nil {
		return nil, err
	}
	return &Node{
		kind:     KindDandiset,
		svc:      n.svc,
		path:     n.childPath(name),
		name:     name,
		dandiset: dandiset,
	}, nil
}

// lookupVersionName answers the three fixed names addressable under a
// dandiset. "latest" and "releases" exist only once something has been
// published; no remote call is needed to decide, the dandiset record
// already carries the answer.
func (n *Node) lookupVersionName(name string) (*Node, error) {
	switch name {
	case draftVersionID:
		if v := n.dandiset.Draft; v != nil {
			return n.versionNode(name, v), nil
		}
	case latestName:
		if v := n.dandiset.MostRecentPublished; v != nil {
			return n.versionNode(name, v), nil
		}
	case releasesName:
		if n.dandiset.MostRecentPublished != nil {
			return n.releasesNode(), nil
		}
	}
	return nil, NewNotFound(n.childPath(name))
}

func (n *Node) lookupRelease(ctx context.Context, name string) (*Node, error) {
	if !publishedVersionRe.MatchString(name) {
		return nil, NewMalformed(n.childPath(name), "not a published version identifier")
	}
	version, err := n.svc.archive.GetVersion(ctx, n.dandiset.Identifier, name)
	if err != nil {
		return nil, err
	}
	return n.versionNode(name, version), nil
}

// lookupAssetChild decides whether name is an asset or a folder from a
// single path listing under the child's own prefix. The first record
// that speaks about the child settles it: an exact match carries the
// authoritative tag, any record strictly below it proves a folder.
func (n *Node) lookupAssetChild(ctx context.Context, name string) (*Node, error) {
	if _, reject := fastNotExist[name]; reject {
		return nil, NewNotFound(n.childPath(name))
	}

	childPrefix := name
	if n.prefix != "" {
		childPrefix = n.prefix + "/" + name
	}

	pager := n.svc.archive.ListAssetPaths(ctx, n.dandiset.Identifier, n.version.ID, childPrefix)
	for pager.HasMorePages() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		records, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, record := range records {
			switch {
			case strings.TrimSuffix(record.Path, "/") == childPrefix:
				if record.IsAsset {
					return n.assetNode(ctx, name, record.AssetID)
				}
				return n.assetFolderNode(name, childPrefix), nil
			case strings.HasPrefix(record.Path, childPrefix+"/"):
				return n.assetFolderNode(name, childPrefix), nil
			}
		}
	}
	return nil, NewNotFound(n.childPath(name))
}

// lookupZarrChild decides whether name is a chunk object or a folder
// from a single delimited listing under the child's key. Object keys are
// checked before common prefixes, mirroring the store's page layout.
func (n *Node) lookupZarrChild(ctx context.Context, name string) (*Node, error) {
	if _, reject := fastNotExist[name]; reject {
		return nil, NewNotFound(n.childPath(name))
	}

	childKey := n.prefix + name
	pager := n.svc.objects.ListObjects(ctx, n.asset.Bucket, childKey, "/")
	for pager.HasMorePages() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for i := range page.Objects {
			if page.Objects[i].Key == childKey {
				return n.zarrEntryNode(name, page.Objects[i]), nil
			}
		}
		for _, commonPrefix := range page.CommonPrefixes {
			if commonPrefix == childKey+"/" {
				return n.zarrFolderNode(name, commonPrefix), nil
			}
		}
	}
	return nil, NewNotFound(n.childPath(name))
}

func (n *Node) assetNode(ctx context.Context, name, assetID string) (*Node, error) {
	asset, err := n.svc.archive.GetAsset(ctx, n.dandiset.Identifier, n.version.ID, assetID)
	if err != nil {
		return nil, err
	}
	return n.nodeForAsset(name, asset), nil
}

func (n *Node) nodeForAsset(name string, asset *AssetRecord) *Node {
	child := &Node{
		svc:      n.svc,
		path:     n.childPath(name),
		name:     name,
		dandiset: n.dandiset,
		version:  n.version,
		asset:    asset,
	}
	if asset.Kind == AssetZarr {
		child.kind = KindZarr
		child.prefix = asset.KeyPrefix
	} else {
		child.kind = KindBlob
	}
	return child
}

func (n *Node) dandisetIndexNode() *Node {
	return &Node{
		kind: KindDandisetIndex,
		svc:  n.svc,
		path: n.childPath(dandisetIndexName),
		name: dandisetIndexName,
	}
}

func (n *Node) releasesNode() *Node {
	return &Node{
		kind:     KindReleases,
		svc:      n.svc,
		path:     n.childPath(releasesName),
		name:     releasesName,
		dandiset: n.dandiset,
	}
}

// versionNode binds a version record under the name it was addressed by,
// which is "draft", "latest" or the version identifier itself.
func (n *Node) versionNode(name string, version *VersionRecord) *Node {
	return &Node{
		kind:     KindVersion,
		svc:      n.svc,
		path:     n.childPath(name),
		name:     name,
		dandiset: n.dandiset,
		version:  version,
	}
}

func (n *Node) metadataDocumentNode() *Node {
	return &Node{
		kind:     KindMetadataDocument,
		svc:      n.svc,
		path:     n.childPath(metadataFileName),
		name:     metadataFileName,
		dandiset: n.dandiset,
		version:  n.version,
	}
}

func (n *Node) assetFolderNode(name, prefix string) *Node {
	return &Node{
		kind:     KindAssetFolder,
		svc:      n.svc,
		path:     n.childPath(name),
		name:     name,
		dandiset: n.dandiset,
		version:  n.version,
		prefix:   prefix,
	}
}

func (n *Node) zarrFolderNode(name, keyPrefix string) *Node {
	return &Node{
		kind:     KindZarrFolder,
		svc:      n.svc,
		path:     n.childPath(name),
		name:     name,
		dandiset: n.dandiset,
		version:  n.version,
		asset:    n.asset,
		prefix:   keyPrefix,
	}
}

func (n *Node) zarrEntryNode(name string, object ObjectRecord) *Node {
	return &Node{
		kind:     KindZarrEntry,
		svc:      n.svc,
		path:     n.childPath(name),
		name:     name,
		dandiset: n.dandiset,
		version:  n.version,
		asset:    n.asset,
		object:   &object,
	}
}
