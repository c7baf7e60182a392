package vfs

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ChildEntry pairs a child's name with its resolved node.
type ChildEntry struct {
	Name string
	Node *Node
}

// Children enumerates the node's immediate children.
//
// Listings are drained page by page; cancelling ctx abandons the
// remaining pages. Order is the backing service's order except at the
// version root, which sorts its entries and injects the synthesized
// metadata document among them.
func (n *Node) Children(ctx context.Context) ([]ChildEntry, error) {
	start := time.Now()
	entries, err := n.listChildren(ctx)
	n.svc.metrics.ObserveList(n.kind.String(), time.Since(start), len(entries), err)
	return entries, err
}

func (n *Node) listChildren(ctx context.Context) ([]ChildEntry, error) {
	switch n.kind {
	case KindRoot:
		return []ChildEntry{{Name: dandisetIndexName, Node: n.dandisetIndexNode()}}, nil
	case KindDandisetIndex:
		return n.listDandisets(ctx)
	case KindDandiset:
		return n.listVersionNames(), nil
	case KindReleases:
		return n.listReleases(ctx)
	case KindVersion:
		entries, err := n.listAssetChildren(ctx)
		if err != nil {
			return nil, err
		}
		entries = append(entries, ChildEntry{Name: metadataFileName, Node: n.metadataDocumentNode()})
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
		return entries, nil
	case KindAssetFolder:
		return n.listAssetChildren(ctx)
	case KindZarr, KindZarrFolder:
		return n.listZarrChildren(ctx)
	default:
		return nil, fmt.Errorf("not a collection: %s", n.path)
	}
}

func (n *Node) listDandisets(ctx context.Context) ([]ChildEntry, error) {
	pager := n.svc.archive.ListDandisets(ctx)
	var entries []ChildEntry
	for pager.HasMorePages() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		records, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for i := range records {
			record := records[i]
			entries = append(entries, ChildEntry{
				Name: record.Identifier,
				Node: &Node{
					kind:     KindDandiset,
					svc:      n.svc,
					path:     n.childPath(record.Identifier),
					name:     record.Identifier,
					dandiset: &record,
				},
			})
		}
	}
	return entries, nil
}

// listVersionNames yields the fixed names under a dandiset. "latest" and
// "releases" appear only once something has been published.
func (n *Node) listVersionNames() []ChildEntry {
	var entries []ChildEntry
	if v := n.dandiset.Draft; v != nil {
		entries = append(entries, ChildEntry{Name: draftVersionID, Node: n.versionNode(draftVersionID, v)})
	}
	if v := n.dandiset.MostRecentPublished; v != nil {
		entries = append(entries,
			ChildEntry{Name: latestName, Node: n.versionNode(latestName, v)},
			ChildEntry{Name: releasesName, Node: n.releasesNode()},
		)
	}
	return entries
}

// listReleases drains the version listing and keeps the published ones.
// The draft circulates in the same listing and is skipped here; it is
// addressed through its fixed name one level up.
func (n *Node) listReleases(ctx context.Context) ([]ChildEntry, error) {
	pager := n.svc.archive.ListVersions(ctx, n.dandiset.Identifier)
	var entries []ChildEntry
	for pager.HasMorePages() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		records, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for i := range records {
			record := records[i]
			if record.ID == draftVersionID {
				continue
			}
			entries = append(entries, ChildEntry{Name: record.ID, Node: n.versionNode(record.ID, &record)})
		}
	}
	return entries, nil
}

// listAssetChildren drains the path listing under the node's prefix and
// folds it into immediate children. The prefix's own record is skipped,
// record paths are stripped down to child names, and each record's tag
// decides asset versus folder with no second look. The service may
// restate a folder prefix across pages; repeats fold into the first
// entry.
func (n *Node) listAssetChildren(ctx context.Context) ([]ChildEntry, error) {
	pager := n.svc.archive.ListAssetPaths(ctx, n.dandiset.Identifier, n.version.ID, n.prefix)
	var entries []ChildEntry
	seenFolders := make(map[string]struct{})
	for pager.HasMorePages() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		records, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, record := range records {
			trimmed := strings.TrimSuffix(record.Path, "/")
			if trimmed == n.prefix {
				continue
			}
			name := trimmed
			if n.prefix != "" {
				name = strings.TrimPrefix(trimmed, n.prefix+"/")
			}
			if name == "" {
				continue
			}
			if record.IsAsset {
				asset, err := n.svc.archive.GetAsset(ctx, n.dandiset.Identifier, n.version.ID, record.AssetID)
				if err != nil {
					return nil, err
				}
				entries = append(entries, ChildEntry{Name: name, Node: n.nodeForAsset(name, asset)})
			} else {
				if _, dup := seenFolders[name]; dup {
					continue
				}
				seenFolders[name] = struct{}{}
				entries = append(entries, ChildEntry{Name: name, Node: n.assetFolderNode(name, trimmed)})
			}
		}
	}
	return entries, nil
}

// listZarrChildren drains one delimited listing under the node's key
// prefix. Within each page folders come first, then objects, exactly as
// the store reports them; nothing is re-sorted or filtered, so an entry
// named like a fast-negative still appears.
func (n *Node) listZarrChildren(ctx context.Context) ([]ChildEntry, error) {
	pager := n.svc.objects.ListObjects(ctx, n.asset.Bucket, n.prefix, "/")
	var entries []ChildEntry
	for pager.HasMorePages() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, commonPrefix := range page.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(commonPrefix, n.prefix), "/")
			if name == "" {
				continue
			}
			entries = append(entries, ChildEntry{Name: name, Node: n.zarrFolderNode(name, commonPrefix)})
		}
		for i := range page.Objects {
			name := strings.TrimPrefix(page.Objects[i].Key, n.prefix)
			if name == "" {
				continue
			}
			entries = append(entries, ChildEntry{Name: name, Node: n.zarrEntryNode(name, page.Objects[i])})
		}
	}
	return entries, nil
}
