package vfs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Single-Child Lookup
// ============================================================================

// Identifier shape is checked before any request leaves the process.
func TestLookupMalformedDandisetID(t *testing.T) {
	archive, _, svc := newFixture()
	ctx := context.Background()

	index, err := svc.Resolve(ctx, "dandisets")
	require.NoError(t, err)

	for _, id := range []string{"abc", "123", "0000001", "00123a", "000123 "} {
		t.Run(id, func(t *testing.T) {
			_, err := index.Child(ctx, id)
			require.Error(t, err)

			var verr *Error
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, ErrMalformed, verr.Code)
		})
	}
	assert.Equal(t, 0, archive.calls.remote())
}

func TestLookupMalformedReleaseID(t *testing.T) {
	archive, _, svc := newFixture()
	ctx := context.Background()

	releases, err := svc.Resolve(ctx, "dandisets/000123/releases")
	require.NoError(t, err)
	before := archive.calls.remote()

	for _, id := range []string{"draft", "latest", "1.2", "v1.0.0", "0.240120"} {
		t.Run(id, func(t *testing.T) {
			_, err := releases.Child(ctx, id)
			require.Error(t, err)

			var verr *Error
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, ErrMalformed, verr.Code)
		})
	}
	assert.Equal(t, before, archive.calls.remote())
}

// Names that only ever come from scanning tools fail without a request,
// at every level that answers lookups from the network.
func TestLookupFastNegatives(t *testing.T) {
	archive, store, svc := newFixture()
	ctx := context.Background()

	parents := []string{
		"dandisets/000123/draft",
		"dandisets/000123/draft/sub",
		"dandisets/000123/draft/voxels.zarr",
	}
	for _, path := range parents {
		parent, err := svc.Resolve(ctx, path)
		require.NoError(t, err)

		before := archive.calls.remote() + store.calls.remote()
		for _, name := range []string{".git", ".svn", ".bzr", ".nols"} {
			_, err := parent.Child(ctx, name)
			require.Error(t, err, "%q under %q", name, path)
			assert.True(t, IsNotFound(err))
		}
		assert.Equal(t, before, archive.calls.remote()+store.calls.remote(), "lookups under %q", path)
	}
}

// The fixed names under a dandiset answer from the record in hand.
func TestLookupVersionNamesNoNetwork(t *testing.T) {
	archive, _, svc := newFixture()
	ctx := context.Background()

	dandiset, err := svc.Resolve(ctx, "dandisets/000123")
	require.NoError(t, err)
	before := archive.calls.remote()

	for _, name := range []string{"draft", "latest", "releases"} {
		node, err := dandiset.Child(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, name, node.Name())
	}

	_, err = dandiset.Child(ctx, "0.240120.1430")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	assert.Equal(t, before, archive.calls.remote())
}

// The listing's own tag decides folder versus asset; nothing is inferred
// from the name.
func TestLookupTagDecides(t *testing.T) {
	t.Run("FolderRecord", func(t *testing.T) {
		archive, _, svc := newFixture()
		node, err := svc.Resolve(context.Background(), "dandisets/000123/draft/sub")
		require.NoError(t, err)
		assert.Equal(t, KindAssetFolder, node.Kind())
		assert.Equal(t, 0, archive.calls.getAsset)
	})

	t.Run("AssetRecord", func(t *testing.T) {
		archive, _, svc := newFixture()
		node, err := svc.Resolve(context.Background(), "dandisets/000123/draft/raw.txt")
		require.NoError(t, err)
		assert.Equal(t, KindBlob, node.Kind())
		assert.Equal(t, 1, archive.calls.getAsset)
	})

	t.Run("ZarrAssetRecord", func(t *testing.T) {
		archive, _, svc := newFixture()
		node, err := svc.Resolve(context.Background(), "dandisets/000123/draft/voxels.zarr")
		require.NoError(t, err)
		assert.Equal(t, KindZarr, node.Kind())
		assert.Equal(t, 1, archive.calls.getAsset)
	})
}

// The scan stops at the first record that settles the question, even when
// later pages hold an exact match.
func TestLookupFirstDecisiveRecord(t *testing.T) {
	archive, _, svc := newFixture()
	archive.pathList[prefixKey("000123", "draft", "x")] = [][]AssetPathRecord{
		{{Path: "x/child.txt", IsAsset: true, AssetID: "a1"}},
		{{Path: "x", IsAsset: true, AssetID: "a2"}},
	}

	node, err := svc.Resolve(context.Background(), "dandisets/000123/draft/x")
	require.NoError(t, err)
	assert.Equal(t, KindAssetFolder, node.Kind())
	assert.Equal(t, 1, archive.calls.pathPages)
	assert.Equal(t, 0, archive.calls.getAsset)
}

// Records that share a string prefix but not a path boundary prove
// nothing about the child.
func TestLookupPrefixBoundary(t *testing.T) {
	archive, _, svc := newFixture()
	archive.pathList[prefixKey("000123", "draft", "zz")] = [][]AssetPathRecord{
		{{Path: "zzz", IsAsset: true, AssetID: "a3"}},
	}

	_, err := svc.Resolve(context.Background(), "dandisets/000123/draft/zz")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, 1, archive.calls.pathPages)
}

func TestLookupCancelledBetweenPages(t *testing.T) {
	archive, _, svc := newFixture()
	archive.pathList[prefixKey("000123", "draft", "zz")] = [][]AssetPathRecord{
		{{Path: "zzz", IsAsset: true, AssetID: "a3"}},
		{{Path: "zz/x.txt", IsAsset: true, AssetID: "a4"}},
	}

	version, err := svc.Resolve(context.Background(), "dandisets/000123/draft")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	archive.afterPathPage = cancel

	_, err = version.Child(ctx, "zz")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, archive.calls.pathPages)
}

// When a chunk object and a chunk folder carry the same name, the object
// answers the lookup.
func TestLookupZarrEntryShadowsFolder(t *testing.T) {
	_, store, svc := newFixture()

	node, err := svc.Resolve(context.Background(), "dandisets/000123/draft/voxels.zarr/0")
	require.NoError(t, err)
	assert.Equal(t, KindZarrEntry, node.Kind())
	require.NotNil(t, node.object)
	assert.Equal(t, "zarr/zid-vox/0", node.object.Key)
	assert.Equal(t, 1, store.calls.objectPages)
}

func TestLookupZarrFolder(t *testing.T) {
	_, store, svc := newFixture()
	store.pages[objectKey("dandiarchive", "zarr/zid-vox/1")] = []*ObjectPage{{
		CommonPrefixes: []string{"zarr/zid-vox/1/"},
	}}

	node, err := svc.Resolve(context.Background(), "dandisets/000123/draft/voxels.zarr/1")
	require.NoError(t, err)
	assert.Equal(t, KindZarrFolder, node.Kind())
	assert.True(t, node.IsCollection())
}

func TestLookupZarrNested(t *testing.T) {
	_, _, svc := newFixture()
	ctx := context.Background()

	zarr, err := svc.Resolve(ctx, "dandisets/000123/draft/voxels.zarr")
	require.NoError(t, err)

	children, err := zarr.Children(ctx)
	require.NoError(t, err)

	var folder *Node
	for _, entry := range children {
		if entry.Node.Kind() == KindZarrFolder {
			folder = entry.Node
			break
		}
	}
	require.NotNil(t, folder)

	chunk, err := folder.Child(ctx, "0")
	require.NoError(t, err)
	assert.Equal(t, KindZarrEntry, chunk.Kind())
	require.NotNil(t, chunk.object)
	assert.Equal(t, "zarr/zid-vox/0/0", chunk.object.Key)
}
