package fuse

// Stub gateways backing the mount tests: a small synthetic archive
// with one dandiset holding a plain blob, a folder with one nested
// blob, and a chunked asset. Pagers serve a single page; atomic
// counters observe how often kernel operations reach the remote
// boundary.

import (
	"bytes"
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/dandifs/pkg/vfs"
)

var (
	stubCreated  = time.Date(2023, 8, 1, 9, 30, 0, 0, time.UTC)
	stubModified = time.Date(2024, 3, 5, 16, 45, 0, 0, time.UTC)
)

func pathKey(dandisetID, versionID, prefix string) string {
	return dandisetID + "@" + versionID + ":" + prefix
}

type stubArchive struct {
	dandisets []vfs.DandisetRecord
	versions  map[string][]vfs.VersionRecord
	meta      map[string]map[string]any
	paths     map[string][]vfs.AssetPathRecord
	assets    map[string]*vfs.AssetRecord
	blobs     map[string][]byte

	// failOn injects an error keyed by operation name. Guarded by mu;
	// tests set failures while kernel handlers run on other goroutines.
	mu     sync.Mutex
	failOn map[string]error

	pathPageCalls atomic.Int32
	openBlobCalls atomic.Int32
}

var _ vfs.Archive = (*stubArchive)(nil)

func (a *stubArchive) setFailure(operation string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failOn[operation] = err
}

func (a *stubArchive) failure(operation string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.failOn[operation]
}

func (a *stubArchive) ListDandisets(ctx context.Context) vfs.DandisetPager {
	return &dandisetPage{records: a.dandisets}
}

func (a *stubArchive) GetDandiset(ctx context.Context, dandisetID string) (*vfs.DandisetRecord, error) {
	if err := a.failure("get_dandiset"); err != nil {
		return nil, err
	}
	for i := range a.dandisets {
		if a.dandisets[i].Identifier == dandisetID {
			record := a.dandisets[i]
			return &record, nil
		}
	}
	return nil, vfs.NewNotFound("dandisets/" + dandisetID)
}

func (a *stubArchive) ListVersions(ctx context.Context, dandisetID string) vfs.VersionPager {
	return &versionPage{records: a.versions[dandisetID]}
}

func (a *stubArchive) GetVersion(ctx context.Context, dandisetID, versionID string) (*vfs.VersionRecord, error) {
	for i := range a.versions[dandisetID] {
		if a.versions[dandisetID][i].ID == versionID {
			record := a.versions[dandisetID][i]
			return &record, nil
		}
	}
	return nil, vfs.NewNotFound("dandisets/" + dandisetID + "/" + versionID)
}

func (a *stubArchive) GetVersionMetadata(ctx context.Context, dandisetID, versionID string) (map[string]any, error) {
	if err := a.failure("version_metadata"); err != nil {
		return nil, err
	}
	if doc, ok := a.meta[dandisetID+"@"+versionID]; ok {
		return doc, nil
	}
	return nil, vfs.NewNotFound("dandisets/" + dandisetID + "/" + versionID)
}

func (a *stubArchive) ListAssetPaths(ctx context.Context, dandisetID, versionID, pathPrefix string) vfs.AssetPathPager {
	a.pathPageCalls.Add(1)
	return &assetPathPage{
		records: a.paths[pathKey(dandisetID, versionID, pathPrefix)],
		fail:    a.failure("path_page"),
	}
}

func (a *stubArchive) GetAsset(ctx context.Context, dandisetID, versionID, assetID string) (*vfs.AssetRecord, error) {
	if err := a.failure("get_asset"); err != nil {
		return nil, err
	}
	if asset, ok := a.assets[assetID]; ok {
		copied := *asset
		return &copied, nil
	}
	return nil, vfs.NewNotFound("asset:" + assetID)
}

// GetAssetDigest always reports the token absent; the mount has no
// etag surface to ask for it.
func (a *stubArchive) GetAssetDigest(ctx context.Context, assetID string) (string, error) {
	return "", vfs.NewNotFound("digest:" + assetID)
}

func (a *stubArchive) OpenBlob(ctx context.Context, assetID string, offset, length int64) (io.ReadCloser, error) {
	a.openBlobCalls.Add(1)
	if err := a.failure("open_blob"); err != nil {
		return nil, err
	}
	data, ok := a.blobs[assetID]
	if !ok {
		return nil, vfs.NewNotFound("blob:" + assetID)
	}
	part, err := stubSlice(data, offset, length)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(part)), nil
}

type stubStore struct {
	pages   map[string]*vfs.ObjectPage
	objects map[string][]byte

	listObjectCalls atomic.Int32
	openObjectCalls atomic.Int32
}

var _ vfs.ObjectStore = (*stubStore)(nil)

func (s *stubStore) ListObjects(ctx context.Context, bucket, prefix, delimiter string) vfs.ObjectPager {
	s.listObjectCalls.Add(1)
	return &objectPage{page: s.pages[bucket+"/"+prefix]}
}

func (s *stubStore) OpenObject(ctx context.Context, bucket, key string, offset, length int64) (io.ReadCloser, error) {
	s.openObjectCalls.Add(1)
	data, ok := s.objects[bucket+"/"+key]
	if !ok {
		return nil, vfs.NewNotFound(key)
	}
	part, err := stubSlice(data, offset, length)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(part)), nil
}

// stubSlice cuts the requested range out of a stored byte slice,
// reading through the end when length is negative.
func stubSlice(data []byte, offset, length int64) ([]byte, error) {
	if offset >= int64(len(data)) {
		return nil, io.EOF
	}
	end := int64(len(data))
	if length >= 0 && offset+length < end {
		end = offset + length
	}
	return data[offset:end], nil
}

type dandisetPage struct {
	records []vfs.DandisetRecord
	served  bool
}

func (p *dandisetPage) HasMorePages() bool { return !p.served && p.records != nil }

func (p *dandisetPage) NextPage(ctx context.Context) ([]vfs.DandisetRecord, error) {
	p.served = true
	return p.records, nil
}

type versionPage struct {
	records []vfs.VersionRecord
	served  bool
}

func (p *versionPage) HasMorePages() bool { return !p.served && p.records != nil }

func (p *versionPage) NextPage(ctx context.Context) ([]vfs.VersionRecord, error) {
	p.served = true
	return p.records, nil
}

type assetPathPage struct {
	records []vfs.AssetPathRecord
	fail    error
	served  bool
}

func (p *assetPathPage) HasMorePages() bool {
	return !p.served && (p.records != nil || p.fail != nil)
}

func (p *assetPathPage) NextPage(ctx context.Context) ([]vfs.AssetPathRecord, error) {
	p.served = true
	if p.fail != nil {
		return nil, p.fail
	}
	return p.records, nil
}

type objectPage struct {
	page   *vfs.ObjectPage
	served bool
}

func (p *objectPage) HasMorePages() bool { return !p.served && p.page != nil }

func (p *objectPage) NextPage(ctx context.Context) (*vfs.ObjectPage, error) {
	p.served = true
	return p.page, nil
}

// newStubFixture builds the synthetic archive the mount tests walk:
// dandiset 000123 with a draft and one published release. The draft
// holds raw.txt, sub/a.txt and the chunked voxels.zarr, whose object
// tree lives under zarr/zid-vox/ in the dandiarchive bucket.
func newStubFixture() (*stubArchive, *stubStore) {
	draft := vfs.VersionRecord{
		ID:         "draft",
		Name:       "Synthetic recordings",
		Size:       22,
		AssetCount: 3,
		Created:    stubCreated,
		Modified:   stubModified,
	}
	published := vfs.VersionRecord{
		ID:         "0.240305.1645",
		Name:       "Synthetic recordings",
		Size:       22,
		AssetCount: 3,
		Created:    stubCreated,
		Modified:   stubModified,
	}

	archive := &stubArchive{
		dandisets: []vfs.DandisetRecord{{
			Identifier:          "000123",
			Created:             stubCreated,
			Modified:            stubModified,
			Draft:               &draft,
			MostRecentPublished: &published,
		}},
		versions: map[string][]vfs.VersionRecord{
			"000123": {draft, published},
		},
		meta: map[string]map[string]any{
			"000123@draft": {
				"identifier": "DANDI:000123",
				"name":       "Synthetic recordings",
			},
		},
		paths: map[string][]vfs.AssetPathRecord{
			pathKey("000123", "draft", ""): {
				{Path: "raw.txt", IsAsset: true, AssetID: "blob-raw"},
				{Path: "sub/", IsAsset: false},
				{Path: "voxels.zarr", IsAsset: true, AssetID: "zarr-vox"},
			},
			pathKey("000123", "draft", "raw.txt"): {
				{Path: "raw.txt", IsAsset: true, AssetID: "blob-raw"},
			},
			pathKey("000123", "draft", "sub"): {
				{Path: "sub/a.txt", IsAsset: true, AssetID: "blob-sub"},
			},
			pathKey("000123", "draft", "sub/a.txt"): {
				{Path: "sub/a.txt", IsAsset: true, AssetID: "blob-sub"},
			},
			pathKey("000123", "draft", "voxels.zarr"): {
				{Path: "voxels.zarr", IsAsset: true, AssetID: "zarr-vox"},
			},
		},
		assets: map[string]*vfs.AssetRecord{
			"blob-raw": {
				ID: "blob-raw", Path: "raw.txt", Kind: vfs.AssetBlob, Size: 11,
				Created: stubCreated, Modified: stubModified,
				Metadata: map[string]any{"encodingFormat": "text/plain"},
			},
			"blob-sub": {
				ID: "blob-sub", Path: "sub/a.txt", Kind: vfs.AssetBlob, Size: 5,
				Created: stubCreated, Modified: stubModified,
			},
			"zarr-vox": {
				ID: "zarr-vox", Path: "voxels.zarr", Kind: vfs.AssetZarr, Size: 6,
				Created: stubCreated, Modified: stubModified,
				Bucket: "dandiarchive", KeyPrefix: "zarr/zid-vox/",
			},
		},
		blobs: map[string][]byte{
			"blob-raw": []byte("hello world"),
			"blob-sub": []byte("alpha"),
		},
		failOn: map[string]error{},
	}

	zattrs := vfs.ObjectRecord{Key: "zarr/zid-vox/.zattrs", Size: 2, LastModified: stubModified, ETag: "e-zattrs"}
	chunk := vfs.ObjectRecord{Key: "zarr/zid-vox/0/0", Size: 4, LastModified: stubModified, ETag: "e-chunk"}

	store := &stubStore{
		pages: map[string]*vfs.ObjectPage{
			"dandiarchive/zarr/zid-vox/":        {CommonPrefixes: []string{"zarr/zid-vox/0/"}, Objects: []vfs.ObjectRecord{zattrs}},
			"dandiarchive/zarr/zid-vox/.zattrs": {Objects: []vfs.ObjectRecord{zattrs}},
			"dandiarchive/zarr/zid-vox/0":       {CommonPrefixes: []string{"zarr/zid-vox/0/"}},
			"dandiarchive/zarr/zid-vox/0/":      {Objects: []vfs.ObjectRecord{chunk}},
			"dandiarchive/zarr/zid-vox/0/0":     {Objects: []vfs.ObjectRecord{chunk}},
		},
		objects: map[string][]byte{
			"dandiarchive/zarr/zid-vox/.zattrs": []byte("{}"),
			"dandiarchive/zarr/zid-vox/0/0":     []byte("wxyz"),
		},
	}

	return archive, store
}

// newTestService wires the stub fixture into a resolver service.
func newTestService() (*stubArchive, *stubStore, *vfs.Service) {
	archive, store := newStubFixture()
	return archive, store, vfs.New(archive, store)
}
