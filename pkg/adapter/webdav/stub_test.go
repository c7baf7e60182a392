package webdav

import (
	"bytes"
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/marmos91/dandifs/pkg/vfs"
)

var (
	stubCreated  = time.Date(2023, 6, 15, 9, 0, 0, 0, time.UTC)
	stubModified = time.Date(2024, 1, 20, 14, 30, 0, 0, time.UTC)
)

// stubArchive serves canned records from maps. Methods that reach the
// network in a real client carry call counters so tests can assert how
// many remote reads a request cost. Adapter tests exercise the handler
// through a real HTTP server, so the counters are atomic.
type stubArchive struct {
	dandisets map[string]*vfs.DandisetRecord
	versions  map[string][]vfs.VersionRecord
	meta      map[string]map[string]any
	paths     map[string][]vfs.AssetPathRecord
	assets    map[string]*vfs.AssetRecord
	digests   map[string]string
	blobs     map[string][]byte

	// failOn maps an operation name to the error it should return.
	failOn map[string]error

	openBlobCalls       atomic.Int32
	digestCalls         atomic.Int32
	versionMetadataCall atomic.Int32
}

var _ vfs.Archive = (*stubArchive)(nil)

func pathKey(dandisetID, versionID, prefix string) string {
	return dandisetID + "@" + versionID + ":" + prefix
}

func (a *stubArchive) ListDandisets(ctx context.Context) vfs.DandisetPager {
	records := make([]vfs.DandisetRecord, 0, len(a.dandisets))
	for _, record := range a.dandisets {
		records = append(records, *record)
	}
	return &dandisetPage{records: records}
}

func (a *stubArchive) GetDandiset(ctx context.Context, dandisetID string) (*vfs.DandisetRecord, error) {
	if err := a.failOn["get_dandiset"]; err != nil {
		return nil, err
	}
	if record, ok := a.dandisets[dandisetID]; ok {
		return record, nil
	}
	return nil, vfs.NewNotFound("dandisets/" + dandisetID)
}

func (a *stubArchive) ListVersions(ctx context.Context, dandisetID string) vfs.VersionPager {
	return &versionPage{records: a.versions[dandisetID]}
}

func (a *stubArchive) GetVersion(ctx context.Context, dandisetID, versionID string) (*vfs.VersionRecord, error) {
	for i := range a.versions[dandisetID] {
		if a.versions[dandisetID][i].ID == versionID {
			return &a.versions[dandisetID][i], nil
		}
	}
	return nil, vfs.NewNotFound("dandisets/" + dandisetID + "/versions/" + versionID)
}

func (a *stubArchive) GetVersionMetadata(ctx context.Context, dandisetID, versionID string) (map[string]any, error) {
	a.versionMetadataCall.Add(1)
	if err := a.failOn["version_metadata"]; err != nil {
		return nil, err
	}
	if meta, ok := a.meta[dandisetID+"@"+versionID]; ok {
		return meta, nil
	}
	return nil, vfs.NewNotFound("dandisets/" + dandisetID + "/versions/" + versionID)
}

func (a *stubArchive) ListAssetPaths(ctx context.Context, dandisetID, versionID, pathPrefix string) vfs.AssetPathPager {
	return &assetPathPage{
		records: a.paths[pathKey(dandisetID, versionID, pathPrefix)],
		fail:    a.failOn["path_page"],
	}
}

func (a *stubArchive) GetAsset(ctx context.Context, dandisetID, versionID, assetID string) (*vfs.AssetRecord, error) {
	if err := a.failOn["get_asset"]; err != nil {
		return nil, err
	}
	if record, ok := a.assets[assetID]; ok {
		return record, nil
	}
	return nil, vfs.NewNotFound("assets/" + assetID)
}

func (a *stubArchive) GetAssetDigest(ctx context.Context, assetID string) (string, error) {
	a.digestCalls.Add(1)
	if err := a.failOn["digest"]; err != nil {
		return "", err
	}
	if digest, ok := a.digests[assetID]; ok {
		return digest, nil
	}
	return "", vfs.NewNotFound("assets/" + assetID + "/digest")
}

func (a *stubArchive) OpenBlob(ctx context.Context, assetID string, offset, length int64) (io.ReadCloser, error) {
	a.openBlobCalls.Add(1)
	if err := a.failOn["open_blob"]; err != nil {
		return nil, err
	}
	data, ok := a.blobs[assetID]
	if !ok {
		return nil, vfs.NewNotFound("assets/" + assetID + "/download")
	}
	return io.NopCloser(bytes.NewReader(stubSlice(data, offset, length))), nil
}

type dandisetPage struct {
	records []vfs.DandisetRecord
	served  bool
}

func (p *dandisetPage) HasMorePages() bool { return !p.served && len(p.records) > 0 }

func (p *dandisetPage) NextPage(ctx context.Context) ([]vfs.DandisetRecord, error) {
	p.served = true
	return p.records, nil
}

type versionPage struct {
	records []vfs.VersionRecord
	served  bool
}

func (p *versionPage) HasMorePages() bool { return !p.served && len(p.records) > 0 }

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

// stubStore answers delimited listings and object reads from maps,
// keyed by bucket-slash-prefix.
type stubStore struct {
	pages   map[string]*vfs.ObjectPage
	objects map[string][]byte
	failOn  map[string]error

	openObjectCalls atomic.Int32
}

var _ vfs.ObjectStore = (*stubStore)(nil)

func objectKey(bucket, key string) string {
	return bucket + "/" + key
}

func (s *stubStore) ListObjects(ctx context.Context, bucket, prefix, delimiter string) vfs.ObjectPager {
	return &objectPage{page: s.pages[objectKey(bucket, prefix)], fail: s.failOn["object_page"]}
}

func (s *stubStore) OpenObject(ctx context.Context, bucket, key string, offset, length int64) (io.ReadCloser, error) {
	s.openObjectCalls.Add(1)
	if err := s.failOn["open_object"]; err != nil {
		return nil, err
	}
	data, ok := s.objects[objectKey(bucket, key)]
	if !ok {
		return nil, vfs.NewNotFound(key)
	}
	return io.NopCloser(bytes.NewReader(stubSlice(data, offset, length))), nil
}

type objectPage struct {
	page   *vfs.ObjectPage
	fail   error
	served bool
}

func (p *objectPage) HasMorePages() bool {
	return !p.served && (p.page != nil || p.fail != nil)
}

func (p *objectPage) NextPage(ctx context.Context) (*vfs.ObjectPage, error) {
	p.served = true
	if p.fail != nil {
		return nil, p.fail
	}
	return p.page, nil
}

func stubSlice(data []byte, offset, length int64) []byte {
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	rest := data[offset:]
	if length >= 0 && length < int64(len(rest)) {
		rest = rest[:length]
	}
	return rest
}

// newStubFixture assembles a small archive behind the stub gateways:
//
//	000123, published, its draft carrying:
//	    raw.txt       blob, text/plain, digest present, "hello world"
//	    sub/a.txt     blob, no declared type, no digest, "alpha"
//	    voxels.zarr   zarr asset in bucket "dandiarchive" containing
//	        .zattrs   chunk object
//	        0/0       chunk object, "wxyz"
func newStubFixture() (*stubArchive, *stubStore) {
	draft := &vfs.VersionRecord{ID: "draft", AssetCount: 3, Created: stubCreated, Modified: stubModified}
	latest := &vfs.VersionRecord{ID: "0.240120.1430", Created: stubModified, Modified: stubModified}

	archive := &stubArchive{
		dandisets: map[string]*vfs.DandisetRecord{
			"000123": {
				Identifier:          "000123",
				Created:             stubCreated,
				Modified:            stubModified,
				Draft:               draft,
				MostRecentPublished: latest,
			},
		},
		versions: map[string][]vfs.VersionRecord{
			"000123": {*draft, *latest},
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
				{Path: "sub/", IsAsset: false},
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
				ID:       "blob-raw",
				Path:     "raw.txt",
				Kind:     vfs.AssetBlob,
				Size:     11,
				Created:  stubCreated,
				Modified: stubModified,
				Metadata: map[string]any{"encodingFormat": "text/plain"},
			},
			"blob-sub": {
				ID:       "blob-sub",
				Path:     "sub/a.txt",
				Kind:     vfs.AssetBlob,
				Size:     5,
				Created:  stubCreated,
				Modified: stubModified,
			},
			"zarr-vox": {
				ID:        "zarr-vox",
				Path:      "voxels.zarr",
				Kind:      vfs.AssetZarr,
				Size:      6,
				Created:   stubCreated,
				Modified:  stubModified,
				Bucket:    "dandiarchive",
				KeyPrefix: "zarr/zid-vox/",
			},
		},
		digests: map[string]string{
			"blob-raw": "7e9c5ca8dd443349a7e34a33bd26f2a2-1",
		},
		blobs: map[string][]byte{
			"blob-raw": []byte("hello world"),
			"blob-sub": []byte("alpha"),
		},
		failOn: map[string]error{},
	}

	store := &stubStore{
		pages: map[string]*vfs.ObjectPage{
			objectKey("dandiarchive", "zarr/zid-vox/"): {
				CommonPrefixes: []string{"zarr/zid-vox/0/"},
				Objects: []vfs.ObjectRecord{
					{Key: "zarr/zid-vox/.zattrs", Size: 2, LastModified: stubModified, ETag: "e-zattrs"},
				},
			},
			objectKey("dandiarchive", "zarr/zid-vox/.zattrs"): {
				Objects: []vfs.ObjectRecord{
					{Key: "zarr/zid-vox/.zattrs", Size: 2, LastModified: stubModified, ETag: "e-zattrs"},
				},
			},
			objectKey("dandiarchive", "zarr/zid-vox/0"): {
				CommonPrefixes: []string{"zarr/zid-vox/0/"},
			},
			objectKey("dandiarchive", "zarr/zid-vox/0/"): {
				Objects: []vfs.ObjectRecord{
					{Key: "zarr/zid-vox/0/0", Size: 4, LastModified: stubModified, ETag: "e-chunk"},
				},
			},
			objectKey("dandiarchive", "zarr/zid-vox/0/0"): {
				Objects: []vfs.ObjectRecord{
					{Key: "zarr/zid-vox/0/0", Size: 4, LastModified: stubModified, ETag: "e-chunk"},
				},
			},
		},
		objects: map[string][]byte{
			objectKey("dandiarchive", "zarr/zid-vox/.zattrs"): []byte("{}"),
			objectKey("dandiarchive", "zarr/zid-vox/0/0"):     []byte("wxyz"),
		},
		failOn: map[string]error{},
	}

	return archive, store
}

// newTestService wires the stub fixture into a resolver.
func newTestService() (*stubArchive, *stubStore, *vfs.Service) {
	archive, store := newStubFixture()
	return archive, store, vfs.New(archive, store)
}
