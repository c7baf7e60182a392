package vfs

import (
	"bytes"
	"context"
	"io"
)

// ============================================================================
// Mock Gateways
// ============================================================================
//
// The mocks serve pre-built pages and records from maps. Every method that
// would hit the network in a real implementation increments a counter, so
// tests can assert exactly how many remote calls an operation issued.
// Constructing a pager is free, matching real clients where no request is
// sent until the first page is fetched.

type archiveCalls struct {
	getDandiset     int
	getVersion      int
	versionMetadata int
	getAsset        int
	digest          int
	openBlob        int
	listDandisets   int
	listVersions    int
	listAssetPaths  int
	dandisetPages   int
	versionPages    int
	pathPages       int
}

// remote sums every counter that stands for an actual network round trip.
func (c archiveCalls) remote() int {
	return c.getDandiset + c.getVersion + c.versionMetadata + c.getAsset +
		c.digest + c.openBlob + c.dandisetPages + c.versionPages + c.pathPages
}

type mockArchive struct {
	dandisetList [][]DandisetRecord
	dandisets    map[string]*DandisetRecord
	versionList  map[string][][]VersionRecord
	versions     map[string]*VersionRecord
	versionMeta  map[string]map[string]any
	pathList     map[string][][]AssetPathRecord
	assets       map[string]*AssetRecord
	digests      map[string]string
	blobs        map[string][]byte

	// failOn maps an operation name to an error it should return.
	failOn map[string]error

	// afterPathPage runs after each asset path page is served.
	afterPathPage func()

	calls archiveCalls
}

var _ Archive = (*mockArchive)(nil)

func newMockArchive() *mockArchive {
	return &mockArchive{
		dandisets:   map[string]*DandisetRecord{},
		versionList: map[string][][]VersionRecord{},
		versions:    map[string]*VersionRecord{},
		versionMeta: map[string]map[string]any{},
		pathList:    map[string][][]AssetPathRecord{},
		assets:      map[string]*AssetRecord{},
		digests:     map[string]string{},
		blobs:       map[string][]byte{},
		failOn:      map[string]error{},
	}
}

func versionKey(dandisetID, versionID string) string {
	return dandisetID + "@" + versionID
}

func prefixKey(dandisetID, versionID, prefix string) string {
	return dandisetID + "@" + versionID + ":" + prefix
}

func (m *mockArchive) ListDandisets(ctx context.Context) DandisetPager {
	m.calls.listDandisets++
	return &dandisetPageSource{m: m, pages: m.dandisetList}
}

func (m *mockArchive) GetDandiset(ctx context.Context, dandisetID string) (*DandisetRecord, error) {
	m.calls.getDandiset++
	if err := m.failOn["get_dandiset"]; err != nil {
		return nil, err
	}
	if record, ok := m.dandisets[dandisetID]; ok {
		return record, nil
	}
	return nil, NewNotFound("dandisets/" + dandisetID)
}

func (m *mockArchive) ListVersions(ctx context.Context, dandisetID string) VersionPager {
	m.calls.listVersions++
	return &versionPageSource{m: m, pages: m.versionList[dandisetID]}
}

func (m *mockArchive) GetVersion(ctx context.Context, dandisetID, versionID string) (*VersionRecord, error) {
	m.calls.getVersion++
	if err := m.failOn["get_version"]; err != nil {
		return nil, err
	}
	if record, ok := m.versions[versionKey(dandisetID, versionID)]; ok {
		return record, nil
	}
	return nil, NewNotFound("dandisets/" + dandisetID + "/versions/" + versionID)
}

func (m *mockArchive) GetVersionMetadata(ctx context.Context, dandisetID, versionID string) (map[string]any, error) {
	m.calls.versionMetadata++
	if err := m.failOn["version_metadata"]; err != nil {
		return nil, err
	}
	if meta, ok := m.versionMeta[versionKey(dandisetID, versionID)]; ok {
		return meta, nil
	}
	return nil, NewNotFound("dandisets/" + dandisetID + "/versions/" + versionID)
}

func (m *mockArchive) ListAssetPaths(ctx context.Context, dandisetID, versionID, pathPrefix string) AssetPathPager {
	m.calls.listAssetPaths++
	return &pathPageSource{m: m, pages: m.pathList[prefixKey(dandisetID, versionID, pathPrefix)]}
}

func (m *mockArchive) GetAsset(ctx context.Context, dandisetID, versionID, assetID string) (*AssetRecord, error) {
	m.calls.getAsset++
	if err := m.failOn["get_asset"]; err != nil {
		return nil, err
	}
	if record, ok := m.assets[assetID]; ok {
		return record, nil
	}
	return nil, NewNotFound("assets/" + assetID)
}

func (m *mockArchive) GetAssetDigest(ctx context.Context, assetID string) (string, error) {
	m.calls.digest++
	if err := m.failOn["digest"]; err != nil {
		return "", err
	}
	if digest, ok := m.digests[assetID]; ok {
		return digest, nil
	}
	return "", NewNotFound("assets/" + assetID + "/digest")
}

func (m *mockArchive) OpenBlob(ctx context.Context, assetID string, offset, length int64) (io.ReadCloser, error) {
	m.calls.openBlob++
	if err := m.failOn["open_blob"]; err != nil {
		return nil, err
	}
	data, ok := m.blobs[assetID]
	if !ok {
		return nil, NewNotFound("assets/" + assetID + "/download")
	}
	return io.NopCloser(bytes.NewReader(sliceRange(data, offset, length))), nil
}

type dandisetPageSource struct {
	m     *mockArchive
	pages [][]DandisetRecord
	next  int
}

func (p *dandisetPageSource) HasMorePages() bool { return p.next < len(p.pages) }

func (p *dandisetPageSource) NextPage(ctx context.Context) ([]DandisetRecord, error) {
	if err := p.m.failOn["dandiset_page"]; err != nil {
		return nil, err
	}
	p.m.calls.dandisetPages++
	page := p.pages[p.next]
	p.next++
	return page, nil
}

type versionPageSource struct {
	m     *mockArchive
	pages [][]VersionRecord
	next  int
}

func (p *versionPageSource) HasMorePages() bool { return p.next < len(p.pages) }

func (p *versionPageSource) NextPage(ctx context.Context) ([]VersionRecord, error) {
	if err := p.m.failOn["version_page"]; err != nil {
		return nil, err
	}
	p.m.calls.versionPages++
	page := p.pages[p.next]
	p.next++
	return page, nil
}

type pathPageSource struct {
	m     *mockArchive
	pages [][]AssetPathRecord
	next  int
}

func (p *pathPageSource) HasMorePages() bool { return p.next < len(p.pages) }

func (p *pathPageSource) NextPage(ctx context.Context) ([]AssetPathRecord, error) {
	if err := p.m.failOn["path_page"]; err != nil {
		return nil, err
	}
	p.m.calls.pathPages++
	page := p.pages[p.next]
	p.next++
	if p.m.afterPathPage != nil {
		p.m.afterPathPage()
	}
	return page, nil
}

type storeCalls struct {
	listObjects int
	objectPages int
	openObject  int
}

func (c storeCalls) remote() int {
	return c.objectPages + c.openObject
}

type mockStore struct {
	pages   map[string][]*ObjectPage
	objects map[string][]byte
	failOn  map[string]error

	calls storeCalls
}

var _ ObjectStore = (*mockStore)(nil)

func newMockStore() *mockStore {
	return &mockStore{
		pages:   map[string][]*ObjectPage{},
		objects: map[string][]byte{},
		failOn:  map[string]error{},
	}
}

func objectKey(bucket, key string) string {
	return bucket + "/" + key
}

func (m *mockStore) ListObjects(ctx context.Context, bucket, prefix, delimiter string) ObjectPager {
	m.calls.listObjects++
	return &objectPageSource{m: m, pages: m.pages[objectKey(bucket, prefix)]}
}

func (m *mockStore) OpenObject(ctx context.Context, bucket, key string, offset, length int64) (io.ReadCloser, error) {
	m.calls.openObject++
	if err := m.failOn["open_object"]; err != nil {
		return nil, err
	}
	data, ok := m.objects[objectKey(bucket, key)]
	if !ok {
		return nil, NewNotFound(key)
	}
	return io.NopCloser(bytes.NewReader(sliceRange(data, offset, length))), nil
}

type objectPageSource struct {
	m     *mockStore
	pages []*ObjectPage
	next  int
}

func (p *objectPageSource) HasMorePages() bool { return p.next < len(p.pages) }

func (p *objectPageSource) NextPage(ctx context.Context) (*ObjectPage, error) {
	if err := p.m.failOn["object_page"]; err != nil {
		return nil, err
	}
	p.m.calls.objectPages++
	page := p.pages[p.next]
	p.next++
	return page, nil
}

func sliceRange(data []byte, offset, length int64) []byte {
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	rest := data[offset:]
	if length >= 0 && length < int64(len(rest)) {
		rest = rest[:length]
	}
	return rest
}
