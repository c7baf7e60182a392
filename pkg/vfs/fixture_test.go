package vfs

import "time"

var (
	fixtureCreated  = time.Date(2023, 6, 15, 9, 0, 0, 0, time.UTC)
	fixtureModified = time.Date(2024, 1, 20, 14, 30, 0, 0, time.UTC)
)

// newFixture assembles a small archive behind mock gateways:
//
//	000001  draft only, never published
//	000123  published, its draft carrying:
//	    raw.txt       blob, text/plain, digest present
//	    sub/a.txt     blob, no declared type, no digest
//	    voxels.zarr   zarr asset in bucket "dandiarchive" containing
//	        .git      chunk object named like a fast-negative
//	        .zattrs   chunk object
//	        0         chunk object and folder "0/" side by side
//	        0/0       chunk object
//
// The "sub" folder's listing spreads its own record and its content over
// two pages. The "deep" prefix answers only with a record below itself.
func newFixture() (*mockArchive, *mockStore, *Service) {
	archive := newMockArchive()
	store := newMockStore()

	draftOnly := &VersionRecord{ID: "draft", Created: fixtureCreated, Modified: fixtureModified}
	archive.dandisets["000001"] = &DandisetRecord{
		Identifier: "000001",
		Created:    fixtureCreated,
		Modified:   fixtureModified,
		Draft:      draftOnly,
	}

	draft := &VersionRecord{ID: "draft", AssetCount: 3, Created: fixtureCreated, Modified: fixtureModified}
	older := &VersionRecord{ID: "0.230615.900", Created: fixtureCreated, Modified: fixtureCreated}
	latest := &VersionRecord{ID: "0.240120.1430", Created: fixtureModified, Modified: fixtureModified}
	archive.dandisets["000123"] = &DandisetRecord{
		Identifier:          "000123",
		Created:             fixtureCreated,
		Modified:            fixtureModified,
		Draft:               draft,
		MostRecentPublished: latest,
	}

	archive.dandisetList = [][]DandisetRecord{
		{*archive.dandisets["000001"]},
		{*archive.dandisets["000123"]},
	}
	archive.versionList["000123"] = [][]VersionRecord{
		{*draft, *older},
		{*latest},
	}
	archive.versions[versionKey("000123", "0.230615.900")] = older
	archive.versions[versionKey("000123", "0.240120.1430")] = latest

	archive.versionMeta[versionKey("000123", "draft")] = map[string]any{
		"identifier": "DANDI:000123",
		"name":       "Synthetic recordings",
	}

	archive.pathList[prefixKey("000123", "draft", "")] = [][]AssetPathRecord{{
		{Path: "raw.txt", IsAsset: true, AssetID: "blob-raw"},
		{Path: "sub/", IsAsset: false},
		{Path: "voxels.zarr", IsAsset: true, AssetID: "zarr-vox"},
	}}
	archive.pathList[prefixKey("000123", "draft", "raw.txt")] = [][]AssetPathRecord{{
		{Path: "raw.txt", IsAsset: true, AssetID: "blob-raw"},
	}}
	archive.pathList[prefixKey("000123", "draft", "sub")] = [][]AssetPathRecord{
		{{Path: "sub/", IsAsset: false}},
		{{Path: "sub/a.txt", IsAsset: true, AssetID: "blob-sub"}},
	}
	archive.pathList[prefixKey("000123", "draft", "sub/a.txt")] = [][]AssetPathRecord{{
		{Path: "sub/a.txt", IsAsset: true, AssetID: "blob-sub"},
	}}
	archive.pathList[prefixKey("000123", "draft", "voxels.zarr")] = [][]AssetPathRecord{{
		{Path: "voxels.zarr", IsAsset: true, AssetID: "zarr-vox"},
	}}
	archive.pathList[prefixKey("000123", "draft", "deep")] = [][]AssetPathRecord{{
		{Path: "deep/inner.bin", IsAsset: true, AssetID: "blob-deep"},
	}}

	archive.assets["blob-raw"] = &AssetRecord{
		ID:       "blob-raw",
		Path:     "raw.txt",
		Kind:     AssetBlob,
		Size:     11,
		Created:  fixtureCreated,
		Modified: fixtureModified,
		Metadata: map[string]any{"encodingFormat": "text/plain"},
	}
	archive.assets["blob-sub"] = &AssetRecord{
		ID:       "blob-sub",
		Path:     "sub/a.txt",
		Kind:     AssetBlob,
		Size:     5,
		Created:  fixtureCreated,
		Modified: fixtureModified,
	}
	archive.assets["zarr-vox"] = &AssetRecord{
		ID:        "zarr-vox",
		Path:      "voxels.zarr",
		Kind:      AssetZarr,
		Size:      9,
		Created:   fixtureCreated,
		Modified:  fixtureModified,
		Bucket:    "dandiarchive",
		KeyPrefix: "zarr/zid-vox/",
	}

	archive.digests["blob-raw"] = "7e9c5ca8dd443349a7e34a33bd26f2a2-1"
	archive.blobs["blob-raw"] = []byte("hello world")
	archive.blobs["blob-sub"] = []byte("alpha")

	store.pages[objectKey("dandiarchive", "zarr/zid-vox/")] = []*ObjectPage{{
		CommonPrefixes: []string{"zarr/zid-vox/0/"},
		Objects: []ObjectRecord{
			{Key: "zarr/zid-vox/.git", Size: 2, LastModified: fixtureModified, ETag: "e-git", URL: "https://dandiarchive.s3.amazonaws.com/zarr/zid-vox/.git"},
			{Key: "zarr/zid-vox/.zattrs", Size: 2, LastModified: fixtureModified, ETag: "e-zattrs", URL: "https://dandiarchive.s3.amazonaws.com/zarr/zid-vox/.zattrs"},
			{Key: "zarr/zid-vox/0", Size: 3, LastModified: fixtureModified, ETag: "e-zero", URL: "https://dandiarchive.s3.amazonaws.com/zarr/zid-vox/0"},
		},
	}}
	store.pages[objectKey("dandiarchive", "zarr/zid-vox/.zattrs")] = []*ObjectPage{{
		Objects: []ObjectRecord{
			{Key: "zarr/zid-vox/.zattrs", Size: 2, LastModified: fixtureModified, ETag: "e-zattrs"},
		},
	}}
	store.pages[objectKey("dandiarchive", "zarr/zid-vox/0")] = []*ObjectPage{{
		CommonPrefixes: []string{"zarr/zid-vox/0/"},
		Objects: []ObjectRecord{
			{Key: "zarr/zid-vox/0", Size: 3, LastModified: fixtureModified, ETag: "e-zero"},
		},
	}}
	store.pages[objectKey("dandiarchive", "zarr/zid-vox/0/")] = []*ObjectPage{{
		Objects: []ObjectRecord{
			{Key: "zarr/zid-vox/0/0", Size: 4, LastModified: fixtureModified, ETag: "e-chunk"},
		},
	}}
	store.pages[objectKey("dandiarchive", "zarr/zid-vox/0/0")] = []*ObjectPage{{
		Objects: []ObjectRecord{
			{Key: "zarr/zid-vox/0/0", Size: 4, LastModified: fixtureModified, ETag: "e-chunk"},
		},
	}}

	store.objects[objectKey("dandiarchive", "zarr/zid-vox/0")] = []byte("abc")
	store.objects[objectKey("dandiarchive", "zarr/zid-vox/0/0")] = []byte("wxyz")

	return archive, store, New(archive, store)
}
