package e2e

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// Content served by the fixture's blob assets.
const (
	rawContent    = "hello end to end"
	nestedContent = "alpha"
	rawDigest     = "7e9c5ca8dd443349a7e34a33bd26f2a2-1"
)

var e2eModified = time.Date(2024, 1, 20, 14, 30, 0, 0, time.UTC)

// archiveFixture is a fake archive service speaking the wire format the
// gateway client consumes. It serves a fixed tree:
//
//	000001  draft only, empty
//	000123  published, draft and release both carrying:
//	    raw.txt       blob, text/plain, digest present
//	    sub/a.txt     blob, no declared type, no digest
//	    voxels.zarr   chunked asset rooted at zarr/zid-e2e/
//
// The "sub" path listing spreads over two pages to exercise pagination
// over a real connection. Blob downloads redirect to a second endpoint,
// the way the production service hands clients to its object host.
type archiveFixture struct {
	srv *httptest.Server
}

func newArchiveFixture(t testing.TB) *archiveFixture {
	t.Helper()

	mux := http.NewServeMux()

	mux.HandleFunc("/api/dandisets/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/dandisets/" {
			http.NotFound(w, r)
			return
		}
		writeEnvelope(w, "", []json.RawMessage{
			json.RawMessage(dandiset000001),
			json.RawMessage(dandiset000123),
		})
	})
	mux.HandleFunc("/api/dandisets/000001/", func(w http.ResponseWriter, r *http.Request) {
		serveExact(w, r, "/api/dandisets/000001/", dandiset000001)
	})
	mux.HandleFunc("/api/dandisets/000123/", func(w http.ResponseWriter, r *http.Request) {
		serveExact(w, r, "/api/dandisets/000123/", dandiset000123)
	})

	mux.HandleFunc("/api/dandisets/000001/versions/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/dandisets/000001/versions/" {
			http.NotFound(w, r)
			return
		}
		writeEnvelope(w, "", []json.RawMessage{json.RawMessage(versionDraftEmpty)})
	})
	mux.HandleFunc("/api/dandisets/000001/versions/draft/", func(w http.ResponseWriter, r *http.Request) {
		serveExact(w, r, "/api/dandisets/000001/versions/draft/", `{"identifier": "DANDI:000001", "name": "Empty dandiset"}`)
	})

	mux.HandleFunc("/api/dandisets/000123/versions/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/dandisets/000123/versions/" {
			http.NotFound(w, r)
			return
		}
		writeEnvelope(w, "", []json.RawMessage{
			json.RawMessage(versionDraft),
			json.RawMessage(versionRelease),
		})
	})

	// Draft and release expose the same file tree, the way a snapshot
	// published moments ago would.
	for _, version := range []string{"draft", "0.240120.1430"} {
		base := "/api/dandisets/000123/versions/" + version + "/"

		record := versionDraft
		if version != "draft" {
			record = versionRelease
		}
		mux.HandleFunc(base+"info/", handlerFor(record))
		mux.HandleFunc(base, func(w http.ResponseWriter, r *http.Request) {
			serveExact(w, r, base, `{"identifier": "DANDI:000123", "name": "Synthetic recordings", "schemaVersion": "0.6.4"}`)
		})

		mux.HandleFunc(base+"assets/paths/", servePathListing)

		mux.HandleFunc(base+"assets/blob-raw/", handlerFor(assetRaw))
		mux.HandleFunc(base+"assets/blob-sub/", handlerFor(assetSub))
		mux.HandleFunc(base+"assets/zarr-vox/", handlerFor(assetZarr))
	}

	mux.HandleFunc("/api/assets/blob-raw/", handlerFor(`{"digest": {"dandi:dandi-etag": "`+rawDigest+`", "dandi:sha2-256": "deadbeef"}}`))
	mux.HandleFunc("/api/assets/blob-sub/", handlerFor(`{"path": "sub/a.txt"}`))
	mux.HandleFunc("/api/assets/blob-raw/download/", redirectTo("/blobs/bbb111"))
	mux.HandleFunc("/api/assets/blob-sub/download/", redirectTo("/blobs/bbb222"))
	mux.HandleFunc("/blobs/bbb111", serveBlob(rawContent))
	mux.HandleFunc("/blobs/bbb222", serveBlob(nestedContent))

	return &archiveFixture{srv: httptest.NewServer(mux)}
}

// URL returns the API base the gateway client is configured with.
func (f *archiveFixture) URL() string {
	return f.srv.URL + "/api"
}

func (f *archiveFixture) Close() {
	f.srv.Close()
}

// servePathListing answers the path listing endpoint for both versions.
// The prefix selects records for the prefix itself and one level below.
func servePathListing(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("path_prefix")
	page := r.URL.Query().Get("page")

	switch prefix {
	case "":
		writeEnvelope(w, "", []map[string]any{
			pathRecord("raw.txt", "blob-raw"),
			pathRecord("sub/", ""),
			pathRecord("voxels.zarr", "zarr-vox"),
		})
	case "raw.txt":
		writeEnvelope(w, "", []map[string]any{pathRecord("raw.txt", "blob-raw")})
	case "sub":
		if page == "" {
			next := "http://" + r.Host + r.URL.Path + "?path_prefix=sub&page=2"
			writeEnvelope(w, next, []map[string]any{pathRecord("sub/", "")})
			return
		}
		writeEnvelope(w, "", []map[string]any{pathRecord("sub/a.txt", "blob-sub")})
	case "sub/a.txt":
		writeEnvelope(w, "", []map[string]any{pathRecord("sub/a.txt", "blob-sub")})
	case "voxels.zarr":
		writeEnvelope(w, "", []map[string]any{pathRecord("voxels.zarr", "zarr-vox")})
	default:
		writeEnvelope(w, "", []map[string]any{})
	}
}

func pathRecord(path, assetID string) map[string]any {
	record := map[string]any{
		"path":            path,
		"aggregate_files": 1,
		"aggregate_size":  1,
		"asset":           nil,
	}
	if assetID != "" {
		record["asset"] = map[string]any{"asset_id": assetID}
	}
	return record
}

// writeEnvelope writes one pagination envelope. An empty next marks the
// final page.
func writeEnvelope(w http.ResponseWriter, next string, results any) {
	payload := map[string]any{
		"count":    0,
		"next":     nil,
		"previous": nil,
		"results":  results,
	}
	if next != "" {
		payload["next"] = next
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// serveExact answers only the exact path, so subtree matches on the mux
// do not swallow lookups of absent resources.
func serveExact(w http.ResponseWriter, r *http.Request, path, body string) {
	if r.URL.Path != path {
		http.NotFound(w, r)
		return
	}
	_, _ = w.Write([]byte(body))
}

func handlerFor(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}
}

func redirectTo(target string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "http://"+r.Host+target, http.StatusFound)
	}
}

// serveBlob serves the content with full range support, the way the
// object host behind the production download redirect does.
func serveBlob(content string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "", e2eModified, strings.NewReader(content))
	}
}

const (
	dandiset000001 = `{
		"identifier": "000001",
		"created": "2023-06-15T09:00:00Z",
		"modified": "2023-06-15T09:00:00Z",
		"draft_version": {"version": "draft", "created": "2023-06-15T09:00:00Z", "modified": "2023-06-15T09:00:00Z"},
		"most_recent_published_version": null
	}`

	dandiset000123 = `{
		"identifier": "000123",
		"created": "2023-06-15T09:00:00Z",
		"modified": "2024-01-20T14:30:00Z",
		"draft_version": {
			"version": "draft",
			"name": "Synthetic recordings",
			"asset_count": 3,
			"size": 31,
			"created": "2023-06-15T09:00:00Z",
			"modified": "2024-01-20T14:30:00Z"
		},
		"most_recent_published_version": {
			"version": "0.240120.1430",
			"name": "Synthetic recordings",
			"asset_count": 3,
			"size": 31,
			"created": "2024-01-20T14:30:00Z",
			"modified": "2024-01-20T14:30:00Z"
		}
	}`

	versionDraftEmpty = `{"version": "draft", "created": "2023-06-15T09:00:00Z", "modified": "2023-06-15T09:00:00Z"}`

	versionDraft = `{
		"version": "draft",
		"name": "Synthetic recordings",
		"asset_count": 3,
		"size": 31,
		"created": "2023-06-15T09:00:00Z",
		"modified": "2024-01-20T14:30:00Z"
	}`

	versionRelease = `{
		"version": "0.240120.1430",
		"name": "Synthetic recordings",
		"asset_count": 3,
		"size": 31,
		"created": "2024-01-20T14:30:00Z",
		"modified": "2024-01-20T14:30:00Z"
	}`

	assetRaw = `{
		"asset_id": "blob-raw",
		"blob": "bbb111",
		"zarr": null,
		"path": "raw.txt",
		"size": 16,
		"created": "2023-06-15T09:00:00Z",
		"modified": "2024-01-20T14:30:00Z",
		"metadata": {"encodingFormat": "text/plain"}
	}`

	assetSub = `{
		"asset_id": "blob-sub",
		"blob": "bbb222",
		"zarr": null,
		"path": "sub/a.txt",
		"size": 5,
		"created": "2023-06-15T09:00:00Z",
		"modified": "2024-01-20T14:30:00Z",
		"metadata": {}
	}`

	assetZarr = `{
		"asset_id": "zarr-vox",
		"blob": null,
		"zarr": "zid-e2e",
		"path": "voxels.zarr",
		"size": 10,
		"created": "2023-06-15T09:00:00Z",
		"modified": "2024-01-20T14:30:00Z",
		"metadata": {}
	}`
)
