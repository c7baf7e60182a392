package e2e

import (
	"encoding/xml"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"testing"
)

// Minimal PROPFIND client. The stock http.Client carries the verbs; the
// types below decode the multistatus body the server answers with.

type multistatus struct {
	XMLName   xml.Name      `xml:"DAV: multistatus"`
	Responses []davResponse `xml:"response"`
}

type davResponse struct {
	Href      string     `xml:"href"`
	Propstats []propstat `xml:"propstat"`
}

type propstat struct {
	Status string   `xml:"status"`
	Prop   davProps `xml:"prop"`
}

type davProps struct {
	DisplayName   string       `xml:"displayname"`
	ContentLength string       `xml:"getcontentlength"`
	ContentType   string       `xml:"getcontenttype"`
	ETag          string       `xml:"getetag"`
	LastModified  string       `xml:"getlastmodified"`
	ResourceType  resourceType `xml:"resourcetype"`
}

type resourceType struct {
	Collection *struct{} `xml:"collection"`
}

// found returns the props reported with a 200 status.
func (r *davResponse) found() davProps {
	for _, ps := range r.Propstats {
		if strings.Contains(ps.Status, "200") {
			return ps.Prop
		}
	}
	return davProps{}
}

func (r *davResponse) isCollection() bool {
	return r.found().ResourceType.Collection != nil
}

func (r *davResponse) contentLength(t testing.TB) int64 {
	t.Helper()
	raw := r.found().ContentLength
	if raw == "" {
		t.Errorf("Response %s has no getcontentlength", r.Href)
		return -1
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		t.Errorf("Response %s getcontentlength %q: %v", r.Href, raw, err)
		return -1
	}
	return n
}

// find returns the response whose href names path, tolerating the
// trailing slash collections carry.
func (m *multistatus) find(t testing.TB, path string) *davResponse {
	t.Helper()
	want := strings.TrimSuffix(path, "/")
	for i := range m.Responses {
		if strings.TrimSuffix(m.Responses[i].Href, "/") == want {
			return &m.Responses[i]
		}
	}
	t.Fatalf("PROPFIND response has no entry for %s, hrefs: %v", path, m.hrefs())
	return nil
}

// childNames returns the names one level below parent, sorted. The
// parent's own entry is excluded.
func (m *multistatus) childNames(parent string) []string {
	base := strings.TrimSuffix(parent, "/")
	var names []string
	for _, r := range m.Responses {
		href := strings.TrimSuffix(r.Href, "/")
		if href == base || !strings.HasPrefix(href, base+"/") {
			continue
		}
		names = append(names, strings.TrimPrefix(href, base+"/"))
	}
	sort.Strings(names)
	return names
}

func (m *multistatus) hrefs() []string {
	var hrefs []string
	for _, r := range m.Responses {
		hrefs = append(hrefs, r.Href)
	}
	return hrefs
}

// propfind issues a PROPFIND at the given depth and decodes the
// multistatus body. Fails the test on any other outcome.
func propfind(t testing.TB, client *http.Client, url, depth string) *multistatus {
	t.Helper()

	resp := davDo(t, client, "PROPFIND", url, map[string]string{"Depth": depth})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMultiStatus {
		t.Fatalf("PROPFIND %s: expected 207, got %d", url, resp.StatusCode)
	}

	var ms multistatus
	if err := xml.NewDecoder(resp.Body).Decode(&ms); err != nil {
		t.Fatalf("Failed to decode multistatus for %s: %v", url, err)
	}
	return &ms
}

// propfindStatus issues a PROPFIND and reports only the status code,
// for paths expected to be absent.
func propfindStatus(t testing.TB, client *http.Client, url, depth string) int {
	t.Helper()

	resp := davDo(t, client, "PROPFIND", url, map[string]string{"Depth": depth})
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode
}

// davDo sends one request with the given headers and returns the raw
// response. The caller owns the body.
func davDo(t testing.TB, client *http.Client, method, url string, headers map[string]string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatalf("Failed to build %s %s: %v", method, url, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	return resp
}
