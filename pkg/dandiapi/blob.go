package dandiapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/marmos91/dandifs/pkg/vfs"
)

// OpenBlob opens a byte range of a blob asset through the download
// endpoint. The request follows the service's redirect to the stored
// object; Go forwards the Range header across the redirect and drops
// Authorization when the host changes, which is what a presigned object
// URL requires.
//
// length < 0 reads from offset through the end. A range entirely past
// the end of the blob returns io.EOF.
func (c *Client) OpenBlob(ctx context.Context, assetID string, offset, length int64) (io.ReadCloser, error) {
	if length == 0 {
		return io.NopCloser(&emptyReader{}), nil
	}

	rawurl := c.endpoint("assets", assetID, "download")
	start := time.Now()

	var body io.ReadCloser
	err := c.withRetry(ctx, "open_blob", func() error {
		if err := c.throttle(ctx); err != nil {
			return backoff.Permanent(vfs.NewUpstream(requestPath(rawurl), err))
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
		if err != nil {
			return backoff.Permanent(vfs.NewUpstream(requestPath(rawurl), err))
		}
		c.authorize(req)
		if offset > 0 || length > 0 {
			req.Header.Set("Range", rangeHeader(offset, length))
		}

		resp, err := c.download.Do(req)
		if err != nil {
			return vfs.NewUpstream(requestPath(rawurl), err)
		}

		switch resp.StatusCode {
		case http.StatusPartialContent:
			body = resp.Body
			return nil
		case http.StatusOK:
			// The service ignored the range; trim the stream by hand.
			if offset > 0 {
				if _, err := io.CopyN(io.Discard, resp.Body, offset); err != nil {
					resp.Body.Close()
					if err == io.EOF {
						return backoff.Permanent(errPastEnd)
					}
					return vfs.NewUpstream(requestPath(rawurl), err)
				}
			}
			if length > 0 {
				body = &limitedReadCloser{r: io.LimitReader(resp.Body, length), c: resp.Body}
			} else {
				body = resp.Body
			}
			return nil
		case http.StatusRequestedRangeNotSatisfiable:
			resp.Body.Close()
			return backoff.Permanent(errPastEnd)
		case http.StatusNotFound:
			resp.Body.Close()
			return backoff.Permanent(vfs.NewNotFound("assets/" + assetID + "/download"))
		default:
			defer resp.Body.Close()
			statusErr := vfs.NewUpstream(requestPath(rawurl), statusError(resp))
			if resp.StatusCode >= 500 {
				return statusErr
			}
			return backoff.Permanent(statusErr)
		}
	})
	c.metrics.RecordRequest("open_blob", time.Since(start), err)

	if err == errPastEnd {
		return nil, io.EOF
	}
	if err != nil {
		return nil, err
	}
	return body, nil
}

// errPastEnd marks a requested range entirely beyond the blob's size. It
// is translated to io.EOF after the retry loop.
var errPastEnd = errors.New("requested range past end of content")

func rangeHeader(offset, length int64) string {
	if length < 0 {
		return fmt.Sprintf("bytes=%d-", offset)
	}
	return fmt.Sprintf("bytes=%d-%d", offset, offset+length-1)
}

type emptyReader struct{}

func (*emptyReader) Read([]byte) (int, error) { return 0, io.EOF }

// limitedReadCloser bounds a response body without losing its Close.
type limitedReadCloser struct {
	r io.Reader
	c io.Closer
}

func (l *limitedReadCloser) Read(p []byte) (int, error) { return l.r.Read(p) }
func (l *limitedReadCloser) Close() error               { return l.c.Close() }
