package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/marmos91/dandifs/pkg/vfs"
)

// OpenObject opens a byte range of one stored object.
//
// length < 0 reads from offset through the end of the object; length
// of zero yields an empty reader without a request. A range starting at
// or past the end of the object reports io.EOF. The caller owns the
// returned reader.
func (s *Store) OpenObject(ctx context.Context, bucket, key string, offset, length int64) (rc io.ReadCloser, err error) {
	if length == 0 {
		return io.NopCloser(strings.NewReader("")), nil
	}

	start := time.Now()
	defer func() {
		s.metrics.ObserveOperation("open_object", time.Since(start), err)
	}()

	input := &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	if hdr := rangeHeader(offset, length); hdr != "" {
		input.Range = aws.String(hdr)
	}

	out, err := s.client.GetObject(ctx, input)
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, vfs.NewNotFound(bucket + "/" + key)
		}

		// A range starting past the end comes back as InvalidRange,
		// which the SDK does not model as a typed error.
		if strings.Contains(err.Error(), "InvalidRange") {
			return nil, io.EOF
		}

		return nil, vfs.NewUpstream(bucket+"/"+key, err)
	}

	return &meteredReadCloser{
		ReadCloser: out.Body,
		metrics:    s.metrics,
		operation:  "read",
	}, nil
}

// rangeHeader builds the Range header for a read at offset. The empty
// string means the whole object and no header at all.
func rangeHeader(offset, length int64) string {
	if offset == 0 && length < 0 {
		return ""
	}
	if length < 0 {
		return fmt.Sprintf("bytes=%d-", offset)
	}
	// S3 ranges are inclusive on both ends.
	return fmt.Sprintf("bytes=%d-%d", offset, offset+length-1)
}

// meteredReadCloser counts bytes read from an object body and records
// them when the body is closed.
type meteredReadCloser struct {
	io.ReadCloser
	metrics   Metrics
	operation string
	bytesRead int64
}

func (m *meteredReadCloser) Read(p []byte) (n int, err error) {
	n, err = m.ReadCloser.Read(p)
	if n > 0 {
		m.bytesRead += int64(n)
	}
	return n, err
}

func (m *meteredReadCloser) Close() error {
	err := m.ReadCloser.Close()
	if m.bytesRead > 0 {
		m.metrics.RecordBytes(m.operation, m.bytesRead)
	}
	return err
}
