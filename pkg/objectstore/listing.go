package objectstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/marmos91/dandifs/pkg/vfs"
)

// ListObjects pages through bucket under prefix, grouping keys at
// delimiter boundaries into common prefixes. Constructing the pager
// performs no request; every page costs exactly one ListObjectsV2 call,
// and a caller that stops paging abandons the rest for free.
func (s *Store) ListObjects(ctx context.Context, bucket, prefix, delimiter string) vfs.ObjectPager {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	}
	if delimiter != "" {
		input.Delimiter = aws.String(delimiter)
	}

	return &objectPager{
		store:  s,
		bucket: bucket,
		prefix: prefix,
		inner:  s3.NewListObjectsV2Paginator(s.client, input),
	}
}

// objectPager adapts the SDK's ListObjectsV2 paginator to the
// resolver's page iterator shape.
type objectPager struct {
	store  *Store
	bucket string
	prefix string
	inner  *s3.ListObjectsV2Paginator
}

func (p *objectPager) HasMorePages() bool {
	return p.inner.HasMorePages()
}

func (p *objectPager) NextPage(ctx context.Context) (page *vfs.ObjectPage, err error) {
	start := time.Now()
	defer func() {
		p.store.metrics.ObserveOperation("list_objects", time.Since(start), err)
	}()

	out, err := p.inner.NextPage(ctx)
	if err != nil {
		var noBucket *types.NoSuchBucket
		if errors.As(err, &noBucket) {
			return nil, vfs.NewNotFound(p.bucket + "/" + p.prefix)
		}
		return nil, vfs.NewUpstream(p.bucket+"/"+p.prefix, err)
	}

	page = &vfs.ObjectPage{}
	for _, cp := range out.CommonPrefixes {
		page.CommonPrefixes = append(page.CommonPrefixes, aws.ToString(cp.Prefix))
	}
	for _, obj := range out.Contents {
		key := aws.ToString(obj.Key)
		page.Objects = append(page.Objects, vfs.ObjectRecord{
			Key:          key,
			Size:         aws.ToInt64(obj.Size),
			LastModified: aws.ToTime(obj.LastModified),
			ETag:         strings.Trim(aws.ToString(obj.ETag), `"`),
			URL:          p.store.objectURL(p.bucket, key),
		})
	}

	return page, nil
}
