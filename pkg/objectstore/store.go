// Package objectstore reads archive buckets through the AWS S3 API.
//
// The store is a thin gateway over the SDK: it wraps ListObjectsV2
// pagination into the resolver's page iterator shape, issues ranged
// GetObject calls for chunk reads, and translates SDK failures into the
// resolver's error taxonomy. One Store serves every chunk tree; all
// methods are safe for concurrent use.
//
// Public archive buckets are read without signing. Integration
// deployments against MinIO or Localstack configure a custom endpoint
// with static credentials and path-style addressing.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/marmos91/dandifs/pkg/vfs"
)

// DefaultRegion is the region of the public archive bucket.
const DefaultRegion = "us-east-2"

// defaultMaxAttempts bounds SDK-level retries of transient failures
// (502, 503, timeouts). The SDK default of 3 gives up too early on
// large public buckets under load.
const defaultMaxAttempts = 10

// Config holds the settings for an object store client.
type Config struct {
	// Region is the bucket region. Empty uses DefaultRegion.
	Region string

	// Endpoint overrides the AWS endpoint, for MinIO, Localstack and
	// other S3-compatible services. Empty targets AWS itself.
	Endpoint string

	// AccessKeyID and SecretAccessKey authenticate requests. When both
	// are empty the store sends unsigned requests, which is how public
	// archive buckets are read.
	AccessKeyID     string
	SecretAccessKey string

	// UsePathStyle forces path-style addressing. A custom Endpoint
	// implies it.
	UsePathStyle bool

	// MaxAttempts bounds SDK retries per operation, first attempt
	// included. Zero uses defaultMaxAttempts.
	MaxAttempts int
}

// Metrics receives store observations. Implementations must be safe
// for concurrent use.
type Metrics interface {
	// ObserveOperation records one S3 operation with its duration and
	// outcome.
	ObserveOperation(operation string, duration time.Duration, err error)

	// RecordBytes records bytes transferred for an operation.
	RecordBytes(operation string, bytes int64)
}

type noopMetrics struct{}

func (noopMetrics) ObserveOperation(operation string, duration time.Duration, err error) {}
func (noopMetrics) RecordBytes(operation string, bytes int64)                            {}

// Store reads stored objects from S3-compatible buckets.
type Store struct {
	client   *s3.Client
	endpoint *url.URL // nil when targeting AWS itself
	metrics  Metrics
}

var _ vfs.ObjectStore = (*Store)(nil)

// New builds a Store from cfg. Construction performs no network calls;
// bucket reachability is checked separately through Verify.
//
// A nil m disables metrics.
func New(ctx context.Context, cfg Config, m Metrics) (*Store, error) {
	if m == nil {
		m = noopMetrics{}
	}

	region := cfg.Region
	if region == "" {
		region = DefaultRegion
	}

	var opts []func(*awsConfig.LoadOptions) error
	opts = append(opts, awsConfig.WithRegion(region))

	var endpoint *url.URL
	if cfg.Endpoint != "" {
		parsed, err := url.Parse(cfg.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("invalid object store endpoint %q: %w", cfg.Endpoint, err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return nil, fmt.Errorf("invalid object store endpoint %q: scheme must be http or https", cfg.Endpoint)
		}
		endpoint = parsed

		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		resolver := aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
				return aws.Endpoint{
					URL:               cfg.Endpoint,
					HostnameImmutable: true,
					Source:            aws.EndpointSourceCustom,
				}, nil
			},
		)
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		opts = append(opts, awsConfig.WithEndpointResolverWithOptions(resolver))
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsConfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"", // session token (empty for static credentials)
		)))
	} else {
		// Public buckets are read anonymously. Without this the SDK
		// walks the default credential chain and fails on hosts that
		// have no AWS identity at all.
		opts = append(opts, awsConfig.WithCredentialsProvider(aws.AnonymousCredentials{}))
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = defaultMaxAttempts
	}
	opts = append(opts, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxAttempts
		})
	}))

	loaded, err := awsConfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(loaded, func(o *s3.Options) {
		if cfg.UsePathStyle || cfg.Endpoint != "" {
			o.UsePathStyle = true
		}
	})

	return &Store{
		client:   client,
		endpoint: endpoint,
		metrics:  m,
	}, nil
}

// Verify checks that bucket exists and is reachable with the store's
// credentials. Missing buckets report as not found.
func (s *Store) Verify(ctx context.Context, bucket string) (err error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveOperation("head_bucket", time.Since(start), err)
	}()

	_, err = s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return vfs.NewNotFound(bucket)
		}
		return vfs.NewUpstream(bucket, err)
	}

	return nil
}

// objectURL returns the direct address of one stored object. Without a
// custom endpoint this is the bucket's virtual-hosted AWS form; with
// one it is the endpoint-relative path-style form.
func (s *Store) objectURL(bucket, key string) string {
	if s.endpoint == nil {
		u := url.URL{
			Scheme: "https",
			Host:   bucket + ".s3.amazonaws.com",
			Path:   "/" + key,
		}
		return u.String()
	}

	u := *s.endpoint
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + bucket + "/" + key
	return u.String()
}
