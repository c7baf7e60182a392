package e2e

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// LocalstackHelper manages Localstack S3 integration for tests
type LocalstackHelper struct {
	T        testing.TB
	Endpoint string
	Client   *s3.Client
	Buckets  []string
}

// NewLocalstackHelper creates a new Localstack helper
func NewLocalstackHelper(t testing.TB) *LocalstackHelper {
	t.Helper()

	// Get Localstack endpoint from environment or use default
	endpoint := os.Getenv("LOCALSTACK_ENDPOINT")
	if endpoint == "" {
		endpoint = "http://localhost:4566"
	}

	helper := &LocalstackHelper{
		T:        t,
		Endpoint: endpoint,
		Buckets:  make([]string, 0),
	}

	helper.createClient()

	return helper
}

// createClient creates an S3 client configured for Localstack
func (lh *LocalstackHelper) createClient() {
	lh.T.Helper()

	ctx := context.Background()

	cfg, err := awsConfig.LoadDefaultConfig(ctx,
		awsConfig.WithRegion("us-east-1"),
		awsConfig.WithEndpointResolverWithOptions(aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{
					URL:               lh.Endpoint,
					HostnameImmutable: true,
					Source:            aws.EndpointSourceCustom,
				}, nil
			},
		)),
		awsConfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			"test", // AccessKeyID
			"test", // SecretAccessKey
			"",     // SessionToken
		)),
	)
	if err != nil {
		lh.T.Fatalf("Failed to load AWS config: %v", err)
	}

	// Path-style URLs are required for Localstack
	lh.Client = s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})
}

// Available reports whether Localstack answers on the configured
// endpoint. Tests that seed chunk data call this and skip when it
// returns false.
func (lh *LocalstackHelper) Available() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := lh.Client.ListBuckets(ctx, &s3.ListBucketsInput{})
	return err == nil
}

// CreateBucket creates a new S3 bucket and registers it for cleanup
func (lh *LocalstackHelper) CreateBucket(ctx context.Context, bucketName string) error {
	lh.T.Helper()

	_, err := lh.Client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(bucketName),
	})
	if err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", bucketName, err)
	}

	// Register for cleanup
	lh.Buckets = append(lh.Buckets, bucketName)

	return nil
}

// PutObject uploads one object into a bucket created by this helper
func (lh *LocalstackHelper) PutObject(ctx context.Context, bucketName, key, body string) error {
	lh.T.Helper()

	_, err := lh.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucketName),
		Key:    aws.String(key),
		Body:   strings.NewReader(body),
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s/%s: %w", bucketName, key, err)
	}
	return nil
}

// Cleanup removes all created buckets and their contents
func (lh *LocalstackHelper) Cleanup() {
	ctx := context.Background()

	for _, bucketName := range lh.Buckets {
		// List and delete all objects first
		listResp, err := lh.Client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket: aws.String(bucketName),
		})
		if err == nil && listResp != nil {
			for _, obj := range listResp.Contents {
				_, _ = lh.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
					Bucket: aws.String(bucketName),
					Key:    obj.Key,
				})
			}
		}

		_, _ = lh.Client.DeleteBucket(ctx, &s3.DeleteBucketInput{
			Bucket: aws.String(bucketName),
		})
	}
}

// SeedZarr creates the test bucket and fills the chunk tree backing the
// voxels.zarr asset of the archive fixture. Skips the test when
// Localstack is not reachable.
func (lh *LocalstackHelper) SeedZarr(ctx context.Context, bucketName string) {
	lh.T.Helper()

	if !lh.Available() {
		lh.T.Skip("Localstack not available on " + lh.Endpoint)
	}

	if err := lh.CreateBucket(ctx, bucketName); err != nil {
		lh.T.Fatalf("Failed to create S3 bucket: %v", err)
	}

	chunks := map[string]string{
		"zarr/zid-e2e/.zattrs": "{}",
		"zarr/zid-e2e/0/0":     "wxyz",
		"zarr/zid-e2e/0/1":     "qrst",
	}
	for key, body := range chunks {
		if err := lh.PutObject(ctx, bucketName, key, body); err != nil {
			lh.T.Fatalf("Failed to seed object: %v", err)
		}
	}
}
