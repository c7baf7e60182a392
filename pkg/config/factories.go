package config

import (
	"context"
	"fmt"

	"github.com/marmos91/dandifs/internal/logger"
	"github.com/marmos91/dandifs/pkg/dandiapi"
	"github.com/marmos91/dandifs/pkg/objectstore"
)

// CreateArchiveClient creates the DANDI archive API client from configuration.
//
// The zarr bucket configured for the object store is handed to the client so
// that asset records for zarr assets point at the right bucket.
//
// Parameters:
//   - cfg: The complete DandiFS configuration
//   - archiveMetrics: Optional archive metrics recorder (nil = no metrics)
//
// Returns:
//   - *dandiapi.Client: Initialized archive client
//   - error: Configuration or initialization error
func CreateArchiveClient(cfg *Config, archiveMetrics dandiapi.Metrics) (*dandiapi.Client, error) {
	client, err := dandiapi.New(dandiapi.Config{
		APIURL:            cfg.Archive.APIURL,
		Token:             cfg.Archive.Token,
		ZarrBucket:        cfg.ObjectStore.Bucket,
		Timeout:           cfg.Archive.Timeout,
		RetryMaxElapsed:   cfg.Archive.RetryMaxElapsed,
		RequestsPerSecond: cfg.Archive.RequestsPerSecond,
	}, archiveMetrics)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive client: %w", err)
	}

	logger.Info("Archive client initialized: api=%s, authenticated=%v",
		cfg.Archive.APIURL, cfg.Archive.Token != "")

	return client, nil
}

// CreateObjectStore creates the S3 object store client from configuration.
//
// The store itself is bucket-agnostic; the configured bucket travels through
// the archive client into each asset record instead.
//
// Parameters:
//   - ctx: Context for AWS configuration loading
//   - cfg: The complete DandiFS configuration
//   - storeMetrics: Optional object store metrics recorder (nil = no metrics)
//
// Returns:
//   - *objectstore.Store: Initialized object store
//   - error: Configuration or initialization error
func CreateObjectStore(ctx context.Context, cfg *Config, storeMetrics objectstore.Metrics) (*objectstore.Store, error) {
	store, err := objectstore.New(ctx, objectstore.Config{
		Region:          cfg.ObjectStore.Region,
		Endpoint:        cfg.ObjectStore.Endpoint,
		AccessKeyID:     cfg.ObjectStore.AccessKeyID,
		SecretAccessKey: cfg.ObjectStore.SecretAccessKey,
		UsePathStyle:    cfg.ObjectStore.UsePathStyle,
		MaxAttempts:     cfg.ObjectStore.MaxAttempts,
	}, storeMetrics)
	if err != nil {
		return nil, fmt.Errorf("failed to create object store: %w", err)
	}

	if cfg.ObjectStore.Endpoint != "" {
		logger.Info("Object store initialized: bucket=%s, region=%s, endpoint=%s",
			cfg.ObjectStore.Bucket, cfg.ObjectStore.Region, cfg.ObjectStore.Endpoint)
	} else {
		logger.Info("Object store initialized: bucket=%s, region=%s",
			cfg.ObjectStore.Bucket, cfg.ObjectStore.Region)
	}

	return store, nil
}
