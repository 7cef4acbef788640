// Package s3archive implements an S3-backed Archiver.
//
// Artifacts are written flat under a run-scoped key prefix rather than
// through Hive-partitioned dataset layout — a single run's envelope,
// metrics, and report have no source/category/day/event_type
// dimensions to partition by, so the plain key-per-artifact shape fits
// better than the dataset machinery built for continuous ingestion.
package s3archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/justapithecus/lode/lode"
	lodes3 "github.com/justapithecus/lode/lode/s3"

	"github.com/justapithecus/governor/archive"
)

// Config configures the S3 artifact mirror.
type Config struct {
	// Bucket is the destination S3 bucket (required).
	Bucket string
	// Prefix is the key prefix within the bucket (optional).
	Prefix string
	// Region is the AWS region (optional, uses the default chain if empty).
	Region string
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("s3archive: bucket is required")
	}
	return nil
}

// Archiver mirrors run artifacts to S3 via a lode.Store.
type Archiver struct {
	store lode.Store
	cfg   Config
}

// New creates an S3-backed Archiver using the AWS SDK default credential
// chain (env vars, shared config, IAM role).
func New(ctx context.Context, cfg Config) (*Archiver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	aws, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3archive: load aws config: %w", err)
	}

	s3Client := s3.NewFromConfig(aws)
	store, err := lodes3.New(s3Client, lodes3.Config{
		Bucket: cfg.Bucket,
		Prefix: cfg.Prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("s3archive: create store: %w", err)
	}

	return newArchiver(store, cfg), nil
}

// newArchiver builds an Archiver around an already-constructed Store,
// letting tests substitute a fake Store without touching AWS.
func newArchiver(store lode.Store, cfg Config) *Archiver {
	return &Archiver{store: store, cfg: cfg}
}

// PutArtifacts uploads every artifact under runs/<runID>/<runInstanceID>/.
func (a *Archiver) PutArtifacts(ctx context.Context, runID, runInstanceID string, artifacts []archive.Artifact) error {
	for _, art := range artifacts {
		path := a.keyFor(runID, runInstanceID, art.Name)
		if err := a.store.Put(ctx, path, bytes.NewReader(art.Data)); err != nil {
			return fmt.Errorf("s3archive: put %s: %w", art.Name, err)
		}
	}
	return nil
}

func (a *Archiver) keyFor(runID, runInstanceID, filename string) string {
	return strings.Join([]string{"runs", runID, runInstanceID, filename}, "/")
}

// Verify Archiver implements the archive interface.
var _ archive.Archiver = (*Archiver)(nil)
