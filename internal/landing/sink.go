package landing

import (
	"context"
	"strings"

	"snowbank/pkg/errors"
	"snowbank/pkg/models"
)

// Sink receives generated files.
type Sink interface {
	Name() string
	Upload(ctx context.Context, localPath, key string) error
}

// Target names accepted in landing.target.
const (
	TargetLocal = "local"
	TargetStage = "stage"
	TargetS3    = "s3"
	TargetGCS   = "gcs"
)

// DefaultLocalDir is used when landing.local_dir is empty.
const DefaultLocalDir = "landing"

// NewSink builds the sink selected by cfg. stager is only required for the
// stage target.
func NewSink(ctx context.Context, cfg models.Landing, stager Stager, router *Router) (Sink, error) {
	switch strings.ToLower(cfg.Target) {
	case TargetLocal:
		dir := cfg.LocalDir
		if dir == "" {
			dir = DefaultLocalDir
		}
		return NewLocalSink(dir), nil
	case TargetStage, "":
		if stager == nil {
			return nil, errors.New(errors.ErrCodeConfigInvalid, "stage landing requires a Snowflake connection")
		}
		return NewStageSink(stager, router), nil
	case TargetS3:
		if cfg.S3.Bucket == "" {
			return nil, errors.ConfigError("landing.s3.bucket is required", "landing.s3.bucket")
		}
		return NewS3Sink(cfg.S3)
	case TargetGCS:
		if cfg.GCS.Bucket == "" {
			return nil, errors.ConfigError("landing.gcs.bucket is required", "landing.gcs.bucket")
		}
		return NewGCSSink(ctx, cfg.GCS)
	default:
		return nil, errors.Newf(errors.ErrCodeConfigInvalid, "unknown landing target %q", cfg.Target).
			WithSuggestions("Use one of: local, stage, s3, gcs")
	}
}
