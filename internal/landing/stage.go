package landing

import (
	"context"
	"path"

	"snowbank/internal/snowflake"
	"snowbank/pkg/errors"
)

// Stager is the part of the Snowflake service used for landing.
type Stager interface {
	Put(ctx context.Context, localPath string, opts snowflake.PutOptions) error
	ExecuteTask(ctx context.Context, task string) error
}

// StageSink PUTs files into the internal stage of their domain.
type StageSink struct {
	stager Stager
	router *Router
}

func NewStageSink(stager Stager, router *Router) *StageSink {
	if router == nil {
		router = NewRouter()
	}
	return &StageSink{stager: stager, router: router}
}

func (s *StageSink) Name() string { return "stage" }

// Upload keeps the file uncompressed so the RAW tasks' file patterns match.
func (s *StageSink) Upload(ctx context.Context, localPath, key string) error {
	route, ok := s.router.Match(key)
	if !ok {
		return errors.New(errors.ErrCodeLandingFailed, "No stage for file").WithContext("key", key)
	}
	prefix := path.Dir(key)
	if prefix == "." {
		prefix = ""
	}
	return s.stager.Put(ctx, localPath, snowflake.PutOptions{
		Stage:        route.Stage,
		Prefix:       prefix,
		AutoCompress: false,
		Overwrite:    true,
	})
}
