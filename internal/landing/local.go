package landing

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"snowbank/internal/common"
	"snowbank/pkg/errors"
)

// LocalSink copies files into a directory, keeping their relative layout.
type LocalSink struct {
	dir string
}

func NewLocalSink(dir string) *LocalSink {
	return &LocalSink{dir: dir}
}

func (s *LocalSink) Name() string { return "local:" + s.dir }

func (s *LocalSink) Upload(ctx context.Context, localPath, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dest, err := common.ValidatePath(filepath.Join(s.dir, filepath.FromSlash(key)), s.dir)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeLandingFailed, "Invalid landing key").
			WithContext("key", key)
	}
	if err := os.MkdirAll(filepath.Dir(dest), common.DirPermissionNormal); err != nil {
		return errors.Wrap(err, errors.ErrCodeFileOperation, "Failed to create landing directory").
			WithContext("path", filepath.Dir(dest))
	}

	src, err := os.Open(localPath)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeFileOperation, "Failed to open file").
			WithContext("path", localPath)
	}
	defer src.Close()

	dst, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, common.FilePermissionNormal)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeFileOperation, "Failed to create landing file").
			WithContext("path", dest)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return errors.Wrap(err, errors.ErrCodeFileOperation, "Failed to copy file").
			WithContext("path", dest)
	}
	return dst.Close()
}
