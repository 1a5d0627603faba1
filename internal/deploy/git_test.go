package deploy

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceCommit(t *testing.T) {
	assert.Empty(t, sourceCommit(""))
	assert.Empty(t, sourceCommit(t.TempDir()))

	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "01_raw"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "01_raw", "010_crm.sql"),
		[]byte("CREATE SCHEMA IF NOT EXISTS CRM_RAW_001;\n"), 0644))

	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("01_raw/010_crm.sql")
	require.NoError(t, err)
	hash, err := wt.Commit("add raw crm", &git.CommitOptions{
		Author: &object.Signature{Name: "Data Platform", Email: "data@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	assert.Equal(t, hash.String(), sourceCommit(dir))
	assert.Equal(t, hash.String(), sourceCommit(filepath.Join(dir, "01_raw")))
}
