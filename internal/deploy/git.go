package deploy

import (
	"github.com/go-git/go-git/v5"
)

// sourceCommit returns the HEAD commit of the git checkout holding dir, or ""
// when dir is empty or not under version control.
func sourceCommit(dir string) string {
	if dir == "" {
		return ""
	}
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return ""
	}
	head, err := repo.Head()
	if err != nil {
		return ""
	}
	return head.Hash().String()
}
