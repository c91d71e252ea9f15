// Package gitsource keeps a local checkout of a git-hosted deck repository.
package gitsource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-git/go-git/v5"
)

// Sync clones a git repository if it doesn't exist at the given path,
// or pulls the latest changes if it does.
func Sync(ctx context.Context, url, localPath string, logger *slog.Logger) error {
	_, err := os.Stat(localPath)
	switch {
	case os.IsNotExist(err):
		logger.Info("cloning deck repository", "url", url, "path", localPath)
		_, err := git.PlainCloneContext(ctx, localPath, false, &git.CloneOptions{
			URL:   url,
			Depth: 1,
		})
		if err != nil {
			return fmt.Errorf("failed to clone repo %s: %w", url, err)
		}
		logger.Info("clone successful", "path", localPath)

	case err == nil:
		logger.Info("pulling deck repository", "path", localPath)
		repo, err := git.PlainOpen(localPath)
		if err != nil {
			return fmt.Errorf("failed to open existing repo at %s: %w", localPath, err)
		}

		worktree, err := repo.Worktree()
		if err != nil {
			return fmt.Errorf("failed to get worktree for repo at %s: %w", localPath, err)
		}

		err = worktree.PullContext(ctx, &git.PullOptions{RemoteName: "origin"})
		if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
			return fmt.Errorf("failed to pull changes for repo at %s: %w", localPath, err)
		}
		logger.Info("pull successful (or already up-to-date)", "path", localPath)

	default:
		return fmt.Errorf("error checking path %s: %w", localPath, err)
	}

	return nil
}
