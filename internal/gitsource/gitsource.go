// Package gitsource keeps a local checkout of a repository holding deck
// text files.
package gitsource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
)

// Sync clones the repository at url into localPath if it doesn't exist
// there yet, or pulls the latest changes if it does. Progress output goes to
// progress, which may be nil.
func Sync(ctx context.Context, logger *slog.Logger, url, localPath string, progress io.Writer) error {
	_, err := os.Stat(localPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Info("cloning deck repository", "url", url, "path", localPath)
		_, err := git.PlainCloneContext(ctx, localPath, false, &git.CloneOptions{
			URL:      url,
			Progress: progress,
		})
		if err != nil {
			return fmt.Errorf("failed to clone repo %s: %w", url, err)
		}

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

		err = worktree.PullContext(ctx, &git.PullOptions{
			RemoteName: "origin",
			Progress:   progress,
		})
		if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
			return fmt.Errorf("failed to pull changes for repo at %s: %w", localPath, err)
		}

	default:
		return fmt.Errorf("error checking path %s: %w", localPath, err)
	}

	return nil
}

// LocalPath maps a repository URL to a checkout directory below baseDir,
// e.g. https://github.com/u/cards.git -> baseDir/github.com/u/cards.
// scp-like addresses (git@host:u/cards.git) are accepted too.
func LocalPath(baseDir, repoURL string) (string, error) {
	parsed, err := url.Parse(repoURL)
	if err == nil && parsed.Host != "" && parsed.Scheme != "" {
		repoPath := strings.TrimSuffix(strings.Trim(parsed.Path, "/"), ".git")
		if repoPath == "" {
			return "", fmt.Errorf("git URL has no repository path: %s", repoURL)
		}
		return filepath.Join(baseDir, parsed.Hostname(), filepath.FromSlash(repoPath)), nil
	}

	if host, repoPath, ok := strings.Cut(repoURL, ":"); ok {
		if _, host, ok := strings.Cut(host, "@"); ok && host != "" {
			repoPath = strings.TrimSuffix(strings.Trim(repoPath, "/"), ".git")
			if repoPath != "" {
				return filepath.Join(baseDir, host, filepath.FromSlash(repoPath)), nil
			}
		}
	}

	return "", fmt.Errorf("could not parse git URL: %s", repoURL)
}
