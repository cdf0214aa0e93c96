// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	xglog "github.com/ManuGH/orkestra/internal/log"
	"github.com/rs/zerolog"
)

// RepoSyncer replaces the worker project directory with a fresh clone of
// the game server repository, including its LFS objects.
type RepoSyncer struct {
	GitBin      string
	RepoURL     string
	BaseDir     string
	ProjectName string
	Logger      *zerolog.Logger
}

// ProjectDir is where the clone ends up.
func (r RepoSyncer) ProjectDir() string {
	return filepath.Join(r.BaseDir, r.ProjectName)
}

// Sync removes the old checkout, clones, then fetches and pulls LFS files.
func (r RepoSyncer) Sync(ctx context.Context) error {
	if r.RepoURL == "" || r.ProjectName == "" {
		return errors.New("repo sync: repository url and project name are required")
	}
	git := r.GitBin
	if git == "" {
		git = "git"
	}
	logger := xglog.WithComponent("worker.repo")
	if r.Logger != nil {
		logger = *r.Logger
	}
	base := r.BaseDir
	if base == "" {
		base = "."
	}

	logger.Info().Str(xglog.FieldEvent, "repo.sync_start").Str("repo", r.RepoURL).Msg("syncing worker repository")

	if err := os.RemoveAll(r.ProjectDir()); err != nil {
		return fmt.Errorf("repo sync: remove old checkout: %w", err)
	}

	steps := []struct {
		dir  string
		args []string
	}{
		{base, []string{"clone", r.RepoURL, r.ProjectName}},
		{r.ProjectDir(), []string{"lfs", "fetch"}},
		{r.ProjectDir(), []string{"lfs", "pull"}},
	}
	for _, step := range steps {
		logger.Debug().Str(xglog.FieldEvent, "repo.git").Strs("args", step.args).Msg("running git")
		if err := runGit(ctx, git, step.dir, step.args...); err != nil {
			return fmt.Errorf("repo sync: %w", err)
		}
	}

	logger.Info().Str(xglog.FieldEvent, "repo.sync_done").Str(xglog.FieldPath, r.ProjectDir()).Msg("worker repository synced")
	return nil
}

func runGit(ctx context.Context, git, dir string, args ...string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, git, args...)
	cmd.Dir = dir
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
		}
		return fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, msg)
	}
	return nil
}
