/*
 * Copyright 2025 The project-manager authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package git_pub_hdl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/gitops-selfservice/project-manager/lib/model"
	"github.com/gitops-selfservice/project-manager/util"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	git_http "github.com/go-git/go-git/v5/plumbing/transport/http"
	git_ssh "github.com/go-git/go-git/v5/plumbing/transport/ssh"
)

const (
	commitName  = model.ServiceName
	commitEmail = model.ServiceName + "@noreply.local"
)

type Handler struct {
	wrkSpcPath  string
	repoURL     string
	branch      string
	user        string
	token       string
	sshKeyPath  string
	httpTimeout time.Duration
	pushRetries int
	mu          *util.KeyMutex
}

func New(workspacePath, repoURL, branch, user, token, sshKeyPath string, httpTimeout time.Duration, pushRetries int) (*Handler, error) {
	if !path.IsAbs(workspacePath) {
		return nil, fmt.Errorf("workspace path must be absolute")
	}
	if repoURL == "" {
		return nil, fmt.Errorf("repository url required")
	}
	if pushRetries < 1 {
		pushRetries = 1
	}
	return &Handler{
		wrkSpcPath:  workspacePath,
		repoURL:     repoURL,
		branch:      branch,
		user:        user,
		token:       token,
		sshKeyPath:  sshKeyPath,
		httpTimeout: httpTimeout,
		pushRetries: pushRetries,
		mu:          util.NewKeyMutex(),
	}, nil
}

func (h *Handler) InitWorkspace() error {
	return os.MkdirAll(h.wrkSpcPath, 0770)
}

// Publish writes the given files into the repository and pushes a single
// commit. An input that changes nothing produces no commit. Non-fast-forward
// rejections are resynced and retried a bounded number of times before
// surfacing as a publish conflict.
func (h *Handler) Publish(ctx context.Context, files map[string][]byte, message string) (model.GitCommitRecord, error) {
	var paths []string
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return h.commitAndPush(ctx, message, paths, func() error {
		for _, p := range paths {
			fp := path.Join(h.wrkSpcPath, p)
			if err := os.MkdirAll(path.Dir(fp), 0770); err != nil {
				return model.NewInternalError(err)
			}
			if err := os.WriteFile(fp, files[p], 0660); err != nil {
				return model.NewInternalError(err)
			}
		}
		return nil
	})
}

// Remove deletes the given repository paths and pushes a single commit.
// Paths that are already absent are ignored.
func (h *Handler) Remove(ctx context.Context, paths []string, message string) (model.GitCommitRecord, error) {
	sorted := make([]string, len(paths))
	copy(sorted, paths)
	sort.Strings(sorted)
	return h.commitAndPush(ctx, message, sorted, func() error {
		for _, p := range sorted {
			if err := os.RemoveAll(path.Join(h.wrkSpcPath, p)); err != nil {
				return model.NewInternalError(err)
			}
		}
		return nil
	})
}

// commitAndPush serializes all work on the clone per repository. Each attempt
// resyncs to the remote head, replays the staged changes and pushes.
func (h *Handler) commitAndPush(ctx context.Context, message string, paths []string, apply func() error) (model.GitCommitRecord, error) {
	h.mu.Lock(h.repoURL, "publishing")
	defer h.mu.Unlock(h.repoURL)
	var err error
	for attempt := 0; attempt < h.pushRetries; attempt++ {
		var record model.GitCommitRecord
		record, err = h.attempt(ctx, message, paths, apply)
		if err == nil {
			return record, nil
		}
		if !isNonFastForward(err) {
			return model.GitCommitRecord{}, err
		}
		util.Logger.Warningf("publish attempt %d rejected: %s", attempt+1, err)
	}
	return model.GitCommitRecord{}, model.NewPublishConflictError(err)
}

func (h *Handler) attempt(ctx context.Context, message string, paths []string, apply func() error) (model.GitCommitRecord, error) {
	repo, err := h.sync(ctx)
	if err != nil {
		return model.GitCommitRecord{}, err
	}
	if err = apply(); err != nil {
		return model.GitCommitRecord{}, err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return model.GitCommitRecord{}, model.NewInternalError(err)
	}
	if err = wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return model.GitCommitRecord{}, model.NewInternalError(err)
	}
	status, err := wt.Status()
	if err != nil {
		return model.GitCommitRecord{}, model.NewInternalError(err)
	}
	if status.IsClean() {
		record := model.GitCommitRecord{Repository: h.repoURL, Branch: h.branch}
		if head, err := repo.Head(); err == nil {
			record.CommitID = head.Hash().String()
		}
		return record, nil
	}
	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{Name: commitName, Email: commitEmail, When: time.Now().UTC()},
	})
	if err != nil {
		return model.GitCommitRecord{}, model.NewInternalError(err)
	}
	auth, err := h.auth()
	if err != nil {
		return model.GitCommitRecord{}, err
	}
	ctxWt, cf := context.WithTimeout(ctx, h.httpTimeout)
	defer cf()
	err = repo.PushContext(ctxWt, &git.PushOptions{Auth: auth})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		if isNonFastForward(err) {
			return model.GitCommitRecord{}, err
		}
		return model.GitCommitRecord{}, model.NewTransientError(err)
	}
	return model.GitCommitRecord{
		Repository: h.repoURL,
		Branch:     h.branch,
		CommitID:   hash.String(),
		Files:      paths,
	}, nil
}

// sync opens or clones the working copy and hard-resets it to the remote
// branch head. An empty remote yields a fresh local repository whose first
// push creates the branch.
func (h *Handler) sync(ctx context.Context) (*git.Repository, error) {
	auth, err := h.auth()
	if err != nil {
		return nil, err
	}
	branchRef := plumbing.NewBranchReferenceName(h.branch)
	repo, err := git.PlainOpen(h.wrkSpcPath)
	if err != nil {
		if err != git.ErrRepositoryNotExists {
			return nil, model.NewInternalError(err)
		}
		ctxWt, cf := context.WithTimeout(ctx, h.httpTimeout)
		defer cf()
		repo, err = git.PlainCloneContext(ctxWt, h.wrkSpcPath, false, &git.CloneOptions{
			URL:               h.repoURL,
			ReferenceName:     branchRef,
			SingleBranch:      true,
			RecurseSubmodules: git.NoRecurseSubmodules,
			Tags:              git.NoTags,
			Auth:              auth,
		})
		if err != nil {
			if err == transport.ErrEmptyRemoteRepository {
				return h.initEmpty(branchRef)
			}
			return nil, model.NewTransientError(err)
		}
		return repo, nil
	}
	ctxWt, cf := context.WithTimeout(ctx, h.httpTimeout)
	defer cf()
	err = repo.FetchContext(ctxWt, &git.FetchOptions{Auth: auth, Force: true, Tags: git.NoTags})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		if err == transport.ErrEmptyRemoteRepository {
			return repo, nil
		}
		return nil, model.NewTransientError(err)
	}
	remoteRef, err := repo.Reference(plumbing.NewRemoteReferenceName(git.DefaultRemoteName, h.branch), true)
	if err != nil {
		if err == plumbing.ErrReferenceNotFound {
			return repo, nil
		}
		return nil, model.NewInternalError(err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, model.NewInternalError(err)
	}
	if err = wt.Reset(&git.ResetOptions{Mode: git.HardReset, Commit: remoteRef.Hash()}); err != nil {
		return nil, model.NewInternalError(err)
	}
	return repo, nil
}

func (h *Handler) initEmpty(branchRef plumbing.ReferenceName) (*git.Repository, error) {
	repo, err := git.PlainInitWithOptions(h.wrkSpcPath, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: branchRef},
	})
	if err != nil {
		return nil, model.NewInternalError(err)
	}
	_, err = repo.CreateRemote(&config.RemoteConfig{
		Name: git.DefaultRemoteName,
		URLs: []string{h.repoURL},
	})
	if err != nil {
		return nil, model.NewInternalError(err)
	}
	return repo, nil
}

func (h *Handler) auth() (transport.AuthMethod, error) {
	if h.sshKeyPath != "" {
		keys, err := git_ssh.NewPublicKeysFromFile("git", h.sshKeyPath, "")
		if err != nil {
			return nil, model.NewInternalError(err)
		}
		return keys, nil
	}
	if h.token != "" {
		user := h.user
		if user == "" {
			user = "token"
		}
		return &git_http.BasicAuth{Username: user, Password: h.token}, nil
	}
	return nil, nil
}

func isNonFastForward(err error) bool {
	return errors.Is(err, git.ErrNonFastForwardUpdate) || strings.Contains(err.Error(), "non-fast-forward")
}
