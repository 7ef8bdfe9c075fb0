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

package git_mon_hdl

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/gitops-selfservice/project-manager/lib/model"
	"github.com/gitops-selfservice/project-manager/util"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	git_http "github.com/go-git/go-git/v5/plumbing/transport/http"
	"gopkg.in/yaml.v3"
)

type refStorage interface {
	ReadMonitorRef(ctx context.Context, ref string) (string, error)
	SetMonitorRef(ctx context.Context, ref, revision string) error
}

// Handler polls a spec repository and feeds changed project specs to the
// apply function. The last processed revision is persisted, so a restart
// resumes where the previous instance stopped instead of replaying history.
type Handler struct {
	storage     refStorage
	applyFn     func(ctx context.Context, spec model.ProjectSpec) error
	wrkSpcPath  string
	repoURL     string
	branch      string
	specDir     string
	user        string
	token       string
	interval    time.Duration
	httpTimeout time.Duration
	loopCancel  context.CancelFunc
	done        chan struct{}
}

func New(storage refStorage, applyFn func(ctx context.Context, spec model.ProjectSpec) error, workspacePath, repoURL, branch, specDir, user, token string, interval, httpTimeout time.Duration) (*Handler, error) {
	if !path.IsAbs(workspacePath) {
		return nil, fmt.Errorf("workspace path must be absolute")
	}
	if repoURL == "" {
		return nil, fmt.Errorf("repository url required")
	}
	return &Handler{
		storage:     storage,
		applyFn:     applyFn,
		wrkSpcPath:  workspacePath,
		repoURL:     repoURL,
		branch:      branch,
		specDir:     specDir,
		user:        user,
		token:       token,
		interval:    interval,
		httpTimeout: httpTimeout,
	}, nil
}

func (h *Handler) Start() {
	var ctx context.Context
	ctx, h.loopCancel = context.WithCancel(context.Background())
	h.done = make(chan struct{})
	go h.run(ctx)
}

func (h *Handler) Stop() {
	if h.loopCancel != nil {
		h.loopCancel()
		<-h.done
	}
}

func (h *Handler) run(ctx context.Context) {
	defer close(h.done)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		if err := h.Poll(ctx); err != nil {
			util.Logger.Errorf("spec monitor: %s", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Poll fetches the remote branch head and applies every spec file that
// changed since the last processed revision. The revision marker is only
// advanced after all changed specs were handed off.
func (h *Handler) Poll(ctx context.Context) error {
	repo, head, err := h.fetchHead(ctx)
	if err != nil {
		return err
	}
	if head == plumbing.ZeroHash {
		return nil
	}
	refKey := h.repoURL + "#" + h.branch
	ctxRd, cf := context.WithTimeout(ctx, h.httpTimeout)
	defer cf()
	last, err := h.storage.ReadMonitorRef(ctxRd, refKey)
	if err != nil {
		return err
	}
	if last == head.String() {
		return nil
	}
	changed, err := h.changedSpecs(repo, last, head)
	if err != nil {
		return err
	}
	for _, filePath := range changed {
		if err = h.applySpecFile(ctx, repo, head, filePath); err != nil {
			return err
		}
	}
	ctxWr, cf2 := context.WithTimeout(ctx, h.httpTimeout)
	defer cf2()
	return h.storage.SetMonitorRef(ctxWr, refKey, head.String())
}

func (h *Handler) applySpecFile(ctx context.Context, repo *git.Repository, head plumbing.Hash, filePath string) error {
	commit, err := repo.CommitObject(head)
	if err != nil {
		return model.NewInternalError(err)
	}
	file, err := commit.File(filePath)
	if err != nil {
		return model.NewInternalError(err)
	}
	raw, err := file.Contents()
	if err != nil {
		return model.NewInternalError(err)
	}
	var spec model.ProjectSpec
	if err = yaml.Unmarshal([]byte(raw), &spec); err != nil {
		util.Logger.Errorf("spec monitor: skipping malformed spec '%s': %s", filePath, err)
		return nil
	}
	if err = spec.Validate(); err != nil {
		util.Logger.Errorf("spec monitor: skipping invalid spec '%s': %s", filePath, err)
		return nil
	}
	util.Logger.Infof("spec monitor: applying '%s' (project '%s')", filePath, spec.Name)
	return h.applyFn(ctx, spec)
}

// changedSpecs lists the spec files that differ between the two revisions.
// With no previous revision, or a previous revision that no longer exists
// after a history rewrite, all spec files at head are returned.
func (h *Handler) changedSpecs(repo *git.Repository, last string, head plumbing.Hash) ([]string, error) {
	headCommit, err := repo.CommitObject(head)
	if err != nil {
		return nil, model.NewInternalError(err)
	}
	headTree, err := headCommit.Tree()
	if err != nil {
		return nil, model.NewInternalError(err)
	}
	if last != "" {
		lastCommit, err := repo.CommitObject(plumbing.NewHash(last))
		if err == nil {
			lastTree, err := lastCommit.Tree()
			if err != nil {
				return nil, model.NewInternalError(err)
			}
			changes, err := object.DiffTree(lastTree, headTree)
			if err != nil {
				return nil, model.NewInternalError(err)
			}
			var paths []string
			for _, change := range changes {
				name := change.To.Name
				if name == "" {
					// file deleted, nothing to apply
					util.Logger.Warningf("spec monitor: spec '%s' removed, project not touched", change.From.Name)
					continue
				}
				if h.isSpecFile(name) {
					paths = append(paths, name)
				}
			}
			return paths, nil
		}
		util.Logger.Warningf("spec monitor: revision '%s' unknown, scanning all specs", last)
	}
	var paths []string
	err = headTree.Files().ForEach(func(f *object.File) error {
		if h.isSpecFile(f.Name) {
			paths = append(paths, f.Name)
		}
		return nil
	})
	if err != nil {
		return nil, model.NewInternalError(err)
	}
	return paths, nil
}

func (h *Handler) isSpecFile(name string) bool {
	if h.specDir != "" && !strings.HasPrefix(name, h.specDir+"/") {
		return false
	}
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}

// fetchHead maintains a bare mirror of the spec repository and returns the
// branch head. An empty remote yields a zero hash.
func (h *Handler) fetchHead(ctx context.Context) (*git.Repository, plumbing.Hash, error) {
	repo, err := git.PlainOpen(h.wrkSpcPath)
	if err != nil {
		if err != git.ErrRepositoryNotExists {
			return nil, plumbing.ZeroHash, model.NewInternalError(err)
		}
		ctxWt, cf := context.WithTimeout(ctx, h.httpTimeout)
		defer cf()
		repo, err = git.PlainCloneContext(ctxWt, h.wrkSpcPath, true, &git.CloneOptions{
			URL:               h.repoURL,
			ReferenceName:     plumbing.NewBranchReferenceName(h.branch),
			SingleBranch:      true,
			RecurseSubmodules: git.NoRecurseSubmodules,
			Tags:              git.NoTags,
			Auth:              h.auth(),
		})
		if err != nil {
			if err == transport.ErrEmptyRemoteRepository {
				return nil, plumbing.ZeroHash, nil
			}
			return nil, plumbing.ZeroHash, model.NewTransientError(err)
		}
	} else {
		ctxWt, cf := context.WithTimeout(ctx, h.httpTimeout)
		defer cf()
		err = repo.FetchContext(ctxWt, &git.FetchOptions{Auth: h.auth(), Force: true, Tags: git.NoTags})
		if err != nil && err != git.NoErrAlreadyUpToDate {
			if err == transport.ErrEmptyRemoteRepository {
				return repo, plumbing.ZeroHash, nil
			}
			return nil, plumbing.ZeroHash, model.NewTransientError(err)
		}
	}
	// bare clones track the branch directly, non-bare ones via the remote ref
	for _, name := range []plumbing.ReferenceName{
		plumbing.NewRemoteReferenceName(git.DefaultRemoteName, h.branch),
		plumbing.NewBranchReferenceName(h.branch),
	} {
		ref, err := repo.Reference(name, true)
		if err == nil {
			return repo, ref.Hash(), nil
		}
		if err != plumbing.ErrReferenceNotFound {
			return nil, plumbing.ZeroHash, model.NewInternalError(err)
		}
	}
	return repo, plumbing.ZeroHash, nil
}

func (h *Handler) auth() transport.AuthMethod {
	if h.token == "" {
		return nil
	}
	user := h.user
	if user == "" {
		user = "token"
	}
	return &git_http.BasicAuth{Username: user, Password: h.token}
}
