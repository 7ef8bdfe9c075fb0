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
	"os"
	"os/exec"
	"path"
	"testing"
	"time"

	"github.com/SENERGY-Platform/go-service-base/srv-base"
	"github.com/gitops-selfservice/project-manager/util"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/y-du/go-log-level/level"
)

func TestMain(m *testing.M) {
	_, err := util.InitLogger(srv_base.LoggerConfig{Level: level.Error, Terminal: true})
	if err != nil {
		os.Exit(1)
	}
	os.Exit(m.Run())
}

func newTestSetup(t *testing.T) (*Handler, string) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
	base := t.TempDir()
	remoteDir := path.Join(base, "remote")
	if _, err := git.PlainInit(remoteDir, true); err != nil {
		t.Fatal("error:", err)
	}
	h, err := New(path.Join(base, "work"), remoteDir, "main", "", "", "", 10*time.Second, 3)
	if err != nil {
		t.Fatal("error:", err)
	}
	if err = h.InitWorkspace(); err != nil {
		t.Fatal("error:", err)
	}
	return h, remoteDir
}

func remoteHead(t *testing.T, remoteDir string) plumbing.Hash {
	t.Helper()
	repo, err := git.PlainOpen(remoteDir)
	if err != nil {
		t.Fatal("error:", err)
	}
	ref, err := repo.Reference(plumbing.NewBranchReferenceName("main"), true)
	if err != nil {
		t.Fatal("error:", err)
	}
	return ref.Hash()
}

func remoteFileExists(t *testing.T, remoteDir, filePath string) bool {
	t.Helper()
	repo, err := git.PlainOpen(remoteDir)
	if err != nil {
		t.Fatal("error:", err)
	}
	commit, err := repo.CommitObject(remoteHead(t, remoteDir))
	if err != nil {
		t.Fatal("error:", err)
	}
	if _, err = commit.File(filePath); err != nil {
		return false
	}
	return true
}

func TestHandler_Publish(t *testing.T) {
	h, remoteDir := newTestSetup(t)
	files := map[string][]byte{
		"projects/test/a.yaml": []byte("a: 1\n"),
		"projects/test/b.yaml": []byte("b: 2\n"),
	}
	record, err := h.Publish(context.Background(), files, "add test project")
	if err != nil {
		t.Fatal("error:", err)
	}
	if record.CommitID == "" {
		t.Error("empty commit id")
	}
	if record.Branch != "main" {
		t.Errorf("record.Branch != \"main\" (%s)", record.Branch)
	}
	if len(record.Files) != 2 {
		t.Errorf("len(record.Files) != 2 (%d)", len(record.Files))
	}
	if remoteHead(t, remoteDir).String() != record.CommitID {
		t.Error("remote head does not match commit id")
	}
	if !remoteFileExists(t, remoteDir, "projects/test/a.yaml") {
		t.Error("file missing in remote")
	}
	t.Run("no change no commit", func(t *testing.T) {
		record2, err := h.Publish(context.Background(), files, "no change")
		if err != nil {
			t.Fatal("error:", err)
		}
		if record2.CommitID != record.CommitID {
			t.Error("unexpected new commit")
		}
		if len(record2.Files) != 0 {
			t.Errorf("len(record2.Files) != 0 (%d)", len(record2.Files))
		}
	})
}

func TestHandler_Remove(t *testing.T) {
	h, remoteDir := newTestSetup(t)
	files := map[string][]byte{
		"projects/test/a.yaml":  []byte("a: 1\n"),
		"projects/other/c.yaml": []byte("c: 3\n"),
	}
	if _, err := h.Publish(context.Background(), files, "seed"); err != nil {
		t.Fatal("error:", err)
	}
	record, err := h.Remove(context.Background(), []string{"projects/test"}, "remove test project")
	if err != nil {
		t.Fatal("error:", err)
	}
	if record.CommitID == "" {
		t.Error("empty commit id")
	}
	if remoteFileExists(t, remoteDir, "projects/test/a.yaml") {
		t.Error("file still present in remote")
	}
	if !remoteFileExists(t, remoteDir, "projects/other/c.yaml") {
		t.Error("unrelated file removed")
	}
	t.Run("absent path no commit", func(t *testing.T) {
		record2, err := h.Remove(context.Background(), []string{"projects/test"}, "remove again")
		if err != nil {
			t.Fatal("error:", err)
		}
		if record2.CommitID != record.CommitID {
			t.Error("unexpected new commit")
		}
	})
}

func TestHandler_PublishConcurrentRemote(t *testing.T) {
	h, remoteDir := newTestSetup(t)
	if _, err := h.Publish(context.Background(), map[string][]byte{"projects/a/a.yaml": []byte("a: 1\n")}, "seed"); err != nil {
		t.Fatal("error:", err)
	}
	// simulate another writer by pushing through a second clone
	h2, err := New(path.Join(t.TempDir(), "work2"), remoteDir, "main", "", "", "", 10*time.Second, 3)
	if err != nil {
		t.Fatal("error:", err)
	}
	if err = h2.InitWorkspace(); err != nil {
		t.Fatal("error:", err)
	}
	if _, err = h2.Publish(context.Background(), map[string][]byte{"projects/b/b.yaml": []byte("b: 2\n")}, "other writer"); err != nil {
		t.Fatal("error:", err)
	}
	// first clone is now behind and must resync before pushing
	record, err := h.Publish(context.Background(), map[string][]byte{"projects/a/a2.yaml": []byte("a: 2\n")}, "update")
	if err != nil {
		t.Fatal("error:", err)
	}
	if remoteHead(t, remoteDir).String() != record.CommitID {
		t.Error("remote head does not match commit id")
	}
	if !remoteFileExists(t, remoteDir, "projects/b/b.yaml") {
		t.Error("other writer's file lost")
	}
	if !remoteFileExists(t, remoteDir, "projects/a/a2.yaml") {
		t.Error("published file missing")
	}
}
