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

package recon_hdl

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	context_hdl "github.com/SENERGY-Platform/go-service-base/context-hdl"
	"github.com/gitops-selfservice/project-manager/handler"
	"github.com/gitops-selfservice/project-manager/lib/model"
	"github.com/gitops-selfservice/project-manager/util"
	"gopkg.in/yaml.v3"
)

// Handler is the reconciliation engine. All connector and storage
// dependencies are passed in at construction and never change; the engine is
// the only place that decides retry versus abort versus surface.
type Handler struct {
	storage    handler.StorageHandler
	secret     handler.SecretHandler
	manifest   handler.ManifestHandler
	publisher  handler.GitOpsPublisher
	controller handler.DeploymentController
	dbProv     handler.DatabaseProvisioner
	objProv    handler.ObjectStorageProvisioner
	idmProv    handler.IdentityProvisioner
	mu         *util.KeyMutex
	cluster    string
	attempts   int
	delay      time.Duration
	dbTimeout  time.Duration
}

// New wires the engine. An empty cluster name disables the target cluster
// check.
func New(storage handler.StorageHandler, secret handler.SecretHandler, manifest handler.ManifestHandler, publisher handler.GitOpsPublisher, controller handler.DeploymentController, dbProv handler.DatabaseProvisioner, objProv handler.ObjectStorageProvisioner, idmProv handler.IdentityProvisioner, cluster string, attempts int, delay, dbTimeout time.Duration) *Handler {
	if attempts < 1 {
		attempts = 1
	}
	return &Handler{
		storage:    storage,
		secret:     secret,
		manifest:   manifest,
		publisher:  publisher,
		controller: controller,
		dbProv:     dbProv,
		objProv:    objProv,
		idmProv:    idmProv,
		mu:         util.NewKeyMutex(),
		cluster:    cluster,
		attempts:   attempts,
		delay:      delay,
		dbTimeout:  dbTimeout,
	}
}

// Status returns the latest run of a project.
func (h *Handler) Status(ctx context.Context, name string) (model.ReconciliationRun, error) {
	ch := context_hdl.New()
	defer ch.CancelAll()
	return h.storage.LatestRun(ch.Add(context.WithTimeout(ctx, h.dbTimeout)), name)
}

func specHash(spec model.ProjectSpec) (string, error) {
	raw, err := yaml.Marshal(spec)
	if err != nil {
		return "", model.NewInternalError(err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

func (h *Handler) saveRun(ctx context.Context, run *model.ReconciliationRun, status model.RunStatus) {
	run.Status = status
	if status == model.RunSucceeded || status == model.RunFailed || status == model.RunPartiallyCompleted {
		now := time.Now().UTC()
		run.Completed = &now
	}
	ch := context_hdl.New()
	defer ch.CancelAll()
	if err := h.storage.UpdateRun(ch.Add(context.WithTimeout(ctx, h.dbTimeout)), *run); err != nil {
		util.Logger.Errorf("persisting run '%s' failed: %s", run.ID, err)
	}
}
