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
	"fmt"
	"time"

	context_hdl "github.com/SENERGY-Platform/go-service-base/context-hdl"
	"github.com/gitops-selfservice/project-manager/lib/model"
	"github.com/google/uuid"
)

// Delete tears a project down in reverse dependency order: deployment
// artifacts first, then backing services, then the namespace, then the
// remaining git paths. Every child is confirmed absent before its parent is
// removed; absence of any element counts as success.
func (h *Handler) Delete(ctx context.Context, name string) (string, error) {
	if err := h.mu.TryLock(name, "deleting"); err != nil {
		return "", model.NewResourceBusyError(fmt.Errorf("project '%s' is busy: %s", name, err))
	}
	defer h.mu.Unlock(name)
	ch := context_hdl.New()
	defer ch.CancelAll()
	project, err := h.storage.ReadProject(ch.Add(context.WithTimeout(ctx, h.dbTimeout)), name)
	if err != nil {
		return "", err
	}
	spec := project.Spec
	run := model.ReconciliationRun{
		ID:          uuid.NewString(),
		ProjectName: name,
		SpecHash:    project.SpecHash,
		Status:      model.RunPending,
		Actions:     buildDeletePlan(spec),
		Created:     time.Now().UTC(),
	}
	if err = h.storage.CreateRun(ch.Add(context.WithTimeout(ctx, h.dbTimeout)), run); err != nil {
		return "", err
	}
	h.saveRun(ctx, &run, model.RunPlanning)
	h.saveRun(ctx, &run, model.RunExecuting)
	status, execErr := h.executeDelete(ctx, spec, &run)
	if execErr != nil {
		run.Error = execErr.Error()
	}
	h.saveRun(ctx, &run, status)
	return run.ID, execErr
}

func (h *Handler) executeDelete(ctx context.Context, spec model.ProjectSpec, run *model.ReconciliationRun) (model.RunStatus, error) {
	// workloads go first so nothing still consumes the backing services
	act := action(run, model.ActionDeleteDeployments, spec.Name)
	if paths := h.manifest.DeploymentArtifactPaths(spec); len(paths) > 0 {
		_, err := h.publisher.Remove(ctx, paths, fmt.Sprintf("remove deployments of %s", spec.Name))
		if err != nil {
			return h.fail(ctx, run, act, err)
		}
		err = h.retry(ctx, "trigger sync "+spec.Name, func(ctx context.Context) error {
			return h.controller.TriggerSync(ctx, spec.Name)
		})
		if err != nil {
			return h.fail(ctx, run, act, err)
		}
	}
	act.Status = model.ActionSucceeded
	h.saveRun(ctx, run, model.RunExecuting)

	ch := context_hdl.New()
	defer ch.CancelAll()
	for i := len(spec.Services) - 1; i >= 0; i-- {
		srv := spec.Services[i]
		act = action(run, model.ActionDeleteService, srv.Name)
		if err := h.deleteService(ctx, spec.Name, srv); err != nil {
			return h.fail(ctx, run, act, err)
		}
		if err := h.storage.DeleteResource(ch.Add(context.WithTimeout(ctx, h.dbTimeout)), spec.Name, srv.Name); err != nil {
			return h.fail(ctx, run, act, err)
		}
		act.Status = model.ActionSucceeded
		h.saveRun(ctx, run, model.RunExecuting)
	}

	// all services are confirmed gone, the namespace may follow
	act = action(run, model.ActionDeleteNamespace, spec.Name)
	err := h.retry(ctx, "delete namespace "+spec.Name, func(ctx context.Context) error {
		return h.controller.DeleteNamespace(ctx, spec.Name)
	})
	if err != nil {
		return h.fail(ctx, run, act, err)
	}
	if err = h.waitAbsent(ctx, "namespace "+spec.Name, func(ctx context.Context) (bool, error) {
		return h.controller.NamespaceExists(ctx, spec.Name)
	}); err != nil {
		return h.fail(ctx, run, act, err)
	}
	act.Status = model.ActionSucceeded
	h.saveRun(ctx, run, model.RunExecuting)

	act = action(run, model.ActionDeleteGitPaths, spec.Name)
	_, err = h.publisher.Remove(ctx, h.manifest.ArtifactPaths(spec), fmt.Sprintf("remove project %s", spec.Name))
	if err != nil {
		act.Status = model.ActionFailed
		act.Error = err.Error()
		// infrastructure is gone, only the artifacts remain
		return model.RunPartiallyCompleted, err
	}
	if err = h.storage.DeleteProject(ch.Add(context.WithTimeout(ctx, h.dbTimeout)), spec.Name); err != nil {
		return h.fail(ctx, run, act, err)
	}
	act.Status = model.ActionSucceeded
	return model.RunSucceeded, nil
}

// deleteService removes one external resource and waits until it is no
// longer observable. An absent resource is success.
func (h *Handler) deleteService(ctx context.Context, projectName string, srv model.ServiceSpec) error {
	var exists bool
	err := h.retry(ctx, "check service "+srv.Name, func(ctx context.Context) error {
		var e error
		exists, e = h.serviceExists(ctx, srv, projectName)
		return e
	})
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	err = h.retry(ctx, "delete service "+srv.Name, func(ctx context.Context) error {
		switch srv.Kind {
		case model.ServiceKindDatabase:
			return h.dbProv.DeleteDatabase(ctx, srv)
		case model.ServiceKindObjectStorage:
			return h.objProv.DeleteBucket(ctx, srv)
		case model.ServiceKindIdentity:
			return h.idmProv.DeleteRealmClient(ctx, srv, projectName)
		default:
			return model.NewInternalError(fmt.Errorf("unknown service kind '%s'", srv.Kind))
		}
	})
	if err != nil {
		return err
	}
	return h.waitAbsent(ctx, fmt.Sprintf("%s '%s'", srv.Kind, srv.Name), func(ctx context.Context) (bool, error) {
		return h.serviceExists(ctx, srv, projectName)
	})
}
