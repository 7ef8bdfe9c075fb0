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

package api

import (
	"context"
	"fmt"

	"github.com/gitops-selfservice/project-manager/lib/model"
)

// ReconcileProject queues an asynchronous reconciliation. Validation runs
// synchronously so a malformed spec is rejected before a job exists.
func (a *Api) ReconcileProject(_ context.Context, spec model.ProjectSpec) (string, error) {
	if err := spec.Validate(); err != nil {
		return "", model.NewInvalidInputError(err)
	}
	return a.jobHandler.Create(fmt.Sprintf("reconcile project '%s'", spec.Name), spec.Name, func(ctx context.Context, cf context.CancelFunc) (string, error) {
		defer cf()
		return a.reconHandler.Reconcile(ctx, spec)
	})
}

// ReconcileStoredProject re-runs reconciliation with the last applied spec.
func (a *Api) ReconcileStoredProject(ctx context.Context, name string) (string, error) {
	project, err := a.storageHandler.ReadProject(ctx, name)
	if err != nil {
		return "", err
	}
	return a.jobHandler.Create(fmt.Sprintf("reconcile project '%s'", name), name, func(ctx context.Context, cf context.CancelFunc) (string, error) {
		defer cf()
		return a.reconHandler.Reconcile(ctx, project.Spec)
	})
}

func (a *Api) DeleteProject(ctx context.Context, name string) (string, error) {
	if _, err := a.storageHandler.ReadProject(ctx, name); err != nil {
		return "", err
	}
	return a.jobHandler.Create(fmt.Sprintf("delete project '%s'", name), name, func(ctx context.Context, cf context.CancelFunc) (string, error) {
		defer cf()
		return a.reconHandler.Delete(ctx, name)
	})
}

func (a *Api) GetProjectStatus(ctx context.Context, name string) (model.ReconciliationRun, error) {
	return a.reconHandler.Status(ctx, name)
}

func (a *Api) GetProjects(ctx context.Context, filter model.ProjectFilter) ([]model.Project, error) {
	return a.storageHandler.ListProjects(ctx, filter)
}
