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

package lib

import (
	"context"

	"github.com/gitops-selfservice/project-manager/lib/model"
)

type Api interface {
	ReconcileProject(ctx context.Context, spec model.ProjectSpec) (string, error)
	ReconcileStoredProject(ctx context.Context, name string) (string, error)
	DeleteProject(ctx context.Context, name string) (string, error)
	GetProjectStatus(ctx context.Context, name string) (model.ReconciliationRun, error)
	GetProjects(ctx context.Context, filter model.ProjectFilter) ([]model.Project, error)
	RenderSecrets(ctx context.Context, doc model.SecretDocument) (model.SecretBatch, error)
	GetJobs(ctx context.Context, filter model.JobFilter) ([]model.Job, error)
	GetJob(ctx context.Context, id string) (model.Job, error)
	CancelJob(ctx context.Context, id string) error
}
