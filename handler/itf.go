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

package handler

import (
	"context"
	"database/sql/driver"
	"time"

	"github.com/gitops-selfservice/project-manager/lib/model"
)

// Connector contract: every Ensure* call is idempotent. Ensuring a resource
// that already exists returns its existing connection info instead of
// erroring. Connectors never retry and never swallow errors; classification
// (transient / permanent / fatal) is expressed through lib/model error types
// and acted on by the reconciliation engine alone.

type NamespaceProvisioner interface {
	EnsureNamespace(ctx context.Context, name string) error
	DeleteNamespace(ctx context.Context, name string) error
	NamespaceExists(ctx context.Context, name string) (bool, error)
}

type DatabaseProvisioner interface {
	EnsureDatabase(ctx context.Context, srv model.ServiceSpec, password string) (model.ConnectionInfo, error)
	DeleteDatabase(ctx context.Context, srv model.ServiceSpec) error
	DatabaseExists(ctx context.Context, srv model.ServiceSpec) (bool, error)
}

type ObjectStorageProvisioner interface {
	EnsureBucket(ctx context.Context, srv model.ServiceSpec, secretKey string) (model.ConnectionInfo, error)
	DeleteBucket(ctx context.Context, srv model.ServiceSpec) error
	BucketExists(ctx context.Context, srv model.ServiceSpec) (bool, error)
}

type IdentityProvisioner interface {
	EnsureRealmClient(ctx context.Context, srv model.ServiceSpec, project string) (model.ConnectionInfo, string, error)
	DeleteRealmClient(ctx context.Context, srv model.ServiceSpec, project string) error
	RealmClientExists(ctx context.Context, srv model.ServiceSpec, project string) (bool, error)
}

type GitOpsPublisher interface {
	Publish(ctx context.Context, files map[string][]byte, message string) (model.GitCommitRecord, error)
	Remove(ctx context.Context, paths []string, message string) (model.GitCommitRecord, error)
}

type DeploymentController interface {
	NamespaceProvisioner
	TriggerSync(ctx context.Context, project string) error
	SyncStatus(ctx context.Context, project string) (string, error)
}

type SecretHandler interface {
	Generate(length int) (string, error)
	HashOfRandom(length int) (plain string, hash string, err error)
	Encrypt(value string) (string, error)
	EncryptBase64(value string) (string, error)
	Decrypt(value string) (string, error)
	RenderBatch(doc model.SecretDocument) (model.SecretBatch, error)
}

type ManifestHandler interface {
	Generate(spec model.ProjectSpec, resources []model.ProvisionedResource, secrets map[string]model.SecretDocument) (map[string][]byte, error)
	ArtifactPaths(spec model.ProjectSpec) []string
	DeploymentArtifactPaths(spec model.ProjectSpec) []string
}

type StorageHandler interface {
	BeginTransaction(ctx context.Context) (driver.Tx, error)
	ListProjects(ctx context.Context, filter model.ProjectFilter) ([]model.Project, error)
	ReadProject(ctx context.Context, name string) (model.Project, error)
	UpsertProject(ctx context.Context, itf driver.Tx, spec model.ProjectSpec, hash string, timestamp time.Time) error
	DeleteProject(ctx context.Context, name string) error
	ListResources(ctx context.Context, filter model.ResourceFilter) ([]model.ProvisionedResource, error)
	UpsertResource(ctx context.Context, itf driver.Tx, res model.ProvisionedResource) error
	DeleteResource(ctx context.Context, projectName, serviceName string) error
	CreateRun(ctx context.Context, run model.ReconciliationRun) error
	UpdateRun(ctx context.Context, run model.ReconciliationRun) error
	ReadRun(ctx context.Context, id string) (model.ReconciliationRun, error)
	LatestRun(ctx context.Context, projectName string) (model.ReconciliationRun, error)
	ListRuns(ctx context.Context, filter model.RunFilter) ([]model.ReconciliationRun, error)
	ReadMonitorRef(ctx context.Context, ref string) (string, error)
	SetMonitorRef(ctx context.Context, ref, revision string) error
}

type ReconHandler interface {
	Reconcile(ctx context.Context, spec model.ProjectSpec) (string, error)
	Delete(ctx context.Context, name string) (string, error)
	Status(ctx context.Context, name string) (model.ReconciliationRun, error)
}

type JobHandler interface {
	Create(desc, projectName string, tFunc func(context.Context, context.CancelFunc) (string, error)) (string, error)
	Get(id string) (model.Job, error)
	Cancel(id string) error
	List(filter model.JobFilter) []model.Job
	PurgeJobs(maxAge int64) int
}
