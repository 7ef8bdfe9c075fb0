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

package model

const ServiceName = "project-manager"

const (
	HeaderRequestID = "X-Request-ID"
	HeaderApiVer    = "X-Api-Version"
	HeaderSrvName   = "X-Service"
	HealthCheckPath = "health-check"
)

const (
	ProjectsPath   = "projects"
	ReconcilePath  = "reconcile"
	StatusPath     = "status"
	SecretsPath    = "secrets"
	JobsPath       = "jobs"
	JobsCancelPath = "cancel"
)

type ServiceKind = string

const (
	ServiceKindDatabase      ServiceKind = "database"
	ServiceKindObjectStorage ServiceKind = "object-storage"
	ServiceKindIdentity      ServiceKind = "identity"
)

var ServiceKindMap = map[ServiceKind]struct{}{
	ServiceKindDatabase:      {},
	ServiceKindObjectStorage: {},
	ServiceKindIdentity:      {},
}

type RunStatus = string

const (
	RunPending            RunStatus = "pending"
	RunPlanning           RunStatus = "planning"
	RunExecuting          RunStatus = "executing"
	RunSucceeded          RunStatus = "succeeded"
	RunFailed             RunStatus = "failed"
	RunPartiallyCompleted RunStatus = "partially_completed"
)

type ActionStatus = string

const (
	ActionPending   ActionStatus = "pending"
	ActionSucceeded ActionStatus = "succeeded"
	ActionFailed    ActionStatus = "failed"
	ActionSkipped   ActionStatus = "skipped"
)

type ActionName = string

const (
	ActionEnsureNamespace   ActionName = "ensure-namespace"
	ActionProvisionService  ActionName = "provision-service"
	ActionGenerateManifests ActionName = "generate-manifests"
	ActionEncryptSecrets    ActionName = "encrypt-secrets"
	ActionCommit            ActionName = "commit-to-git"
	ActionTriggerSync       ActionName = "trigger-sync"
	ActionDeleteDeployments ActionName = "delete-deployments"
	ActionDeleteService     ActionName = "delete-service"
	ActionDeleteNamespace   ActionName = "delete-namespace"
	ActionDeleteGitPaths    ActionName = "delete-git-paths"
)

// Secret value encoding prefixes. Values without a prefix are plaintext.
const (
	SecretPrefixAge       = "age:"
	SecretPrefixAgeBase64 = "base64+age:"
)

type GenPolicy = string

const (
	GenPolicyRandom GenPolicy = "random"
	GenPolicyBcrypt GenPolicy = "bcrypt"
	GenPolicySkip   GenPolicy = "skip"
)

type JobStatus = string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCanceled  JobStatus = "canceled"
	JobCompleted JobStatus = "completed"
	JobError     JobStatus = "error"
	JobOK        JobStatus = "ok"
)

var JobStateMap = map[JobStatus]struct{}{
	JobPending:   {},
	JobRunning:   {},
	JobCanceled:  {},
	JobCompleted: {},
	JobError:     {},
	JobOK:        {},
}
