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
	"github.com/gitops-selfservice/project-manager/lib/model"
)

// buildPlan lays out a reconciliation run in strict dependency order:
// namespace, service provisioning, manifest generation, encryption, commit,
// sync trigger.
func buildPlan(spec model.ProjectSpec) []model.Action {
	actions := []model.Action{
		{Name: model.ActionEnsureNamespace, Target: spec.Name, Status: model.ActionPending},
	}
	for _, srv := range spec.Services {
		actions = append(actions, model.Action{Name: model.ActionProvisionService, Target: srv.Name, Status: model.ActionPending})
	}
	actions = append(actions,
		model.Action{Name: model.ActionGenerateManifests, Target: spec.Name, Status: model.ActionPending},
		model.Action{Name: model.ActionEncryptSecrets, Target: spec.Name, Status: model.ActionPending},
		model.Action{Name: model.ActionCommit, Target: spec.Name, Status: model.ActionPending},
		model.Action{Name: model.ActionTriggerSync, Target: spec.Name, Status: model.ActionPending},
	)
	return actions
}

// buildDeletePlan reverses the order: deployments first, then services in
// reverse declaration order, then the namespace, then the remaining git
// artifacts.
func buildDeletePlan(spec model.ProjectSpec) []model.Action {
	actions := []model.Action{
		{Name: model.ActionDeleteDeployments, Target: spec.Name, Status: model.ActionPending},
	}
	for i := len(spec.Services) - 1; i >= 0; i-- {
		actions = append(actions, model.Action{Name: model.ActionDeleteService, Target: spec.Services[i].Name, Status: model.ActionPending})
	}
	actions = append(actions,
		model.Action{Name: model.ActionDeleteNamespace, Target: spec.Name, Status: model.ActionPending},
		model.Action{Name: model.ActionDeleteGitPaths, Target: spec.Name, Status: model.ActionPending},
	)
	return actions
}

// action returns the plan entry for a name and target.
func action(run *model.ReconciliationRun, name model.ActionName, target string) *model.Action {
	for i := range run.Actions {
		if run.Actions[i].Name == name && run.Actions[i].Target == target {
			return &run.Actions[i]
		}
	}
	return &model.Action{}
}
