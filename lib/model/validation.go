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

import (
	"fmt"
	"regexp"
)

var nameRegex = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// Validate checks a project spec before any side effect is attempted.
func (p ProjectSpec) Validate() error {
	if !nameRegex.MatchString(p.Name) {
		return fmt.Errorf("invalid project name '%s'", p.Name)
	}
	if p.Cluster == "" {
		return fmt.Errorf("project '%s' missing target cluster", p.Name)
	}
	services := make(map[string]ServiceKind)
	for _, srv := range p.Services {
		if srv.Name == "" {
			return fmt.Errorf("project '%s' contains a service without a name", p.Name)
		}
		if _, ok := ServiceKindMap[srv.Kind]; !ok {
			return fmt.Errorf("service '%s' has unknown kind '%s'", srv.Name, srv.Kind)
		}
		if _, ok := services[srv.Name]; ok {
			return fmt.Errorf("duplicate service name '%s'", srv.Name)
		}
		services[srv.Name] = srv.Kind
		switch srv.Kind {
		case ServiceKindDatabase:
			if srv.User == "" || srv.Schema == "" {
				return fmt.Errorf("database service '%s' requires user and schema", srv.Name)
			}
		case ServiceKindObjectStorage:
			if srv.Bucket == "" {
				return fmt.Errorf("object-storage service '%s' requires a bucket", srv.Name)
			}
		case ServiceKindIdentity:
			if srv.Realm == "" {
				return fmt.Errorf("identity service '%s' requires a realm", srv.Name)
			}
		}
	}
	deployments := make(map[string]struct{})
	for _, dep := range p.Deployments {
		if dep.Name == "" {
			return fmt.Errorf("project '%s' contains a deployment without a name", p.Name)
		}
		if _, ok := deployments[dep.Name]; ok {
			return fmt.Errorf("duplicate deployment name '%s'", dep.Name)
		}
		deployments[dep.Name] = struct{}{}
		if dep.Image == "" || dep.Tag == "" {
			return fmt.Errorf("deployment '%s' requires image and tag", dep.Name)
		}
		hasIdentity := false
		for _, ref := range dep.ServiceRefs {
			kind, ok := services[ref]
			if !ok {
				return fmt.Errorf("deployment '%s' references undeclared service '%s'", dep.Name, ref)
			}
			if kind == ServiceKindIdentity {
				hasIdentity = true
			}
		}
		if dep.SSO && !hasIdentity {
			return fmt.Errorf("deployment '%s' enables sso but references no identity service", dep.Name)
		}
	}
	return nil
}
