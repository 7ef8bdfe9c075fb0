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

import "testing"

func validSpec() ProjectSpec {
	return ProjectSpec{
		Name:    "demo",
		Cluster: "prod",
		Services: []ServiceSpec{
			{Kind: ServiceKindDatabase, Name: "db", User: "demo", Schema: "demo"},
			{Kind: ServiceKindObjectStorage, Name: "store", Bucket: "demo-data"},
			{Kind: ServiceKindIdentity, Name: "auth", Realm: "demo"},
		},
		Deployments: []DeploymentSpec{
			{Name: "web", Image: "nginx", Tag: "1.21", Ports: []int{8080}, ServiceRefs: []string{"db"}},
		},
	}
}

func TestProjectSpec_Validate(t *testing.T) {
	if err := validSpec().Validate(); err != nil {
		t.Error(err)
	}
	cases := map[string]func(*ProjectSpec){
		"empty name":        func(s *ProjectSpec) { s.Name = "" },
		"uppercase name":    func(s *ProjectSpec) { s.Name = "Demo" },
		"missing cluster":   func(s *ProjectSpec) { s.Cluster = "" },
		"unknown kind":      func(s *ProjectSpec) { s.Services[0].Kind = "queue" },
		"unnamed service":   func(s *ProjectSpec) { s.Services[0].Name = "" },
		"duplicate service": func(s *ProjectSpec) { s.Services[1].Name = s.Services[0].Name },
		"db without schema": func(s *ProjectSpec) { s.Services[0].Schema = "" },
		"bucket missing":    func(s *ProjectSpec) { s.Services[1].Bucket = "" },
		"realm missing":     func(s *ProjectSpec) { s.Services[2].Realm = "" },
		"unnamed deployment": func(s *ProjectSpec) {
			s.Deployments[0].Name = ""
		},
		"duplicate deployment": func(s *ProjectSpec) {
			s.Deployments = append(s.Deployments, s.Deployments[0])
		},
		"missing image": func(s *ProjectSpec) { s.Deployments[0].Image = "" },
		"missing tag":   func(s *ProjectSpec) { s.Deployments[0].Tag = "" },
		"dangling service ref": func(s *ProjectSpec) {
			s.Deployments[0].ServiceRefs = []string{"missing"}
		},
		"sso without identity ref": func(s *ProjectSpec) {
			s.Deployments[0].SSO = true
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			spec := validSpec()
			mutate(&spec)
			if err := spec.Validate(); err == nil {
				t.Error("expected error")
			}
		})
	}
}
