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

import "time"

type ProjectSpec struct {
	Name        string           `json:"name" yaml:"name"`
	Cluster     string           `json:"cluster" yaml:"cluster"`
	Services    []ServiceSpec    `json:"services" yaml:"services"`
	Deployments []DeploymentSpec `json:"deployments" yaml:"deployments"`
}

type ServiceSpec struct {
	Kind   ServiceKind `json:"kind" yaml:"kind"`
	Name   string      `json:"name" yaml:"name"`
	User   string      `json:"user,omitempty" yaml:"user,omitempty"`
	Schema string      `json:"schema,omitempty" yaml:"schema,omitempty"`
	Bucket string      `json:"bucket,omitempty" yaml:"bucket,omitempty"`
	Realm  string      `json:"realm,omitempty" yaml:"realm,omitempty"`
}

type DeploymentSpec struct {
	Name        string   `json:"name" yaml:"name"`
	Image       string   `json:"image" yaml:"image"`
	Tag         string   `json:"tag" yaml:"tag"`
	CPU         string   `json:"cpu,omitempty" yaml:"cpu,omitempty"`
	Memory      string   `json:"memory,omitempty" yaml:"memory,omitempty"`
	Ports       []int    `json:"ports,omitempty" yaml:"ports,omitempty"`
	Storage     string   `json:"storage,omitempty" yaml:"storage,omitempty"`
	IngressHost string   `json:"ingress_host,omitempty" yaml:"ingress_host,omitempty"`
	SSO         bool     `json:"sso,omitempty" yaml:"sso,omitempty"`
	ServiceRefs []string `json:"service_refs,omitempty" yaml:"service_refs,omitempty"`
}

type ProjectMeta struct {
	Name     string    `json:"name"`
	Cluster  string    `json:"cluster"`
	SpecHash string    `json:"spec_hash"`
	Created  time.Time `json:"created"`
	Updated  time.Time `json:"updated"`
}

type Project struct {
	ProjectMeta
	Spec ProjectSpec `json:"spec"`
}

type ProjectFilter struct {
	Cluster string
}
