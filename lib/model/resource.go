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

// ProvisionedResource records one backing-service credential set created on
// behalf of a project. The record also carries ownership: an external
// resource that exists but is not recorded for the requesting project is
// treated as owned by someone else.
type ProvisionedResource struct {
	ID          string         `json:"id"`
	ProjectName string         `json:"project_name"`
	ServiceName string         `json:"service_name"`
	Kind        ServiceKind    `json:"kind"`
	Connection  ConnectionInfo `json:"connection"`
	Created     time.Time      `json:"created"`
	Updated     time.Time      `json:"updated"`
}

// ConnectionInfo is the union of per-kind connection data. Credential values
// are stored encrypted; CredentialRef names the secret material they live in.
type ConnectionInfo struct {
	Host          string         `json:"host,omitempty"`
	Port          int            `json:"port,omitempty"`
	User          string         `json:"user,omitempty"`
	Schema        string         `json:"schema,omitempty"`
	Bucket        string         `json:"bucket,omitempty"`
	Region        string         `json:"region,omitempty"`
	AccessKey     string         `json:"access_key,omitempty"`
	Realm         string         `json:"realm,omitempty"`
	ClientID      string         `json:"client_id,omitempty"`
	DiscoveryURL  string         `json:"discovery_url,omitempty"`
	CredentialRef string         `json:"credential_ref,omitempty"`
	Credentials   SecretDocument `json:"credentials,omitempty"`
}

type ResourceFilter struct {
	ProjectName string
	Kind        ServiceKind
}
