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

type ReconciliationRun struct {
	ID          string     `json:"id"`
	ProjectName string     `json:"project_name"`
	SpecHash    string     `json:"spec_hash"`
	Status      RunStatus  `json:"status"`
	Actions     []Action   `json:"actions"`
	Error       string     `json:"error,omitempty"`
	Created     time.Time  `json:"created"`
	Completed   *time.Time `json:"completed"`
}

type Action struct {
	Name   ActionName   `json:"name"`
	Target string       `json:"target,omitempty"`
	Status ActionStatus `json:"status"`
	Error  string       `json:"error,omitempty"`
}

type RunFilter struct {
	ProjectName string
	Status      RunStatus
	Since       time.Time
	Until       time.Time
}

type GitCommitRecord struct {
	Repository string   `json:"repository"`
	Branch     string   `json:"branch"`
	CommitID   string   `json:"commit_id"`
	Files      []string `json:"files"`
}
