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
	"context"
	"database/sql/driver"
	"fmt"
	"sync"
	"time"

	"github.com/gitops-selfservice/project-manager/lib/model"
)

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(event string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *eventLog) index(event string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, e := range l.events {
		if e == event {
			return i
		}
	}
	return -1
}

type storageMock struct {
	mu        sync.Mutex
	projects  map[string]model.Project
	resources map[string]model.ProvisionedResource
	runs      []model.ReconciliationRun
	refs      map[string]string
}

func newStorageMock() *storageMock {
	return &storageMock{
		projects:  make(map[string]model.Project),
		resources: make(map[string]model.ProvisionedResource),
		refs:      make(map[string]string),
	}
}

func (m *storageMock) BeginTransaction(_ context.Context) (driver.Tx, error) {
	return nil, nil
}

func (m *storageMock) ListProjects(_ context.Context, _ model.ProjectFilter) ([]model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var projects []model.Project
	for _, p := range m.projects {
		projects = append(projects, p)
	}
	return projects, nil
}

func (m *storageMock) ReadProject(_ context.Context, name string) (model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[name]
	if !ok {
		return model.Project{}, model.NewNotFoundError(fmt.Errorf("project '%s' not found", name))
	}
	return p, nil
}

func (m *storageMock) UpsertProject(_ context.Context, _ driver.Tx, spec model.ProjectSpec, hash string, timestamp time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[spec.Name] = model.Project{
		ProjectMeta: model.ProjectMeta{Name: spec.Name, Cluster: spec.Cluster, SpecHash: hash, Created: timestamp, Updated: timestamp},
		Spec:        spec,
	}
	return nil
}

func (m *storageMock) DeleteProject(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[name]; !ok {
		return model.NewNotFoundError(fmt.Errorf("project '%s' not found", name))
	}
	delete(m.projects, name)
	return nil
}

func (m *storageMock) ListResources(_ context.Context, filter model.ResourceFilter) ([]model.ProvisionedResource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var resources []model.ProvisionedResource
	for _, res := range m.resources {
		if filter.ProjectName != "" && res.ProjectName != filter.ProjectName {
			continue
		}
		if filter.Kind != "" && res.Kind != filter.Kind {
			continue
		}
		resources = append(resources, res)
	}
	return resources, nil
}

func (m *storageMock) UpsertResource(_ context.Context, _ driver.Tx, res model.ProvisionedResource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resources[res.ProjectName+"/"+res.ServiceName] = res
	return nil
}

func (m *storageMock) DeleteResource(_ context.Context, projectName, serviceName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.resources, projectName+"/"+serviceName)
	return nil
}

func (m *storageMock) CreateRun(_ context.Context, run model.ReconciliationRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

func (m *storageMock) UpdateRun(_ context.Context, run model.ReconciliationRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.runs {
		if m.runs[i].ID == run.ID {
			m.runs[i] = run
			return nil
		}
	}
	return model.NewNotFoundError(fmt.Errorf("run '%s' not found", run.ID))
}

func (m *storageMock) ReadRun(_ context.Context, id string) (model.ReconciliationRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, run := range m.runs {
		if run.ID == id {
			return run, nil
		}
	}
	return model.ReconciliationRun{}, model.NewNotFoundError(fmt.Errorf("run '%s' not found", id))
}

func (m *storageMock) LatestRun(_ context.Context, projectName string) (model.ReconciliationRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.runs) - 1; i >= 0; i-- {
		if m.runs[i].ProjectName == projectName {
			return m.runs[i], nil
		}
	}
	return model.ReconciliationRun{}, model.NewNotFoundError(fmt.Errorf("no runs for project '%s'", projectName))
}

func (m *storageMock) ListRuns(_ context.Context, filter model.RunFilter) ([]model.ReconciliationRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var runs []model.ReconciliationRun
	for _, run := range m.runs {
		if filter.ProjectName != "" && run.ProjectName != filter.ProjectName {
			continue
		}
		runs = append(runs, run)
	}
	return runs, nil
}

func (m *storageMock) ReadMonitorRef(_ context.Context, ref string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refs[ref], nil
}

func (m *storageMock) SetMonitorRef(_ context.Context, ref, revision string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refs[ref] = revision
	return nil
}

type controllerMock struct {
	mu          sync.Mutex
	log         *eventLog
	namespaces  map[string]bool
	ensureCalls int
	syncCalls   int
	block       chan struct{}
}

func newControllerMock(log *eventLog) *controllerMock {
	return &controllerMock{log: log, namespaces: make(map[string]bool)}
}

func (m *controllerMock) EnsureNamespace(_ context.Context, name string) error {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureCalls++
	m.namespaces[name] = true
	m.log.add("ensure-namespace " + name)
	return nil
}

func (m *controllerMock) DeleteNamespace(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.namespaces, name)
	m.log.add("delete-namespace " + name)
	return nil
}

func (m *controllerMock) NamespaceExists(_ context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.namespaces[name], nil
}

func (m *controllerMock) TriggerSync(_ context.Context, project string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncCalls++
	m.log.add("trigger-sync " + project)
	return nil
}

func (m *controllerMock) SyncStatus(_ context.Context, _ string) (string, error) {
	return "synced", nil
}

type dbProvMock struct {
	mu             sync.Mutex
	log            *eventLog
	schemas        map[string]bool
	ensureCalls    int
	passwords      []string
	transientFails int
}

func newDbProvMock(log *eventLog) *dbProvMock {
	return &dbProvMock{log: log, schemas: make(map[string]bool)}
}

func (m *dbProvMock) EnsureDatabase(_ context.Context, srv model.ServiceSpec, password string) (model.ConnectionInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.transientFails > 0 {
		m.transientFails--
		return model.ConnectionInfo{}, model.NewTransientError(fmt.Errorf("connection refused"))
	}
	m.ensureCalls++
	m.passwords = append(m.passwords, password)
	m.schemas[srv.Schema] = true
	m.log.add("ensure-database " + srv.Name)
	return model.ConnectionInfo{Host: "db-host", Port: 3306, User: srv.User, Schema: srv.Schema}, nil
}

func (m *dbProvMock) DeleteDatabase(_ context.Context, srv model.ServiceSpec) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.schemas, srv.Schema)
	m.log.add("delete-database " + srv.Name)
	return nil
}

func (m *dbProvMock) DatabaseExists(_ context.Context, srv model.ServiceSpec) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.schemas[srv.Schema], nil
}

type objProvMock struct {
	mu          sync.Mutex
	log         *eventLog
	buckets     map[string]bool
	ensureCalls int
	failErr     error
}

func newObjProvMock(log *eventLog) *objProvMock {
	return &objProvMock{log: log, buckets: make(map[string]bool)}
}

func (m *objProvMock) EnsureBucket(_ context.Context, srv model.ServiceSpec, _ string) (model.ConnectionInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return model.ConnectionInfo{}, m.failErr
	}
	m.ensureCalls++
	m.buckets[srv.Bucket] = true
	m.log.add("ensure-bucket " + srv.Name)
	return model.ConnectionInfo{Host: "s3-host", Bucket: srv.Bucket, Region: "us-east-1", AccessKey: srv.Bucket + "-user"}, nil
}

func (m *objProvMock) DeleteBucket(_ context.Context, srv model.ServiceSpec) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.buckets, srv.Bucket)
	m.log.add("delete-bucket " + srv.Name)
	return nil
}

func (m *objProvMock) BucketExists(_ context.Context, srv model.ServiceSpec) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buckets[srv.Bucket], nil
}

type idmProvMock struct {
	mu          sync.Mutex
	log         *eventLog
	clients     map[string]bool
	ensureCalls int
}

func newIdmProvMock(log *eventLog) *idmProvMock {
	return &idmProvMock{log: log, clients: make(map[string]bool)}
}

func (m *idmProvMock) EnsureRealmClient(_ context.Context, srv model.ServiceSpec, project string) (model.ConnectionInfo, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureCalls++
	m.clients[project+"/"+srv.Name] = true
	m.log.add("ensure-realm-client " + srv.Name)
	return model.ConnectionInfo{Realm: srv.Realm, ClientID: project + "-" + srv.Name, DiscoveryURL: "https://idp/realms/" + srv.Realm}, "generated-secret", nil
}

func (m *idmProvMock) DeleteRealmClient(_ context.Context, srv model.ServiceSpec, project string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.clients, project+"/"+srv.Name)
	m.log.add("delete-realm-client " + srv.Name)
	return nil
}

func (m *idmProvMock) RealmClientExists(_ context.Context, srv model.ServiceSpec, project string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clients[project+"/"+srv.Name], nil
}

type publisherMock struct {
	mu           sync.Mutex
	log          *eventLog
	publishCalls int
	removeCalls  int
	failErr      error
	lastFiles    map[string][]byte
	removed      [][]string
}

func newPublisherMock(log *eventLog) *publisherMock {
	return &publisherMock{log: log}
}

func (m *publisherMock) Publish(_ context.Context, files map[string][]byte, _ string) (model.GitCommitRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return model.GitCommitRecord{}, m.failErr
	}
	m.publishCalls++
	m.lastFiles = files
	m.log.add("publish")
	return model.GitCommitRecord{Repository: "repo", Branch: "main", CommitID: fmt.Sprintf("commit-%d", m.publishCalls)}, nil
}

func (m *publisherMock) Remove(_ context.Context, paths []string, _ string) (model.GitCommitRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return model.GitCommitRecord{}, m.failErr
	}
	m.removeCalls++
	m.removed = append(m.removed, paths)
	m.log.add("remove " + paths[0])
	return model.GitCommitRecord{Repository: "repo", Branch: "main", CommitID: fmt.Sprintf("remove-%d", m.removeCalls)}, nil
}
