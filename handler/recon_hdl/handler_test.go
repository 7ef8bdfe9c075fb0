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
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"filippo.io/age"
	srv_base "github.com/SENERGY-Platform/go-service-base/srv-base"
	"github.com/gitops-selfservice/project-manager/handler/manifest_hdl"
	"github.com/gitops-selfservice/project-manager/handler/secret_hdl"
	"github.com/gitops-selfservice/project-manager/lib/model"
	"github.com/gitops-selfservice/project-manager/util"
	"github.com/y-du/go-log-level/level"
)

func TestMain(m *testing.M) {
	_, err := util.InitLogger(srv_base.LoggerConfig{Level: level.Error, Terminal: true})
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	os.Exit(m.Run())
}

type testEngine struct {
	handler *Handler
	log     *eventLog
	storage *storageMock
	ctrl    *controllerMock
	dbProv  *dbProvMock
	objProv *objProvMock
	idmProv *idmProvMock
	pub     *publisherMock
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatal(err)
	}
	log := &eventLog{}
	e := &testEngine{
		log:     log,
		storage: newStorageMock(),
		ctrl:    newControllerMock(log),
		dbProv:  newDbProvMock(log),
		objProv: newObjProvMock(log),
		idmProv: newIdmProvMock(log),
		pub:     newPublisherMock(log),
	}
	e.handler = New(e.storage, secret_hdl.NewWithKeys(identity.Recipient(), identity), manifest_hdl.New("cluster.local", "standard"), e.pub, e.ctrl, e.dbProv, e.objProv, e.idmProv, "prod", 3, time.Millisecond, time.Second)
	return e
}

func demoSpec() model.ProjectSpec {
	return model.ProjectSpec{
		Name:    "demo",
		Cluster: "prod",
		Services: []model.ServiceSpec{
			{Kind: model.ServiceKindDatabase, Name: "db", User: "demo", Schema: "demo"},
			{Kind: model.ServiceKindObjectStorage, Name: "store", Bucket: "demo-data"},
			{Kind: model.ServiceKindIdentity, Name: "auth", Realm: "demo"},
		},
		Deployments: []model.DeploymentSpec{
			{Name: "backend", Image: "registry/demo/backend", Tag: "1.0.0", Ports: []int{8080}, ServiceRefs: []string{"db", "store", "auth"}},
		},
	}
}

func TestHandler_Reconcile(t *testing.T) {
	e := newTestEngine(t)
	runID, err := e.handler.Reconcile(context.Background(), demoSpec())
	if err != nil {
		t.Fatal(err)
	}
	run, err := e.storage.ReadRun(context.Background(), runID)
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != model.RunSucceeded {
		t.Fatalf("run status = %s error = %s", run.Status, run.Error)
	}
	for _, act := range run.Actions {
		if act.Status != model.ActionSucceeded {
			t.Errorf("action %s %s = %s", act.Name, act.Target, act.Status)
		}
	}
	if run.Completed == nil {
		t.Error("missing completion timestamp")
	}
	if e.ctrl.ensureCalls != 1 || e.ctrl.syncCalls != 1 {
		t.Errorf("namespace calls = %d sync calls = %d", e.ctrl.ensureCalls, e.ctrl.syncCalls)
	}
	if e.dbProv.ensureCalls != 1 || e.objProv.ensureCalls != 1 || e.idmProv.ensureCalls != 1 {
		t.Errorf("provision calls = %d %d %d", e.dbProv.ensureCalls, e.objProv.ensureCalls, e.idmProv.ensureCalls)
	}
	if len(e.dbProv.passwords) != 1 || len(e.dbProv.passwords[0]) != dbPasswordLength {
		t.Errorf("unexpected database passwords %v", e.dbProv.passwords)
	}
	if e.pub.publishCalls != 1 {
		t.Fatalf("publish calls = %d", e.pub.publishCalls)
	}
	secretFile, ok := e.pub.lastFiles["projects/demo/db-secret.yaml"]
	if !ok {
		t.Fatalf("missing secret manifest, got %d files", len(e.pub.lastFiles))
	}
	if !strings.Contains(string(secretFile), model.SecretPrefixAgeBase64) {
		t.Error("secret manifest not encrypted")
	}
	for path, file := range e.pub.lastFiles {
		if strings.Contains(string(file), e.dbProv.passwords[0]) {
			t.Errorf("plaintext password leaked into %s", path)
		}
		if strings.Contains(string(file), "generated-secret") {
			t.Errorf("plaintext client secret leaked into %s", path)
		}
	}
	if _, err = e.storage.ReadProject(context.Background(), "demo"); err != nil {
		t.Error(err)
	}
	resources, err := e.storage.ListResources(context.Background(), model.ResourceFilter{ProjectName: "demo"})
	if err != nil {
		t.Fatal(err)
	}
	if len(resources) != 3 {
		t.Fatalf("resource records = %d", len(resources))
	}
	for _, res := range resources {
		for key, value := range res.Connection.Credentials {
			if !strings.HasPrefix(value, model.SecretPrefixAgeBase64) {
				t.Errorf("resource %s credential %s stored unencrypted", res.ServiceName, key)
			}
		}
	}
}

func TestHandler_Reconcile_Noop(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.handler.Reconcile(context.Background(), demoSpec()); err != nil {
		t.Fatal(err)
	}
	runID, err := e.handler.Reconcile(context.Background(), demoSpec())
	if err != nil {
		t.Fatal(err)
	}
	if e.ctrl.ensureCalls != 1 || e.dbProv.ensureCalls != 1 || e.pub.publishCalls != 1 || e.ctrl.syncCalls != 1 {
		t.Error("unchanged spec caused side effects")
	}
	run, err := e.storage.ReadRun(context.Background(), runID)
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != model.RunSucceeded {
		t.Errorf("run status = %s", run.Status)
	}
	for _, act := range run.Actions {
		if act.Status != model.ActionSkipped {
			t.Errorf("action %s %s = %s", act.Name, act.Target, act.Status)
		}
	}
}

func TestHandler_Reconcile_InvalidSpec(t *testing.T) {
	e := newTestEngine(t)
	spec := demoSpec()
	spec.Deployments[0].ServiceRefs = append(spec.Deployments[0].ServiceRefs, "missing")
	_, err := e.handler.Reconcile(context.Background(), spec)
	if err == nil {
		t.Fatal("expected error")
	}
	var iErr *model.InvalidInputError
	if !errors.As(err, &iErr) {
		t.Errorf("unexpected error type: %s", err)
	}
	if e.ctrl.ensureCalls != 0 || e.dbProv.ensureCalls != 0 || e.pub.publishCalls != 0 {
		t.Error("invalid spec caused side effects")
	}
	if len(e.storage.runs) != 0 {
		t.Error("invalid spec produced a run record")
	}
}

func TestHandler_Reconcile_Busy(t *testing.T) {
	e := newTestEngine(t)
	e.ctrl.block = make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := e.handler.Reconcile(context.Background(), demoSpec())
		done <- err
	}()
	var busyErr error
	for i := 0; i < 100; i++ {
		_, busyErr = e.handler.Reconcile(context.Background(), demoSpec())
		if busyErr != nil {
			break
		}
		time.Sleep(time.Millisecond)
	}
	var bErr *model.ResourceBusyError
	if !errors.As(busyErr, &bErr) {
		t.Errorf("unexpected error: %v", busyErr)
	}
	close(e.ctrl.block)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if e.pub.publishCalls != 1 {
		t.Errorf("publish calls = %d", e.pub.publishCalls)
	}
}

func TestHandler_Reconcile_Conflict(t *testing.T) {
	e := newTestEngine(t)
	e.dbProv.schemas["demo"] = true
	_, err := e.handler.Reconcile(context.Background(), demoSpec())
	if err == nil {
		t.Fatal("expected error")
	}
	var cErr *model.ConflictError
	if !errors.As(err, &cErr) {
		t.Errorf("unexpected error type: %s", err)
	}
	if e.dbProv.ensureCalls != 0 {
		t.Error("foreign database was touched")
	}
	if e.pub.publishCalls != 0 {
		t.Error("failed run was published")
	}
	run, err := e.storage.LatestRun(context.Background(), "demo")
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != model.RunFailed {
		t.Errorf("run status = %s", run.Status)
	}
}

func TestHandler_Reconcile_TransientRetry(t *testing.T) {
	e := newTestEngine(t)
	e.dbProv.transientFails = 2
	runID, err := e.handler.Reconcile(context.Background(), demoSpec())
	if err != nil {
		t.Fatal(err)
	}
	run, err := e.storage.ReadRun(context.Background(), runID)
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != model.RunSucceeded {
		t.Errorf("run status = %s error = %s", run.Status, run.Error)
	}
	if e.dbProv.ensureCalls != 1 {
		t.Errorf("database ensure calls = %d", e.dbProv.ensureCalls)
	}
}

func TestHandler_Reconcile_ResumeAfterPushFailure(t *testing.T) {
	e := newTestEngine(t)
	e.pub.failErr = model.NewTransientError(errors.New("remote unavailable"))
	runID, err := e.handler.Reconcile(context.Background(), demoSpec())
	if err == nil {
		t.Fatal("expected error")
	}
	run, err := e.storage.ReadRun(context.Background(), runID)
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != model.RunPartiallyCompleted {
		t.Fatalf("run status = %s", run.Status)
	}
	if _, err = e.storage.ReadProject(context.Background(), "demo"); err == nil {
		t.Error("incomplete run recorded the project as reconciled")
	}
	resources, err := e.storage.ListResources(context.Background(), model.ResourceFilter{ProjectName: "demo"})
	if err != nil {
		t.Fatal(err)
	}
	if len(resources) != 3 {
		t.Fatalf("resource records = %d", len(resources))
	}

	e.pub.failErr = nil
	runID, err = e.handler.Reconcile(context.Background(), demoSpec())
	if err != nil {
		t.Fatal(err)
	}
	run, err = e.storage.ReadRun(context.Background(), runID)
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != model.RunSucceeded {
		t.Fatalf("run status = %s error = %s", run.Status, run.Error)
	}
	if len(e.dbProv.passwords) != 2 || e.dbProv.passwords[1] != "" {
		t.Errorf("resumed run rotated credentials: %v", e.dbProv.passwords)
	}
	if e.pub.publishCalls != 1 {
		t.Errorf("publish calls = %d", e.pub.publishCalls)
	}
}

func TestHandler_Reconcile_PartialProvisionRecorded(t *testing.T) {
	e := newTestEngine(t)
	e.objProv.failErr = model.NewInternalError(errors.New("admin api rejected the request"))
	_, err := e.handler.Reconcile(context.Background(), demoSpec())
	if err == nil {
		t.Fatal("expected error")
	}
	run, err := e.storage.LatestRun(context.Background(), "demo")
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != model.RunFailed {
		t.Fatalf("run status = %s", run.Status)
	}
	// the database and realm client were created, their ownership must be on
	// record even though the run failed
	resources, err := e.storage.ListResources(context.Background(), model.ResourceFilter{ProjectName: "demo"})
	if err != nil {
		t.Fatal(err)
	}
	if len(resources) != 2 {
		t.Fatalf("resource records = %d, want 2", len(resources))
	}

	e.objProv.failErr = nil
	runID, err := e.handler.Reconcile(context.Background(), demoSpec())
	if err != nil {
		var cErr *model.ConflictError
		if errors.As(err, &cErr) {
			t.Fatalf("re-run read own resources as foreign: %s", err)
		}
		t.Fatal(err)
	}
	run, err = e.storage.ReadRun(context.Background(), runID)
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != model.RunSucceeded {
		t.Fatalf("run status = %s error = %s", run.Status, run.Error)
	}
	resources, err = e.storage.ListResources(context.Background(), model.ResourceFilter{ProjectName: "demo"})
	if err != nil {
		t.Fatal(err)
	}
	if len(resources) != 3 {
		t.Fatalf("resource records = %d, want 3", len(resources))
	}
	// records without credentials rotate on the re-run
	if len(e.dbProv.passwords) != 2 || len(e.dbProv.passwords[1]) != dbPasswordLength {
		t.Errorf("unexpected database passwords %v", e.dbProv.passwords)
	}
}

func TestHandler_Reconcile_WrongCluster(t *testing.T) {
	e := newTestEngine(t)
	spec := demoSpec()
	spec.Cluster = "staging"
	_, err := e.handler.Reconcile(context.Background(), spec)
	if err == nil {
		t.Fatal("expected error")
	}
	var iErr *model.InvalidInputError
	if !errors.As(err, &iErr) {
		t.Errorf("unexpected error type: %s", err)
	}
	if e.ctrl.ensureCalls != 0 || e.dbProv.ensureCalls != 0 {
		t.Error("foreign cluster spec caused side effects")
	}
}

func TestHandler_Reconcile_CredentialRotation(t *testing.T) {
	e := newTestEngine(t)
	spec := demoSpec()
	if _, err := e.handler.Reconcile(context.Background(), spec); err != nil {
		t.Fatal(err)
	}
	// a record without credentials marks a run that died before encryption
	res := e.storage.resources["demo/db"]
	res.Connection.Credentials = nil
	e.storage.resources["demo/db"] = res
	spec.Deployments[0].Tag = "1.0.1"
	if _, err := e.handler.Reconcile(context.Background(), spec); err != nil {
		t.Fatal(err)
	}
	if len(e.dbProv.passwords) != 2 || len(e.dbProv.passwords[1]) != dbPasswordLength {
		t.Errorf("credentials were not rotated: %v", e.dbProv.passwords)
	}
}

func TestHandler_Delete(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.handler.Reconcile(context.Background(), demoSpec()); err != nil {
		t.Fatal(err)
	}
	runID, err := e.handler.Delete(context.Background(), "demo")
	if err != nil {
		t.Fatal(err)
	}
	run, err := e.storage.ReadRun(context.Background(), runID)
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != model.RunSucceeded {
		t.Fatalf("run status = %s error = %s", run.Status, run.Error)
	}
	deployments := e.log.index("remove projects/demo/backend-deployment.yaml")
	dbDelete := e.log.index("delete-database db")
	namespace := e.log.index("delete-namespace demo")
	gitPaths := e.log.index("remove projects/demo")
	if deployments < 0 || dbDelete < 0 || namespace < 0 || gitPaths < 0 {
		t.Fatalf("missing teardown steps: %v", e.log.events)
	}
	if !(deployments < dbDelete && dbDelete < namespace && namespace < gitPaths) {
		t.Errorf("teardown out of order: %v", e.log.events)
	}
	if len(e.dbProv.schemas) != 0 || len(e.objProv.buckets) != 0 || len(e.idmProv.clients) != 0 {
		t.Error("external resources survived deletion")
	}
	if len(e.ctrl.namespaces) != 0 {
		t.Error("namespace survived deletion")
	}
	if _, err = e.storage.ReadProject(context.Background(), "demo"); err == nil {
		t.Error("project record survived deletion")
	}
	resources, err := e.storage.ListResources(context.Background(), model.ResourceFilter{ProjectName: "demo"})
	if err != nil {
		t.Fatal(err)
	}
	if len(resources) != 0 {
		t.Errorf("resource records survived deletion: %d", len(resources))
	}
}

func TestHandler_Delete_Unknown(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.handler.Delete(context.Background(), "unknown")
	if err == nil {
		t.Fatal("expected error")
	}
	var nfErr *model.NotFoundError
	if !errors.As(err, &nfErr) {
		t.Errorf("unexpected error type: %s", err)
	}
}

func TestHandler_Delete_AbsentService(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.handler.Reconcile(context.Background(), demoSpec()); err != nil {
		t.Fatal(err)
	}
	// someone removed the bucket out of band, teardown still succeeds
	delete(e.objProv.buckets, "demo-data")
	runID, err := e.handler.Delete(context.Background(), "demo")
	if err != nil {
		t.Fatal(err)
	}
	run, err := e.storage.ReadRun(context.Background(), runID)
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != model.RunSucceeded {
		t.Errorf("run status = %s error = %s", run.Status, run.Error)
	}
	if e.log.index("delete-bucket store") >= 0 {
		t.Error("absent bucket was deleted again")
	}
}

func TestHandler_Status(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.handler.Status(context.Background(), "demo"); err == nil {
		t.Fatal("expected error")
	}
	runID, err := e.handler.Reconcile(context.Background(), demoSpec())
	if err != nil {
		t.Fatal(err)
	}
	run, err := e.handler.Status(context.Background(), "demo")
	if err != nil {
		t.Fatal(err)
	}
	if run.ID != runID {
		t.Errorf("run ID = %s, want %s", run.ID, runID)
	}
}
