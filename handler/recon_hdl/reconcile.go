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
	"strings"
	"sync"
	"time"

	context_hdl "github.com/SENERGY-Platform/go-service-base/context-hdl"
	"github.com/gitops-selfservice/project-manager/lib/model"
	"github.com/gitops-selfservice/project-manager/util"
	"github.com/google/uuid"
)

const (
	dbPasswordLength = 24
	secretKeyLength  = 40
)

// Reconcile validates the spec, takes the project lock and runs the full
// plan synchronously. A second call for the same project while a run is in
// flight fails fast with a busy error. An unchanged spec after a successful
// run is recorded as a fully skipped run and causes no side effects.
func (h *Handler) Reconcile(ctx context.Context, spec model.ProjectSpec) (string, error) {
	if err := spec.Validate(); err != nil {
		return "", model.NewInvalidInputError(err)
	}
	if h.cluster != "" && spec.Cluster != h.cluster {
		return "", model.NewInvalidInputError(fmt.Errorf("project '%s' targets cluster '%s', this manager serves '%s'", spec.Name, spec.Cluster, h.cluster))
	}
	if err := h.mu.TryLock(spec.Name, "reconciling"); err != nil {
		return "", model.NewResourceBusyError(fmt.Errorf("project '%s' is busy: %s", spec.Name, err))
	}
	defer h.mu.Unlock(spec.Name)
	hash, err := specHash(spec)
	if err != nil {
		return "", err
	}
	run := model.ReconciliationRun{
		ID:          uuid.NewString(),
		ProjectName: spec.Name,
		SpecHash:    hash,
		Status:      model.RunPending,
		Actions:     buildPlan(spec),
		Created:     time.Now().UTC(),
	}
	ch := context_hdl.New()
	defer ch.CancelAll()
	noop, err := h.isNoop(ctx, spec.Name, hash)
	if err != nil {
		return "", err
	}
	if noop {
		for i := range run.Actions {
			run.Actions[i].Status = model.ActionSkipped
		}
		now := time.Now().UTC()
		run.Status = model.RunSucceeded
		run.Completed = &now
		if err = h.storage.CreateRun(ch.Add(context.WithTimeout(ctx, h.dbTimeout)), run); err != nil {
			return "", err
		}
		util.Logger.Infof("project '%s' unchanged, nothing to do", spec.Name)
		return run.ID, nil
	}
	if err = h.storage.CreateRun(ch.Add(context.WithTimeout(ctx, h.dbTimeout)), run); err != nil {
		return "", err
	}
	h.saveRun(ctx, &run, model.RunPlanning)
	h.saveRun(ctx, &run, model.RunExecuting)
	status, execErr := h.execute(ctx, spec, hash, &run)
	if execErr != nil {
		run.Error = execErr.Error()
	}
	h.saveRun(ctx, &run, status)
	if status == model.RunSucceeded {
		if err = h.storage.UpsertProject(ch.Add(context.WithTimeout(ctx, h.dbTimeout)), nil, spec, hash, time.Now().UTC()); err != nil {
			return run.ID, err
		}
	}
	return run.ID, execErr
}

func (h *Handler) isNoop(ctx context.Context, name, hash string) (bool, error) {
	ch := context_hdl.New()
	defer ch.CancelAll()
	stored, err := h.storage.ReadProject(ch.Add(context.WithTimeout(ctx, h.dbTimeout)), name)
	if err != nil {
		var nfErr *model.NotFoundError
		if errors.As(err, &nfErr) {
			return false, nil
		}
		return false, err
	}
	if stored.SpecHash != hash {
		return false, nil
	}
	last, err := h.storage.LatestRun(ch.Add(context.WithTimeout(ctx, h.dbTimeout)), name)
	if err != nil {
		var nfErr *model.NotFoundError
		if errors.As(err, &nfErr) {
			return false, nil
		}
		return false, err
	}
	return last.Status == model.RunSucceeded, nil
}

type provResult struct {
	res model.ProvisionedResource
	doc model.SecretDocument
	err error
}

func (h *Handler) execute(ctx context.Context, spec model.ProjectSpec, hash string, run *model.ReconciliationRun) (model.RunStatus, error) {
	act := action(run, model.ActionEnsureNamespace, spec.Name)
	err := h.retry(ctx, "ensure namespace "+spec.Name, func(ctx context.Context) error {
		return h.controller.EnsureNamespace(ctx, spec.Name)
	})
	if err != nil {
		return h.fail(ctx, run, act, err)
	}
	act.Status = model.ActionSucceeded
	h.saveRun(ctx, run, model.RunExecuting)

	ch := context_hdl.New()
	defer ch.CancelAll()
	recordedList, err := h.storage.ListResources(ch.Add(context.WithTimeout(ctx, h.dbTimeout)), model.ResourceFilter{ProjectName: spec.Name})
	if err != nil {
		return model.RunFailed, err
	}
	recorded := make(map[string]model.ProvisionedResource)
	for _, res := range recordedList {
		recorded[res.ServiceName] = res
	}

	// independent services are provisioned concurrently and joined before
	// manifest generation
	results := make([]provResult, len(spec.Services))
	var wg sync.WaitGroup
	for i, srv := range spec.Services {
		wg.Add(1)
		go func(i int, srv model.ServiceSpec) {
			defer wg.Done()
			res, doc, err := h.provisionService(ctx, spec.Name, srv, recorded)
			results[i] = provResult{res: res, doc: doc, err: err}
		}(i, srv)
	}
	wg.Wait()
	var provErr error
	var resources []model.ProvisionedResource
	docs := make(map[string]model.SecretDocument)
	for i, srv := range spec.Services {
		act = action(run, model.ActionProvisionService, srv.Name)
		if results[i].err != nil {
			act.Status = model.ActionFailed
			act.Error = results[i].err.Error()
			if provErr == nil {
				provErr = results[i].err
			}
			continue
		}
		act.Status = model.ActionSucceeded
		resources = append(resources, results[i].res)
		if results[i].doc != nil {
			docs[srv.Name] = results[i].doc
		}
	}
	// ownership records for successful services are written even when a
	// sibling failed; the next run must see them or it reads the resources
	// as foreign
	for i := range resources {
		if err = h.storage.UpsertResource(ch.Add(context.WithTimeout(ctx, h.dbTimeout)), nil, resources[i]); err != nil {
			return model.RunFailed, err
		}
	}
	if provErr != nil {
		// provisioned resources are not rolled back, re-runs converge
		h.saveRun(ctx, run, model.RunExecuting)
		return model.RunFailed, provErr
	}
	h.saveRun(ctx, run, model.RunExecuting)

	// first rendering may hold transient plaintext and never leaves memory
	act = action(run, model.ActionGenerateManifests, spec.Name)
	files, err := h.manifest.Generate(spec, resources, docs)
	if err != nil {
		return h.fail(ctx, run, act, err)
	}
	act.Status = model.ActionSucceeded
	h.saveRun(ctx, run, model.RunExecuting)

	act = action(run, model.ActionEncryptSecrets, spec.Name)
	for name, doc := range docs {
		enc, err := h.encryptDoc(doc)
		if err != nil {
			return h.fail(ctx, run, act, err)
		}
		docs[name] = enc
	}
	now := time.Now().UTC()
	for i := range resources {
		doc, ok := docs[resources[i].ServiceName]
		if !ok {
			continue
		}
		resources[i].Connection.Credentials = doc
		resources[i].Updated = now
		if err = h.storage.UpsertResource(ch.Add(context.WithTimeout(ctx, h.dbTimeout)), nil, resources[i]); err != nil {
			return h.fail(ctx, run, act, err)
		}
	}
	files, err = h.manifest.Generate(spec, resources, docs)
	if err != nil {
		return h.fail(ctx, run, act, err)
	}
	act.Status = model.ActionSucceeded
	h.saveRun(ctx, run, model.RunExecuting)

	act = action(run, model.ActionCommit, spec.Name)
	record, err := h.publisher.Publish(ctx, files, fmt.Sprintf("reconcile %s (%.12s)", spec.Name, hash))
	if err != nil {
		act.Status = model.ActionFailed
		act.Error = err.Error()
		return model.RunPartiallyCompleted, err
	}
	act.Status = model.ActionSucceeded
	util.Logger.Infof("project '%s' published as commit '%s'", spec.Name, record.CommitID)
	h.saveRun(ctx, run, model.RunExecuting)

	act = action(run, model.ActionTriggerSync, spec.Name)
	err = h.retry(ctx, "trigger sync "+spec.Name, func(ctx context.Context) error {
		return h.controller.TriggerSync(ctx, spec.Name)
	})
	if err != nil {
		act.Status = model.ActionFailed
		act.Error = err.Error()
		return model.RunPartiallyCompleted, err
	}
	act.Status = model.ActionSucceeded
	return model.RunSucceeded, nil
}

func (h *Handler) fail(ctx context.Context, run *model.ReconciliationRun, act *model.Action, err error) (model.RunStatus, error) {
	act.Status = model.ActionFailed
	act.Error = err.Error()
	h.saveRun(ctx, run, model.RunExecuting)
	return model.RunFailed, err
}

// provisionService ensures one external resource. Existing resources without
// an ownership record belong to someone else and are never touched. Recorded
// resources with stored credentials are reused as-is; records without
// credentials (a previous run died before encryption) rotate credentials.
func (h *Handler) provisionService(ctx context.Context, projectName string, srv model.ServiceSpec, recorded map[string]model.ProvisionedResource) (model.ProvisionedResource, model.SecretDocument, error) {
	rec, isRecorded := recorded[srv.Name]
	var exists bool
	err := h.retry(ctx, "check service "+srv.Name, func(ctx context.Context) error {
		var e error
		exists, e = h.serviceExists(ctx, srv, projectName)
		return e
	})
	if err != nil {
		return model.ProvisionedResource{}, nil, err
	}
	if exists && !isRecorded {
		return model.ProvisionedResource{}, nil, model.NewConflictError(fmt.Errorf("%s '%s' already exists and is not owned by project '%s'", srv.Kind, srv.Name, projectName))
	}
	reuse := exists && isRecorded && len(rec.Connection.Credentials) > 0
	var conn model.ConnectionInfo
	var doc model.SecretDocument
	switch srv.Kind {
	case model.ServiceKindDatabase:
		password := ""
		if !reuse {
			if password, err = h.secret.Generate(dbPasswordLength); err != nil {
				return model.ProvisionedResource{}, nil, err
			}
			doc = model.SecretDocument{"password": password}
		}
		err = h.retry(ctx, "provision database "+srv.Name, func(ctx context.Context) error {
			var e error
			conn, e = h.dbProv.EnsureDatabase(ctx, srv, password)
			return e
		})
	case model.ServiceKindObjectStorage:
		secretKey := ""
		if !reuse {
			if secretKey, err = h.secret.Generate(secretKeyLength); err != nil {
				return model.ProvisionedResource{}, nil, err
			}
			doc = model.SecretDocument{"secret-key": secretKey}
		}
		err = h.retry(ctx, "provision bucket "+srv.Name, func(ctx context.Context) error {
			var e error
			conn, e = h.objProv.EnsureBucket(ctx, srv, secretKey)
			return e
		})
	case model.ServiceKindIdentity:
		var clientSecret string
		err = h.retry(ctx, "provision realm client "+srv.Name, func(ctx context.Context) error {
			var e error
			conn, clientSecret, e = h.idmProv.EnsureRealmClient(ctx, srv, projectName)
			return e
		})
		if err == nil && !reuse && clientSecret != "" {
			doc = model.SecretDocument{"client-secret": clientSecret}
		}
	default:
		err = model.NewInternalError(fmt.Errorf("unknown service kind '%s'", srv.Kind))
	}
	if err != nil {
		return model.ProvisionedResource{}, nil, err
	}
	if reuse {
		doc = rec.Connection.Credentials
		conn.Credentials = rec.Connection.Credentials
	}
	conn.CredentialRef = projectName + "-" + srv.Name
	now := time.Now().UTC()
	res := model.ProvisionedResource{
		ProjectName: projectName,
		ServiceName: srv.Name,
		Kind:        srv.Kind,
		Connection:  conn,
		Created:     now,
		Updated:     now,
	}
	if isRecorded {
		res.ID = rec.ID
		res.Created = rec.Created
	}
	return res, doc, nil
}

func (h *Handler) serviceExists(ctx context.Context, srv model.ServiceSpec, projectName string) (bool, error) {
	switch srv.Kind {
	case model.ServiceKindDatabase:
		return h.dbProv.DatabaseExists(ctx, srv)
	case model.ServiceKindObjectStorage:
		return h.objProv.BucketExists(ctx, srv)
	case model.ServiceKindIdentity:
		return h.idmProv.RealmClientExists(ctx, srv, projectName)
	default:
		return false, model.NewInternalError(fmt.Errorf("unknown service kind '%s'", srv.Kind))
	}
}

// encryptDoc encrypts every plaintext value. Values already carrying an
// encryption prefix pass through unchanged, which makes the step idempotent
// for reused credentials.
func (h *Handler) encryptDoc(doc model.SecretDocument) (model.SecretDocument, error) {
	enc := make(model.SecretDocument, len(doc))
	for key, value := range doc {
		if strings.HasPrefix(value, model.SecretPrefixAge) || strings.HasPrefix(value, model.SecretPrefixAgeBase64) {
			enc[key] = value
			continue
		}
		v, err := h.secret.EncryptBase64(value)
		if err != nil {
			return nil, err
		}
		enc[key] = v
	}
	return enc, nil
}
