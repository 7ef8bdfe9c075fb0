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

package dep_ctrl_hdl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gitops-selfservice/project-manager/lib/model"
)

// Handler talks to the cluster's deployment controller API. The controller
// owns namespaces and applies the published manifests; this client only
// requests and observes.
type Handler struct {
	httpClient  *http.Client
	baseURL     string
	token       string
	httpTimeout time.Duration
}

func New(baseURL, token string, httpTimeout time.Duration) *Handler {
	return &Handler{
		httpClient:  &http.Client{},
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		token:       token,
		httpTimeout: httpTimeout,
	}
}

func (h *Handler) EnsureNamespace(ctx context.Context, name string) error {
	_, err := h.request(ctx, http.MethodPut, "namespaces/"+url.PathEscape(name), nil)
	return err
}

// DeleteNamespace requests namespace removal. An absent namespace is treated
// as already deleted.
func (h *Handler) DeleteNamespace(ctx context.Context, name string) error {
	_, err := h.request(ctx, http.MethodDelete, "namespaces/"+url.PathEscape(name), nil)
	if err != nil {
		var nfErr *model.NotFoundError
		if errors.As(err, &nfErr) {
			return nil
		}
		return err
	}
	return err
}

func (h *Handler) NamespaceExists(ctx context.Context, name string) (bool, error) {
	_, err := h.request(ctx, http.MethodGet, "namespaces/"+url.PathEscape(name), nil)
	if err != nil {
		var nfErr *model.NotFoundError
		if errors.As(err, &nfErr) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (h *Handler) TriggerSync(ctx context.Context, project string) error {
	_, err := h.request(ctx, http.MethodPost, "projects/"+url.PathEscape(project)+"/sync", nil)
	return err
}

func (h *Handler) SyncStatus(ctx context.Context, project string) (string, error) {
	body, err := h.request(ctx, http.MethodGet, "projects/"+url.PathEscape(project)+"/sync", nil)
	if err != nil {
		return "", err
	}
	var status struct {
		Status string `json:"status"`
	}
	if err = json.Unmarshal(body, &status); err != nil {
		return "", model.NewInternalError(err)
	}
	return status.Status, nil
}

func (h *Handler) request(ctx context.Context, method, p string, body io.Reader) ([]byte, error) {
	ctxWt, cf := context.WithTimeout(ctx, h.httpTimeout)
	defer cf()
	req, err := http.NewRequestWithContext(ctxWt, method, h.baseURL+"/"+p, body)
	if err != nil {
		return nil, model.NewInternalError(err)
	}
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, model.NewTransientError(err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, model.NewTransientError(err)
	}
	if resp.StatusCode >= 400 {
		err = fmt.Errorf("%s %s: %s (%s)", method, p, resp.Status, strings.TrimSpace(string(raw)))
		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, model.NewNotFoundError(err)
		case resp.StatusCode >= 500:
			return nil, model.NewTransientError(err)
		default:
			return nil, model.NewInternalError(err)
		}
	}
	return raw, nil
}
