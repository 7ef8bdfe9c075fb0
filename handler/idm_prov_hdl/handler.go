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

package idm_prov_hdl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Nerzal/gocloak/v13"
	"github.com/gitops-selfservice/project-manager/lib/model"
)

// Handler provisions realms and confidential clients on a shared identity
// provider. Services without a dedicated realm share the configured realm.
type Handler struct {
	client      *gocloak.GoCloak
	baseURL     string
	adminUser   string
	adminPasswd string
	adminRealm  string
	sharedRealm string
	httpTimeout time.Duration
}

func New(baseURL, adminUser, adminPasswd, adminRealm, sharedRealm string, httpTimeout time.Duration) *Handler {
	return &Handler{
		client:      gocloak.NewClient(baseURL),
		baseURL:     baseURL,
		adminUser:   adminUser,
		adminPasswd: adminPasswd,
		adminRealm:  adminRealm,
		sharedRealm: sharedRealm,
		httpTimeout: httpTimeout,
	}
}

// EnsureRealmClient creates the realm and the client if missing and returns
// the connection info together with the client secret. For an existing
// client the stored secret is returned unchanged.
func (h *Handler) EnsureRealmClient(ctx context.Context, srv model.ServiceSpec, project string) (model.ConnectionInfo, string, error) {
	ctxWt, cf := context.WithTimeout(ctx, h.httpTimeout)
	defer cf()
	token, err := h.login(ctxWt)
	if err != nil {
		return model.ConnectionInfo{}, "", err
	}
	realm := h.realmName(srv)
	if err = h.ensureRealm(ctxWt, token, realm); err != nil {
		return model.ConnectionInfo{}, "", err
	}
	clientID := clientName(project, srv)
	idOfClient, err := h.findClient(ctxWt, token, realm, clientID)
	if err != nil {
		return model.ConnectionInfo{}, "", err
	}
	if idOfClient == "" {
		idOfClient, err = h.client.CreateClient(ctxWt, token, realm, gocloak.Client{
			ClientID:                  gocloak.StringP(clientID),
			Enabled:                   gocloak.BoolP(true),
			PublicClient:              gocloak.BoolP(false),
			StandardFlowEnabled:       gocloak.BoolP(true),
			ServiceAccountsEnabled:    gocloak.BoolP(true),
			DirectAccessGrantsEnabled: gocloak.BoolP(false),
		})
		if err != nil {
			return model.ConnectionInfo{}, "", classifyErr(err)
		}
	}
	cred, err := h.client.GetClientSecret(ctxWt, token, realm, idOfClient)
	if err != nil {
		return model.ConnectionInfo{}, "", classifyErr(err)
	}
	secret := ""
	if cred.Value != nil {
		secret = *cred.Value
	}
	return model.ConnectionInfo{
		Realm:        realm,
		ClientID:     clientID,
		DiscoveryURL: fmt.Sprintf("%s/realms/%s/.well-known/openid-configuration", h.baseURL, realm),
	}, secret, nil
}

// DeleteRealmClient removes the client. A realm dedicated to the service is
// removed with it; the shared realm is never touched.
func (h *Handler) DeleteRealmClient(ctx context.Context, srv model.ServiceSpec, project string) error {
	ctxWt, cf := context.WithTimeout(ctx, h.httpTimeout)
	defer cf()
	token, err := h.login(ctxWt)
	if err != nil {
		return err
	}
	realm := h.realmName(srv)
	if srv.Realm != "" && srv.Realm != h.sharedRealm {
		if err = h.client.DeleteRealm(ctxWt, token, realm); err != nil && !isNotFound(err) {
			return classifyErr(err)
		}
		return nil
	}
	idOfClient, err := h.findClient(ctxWt, token, realm, clientName(project, srv))
	if err != nil {
		return err
	}
	if idOfClient == "" {
		return nil
	}
	if err = h.client.DeleteClient(ctxWt, token, realm, idOfClient); err != nil && !isNotFound(err) {
		return classifyErr(err)
	}
	return nil
}

func (h *Handler) RealmClientExists(ctx context.Context, srv model.ServiceSpec, project string) (bool, error) {
	ctxWt, cf := context.WithTimeout(ctx, h.httpTimeout)
	defer cf()
	token, err := h.login(ctxWt)
	if err != nil {
		return false, err
	}
	realm := h.realmName(srv)
	if _, err = h.client.GetRealm(ctxWt, token, realm); err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, classifyErr(err)
	}
	idOfClient, err := h.findClient(ctxWt, token, realm, clientName(project, srv))
	if err != nil {
		return false, err
	}
	return idOfClient != "", nil
}

func (h *Handler) login(ctx context.Context) (string, error) {
	token, err := h.client.LoginAdmin(ctx, h.adminUser, h.adminPasswd, h.adminRealm)
	if err != nil {
		return "", classifyErr(err)
	}
	return token.AccessToken, nil
}

func (h *Handler) ensureRealm(ctx context.Context, token, realm string) error {
	_, err := h.client.GetRealm(ctx, token, realm)
	if err == nil {
		return nil
	}
	if !isNotFound(err) {
		return classifyErr(err)
	}
	_, err = h.client.CreateRealm(ctx, token, gocloak.RealmRepresentation{
		Realm:   gocloak.StringP(realm),
		Enabled: gocloak.BoolP(true),
	})
	if err != nil {
		return classifyErr(err)
	}
	return nil
}

func (h *Handler) findClient(ctx context.Context, token, realm, clientID string) (string, error) {
	clients, err := h.client.GetClients(ctx, token, realm, gocloak.GetClientsParams{ClientID: gocloak.StringP(clientID)})
	if err != nil {
		return "", classifyErr(err)
	}
	for _, c := range clients {
		if c.ClientID != nil && *c.ClientID == clientID && c.ID != nil {
			return *c.ID, nil
		}
	}
	return "", nil
}

func (h *Handler) realmName(srv model.ServiceSpec) string {
	if srv.Realm != "" {
		return srv.Realm
	}
	return h.sharedRealm
}

func clientName(project string, srv model.ServiceSpec) string {
	return project + "-" + srv.Name
}

func isNotFound(err error) bool {
	var apiErr *gocloak.APIError
	return errors.As(err, &apiErr) && apiErr.Code == 404
}

// classifyErr treats 4xx responses as permanent and everything else,
// including transport failures, as transient.
func classifyErr(err error) error {
	var apiErr *gocloak.APIError
	if errors.As(err, &apiErr) && apiErr.Code >= 400 && apiErr.Code < 500 {
		return model.NewInternalError(err)
	}
	return model.NewTransientError(err)
}
