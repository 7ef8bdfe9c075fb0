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

package storage_hdl

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"strings"
	"time"

	"github.com/gitops-selfservice/project-manager/lib/model"
)

func genListResFilter(filter model.ResourceFilter) (string, []any) {
	var fc []string
	var val []any
	if filter.ProjectName != "" {
		fc = append(fc, "`project_name` = ?")
		val = append(val, filter.ProjectName)
	}
	if filter.Kind != "" {
		fc = append(fc, "`kind` = ?")
		val = append(val, filter.Kind)
	}
	if len(fc) > 0 {
		return " WHERE " + strings.Join(fc, " AND "), val
	}
	return "", nil
}

func (h *Handler) ListResources(ctx context.Context, filter model.ResourceFilter) ([]model.ProvisionedResource, error) {
	q := "SELECT `id`, `project_name`, `service_name`, `kind`, `connection`, `created`, `updated` FROM `provisioned_resources`"
	fc, val := genListResFilter(filter)
	if fc != "" {
		q += fc
	}
	q += " ORDER BY `service_name`"
	rows, err := h.db.QueryContext(ctx, q, val...)
	if err != nil {
		return nil, model.NewInternalError(err)
	}
	defer rows.Close()
	var resources []model.ProvisionedResource
	for rows.Next() {
		var res model.ProvisionedResource
		var conn []byte
		var ct, ut []uint8
		if err = rows.Scan(&res.ID, &res.ProjectName, &res.ServiceName, &res.Kind, &conn, &ct, &ut); err != nil {
			return nil, model.NewInternalError(err)
		}
		if err = json.Unmarshal(conn, &res.Connection); err != nil {
			return nil, model.NewInternalError(err)
		}
		tc, err := time.Parse(tLayout, string(ct))
		if err != nil {
			return nil, model.NewInternalError(err)
		}
		tu, err := time.Parse(tLayout, string(ut))
		if err != nil {
			return nil, model.NewInternalError(err)
		}
		res.Created = tc
		res.Updated = tu
		resources = append(resources, res)
	}
	if err = rows.Err(); err != nil {
		return nil, model.NewInternalError(err)
	}
	return resources, nil
}

func (h *Handler) UpsertResource(ctx context.Context, itf driver.Tx, res model.ProvisionedResource) error {
	conn, err := json.Marshal(res.Connection)
	if err != nil {
		return model.NewInternalError(err)
	}
	execer := h.execer(itf)
	_, err = execer(ctx, "INSERT INTO `provisioned_resources` (`id`, `project_name`, `service_name`, `kind`, `connection`, `created`, `updated`) VALUES (UUID(), ?, ?, ?, ?, ?, ?) ON DUPLICATE KEY UPDATE `connection` = ?, `updated` = ?", res.ProjectName, res.ServiceName, res.Kind, conn, res.Created, res.Updated, conn, res.Updated)
	if err != nil {
		return model.NewInternalError(err)
	}
	return nil
}

func (h *Handler) DeleteResource(ctx context.Context, projectName, serviceName string) error {
	_, err := h.db.ExecContext(ctx, "DELETE FROM `provisioned_resources` WHERE `project_name` = ? AND `service_name` = ?", projectName, serviceName)
	if err != nil {
		return model.NewInternalError(err)
	}
	return nil
}
