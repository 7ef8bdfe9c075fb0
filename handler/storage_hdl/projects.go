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
	"database/sql"
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/gitops-selfservice/project-manager/lib/model"
	"gopkg.in/yaml.v3"
)

func (h *Handler) ListProjects(ctx context.Context, filter model.ProjectFilter) ([]model.Project, error) {
	q := "SELECT `name`, `cluster`, `spec`, `spec_hash`, `created`, `updated` FROM `projects`"
	var val []any
	if filter.Cluster != "" {
		q += " WHERE `cluster` = ?"
		val = append(val, filter.Cluster)
	}
	q += " ORDER BY `name`"
	rows, err := h.db.QueryContext(ctx, q, val...)
	if err != nil {
		return nil, model.NewInternalError(err)
	}
	defer rows.Close()
	var projects []model.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	if err = rows.Err(); err != nil {
		return nil, model.NewInternalError(err)
	}
	return projects, nil
}

func (h *Handler) ReadProject(ctx context.Context, name string) (model.Project, error) {
	row := h.db.QueryRowContext(ctx, "SELECT `name`, `cluster`, `spec`, `spec_hash`, `created`, `updated` FROM `projects` WHERE `name` = ?", name)
	p, err := scanProject(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.Project{}, model.NewNotFoundError(fmt.Errorf("project '%s' not found", name))
		}
		return model.Project{}, err
	}
	return p, nil
}

func (h *Handler) UpsertProject(ctx context.Context, itf driver.Tx, spec model.ProjectSpec, hash string, timestamp time.Time) error {
	raw, err := yaml.Marshal(spec)
	if err != nil {
		return model.NewInternalError(err)
	}
	execer := h.execer(itf)
	_, err = execer(ctx, "INSERT INTO `projects` (`name`, `cluster`, `spec`, `spec_hash`, `created`, `updated`) VALUES (?, ?, ?, ?, ?, ?) ON DUPLICATE KEY UPDATE `cluster` = ?, `spec` = ?, `spec_hash` = ?, `updated` = ?", spec.Name, spec.Cluster, raw, hash, timestamp, timestamp, spec.Cluster, raw, hash, timestamp)
	if err != nil {
		return model.NewInternalError(err)
	}
	return nil
}

func (h *Handler) DeleteProject(ctx context.Context, name string) error {
	res, err := h.db.ExecContext(ctx, "DELETE FROM `projects` WHERE `name` = ?", name)
	if err != nil {
		return model.NewInternalError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.NewInternalError(err)
	}
	if n < 1 {
		return model.NewNotFoundError(fmt.Errorf("project '%s' not found", name))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (model.Project, error) {
	var p model.Project
	var raw []byte
	var ct, ut []uint8
	if err := row.Scan(&p.Name, &p.Cluster, &raw, &p.SpecHash, &ct, &ut); err != nil {
		if err == sql.ErrNoRows {
			return model.Project{}, err
		}
		return model.Project{}, model.NewInternalError(err)
	}
	if err := yaml.Unmarshal(raw, &p.Spec); err != nil {
		return model.Project{}, model.NewInternalError(err)
	}
	tc, err := time.Parse(tLayout, string(ct))
	if err != nil {
		return model.Project{}, model.NewInternalError(err)
	}
	tu, err := time.Parse(tLayout, string(ut))
	if err != nil {
		return model.Project{}, model.NewInternalError(err)
	}
	p.Created = tc
	p.Updated = tu
	return p, nil
}

func (h *Handler) execer(itf driver.Tx) func(context.Context, string, ...any) (sql.Result, error) {
	if itf != nil {
		tx := itf.(*sql.Tx)
		return tx.ExecContext
	}
	return h.db.ExecContext
}
