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

	"github.com/gitops-selfservice/project-manager/lib/model"
)

const tLayout = "2006-01-02 15:04:05.000000"

type Handler struct {
	db *sql.DB
}

func New(db *sql.DB) *Handler {
	return &Handler{db: db}
}

func (h *Handler) BeginTransaction(ctx context.Context) (driver.Tx, error) {
	tx, e := h.db.BeginTx(ctx, nil)
	if e != nil {
		return nil, model.NewInternalError(e)
	}
	return tx, nil
}

func (h *Handler) ReadMonitorRef(ctx context.Context, ref string) (string, error) {
	row := h.db.QueryRowContext(ctx, "SELECT `revision` FROM `monitor_refs` WHERE `ref` = ?", ref)
	var rev string
	if err := row.Scan(&rev); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", model.NewInternalError(err)
	}
	return rev, nil
}

func (h *Handler) SetMonitorRef(ctx context.Context, ref, revision string) error {
	_, err := h.db.ExecContext(ctx, "INSERT INTO `monitor_refs` (`ref`, `revision`, `updated`) VALUES (?, ?, UTC_TIMESTAMP(6)) ON DUPLICATE KEY UPDATE `revision` = ?, `updated` = UTC_TIMESTAMP(6)", ref, revision, revision)
	if err != nil {
		return model.NewInternalError(err)
	}
	return nil
}
