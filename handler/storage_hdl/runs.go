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
	"fmt"
	"strings"
	"time"

	"github.com/gitops-selfservice/project-manager/lib/model"
)

func (h *Handler) CreateRun(ctx context.Context, run model.ReconciliationRun) error {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return model.NewInternalError(err)
	}
	defer tx.Rollback()
	_, err = tx.ExecContext(ctx, "INSERT INTO `runs` (`id`, `project_name`, `spec_hash`, `status`, `error`, `created`, `completed`) VALUES (?, ?, ?, ?, ?, ?, NULL)", run.ID, run.ProjectName, run.SpecHash, run.Status, run.Error, run.Created)
	if err != nil {
		return model.NewInternalError(err)
	}
	if err = insertActions(ctx, tx, run); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return model.NewInternalError(err)
	}
	return nil
}

func (h *Handler) UpdateRun(ctx context.Context, run model.ReconciliationRun) error {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return model.NewInternalError(err)
	}
	defer tx.Rollback()
	_, err = tx.ExecContext(ctx, "UPDATE `runs` SET `status` = ?, `error` = ?, `completed` = ? WHERE `id` = ?", run.Status, run.Error, run.Completed, run.ID)
	if err != nil {
		return model.NewInternalError(err)
	}
	_, err = tx.ExecContext(ctx, "DELETE FROM `run_actions` WHERE `run_id` = ?", run.ID)
	if err != nil {
		return model.NewInternalError(err)
	}
	if err = insertActions(ctx, tx, run); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return model.NewInternalError(err)
	}
	return nil
}

func insertActions(ctx context.Context, tx *sql.Tx, run model.ReconciliationRun) error {
	for i, action := range run.Actions {
		_, err := tx.ExecContext(ctx, "INSERT INTO `run_actions` (`run_id`, `ord`, `name`, `target`, `status`, `error`) VALUES (?, ?, ?, ?, ?, ?)", run.ID, i, action.Name, action.Target, action.Status, action.Error)
		if err != nil {
			return model.NewInternalError(err)
		}
	}
	return nil
}

func (h *Handler) ReadRun(ctx context.Context, id string) (model.ReconciliationRun, error) {
	row := h.db.QueryRowContext(ctx, "SELECT `id`, `project_name`, `spec_hash`, `status`, `error`, `created`, `completed` FROM `runs` WHERE `id` = ?", id)
	run, err := scanRun(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.ReconciliationRun{}, model.NewNotFoundError(fmt.Errorf("run '%s' not found", id))
		}
		return model.ReconciliationRun{}, err
	}
	if run.Actions, err = h.readActions(ctx, run.ID); err != nil {
		return model.ReconciliationRun{}, err
	}
	return run, nil
}

func (h *Handler) LatestRun(ctx context.Context, projectName string) (model.ReconciliationRun, error) {
	row := h.db.QueryRowContext(ctx, "SELECT `id`, `project_name`, `spec_hash`, `status`, `error`, `created`, `completed` FROM `runs` WHERE `project_name` = ? ORDER BY `created` DESC LIMIT 1", projectName)
	run, err := scanRun(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.ReconciliationRun{}, model.NewNotFoundError(fmt.Errorf("no runs for project '%s'", projectName))
		}
		return model.ReconciliationRun{}, err
	}
	if run.Actions, err = h.readActions(ctx, run.ID); err != nil {
		return model.ReconciliationRun{}, err
	}
	return run, nil
}

func genListRunFilter(filter model.RunFilter) (string, []any) {
	var fc []string
	var val []any
	if filter.ProjectName != "" {
		fc = append(fc, "`project_name` = ?")
		val = append(val, filter.ProjectName)
	}
	if filter.Status != "" {
		fc = append(fc, "`status` = ?")
		val = append(val, filter.Status)
	}
	if !filter.Since.IsZero() {
		fc = append(fc, "`created` >= ?")
		val = append(val, filter.Since)
	}
	if !filter.Until.IsZero() {
		fc = append(fc, "`created` <= ?")
		val = append(val, filter.Until)
	}
	if len(fc) > 0 {
		return " WHERE " + strings.Join(fc, " AND "), val
	}
	return "", nil
}

func (h *Handler) ListRuns(ctx context.Context, filter model.RunFilter) ([]model.ReconciliationRun, error) {
	q := "SELECT `id`, `project_name`, `spec_hash`, `status`, `error`, `created`, `completed` FROM `runs`"
	fc, val := genListRunFilter(filter)
	if fc != "" {
		q += fc
	}
	q += " ORDER BY `created` DESC"
	rows, err := h.db.QueryContext(ctx, q, val...)
	if err != nil {
		return nil, model.NewInternalError(err)
	}
	defer rows.Close()
	var runs []model.ReconciliationRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err = rows.Err(); err != nil {
		return nil, model.NewInternalError(err)
	}
	for i := range runs {
		if runs[i].Actions, err = h.readActions(ctx, runs[i].ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (h *Handler) readActions(ctx context.Context, runID string) ([]model.Action, error) {
	rows, err := h.db.QueryContext(ctx, "SELECT `name`, `target`, `status`, `error` FROM `run_actions` WHERE `run_id` = ? ORDER BY `ord`", runID)
	if err != nil {
		return nil, model.NewInternalError(err)
	}
	defer rows.Close()
	var actions []model.Action
	for rows.Next() {
		var a model.Action
		var target, aErr sql.NullString
		if err = rows.Scan(&a.Name, &target, &a.Status, &aErr); err != nil {
			return nil, model.NewInternalError(err)
		}
		a.Target = target.String
		a.Error = aErr.String
		actions = append(actions, a)
	}
	if err = rows.Err(); err != nil {
		return nil, model.NewInternalError(err)
	}
	return actions, nil
}

func scanRun(row rowScanner) (model.ReconciliationRun, error) {
	var run model.ReconciliationRun
	var rErr sql.NullString
	var ct []uint8
	var cp sql.NullString
	if err := row.Scan(&run.ID, &run.ProjectName, &run.SpecHash, &run.Status, &rErr, &ct, &cp); err != nil {
		if err == sql.ErrNoRows {
			return model.ReconciliationRun{}, err
		}
		return model.ReconciliationRun{}, model.NewInternalError(err)
	}
	run.Error = rErr.String
	tc, err := time.Parse(tLayout, string(ct))
	if err != nil {
		return model.ReconciliationRun{}, model.NewInternalError(err)
	}
	run.Created = tc
	if cp.Valid {
		tp, err := time.Parse(tLayout, cp.String)
		if err != nil {
			return model.ReconciliationRun{}, model.NewInternalError(err)
		}
		run.Completed = &tp
	}
	return run, nil
}
