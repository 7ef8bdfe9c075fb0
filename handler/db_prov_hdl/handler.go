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

package db_prov_hdl

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/gitops-selfservice/project-manager/lib/model"
	"github.com/go-sql-driver/mysql"
)

var identRegex = regexp.MustCompile(`^[a-z0-9_-]+$`)

// Handler provisions schemas and users on a shared database server through
// an admin connection.
type Handler struct {
	db        *sql.DB
	host      string
	port      uint
	dbTimeout time.Duration
}

func New(host string, port uint, user, passwd string, dbTimeout time.Duration) (*Handler, error) {
	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", host, port)
	cfg.User = user
	cfg.Passwd = passwd
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, err
	}
	db := sql.OpenDB(connector)
	db.SetConnMaxLifetime(time.Minute * 3)
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(5)
	return &Handler{db: db, host: host, port: port, dbTimeout: dbTimeout}, nil
}

// EnsureDatabase creates the schema, the user and the grant if missing.
// Calling it for an existing schema only refreshes the grant; an empty
// password leaves the existing user's credentials untouched.
func (h *Handler) EnsureDatabase(ctx context.Context, srv model.ServiceSpec, password string) (model.ConnectionInfo, error) {
	if err := checkIdent(srv.Schema); err != nil {
		return model.ConnectionInfo{}, err
	}
	if err := checkIdent(srv.User); err != nil {
		return model.ConnectionInfo{}, err
	}
	ctxWt, cf := context.WithTimeout(ctx, h.dbTimeout)
	defer cf()
	_, err := h.db.ExecContext(ctxWt, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", srv.Schema))
	if err != nil {
		return model.ConnectionInfo{}, classifyErr(err)
	}
	if password != "" {
		// account statements do not accept placeholders, the password is escaped instead
		pw := quoteValue(password)
		_, err = h.db.ExecContext(ctxWt, fmt.Sprintf("CREATE USER IF NOT EXISTS '%s'@'%%' IDENTIFIED BY '%s'", srv.User, pw))
		if err != nil {
			return model.ConnectionInfo{}, classifyErr(err)
		}
		_, err = h.db.ExecContext(ctxWt, fmt.Sprintf("ALTER USER '%s'@'%%' IDENTIFIED BY '%s'", srv.User, pw))
		if err != nil {
			return model.ConnectionInfo{}, classifyErr(err)
		}
	}
	_, err = h.db.ExecContext(ctxWt, fmt.Sprintf("GRANT ALL PRIVILEGES ON `%s`.* TO '%s'@'%%'", srv.Schema, srv.User))
	if err != nil {
		return model.ConnectionInfo{}, classifyErr(err)
	}
	return model.ConnectionInfo{
		Host:   h.host,
		Port:   int(h.port),
		User:   srv.User,
		Schema: srv.Schema,
	}, nil
}

// DeleteDatabase drops the schema and the user. Absent objects are treated
// as already deleted.
func (h *Handler) DeleteDatabase(ctx context.Context, srv model.ServiceSpec) error {
	if err := checkIdent(srv.Schema); err != nil {
		return err
	}
	if err := checkIdent(srv.User); err != nil {
		return err
	}
	ctxWt, cf := context.WithTimeout(ctx, h.dbTimeout)
	defer cf()
	_, err := h.db.ExecContext(ctxWt, fmt.Sprintf("DROP DATABASE IF EXISTS `%s`", srv.Schema))
	if err != nil {
		return classifyErr(err)
	}
	_, err = h.db.ExecContext(ctxWt, fmt.Sprintf("DROP USER IF EXISTS '%s'@'%%'", srv.User))
	if err != nil {
		return classifyErr(err)
	}
	return nil
}

func (h *Handler) DatabaseExists(ctx context.Context, srv model.ServiceSpec) (bool, error) {
	ctxWt, cf := context.WithTimeout(ctx, h.dbTimeout)
	defer cf()
	row := h.db.QueryRowContext(ctxWt, "SELECT `SCHEMA_NAME` FROM `information_schema`.`SCHEMATA` WHERE `SCHEMA_NAME` = ?", srv.Schema)
	var name string
	if err := row.Scan(&name); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, classifyErr(err)
	}
	return true, nil
}

func (h *Handler) Close() error {
	return h.db.Close()
}

func quoteValue(v string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(v)
}

func checkIdent(v string) error {
	if !identRegex.MatchString(v) {
		return model.NewInvalidInputError(fmt.Errorf("invalid identifier '%s'", v))
	}
	return nil
}

// classifyErr treats server responses as permanent and everything below the
// protocol (connection refused, timeouts, broken connections) as transient.
func classifyErr(err error) error {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return model.NewInternalError(err)
	}
	return model.NewTransientError(err)
}
