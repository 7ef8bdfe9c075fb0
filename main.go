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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/SENERGY-Platform/go-cc-job-handler/ccjh"
	srv_base "github.com/SENERGY-Platform/go-service-base/srv-base"
	srv_base_types "github.com/SENERGY-Platform/go-service-base/srv-base/types"
	"github.com/gitops-selfservice/project-manager/api"
	"github.com/gitops-selfservice/project-manager/handler/db_prov_hdl"
	"github.com/gitops-selfservice/project-manager/handler/dep_ctrl_hdl"
	"github.com/gitops-selfservice/project-manager/handler/git_mon_hdl"
	"github.com/gitops-selfservice/project-manager/handler/git_pub_hdl"
	"github.com/gitops-selfservice/project-manager/handler/http_hdl"
	"github.com/gitops-selfservice/project-manager/handler/idm_prov_hdl"
	"github.com/gitops-selfservice/project-manager/handler/job_hdl"
	"github.com/gitops-selfservice/project-manager/handler/manifest_hdl"
	"github.com/gitops-selfservice/project-manager/handler/obj_prov_hdl"
	"github.com/gitops-selfservice/project-manager/handler/recon_hdl"
	"github.com/gitops-selfservice/project-manager/handler/secret_hdl"
	"github.com/gitops-selfservice/project-manager/handler/storage_hdl"
	lib_model "github.com/gitops-selfservice/project-manager/lib/model"
	"github.com/gitops-selfservice/project-manager/util"
	"github.com/gitops-selfservice/project-manager/util/db_hdl"
)

var version string

func main() {
	srv_base.PrintInfo(lib_model.ServiceName, version)

	confPath := flag.String("config", "", "path to config file")
	flag.Parse()

	config, err := util.NewConfig(*confPath)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logFile, err := util.InitLogger(config.Logger)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		var logFileError *srv_base.LogFileError
		if errors.As(err, &logFileError) {
			os.Exit(1)
		}
	}
	if logFile != nil {
		defer logFile.Close()
	}

	util.Logger.Debugf("config: %s", srv_base.ToJsonStr(config))

	ctx, cf := context.WithCancel(context.Background())
	defer cf()

	db, err := db_hdl.NewDB(config.Database.Host, config.Database.Port, config.Database.User, config.Database.Passwd, config.Database.Name)
	if err != nil {
		util.Logger.Error(err)
		return
	}
	defer db.Close()

	initCtx, cf2 := context.WithTimeout(ctx, time.Minute)
	defer cf2()
	if err = db_hdl.InitDB(initCtx, db, config.Database.SchemaPath, time.Second*2); err != nil {
		util.Logger.Error(err)
		return
	}
	cf2()

	storageHdl := storage_hdl.New(db)

	secretHdl, err := secret_hdl.New(config.Secrets.PublicKey, config.Secrets.PrivateKeyPath)
	if err != nil {
		util.Logger.Error(err)
		return
	}

	manifestHdl := manifest_hdl.New(config.Cluster.IngressDomain, config.Cluster.StorageClass)

	gitPubHdl, err := git_pub_hdl.New(config.GitPublisher.WorkdirPath, config.GitPublisher.RepoURL, config.GitPublisher.Branch, config.GitPublisher.User, config.GitPublisher.Token, config.GitPublisher.SSHKeyPath, time.Duration(config.GitPublisher.Timeout), config.GitPublisher.PushRetries)
	if err != nil {
		util.Logger.Error(err)
		return
	}
	if err = gitPubHdl.InitWorkspace(); err != nil {
		util.Logger.Error(err)
		return
	}

	dbProvHdl, err := db_prov_hdl.New(config.DatabaseProvisioner.Host, config.DatabaseProvisioner.Port, config.DatabaseProvisioner.User, config.DatabaseProvisioner.Passwd, time.Duration(config.DatabaseProvisioner.Timeout))
	if err != nil {
		util.Logger.Error(err)
		return
	}
	defer dbProvHdl.Close()

	objProvHdl, err := obj_prov_hdl.New(config.ObjectStorage.Endpoint, config.ObjectStorage.AccessKey, config.ObjectStorage.SecretKey, config.ObjectStorage.Region, config.ObjectStorage.UseSSL, time.Duration(config.ObjectStorage.Timeout))
	if err != nil {
		util.Logger.Error(err)
		return
	}

	idmProvHdl := idm_prov_hdl.New(config.Identity.BaseURL, config.Identity.AdminUser, config.Identity.AdminPasswd, config.Identity.AdminRealm, config.Identity.SharedRealm, time.Duration(config.Identity.Timeout))

	depCtrlHdl := dep_ctrl_hdl.New(config.DeploymentController.BaseURL, config.DeploymentController.Token, time.Duration(config.DeploymentController.Timeout))

	reconHdl := recon_hdl.New(storageHdl, secretHdl, manifestHdl, gitPubHdl, depCtrlHdl, dbProvHdl, objProvHdl, idmProvHdl, config.Cluster.Name, config.Recon.RetryAttempts, time.Duration(config.Recon.RetryDelay), time.Duration(config.Database.Timeout))

	ccHandler := ccjh.New(config.Jobs.BufferSize)
	jobHdl := job_hdl.New(ctx, ccHandler)

	mApi := api.New(reconHdl, jobHdl, storageHdl, secretHdl)

	var gitMonHdl *git_mon_hdl.Handler
	if config.GitMonitor.Enabled {
		gitMonHdl, err = git_mon_hdl.New(storageHdl, func(ctx context.Context, spec lib_model.ProjectSpec) error {
			_, e := mApi.ReconcileProject(ctx, spec)
			return e
		}, config.GitMonitor.WorkdirPath, config.GitMonitor.RepoURL, config.GitMonitor.Branch, config.GitMonitor.SpecDir, config.GitMonitor.User, config.GitMonitor.Token, time.Duration(config.GitMonitor.Interval), time.Duration(config.GitMonitor.Timeout))
		if err != nil {
			util.Logger.Error(err)
			return
		}
	}

	httpHandler := http_hdl.New(mApi, map[string]string{lib_model.HeaderApiVer: version, lib_model.HeaderSrvName: lib_model.ServiceName})
	util.Logger.Debugf("routes: %s", srv_base.ToJsonStr(http_hdl.GetRoutes(httpHandler)))

	if err = ccHandler.RunAsync(config.Jobs.MaxNumber, time.Duration(config.Jobs.JHInterval)*time.Microsecond); err != nil {
		util.Logger.Error(err)
		return
	}
	defer ccHandler.Stop()

	go func() {
		ticker := time.NewTicker(time.Duration(config.Jobs.PJHInterval) * time.Microsecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := jobHdl.PurgeJobs(config.Jobs.MaxAge); n > 0 {
					util.Logger.Debugf("purged %d old jobs", n)
				}
			}
		}
	}()

	if gitMonHdl != nil {
		gitMonHdl.Start()
		defer gitMonHdl.Stop()
	}

	listener, err := net.Listen("tcp", ":"+strconv.FormatInt(int64(config.ServerPort), 10))
	if err != nil {
		util.Logger.Error(err)
		return
	}
	srv_base.StartServer(&http.Server{Handler: httpHandler}, listener, srv_base_types.DefaultShutdownSignals)
}
