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

package http_hdl

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gitops-selfservice/project-manager/lib"
	"github.com/gitops-selfservice/project-manager/lib/model"
)

const projectParam = "p"

type projectsQuery struct {
	Cluster string `form:"cluster"`
}

func getProjectsH(a lib.Api) gin.HandlerFunc {
	return func(gc *gin.Context) {
		query := projectsQuery{}
		if err := gc.ShouldBindQuery(&query); err != nil {
			_ = gc.Error(model.NewInvalidInputError(err))
			return
		}
		projects, err := a.GetProjects(gc.Request.Context(), model.ProjectFilter{Cluster: query.Cluster})
		if err != nil {
			_ = gc.Error(err)
			return
		}
		gc.JSON(http.StatusOK, projects)
	}
}

func putProjectH(a lib.Api) gin.HandlerFunc {
	return func(gc *gin.Context) {
		spec := model.ProjectSpec{}
		if err := gc.ShouldBindJSON(&spec); err != nil {
			_ = gc.Error(model.NewInvalidInputError(err))
			return
		}
		jID, err := a.ReconcileProject(gc.Request.Context(), spec)
		if err != nil {
			_ = gc.Error(err)
			return
		}
		gc.String(http.StatusOK, jID)
	}
}

func postProjectReconcileH(a lib.Api) gin.HandlerFunc {
	return func(gc *gin.Context) {
		jID, err := a.ReconcileStoredProject(gc.Request.Context(), gc.Param(projectParam))
		if err != nil {
			_ = gc.Error(err)
			return
		}
		gc.String(http.StatusOK, jID)
	}
}

func deleteProjectH(a lib.Api) gin.HandlerFunc {
	return func(gc *gin.Context) {
		jID, err := a.DeleteProject(gc.Request.Context(), gc.Param(projectParam))
		if err != nil {
			_ = gc.Error(err)
			return
		}
		gc.String(http.StatusOK, jID)
	}
}

func getProjectStatusH(a lib.Api) gin.HandlerFunc {
	return func(gc *gin.Context) {
		run, err := a.GetProjectStatus(gc.Request.Context(), gc.Param(projectParam))
		if err != nil {
			_ = gc.Error(err)
			return
		}
		gc.JSON(http.StatusOK, run)
	}
}
