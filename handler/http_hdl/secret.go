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

func postSecretsRenderH(a lib.Api) gin.HandlerFunc {
	return func(gc *gin.Context) {
		doc := model.SecretDocument{}
		if err := gc.ShouldBindJSON(&doc); err != nil {
			_ = gc.Error(model.NewInvalidInputError(err))
			return
		}
		batch, err := a.RenderSecrets(gc.Request.Context(), doc)
		if err != nil {
			_ = gc.Error(err)
			return
		}
		gc.JSON(http.StatusOK, batch)
	}
}
