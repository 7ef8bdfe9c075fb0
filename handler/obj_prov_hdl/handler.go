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

package obj_prov_hdl

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gitops-selfservice/project-manager/lib/model"
	"github.com/minio/madmin-go/v3"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Handler provisions buckets and per-service access keys on a shared object
// storage cluster.
type Handler struct {
	client      *minio.Client
	admin       *madmin.AdminClient
	endpoint    string
	region      string
	httpTimeout time.Duration
}

func New(endpoint, accessKey, secretKey, region string, useSSL bool, httpTimeout time.Duration) (*Handler, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, err
	}
	admin, err := madmin.NewWithOptions(endpoint, &madmin.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, err
	}
	return &Handler{
		client:      client,
		admin:       admin,
		endpoint:    endpoint,
		region:      region,
		httpTimeout: httpTimeout,
	}, nil
}

// EnsureBucket creates the bucket, the access key and the bucket policy if
// missing. An empty secret key leaves existing credentials untouched.
func (h *Handler) EnsureBucket(ctx context.Context, srv model.ServiceSpec, secretKey string) (model.ConnectionInfo, error) {
	ctxWt, cf := context.WithTimeout(ctx, h.httpTimeout)
	defer cf()
	exists, err := h.client.BucketExists(ctxWt, srv.Bucket)
	if err != nil {
		return model.ConnectionInfo{}, classifyErr(err)
	}
	if !exists {
		if err = h.client.MakeBucket(ctxWt, srv.Bucket, minio.MakeBucketOptions{Region: h.region}); err != nil {
			return model.ConnectionInfo{}, classifyErr(err)
		}
	}
	accessKey := accessKeyName(srv)
	if secretKey != "" {
		if err = h.admin.AddUser(ctxWt, accessKey, secretKey); err != nil {
			return model.ConnectionInfo{}, classifyErr(err)
		}
	}
	policy := policyName(srv.Bucket)
	if err = h.admin.AddCannedPolicy(ctxWt, policy, []byte(bucketPolicy(srv.Bucket))); err != nil {
		return model.ConnectionInfo{}, classifyErr(err)
	}
	if err = h.admin.SetPolicy(ctxWt, policy, accessKey, false); err != nil {
		return model.ConnectionInfo{}, classifyErr(err)
	}
	return model.ConnectionInfo{
		Host:      h.endpoint,
		Bucket:    srv.Bucket,
		Region:    h.region,
		AccessKey: accessKey,
	}, nil
}

// DeleteBucket removes the bucket with all content, the access key and the
// policy. Absent objects are treated as already deleted.
func (h *Handler) DeleteBucket(ctx context.Context, srv model.ServiceSpec) error {
	ctxWt, cf := context.WithTimeout(ctx, h.httpTimeout)
	defer cf()
	exists, err := h.client.BucketExists(ctxWt, srv.Bucket)
	if err != nil {
		return classifyErr(err)
	}
	if exists {
		if err = h.client.RemoveBucketWithOptions(ctxWt, srv.Bucket, minio.RemoveBucketOptions{ForceDelete: true}); err != nil {
			return classifyErr(err)
		}
	}
	if err = h.admin.RemoveUser(ctxWt, accessKeyName(srv)); err != nil && !isNotFound(err) {
		return classifyErr(err)
	}
	if err = h.admin.RemoveCannedPolicy(ctxWt, policyName(srv.Bucket)); err != nil && !isNotFound(err) {
		return classifyErr(err)
	}
	return nil
}

func (h *Handler) BucketExists(ctx context.Context, srv model.ServiceSpec) (bool, error) {
	ctxWt, cf := context.WithTimeout(ctx, h.httpTimeout)
	defer cf()
	exists, err := h.client.BucketExists(ctxWt, srv.Bucket)
	if err != nil {
		return false, classifyErr(err)
	}
	return exists, nil
}

func accessKeyName(srv model.ServiceSpec) string {
	if srv.User != "" {
		return srv.User
	}
	return srv.Bucket + "-user"
}

func policyName(bucket string) string {
	return "rw-" + bucket
}

func bucketPolicy(bucket string) string {
	return fmt.Sprintf(`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Action":["s3:*"],"Resource":["arn:aws:s3:::%s","arn:aws:s3:::%s/*"]}]}`, bucket, bucket)
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchBucket" || resp.Code == "XMinioAdminNoSuchUser" || resp.Code == "XMinioAdminNoSuchPolicy" {
		return true
	}
	return strings.Contains(err.Error(), "does not exist")
}

// classifyErr treats server responses as permanent and transport failures as
// transient.
func classifyErr(err error) error {
	if resp := minio.ToErrorResponse(err); resp.Code != "" {
		return model.NewInternalError(err)
	}
	if madmin.ToErrorResponse(err).Code != "" {
		return model.NewInternalError(err)
	}
	return model.NewTransientError(err)
}
