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

package util

import (
	"github.com/SENERGY-Platform/go-service-base/srv-base"
	"github.com/y-du/go-log-level/level"
)

type DatabaseConfig struct {
	Host       string `json:"host" env_var:"DB_HOST"`
	Port       uint   `json:"port" env_var:"DB_PORT"`
	User       string `json:"user" env_var:"DB_USER"`
	Passwd     string `json:"passwd" env_var:"DB_PASSWD"`
	Name       string `json:"name" env_var:"DB_NAME"`
	Timeout    int64  `json:"timeout" env_var:"DB_TIMEOUT"`
	SchemaPath string `json:"schema_path" env_var:"DB_SCHEMA_PATH"`
}

type ClusterConfig struct {
	Name          string `json:"name" env_var:"CLUSTER_NAME"`
	IngressDomain string `json:"ingress_domain" env_var:"CLUSTER_INGRESS_DOMAIN"`
	StorageClass  string `json:"storage_class" env_var:"CLUSTER_STORAGE_CLASS"`
}

type SecretsConfig struct {
	PrivateKeyPath string `json:"private_key_path" env_var:"SEC_PRIVATE_KEY_PATH"`
	PublicKey      string `json:"public_key" env_var:"SEC_PUBLIC_KEY"`
}

type GitPublisherConfig struct {
	WorkdirPath string `json:"workdir_path" env_var:"GP_WORKDIR_PATH"`
	RepoURL     string `json:"repo_url" env_var:"GP_REPO_URL"`
	Branch      string `json:"branch" env_var:"GP_BRANCH"`
	User        string `json:"user" env_var:"GP_USER"`
	Token       string `json:"token" env_var:"GP_TOKEN"`
	SSHKeyPath  string `json:"ssh_key_path" env_var:"GP_SSH_KEY_PATH"`
	Timeout     int64  `json:"timeout" env_var:"GP_TIMEOUT"`
	PushRetries int    `json:"push_retries" env_var:"GP_PUSH_RETRIES"`
}

type GitMonitorConfig struct {
	Enabled     bool   `json:"enabled" env_var:"GM_ENABLED"`
	WorkdirPath string `json:"workdir_path" env_var:"GM_WORKDIR_PATH"`
	RepoURL     string `json:"repo_url" env_var:"GM_REPO_URL"`
	Branch      string `json:"branch" env_var:"GM_BRANCH"`
	SpecDir     string `json:"spec_dir" env_var:"GM_SPEC_DIR"`
	User        string `json:"user" env_var:"GM_USER"`
	Token       string `json:"token" env_var:"GM_TOKEN"`
	Interval    int64  `json:"interval" env_var:"GM_INTERVAL"`
	Timeout     int64  `json:"timeout" env_var:"GM_TIMEOUT"`
}

type DatabaseProvisionerConfig struct {
	Host    string `json:"host" env_var:"DBP_HOST"`
	Port    uint   `json:"port" env_var:"DBP_PORT"`
	User    string `json:"user" env_var:"DBP_USER"`
	Passwd  string `json:"passwd" env_var:"DBP_PASSWD"`
	Timeout int64  `json:"timeout" env_var:"DBP_TIMEOUT"`
}

type ObjectStorageProvisionerConfig struct {
	Endpoint  string `json:"endpoint" env_var:"OSP_ENDPOINT"`
	AccessKey string `json:"access_key" env_var:"OSP_ACCESS_KEY"`
	SecretKey string `json:"secret_key" env_var:"OSP_SECRET_KEY"`
	Region    string `json:"region" env_var:"OSP_REGION"`
	UseSSL    bool   `json:"use_ssl" env_var:"OSP_USE_SSL"`
	Timeout   int64  `json:"timeout" env_var:"OSP_TIMEOUT"`
}

type IdentityProvisionerConfig struct {
	BaseURL     string `json:"base_url" env_var:"IDP_BASE_URL"`
	AdminUser   string `json:"admin_user" env_var:"IDP_ADMIN_USER"`
	AdminPasswd string `json:"admin_passwd" env_var:"IDP_ADMIN_PASSWD"`
	AdminRealm  string `json:"admin_realm" env_var:"IDP_ADMIN_REALM"`
	SharedRealm string `json:"shared_realm" env_var:"IDP_SHARED_REALM"`
	Timeout     int64  `json:"timeout" env_var:"IDP_TIMEOUT"`
}

type DeploymentControllerConfig struct {
	BaseURL string `json:"base_url" env_var:"DC_BASE_URL"`
	Token   string `json:"token" env_var:"DC_TOKEN"`
	Timeout int64  `json:"timeout" env_var:"DC_TIMEOUT"`
}

type ReconConfig struct {
	RetryAttempts int   `json:"retry_attempts" env_var:"RECON_RETRY_ATTEMPTS"`
	RetryDelay    int64 `json:"retry_delay" env_var:"RECON_RETRY_DELAY"`
}

type JobsConfig struct {
	BufferSize  int   `json:"buffer_size" env_var:"JOBS_BUFFER_SIZE"`
	MaxNumber   int   `json:"max_number" env_var:"JOBS_MAX_NUMBER"`
	JHInterval  int   `json:"jh_interval" env_var:"JOBS_JH_INTERVAL"`
	PJHInterval int   `json:"pjh_interval" env_var:"JOBS_PJH_INTERVAL"`
	MaxAge      int64 `json:"max_age" env_var:"JOBS_MAX_AGE"`
}

type Config struct {
	ServerPort           uint                           `json:"server_port" env_var:"SERVER_PORT"`
	Logger               srv_base.LoggerConfig          `json:"logger" env_var:"LOGGER_CONFIG"`
	Database             DatabaseConfig                 `json:"database" env_var:"DATABASE_CONFIG"`
	Cluster              ClusterConfig                  `json:"cluster" env_var:"CLUSTER_CONFIG"`
	Secrets              SecretsConfig                  `json:"secrets" env_var:"SECRETS_CONFIG"`
	GitPublisher         GitPublisherConfig             `json:"git_publisher" env_var:"GIT_PUBLISHER_CONFIG"`
	GitMonitor           GitMonitorConfig               `json:"git_monitor" env_var:"GIT_MONITOR_CONFIG"`
	DatabaseProvisioner  DatabaseProvisionerConfig      `json:"database_provisioner" env_var:"DBP_CONFIG"`
	ObjectStorage        ObjectStorageProvisionerConfig `json:"object_storage" env_var:"OSP_CONFIG"`
	Identity             IdentityProvisionerConfig      `json:"identity" env_var:"IDP_CONFIG"`
	DeploymentController DeploymentControllerConfig     `json:"deployment_controller" env_var:"DC_CONFIG"`
	Recon                ReconConfig                    `json:"recon" env_var:"RECON_CONFIG"`
	Jobs                 JobsConfig                     `json:"jobs" env_var:"JOBS_CONFIG"`
}

func NewConfig(path string) (*Config, error) {
	cfg := Config{
		ServerPort: 80,
		Logger: srv_base.LoggerConfig{
			Level:        level.Warning,
			Utc:          true,
			Microseconds: true,
			Terminal:     true,
		},
		Database: DatabaseConfig{
			Host:       "core-db",
			Port:       3306,
			Name:       "project_manager",
			Timeout:    5000000000,
			SchemaPath: "include/storage_schema.sql",
		},
		Cluster: ClusterConfig{
			StorageClass: "standard",
		},
		Secrets: SecretsConfig{
			PrivateKeyPath: "/opt/project-manager/keys/age.key",
		},
		GitPublisher: GitPublisherConfig{
			WorkdirPath: "/opt/project-manager/gitops",
			Branch:      "main",
			Timeout:     30000000000,
			PushRetries: 3,
		},
		GitMonitor: GitMonitorConfig{
			WorkdirPath: "/opt/project-manager/specs",
			Branch:      "main",
			SpecDir:     "projects",
			Interval:    30000000000,
			Timeout:     30000000000,
		},
		DatabaseProvisioner: DatabaseProvisionerConfig{
			Port:    3306,
			Timeout: 10000000000,
		},
		ObjectStorage: ObjectStorageProvisionerConfig{
			Region:  "us-east-1",
			Timeout: 10000000000,
		},
		Identity: IdentityProvisionerConfig{
			AdminRealm: "master",
			Timeout:    10000000000,
		},
		DeploymentController: DeploymentControllerConfig{
			Timeout: 10000000000,
		},
		Recon: ReconConfig{
			RetryAttempts: 3,
			RetryDelay:    500000000,
		},
		Jobs: JobsConfig{
			BufferSize:  50,
			MaxNumber:   10,
			JHInterval:  500000,
			PJHInterval: 500000,
			MaxAge:      3600000000,
		},
	}
	var pathPtr *string
	if path != "" {
		pathPtr = &path
	}
	err := srv_base.LoadConfig(pathPtr, &cfg, nil, nil, nil)
	return &cfg, err
}
