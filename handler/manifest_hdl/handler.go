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

package manifest_hdl

import (
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	lib_model "github.com/gitops-selfservice/project-manager/lib/model"
	"gopkg.in/yaml.v3"
)

const baseDir = "projects"

type Handler struct {
	ingressDomain string
	storageClass  string
}

func New(ingressDomain, storageClass string) *Handler {
	return &Handler{ingressDomain: ingressDomain, storageClass: storageClass}
}

// Generate renders the full manifest set for a project. Output is a map of
// repository relative paths to file content and is deterministic: the same
// spec, resources and secret documents always produce the same bytes.
func (h *Handler) Generate(spec lib_model.ProjectSpec, resources []lib_model.ProvisionedResource, secrets map[string]lib_model.SecretDocument) (map[string][]byte, error) {
	resMap := make(map[string]lib_model.ProvisionedResource)
	for _, res := range resources {
		resMap[res.ServiceName] = res
	}
	dir := path.Join(baseDir, spec.Name)
	files := make(map[string][]byte)
	for _, srv := range spec.Services {
		doc, ok := secrets[srv.Name]
		if !ok {
			continue
		}
		raw, err := marshal(newSecret(spec.Name, srv.Name, doc))
		if err != nil {
			return nil, err
		}
		files[path.Join(dir, srv.Name+"-secret.yaml")] = raw
	}
	for _, dep := range spec.Deployments {
		env, err := h.genEnv(spec, dep, resMap, secrets)
		if err != nil {
			return nil, err
		}
		raw, err := marshal(newDeployment(spec.Name, dep, env))
		if err != nil {
			return nil, err
		}
		files[path.Join(dir, dep.Name+"-deployment.yaml")] = raw
		if dep.Storage != "" {
			raw, err = marshal(newVolumeClaim(spec.Name, dep, h.storageClass))
			if err != nil {
				return nil, err
			}
			files[path.Join(dir, dep.Name+"-pvc.yaml")] = raw
		}
		if len(dep.Ports) > 0 {
			raw, err = marshal(newService(spec.Name, dep))
			if err != nil {
				return nil, err
			}
			files[path.Join(dir, dep.Name+"-service.yaml")] = raw
		}
		if dep.IngressHost != "" {
			if len(dep.Ports) == 0 {
				return nil, lib_model.NewInvalidInputError(fmt.Errorf("deployment '%s' has an ingress host but no ports", dep.Name))
			}
			raw, err = marshal(newIngress(spec.Name, dep, h.host(dep.IngressHost)))
			if err != nil {
				return nil, err
			}
			files[path.Join(dir, dep.Name+"-ingress.yaml")] = raw
		}
	}
	var items []string
	for p := range files {
		items = append(items, path.Base(p))
	}
	sort.Strings(items)
	raw, err := marshal(kustomization{
		APIVersion: "kustomize.config.k8s.io/v1beta1",
		Kind:       "Kustomization",
		Namespace:  spec.Name,
		Resources:  items,
	})
	if err != nil {
		return nil, err
	}
	files[path.Join(dir, "kustomization.yaml")] = raw
	return files, nil
}

// ArtifactPaths returns the repository paths owned by a project, for removal
// on deletion.
func (h *Handler) ArtifactPaths(spec lib_model.ProjectSpec) []string {
	return []string{path.Join(baseDir, spec.Name)}
}

// DeploymentArtifactPaths returns only the workload related files, so
// deployments can be torn down before their backing services disappear.
func (h *Handler) DeploymentArtifactPaths(spec lib_model.ProjectSpec) []string {
	dir := path.Join(baseDir, spec.Name)
	var paths []string
	for _, dep := range spec.Deployments {
		paths = append(paths, path.Join(dir, dep.Name+"-deployment.yaml"))
		if dep.Storage != "" {
			paths = append(paths, path.Join(dir, dep.Name+"-pvc.yaml"))
		}
		if len(dep.Ports) > 0 {
			paths = append(paths, path.Join(dir, dep.Name+"-service.yaml"))
		}
		if dep.IngressHost != "" {
			paths = append(paths, path.Join(dir, dep.Name+"-ingress.yaml"))
		}
	}
	return paths
}

func (h *Handler) host(ingressHost string) string {
	if h.ingressDomain != "" && !strings.Contains(ingressHost, ".") {
		return ingressHost + "." + h.ingressDomain
	}
	return ingressHost
}

// genEnv assembles the environment for a deployment from the connection info
// of its referenced services. Credential values are never inlined; they are
// referenced through the service's secret object. The result is sorted by
// variable name.
func (h *Handler) genEnv(spec lib_model.ProjectSpec, dep lib_model.DeploymentSpec, resMap map[string]lib_model.ProvisionedResource, secrets map[string]lib_model.SecretDocument) ([]envVar, error) {
	var env []envVar
	for _, ref := range dep.ServiceRefs {
		res, ok := resMap[ref]
		if !ok {
			return nil, lib_model.NewInternalError(fmt.Errorf("no provisioned resource for service '%s'", ref))
		}
		prefix := envPrefix(ref)
		switch res.Kind {
		case lib_model.ServiceKindDatabase:
			env = append(env,
				envVar{Name: prefix + "_HOST", Value: res.Connection.Host},
				envVar{Name: prefix + "_PORT", Value: strconv.Itoa(res.Connection.Port)},
				envVar{Name: prefix + "_USER", Value: res.Connection.User},
				envVar{Name: prefix + "_SCHEMA", Value: res.Connection.Schema})
		case lib_model.ServiceKindObjectStorage:
			env = append(env,
				envVar{Name: prefix + "_ENDPOINT", Value: res.Connection.Host},
				envVar{Name: prefix + "_BUCKET", Value: res.Connection.Bucket},
				envVar{Name: prefix + "_REGION", Value: res.Connection.Region},
				envVar{Name: prefix + "_ACCESS_KEY", Value: res.Connection.AccessKey})
		case lib_model.ServiceKindIdentity:
			env = append(env,
				envVar{Name: prefix + "_REALM", Value: res.Connection.Realm},
				envVar{Name: prefix + "_CLIENT_ID", Value: res.Connection.ClientID},
				envVar{Name: prefix + "_DISCOVERY_URL", Value: res.Connection.DiscoveryURL})
		default:
			return nil, lib_model.NewInternalError(fmt.Errorf("unknown service kind '%s'", res.Kind))
		}
		doc, ok := secrets[ref]
		if !ok {
			continue
		}
		var keys []string
		for key := range doc {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			env = append(env, envVar{
				Name: prefix + "_" + envPrefix(key),
				ValueFrom: &envVarSource{
					SecretKeyRef: secretKeySelector{
						Name: secretName(spec.Name, ref),
						Key:  key,
					},
				},
			})
		}
	}
	if dep.SSO {
		ssoEnv, err := genSSOEnv(spec, dep, resMap)
		if err != nil {
			return nil, err
		}
		env = append(env, ssoEnv...)
	}
	sort.Slice(env, func(i, j int) bool {
		return env[i].Name < env[j].Name
	})
	return env, nil
}

// genSSOEnv wires a deployment to the realm client of its referenced identity
// service. The client secret is never inlined, it points into the service's
// secret object.
func genSSOEnv(spec lib_model.ProjectSpec, dep lib_model.DeploymentSpec, resMap map[string]lib_model.ProvisionedResource) ([]envVar, error) {
	for _, ref := range dep.ServiceRefs {
		res, ok := resMap[ref]
		if !ok || res.Kind != lib_model.ServiceKindIdentity {
			continue
		}
		return []envVar{
			{Name: "SSO_REALM", Value: res.Connection.Realm},
			{Name: "SSO_CLIENT_ID", Value: res.Connection.ClientID},
			{Name: "SSO_ISSUER", Value: res.Connection.DiscoveryURL},
			{
				Name: "SSO_CLIENT_SECRET",
				ValueFrom: &envVarSource{
					SecretKeyRef: secretKeySelector{
						Name: secretName(spec.Name, ref),
						Key:  "client-secret",
					},
				},
			},
		}, nil
	}
	return nil, lib_model.NewInternalError(fmt.Errorf("deployment '%s' enables sso but references no identity service", dep.Name))
}

func newDeployment(project string, dep lib_model.DeploymentSpec, env []envVar) deployment {
	labels := map[string]string{"app": dep.Name, "project": project}
	var ports []containerPort
	for _, p := range dep.Ports {
		ports = append(ports, containerPort{ContainerPort: p})
	}
	var volumes []volume
	var mounts []volumeMount
	if dep.Storage != "" {
		volumes = append(volumes, volume{
			Name:                  "data",
			PersistentVolumeClaim: pvcVolumeClaim{ClaimName: claimName(dep)},
		})
		mounts = append(mounts, volumeMount{Name: "data", MountPath: "/data"})
	}
	return deployment{
		APIVersion: "apps/v1",
		Kind:       "Deployment",
		Metadata:   metadata{Name: dep.Name, Namespace: project, Labels: labels},
		Spec: deploymentSpec{
			Replicas: 1,
			Selector: labelSelector{MatchLabels: map[string]string{"app": dep.Name}},
			Template: workloadTemplate{
				Metadata: metadata{Labels: labels},
				Spec: podSpec{
					Containers: []container{
						{
							Name:  dep.Name,
							Image: dep.Image + ":" + dep.Tag,
							Env:   env,
							Ports: ports,
							Resources: resourceRequirements{
								Requests: resourceList{CPU: dep.CPU, Memory: dep.Memory},
								Limits:   resourceList{Memory: dep.Memory},
							},
							VolumeMounts: mounts,
						},
					},
					Volumes: volumes,
				},
			},
		},
	}
}

func newVolumeClaim(project string, dep lib_model.DeploymentSpec, storageClass string) persistentVolumeClaim {
	return persistentVolumeClaim{
		APIVersion: "v1",
		Kind:       "PersistentVolumeClaim",
		Metadata:   metadata{Name: claimName(dep), Namespace: project, Labels: map[string]string{"app": dep.Name, "project": project}},
		Spec: pvcSpec{
			AccessModes:      []string{"ReadWriteOnce"},
			StorageClassName: storageClass,
			Resources:        pvcResources{Requests: pvcRequests{Storage: dep.Storage}},
		},
	}
}

func claimName(dep lib_model.DeploymentSpec) string {
	return dep.Name + "-data"
}

func newService(project string, dep lib_model.DeploymentSpec) service {
	var ports []servicePort
	for _, p := range dep.Ports {
		ports = append(ports, servicePort{Name: "port-" + strconv.Itoa(p), Port: p, TargetPort: p})
	}
	return service{
		APIVersion: "v1",
		Kind:       "Service",
		Metadata:   metadata{Name: dep.Name, Namespace: project, Labels: map[string]string{"app": dep.Name, "project": project}},
		Spec: serviceSpec{
			Selector: map[string]string{"app": dep.Name},
			Ports:    ports,
		},
	}
}

func newIngress(project string, dep lib_model.DeploymentSpec, host string) ingress {
	return ingress{
		APIVersion: "networking.k8s.io/v1",
		Kind:       "Ingress",
		Metadata:   metadata{Name: dep.Name, Namespace: project, Labels: map[string]string{"app": dep.Name, "project": project}},
		Spec: ingressSpec{
			Rules: []ingressRule{
				{
					Host: host,
					HTTP: ingressRuleHTTP{
						Paths: []ingressPath{
							{
								Path:     "/",
								PathType: "Prefix",
								Backend: ingressBackend{
									Service: ingressServiceBackend{
										Name: dep.Name,
										Port: ingressBackendPort{Number: dep.Ports[0]},
									},
								},
							},
						},
					},
				},
			},
		},
	}
}

func newSecret(project, srvName string, doc lib_model.SecretDocument) secret {
	data := make(map[string]string)
	for key, value := range doc {
		data[key] = value
	}
	return secret{
		APIVersion: "v1",
		Kind:       "Secret",
		Metadata: metadata{
			Name:      secretName(project, srvName),
			Namespace: project,
			Labels:    map[string]string{"project": project},
		},
		Type:       "Opaque",
		StringData: data,
	}
}

func secretName(project, srvName string) string {
	return project + "-" + srvName
}

func envPrefix(name string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(name))
}

func marshal(doc any) ([]byte, error) {
	raw, err := yaml.Marshal(doc)
	if err != nil {
		return nil, lib_model.NewInternalError(err)
	}
	return raw, nil
}
