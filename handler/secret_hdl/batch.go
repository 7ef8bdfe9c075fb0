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

package secret_hdl

import (
	"fmt"
	"strconv"
	"strings"

	lib_model "github.com/gitops-selfservice/project-manager/lib/model"
)

// RenderBatch walks an annotated document and resolves every generation
// annotation in one pass. Plain holds generated values for one-time display,
// Encrypted holds the only persistable rendering. Fields annotated "skip" are
// carried through both renderings unchanged; literal values appear as-is in
// Plain and encrypted in Encrypted.
func (h *Handler) RenderBatch(doc lib_model.SecretDocument) (lib_model.SecretBatch, error) {
	batch := lib_model.SecretBatch{
		Plain:     make(lib_model.SecretDocument),
		Encrypted: make(lib_model.SecretDocument),
	}
	for key, value := range doc {
		policy, arg, err := parseAnnotation(value)
		if err != nil {
			return lib_model.SecretBatch{}, lib_model.NewInvalidInputError(fmt.Errorf("field '%s': %s", key, err))
		}
		switch policy {
		case lib_model.GenPolicyRandom:
			plain, err := h.Generate(arg)
			if err != nil {
				return lib_model.SecretBatch{}, err
			}
			enc, err := h.EncryptBase64(plain)
			if err != nil {
				return lib_model.SecretBatch{}, err
			}
			batch.Plain[key] = plain
			batch.Encrypted[key] = enc
		case lib_model.GenPolicyBcrypt:
			plain, hash, err := h.HashOfRandom(arg)
			if err != nil {
				return lib_model.SecretBatch{}, err
			}
			enc, err := h.EncryptBase64(hash)
			if err != nil {
				return lib_model.SecretBatch{}, err
			}
			batch.Plain[key] = plain
			batch.Encrypted[key] = enc
		case lib_model.GenPolicySkip:
			batch.Plain[key] = value
			batch.Encrypted[key] = value
		default:
			enc, err := h.EncryptBase64(value)
			if err != nil {
				return lib_model.SecretBatch{}, err
			}
			batch.Plain[key] = value
			batch.Encrypted[key] = enc
		}
	}
	return batch, nil
}

// parseAnnotation returns the generation policy and its length argument.
// Values that are not annotations return an empty policy and are treated as
// literals by the caller.
func parseAnnotation(value string) (string, int, error) {
	if value == lib_model.GenPolicySkip || strings.HasPrefix(value, lib_model.GenPolicySkip+":") {
		return lib_model.GenPolicySkip, 0, nil
	}
	for _, policy := range []string{lib_model.GenPolicyRandom, lib_model.GenPolicyBcrypt} {
		if !strings.HasPrefix(value, policy+":") {
			continue
		}
		arg, err := strconv.Atoi(strings.TrimPrefix(value, policy+":"))
		if err != nil {
			return "", 0, fmt.Errorf("invalid length in annotation '%s'", value)
		}
		if arg < 1 {
			return "", 0, fmt.Errorf("invalid length %d in annotation '%s'", arg, value)
		}
		return policy, arg, nil
	}
	return "", 0, nil
}
