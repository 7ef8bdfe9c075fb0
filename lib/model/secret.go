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

package model

// SecretDocument maps field names to values. Values may carry a generation
// annotation ("random:<N>", "bcrypt:<N>", "skip") on input, and an encoding
// prefix ("age:", "base64+age:") on the encrypted rendering.
type SecretDocument map[string]string

// SecretBatch is the result of rendering an annotated document. Plain is for
// one-time display only and must never be persisted; Encrypted is the only
// form written downstream.
type SecretBatch struct {
	Plain     SecretDocument `json:"plain"`
	Encrypted SecretDocument `json:"encrypted"`
}
