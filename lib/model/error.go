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

// InternalError wraps fatal errors (auth, configuration, unexpected state).
// An internal error aborts the whole run without retry.
type InternalError struct {
	err error
}

func NewInternalError(err error) *InternalError {
	return &InternalError{err: err}
}

func (e *InternalError) Error() string {
	return e.err.Error()
}

func (e *InternalError) Unwrap() error {
	return e.err
}

// InvalidInputError marks malformed specs and dangling references. No side
// effects may have been attempted when it is returned.
type InvalidInputError struct {
	err error
}

func NewInvalidInputError(err error) *InvalidInputError {
	return &InvalidInputError{err: err}
}

func (e *InvalidInputError) Error() string {
	return e.err.Error()
}

func (e *InvalidInputError) Unwrap() error {
	return e.err
}

type NotFoundError struct {
	err error
}

func NewNotFoundError(err error) *NotFoundError {
	return &NotFoundError{err: err}
}

func (e *NotFoundError) Error() string {
	return e.err.Error()
}

func (e *NotFoundError) Unwrap() error {
	return e.err
}

type ResourceBusyError struct {
	err error
}

func NewResourceBusyError(err error) *ResourceBusyError {
	return &ResourceBusyError{err: err}
}

func (e *ResourceBusyError) Error() string {
	return e.err.Error()
}

func (e *ResourceBusyError) Unwrap() error {
	return e.err
}

// ConflictError marks a resource name owned by a different project.
// Permanent, never retried.
type ConflictError struct {
	err error
}

func NewConflictError(err error) *ConflictError {
	return &ConflictError{err: err}
}

func (e *ConflictError) Error() string {
	return e.err.Error()
}

func (e *ConflictError) Unwrap() error {
	return e.err
}

// TransientError marks network and timeout failures on connector calls.
// Retried with bounded backoff by the reconciliation engine.
type TransientError struct {
	err error
}

func NewTransientError(err error) *TransientError {
	return &TransientError{err: err}
}

func (e *TransientError) Error() string {
	return e.err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.err
}

// PublishConflictError marks a non-fast-forward push rejection that
// persisted through the bounded retry cycle.
type PublishConflictError struct {
	err error
}

func NewPublishConflictError(err error) *PublishConflictError {
	return &PublishConflictError{err: err}
}

func (e *PublishConflictError) Error() string {
	return e.err.Error()
}

func (e *PublishConflictError) Unwrap() error {
	return e.err
}

// KeyMismatchError marks ciphertext that carries an encryption prefix but
// does not decrypt under the held private key.
type KeyMismatchError struct {
	err error
}

func NewKeyMismatchError(err error) *KeyMismatchError {
	return &KeyMismatchError{err: err}
}

func (e *KeyMismatchError) Error() string {
	return e.err.Error()
}

func (e *KeyMismatchError) Unwrap() error {
	return e.err
}

// MalformedCiphertextError marks payloads that cannot be decoded at all.
type MalformedCiphertextError struct {
	err error
}

func NewMalformedCiphertextError(err error) *MalformedCiphertextError {
	return &MalformedCiphertextError{err: err}
}

func (e *MalformedCiphertextError) Error() string {
	return e.err.Error()
}

func (e *MalformedCiphertextError) Unwrap() error {
	return e.err
}
