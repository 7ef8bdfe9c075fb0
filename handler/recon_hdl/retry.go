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

package recon_hdl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gitops-selfservice/project-manager/lib/model"
	"github.com/gitops-selfservice/project-manager/util"
)

// retry runs op up to the configured number of attempts with doubling delay.
// Only transient errors are retried; everything else surfaces immediately.
func (h *Handler) retry(ctx context.Context, what string, op func(ctx context.Context) error) error {
	var err error
	delay := h.delay
	for attempt := 0; attempt < h.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return model.NewInternalError(ctx.Err())
			case <-time.After(delay):
			}
			delay *= 2
		}
		err = op(ctx)
		if err == nil {
			return nil
		}
		var tErr *model.TransientError
		if !errors.As(err, &tErr) {
			return err
		}
		util.Logger.Warningf("%s: attempt %d failed: %s", what, attempt+1, err)
	}
	return err
}

// waitAbsent polls the existence check until the resource is gone. Deletion
// of external resources may lag behind the admin call; the parent must not
// be removed while a child is still observable.
func (h *Handler) waitAbsent(ctx context.Context, what string, check func(ctx context.Context) (bool, error)) error {
	delay := h.delay
	for attempt := 0; attempt < h.attempts; attempt++ {
		exists, err := check(ctx)
		if err != nil {
			return err
		}
		if !exists {
			return nil
		}
		select {
		case <-ctx.Done():
			return model.NewInternalError(ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}
	return model.NewInternalError(fmt.Errorf("%s still present after deletion", what))
}
