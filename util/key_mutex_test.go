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
	"sync"
	"sync/atomic"
	"testing"
)

func TestKeyMutex_TryLock(t *testing.T) {
	m := NewKeyMutex()
	if err := m.TryLock("a", "reconciling"); err != nil {
		t.Fatal(err)
	}
	err := m.TryLock("a", "deleting")
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Error() != "reconciling" {
		t.Errorf("reason = %s", err)
	}
	if err = m.TryLock("b", "reconciling"); err != nil {
		t.Errorf("unrelated key blocked: %s", err)
	}
	m.Unlock("a")
	if err = m.TryLock("a", "deleting"); err != nil {
		t.Errorf("released key blocked: %s", err)
	}
	m.Unlock("a")
	m.Unlock("b")
}

func TestKeyMutex_Lock(t *testing.T) {
	m := NewKeyMutex()
	m.Lock("a", "first")
	released := false
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.Lock("a", "second")
		if !released {
			t.Error("lock acquired before release")
		}
		m.Unlock("a")
	}()
	released = true
	m.Unlock("a")
	wg.Wait()
}

func TestKeyMutex_TryLockConcurrent(t *testing.T) {
	m := NewKeyMutex()
	var holders, violations atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20000; j++ {
				if m.TryLock("a", "busy") != nil {
					continue
				}
				if holders.Add(1) != 1 {
					violations.Add(1)
				}
				holders.Add(-1)
				m.Unlock("a")
			}
		}()
	}
	wg.Wait()
	if n := violations.Load(); n != 0 {
		t.Errorf("mutual exclusion violated %d times", n)
	}
}

func TestKeyMutex_UnlockUnknown(t *testing.T) {
	m := NewKeyMutex()
	m.Unlock("unknown")
}
