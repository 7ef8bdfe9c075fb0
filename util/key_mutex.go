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
	"errors"
	"sync"
)

// KeyMutex serializes work per key. TryLock fails fast with the reason the
// key is currently held, Lock blocks until the key is free. Items are never
// removed from the map; the key space is bounded by project and repository
// names.
type KeyMutex struct {
	mu    sync.Mutex
	items map[string]*keyItem
}

type keyItem struct {
	mu     sync.Mutex
	reason string
}

func NewKeyMutex() *KeyMutex {
	return &KeyMutex{items: make(map[string]*keyItem)}
}

// TryLock acquires the key or fails with the reason of the current holder.
// The acquisition attempt happens under the map lock, so two callers can
// never hold the same key at once.
func (m *KeyMutex) TryLock(key, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item := m.item(key)
	if !item.mu.TryLock() {
		return errors.New(item.reason)
	}
	item.reason = reason
	return nil
}

func (m *KeyMutex) Lock(key, reason string) {
	m.mu.Lock()
	item := m.item(key)
	m.mu.Unlock()
	item.mu.Lock()
	m.mu.Lock()
	item.reason = reason
	m.mu.Unlock()
}

func (m *KeyMutex) Unlock(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[key]
	if !ok {
		return
	}
	item.reason = ""
	item.mu.Unlock()
}

// caller must hold m.mu
func (m *KeyMutex) item(key string) *keyItem {
	item, ok := m.items[key]
	if !ok {
		item = &keyItem{}
		m.items[key] = item
	}
	return item
}
