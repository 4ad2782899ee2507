// Copyright (c) 2026 WSO2 LLC. (https://www.wso2.com).
//
// WSO2 LLC. licenses this file to you under the Apache License,
// Version 2.0 (the "License"); you may not use this file except
// in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/yalansy1989/code128/internal/model"
)

// MemoryStore keeps the issuance log in process memory. It backs local
// development (STORE_DB_TYPE=memory) and tests.
type MemoryStore struct {
	mu       sync.Mutex
	nextID   int64
	labels   []*model.IssuedLabel
	invoices []*model.IssuedInvoice
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: func() time.Time { return time.Now().UTC() }}
}

func (m *MemoryStore) RecordLabel(_ context.Context, l *model.IssuedLabel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	l.ID = m.nextID
	if l.CreatedAt.IsZero() {
		l.CreatedAt = m.now()
	}
	cp := *l
	m.labels = append(m.labels, &cp)
	return nil
}

func (m *MemoryStore) RecordInvoice(_ context.Context, inv *model.IssuedInvoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	inv.ID = m.nextID
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = m.now()
	}
	cp := *inv
	m.invoices = append(m.invoices, &cp)
	return nil
}

func (m *MemoryStore) LabelsSince(_ context.Context, since time.Time, limit int) ([]*model.IssuedLabel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.IssuedLabel
	for _, l := range m.labels {
		if l.CreatedAt.After(since) {
			cp := *l
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) InvoicesSince(_ context.Context, since time.Time, limit int) ([]*model.IssuedInvoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.IssuedInvoice
	for _, inv := range m.invoices {
		if inv.CreatedAt.After(since) {
			cp := *inv
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }
