package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/mesh-intelligence/holdwatch/pkg/types"
)

// memStore is an in-memory types.Store for reconciler tests. It records
// every mutating call and can be told to fail a given operation.
type memStore struct {
	mu      sync.Mutex
	seq     int
	records map[string]map[string]types.BookRecord // family -> doc ID -> record
	order   []string
	calls   []string
	failOn  string // "list", "insert", "delete" or "update"
	failErr error
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]map[string]types.BookRecord)}
}

var errInjected = errors.New("injected failure")

func (m *memStore) fail(op string) error {
	if m.failOn == op {
		if m.failErr != nil {
			return m.failErr
		}
		return errInjected
	}
	return nil
}

func (m *memStore) ListByStatus(_ context.Context, familyID string, status types.Status) ([]types.BookRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "list:"+string(status))
	if err := m.fail("list"); err != nil {
		return nil, err
	}
	var out []types.BookRecord
	for _, id := range m.order {
		rec, ok := m.records[familyID][id]
		if ok && rec.Status == status {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memStore) Insert(_ context.Context, familyID string, rec types.BookRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "insert:"+rec.Title)
	if err := m.fail("insert"); err != nil {
		return "", err
	}
	if err := rec.Validate(); err != nil {
		return "", err
	}
	m.seq++
	rec.DocID = fmt.Sprintf("doc-%03d", m.seq)
	rec.FamilyID = familyID
	if m.records[familyID] == nil {
		m.records[familyID] = make(map[string]types.BookRecord)
	}
	m.records[familyID][rec.DocID] = rec
	m.order = append(m.order, rec.DocID)
	return rec.DocID, nil
}

func (m *memStore) Delete(_ context.Context, familyID, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "delete:"+docID)
	if err := m.fail("delete"); err != nil {
		return err
	}
	if _, ok := m.records[familyID][docID]; !ok {
		return types.ErrNotFound
	}
	delete(m.records[familyID], docID)
	m.order = slices.DeleteFunc(m.order, func(id string) bool { return id == docID })
	return nil
}

func (m *memStore) Update(_ context.Context, familyID, docID string, u types.BookUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "update:"+docID)
	if err := m.fail("update"); err != nil {
		return err
	}
	rec, ok := m.records[familyID][docID]
	if !ok {
		return types.ErrNotFound
	}
	rec.Apply(u)
	m.records[familyID][docID] = rec
	return nil
}

func (m *memStore) Close() error { return nil }

// seed inserts a record directly in the given status.
func (m *memStore) seed(familyID, title string, status types.Status, branch string) string {
	id, err := m.Insert(context.Background(), familyID, types.BookRecord{
		Title:  title,
		Author: "Author of " + title,
		Status: status,
		Branch: branch,
	})
	if err != nil {
		panic(err)
	}
	m.calls = nil
	return id
}

func (m *memStore) get(familyID, docID string) (types.BookRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[familyID][docID]
	return rec, ok
}

func (m *memStore) byStatus(familyID string, status types.Status) []types.BookRecord {
	recs, _ := m.ListByStatus(context.Background(), familyID, status)
	return recs
}

func (m *memStore) mutations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, c := range m.calls {
		if len(c) >= 5 && c[:5] == "list:" {
			continue
		}
		out = append(out, c)
	}
	return out
}

// replacingStore adds a transactional ReplaceRecommended to memStore.
type replacingStore struct {
	*memStore
	replaced int
}

func (r *replacingStore) ReplaceRecommended(ctx context.Context, familyID string, recs []types.BookRecord) (int, []string, error) {
	r.replaced++
	stale := r.byStatus(familyID, types.StatusRecommended)
	for _, rec := range stale {
		if err := r.Delete(ctx, familyID, rec.DocID); err != nil {
			return 0, nil, err
		}
	}
	var ids []string
	for _, rec := range recs {
		id, err := r.Insert(ctx, familyID, rec)
		if err != nil {
			return 0, nil, err
		}
		ids = append(ids, id)
	}
	return len(stale), ids, nil
}
