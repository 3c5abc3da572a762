package scoring

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/fintechlab/riskintel/internal/pagination"
)

// ErrAssessmentNotFound is returned when an assessment ID does not exist.
var ErrAssessmentNotFound = errors.New("assessment not found")

// MemoryStore is an in-memory Store implementation, used when no database
// is configured and in tests.
type MemoryStore struct {
	mu          sync.RWMutex
	assessments map[string]*Assessment
}

// NewMemoryStore creates an empty in-memory assessment store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{assessments: make(map[string]*Assessment)}
}

// Compile-time interface check
var _ Store = (*MemoryStore)(nil)

// Record stores an assessment.
func (m *MemoryStore) Record(ctx context.Context, a *Assessment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.assessments[a.ID] = &cp
	return nil
}

// Get retrieves an assessment by ID.
func (m *MemoryStore) Get(ctx context.Context, id string) (*Assessment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.assessments[id]
	if !ok {
		return nil, ErrAssessmentNotFound
	}
	cp := *a
	return &cp, nil
}

// List returns up to Limit+1 assessments, newest first.
func (m *MemoryStore) List(ctx context.Context, opts ListOptions) ([]*Assessment, error) {
	cursor, err := pagination.Decode(opts.AfterCursor)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	all := make([]*Assessment, 0, len(m.assessments))
	for _, a := range m.assessments {
		if opts.Band != "" && a.RiskBand != opts.Band {
			continue
		}
		if opts.UserID != "" && a.UserID != opts.UserID {
			continue
		}
		cp := *a
		all = append(all, &cp)
	}
	m.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})

	if cursor != nil {
		filtered := all[:0]
		for _, a := range all {
			if a.CreatedAt.Before(cursor.CreatedAt) ||
				(a.CreatedAt.Equal(cursor.CreatedAt) && a.ID < cursor.ID) {
				filtered = append(filtered, a)
			}
		}
		all = filtered
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	if len(all) > limit+1 {
		all = all[:limit+1]
	}
	return all, nil
}
