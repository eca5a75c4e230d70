// Package history persists solved problems per user.
package history

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/p-n-ai/pai-solver/internal/extract"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// ErrNotFound is returned when a record does not exist for the user.
var ErrNotFound = errors.New("history record not found")

// Record is one solved problem.
type Record struct {
	ID          string                       `json:"id"`
	UserID      string                       `json:"userId"`
	Username    string                       `json:"username,omitempty"`
	Question    string                       `json:"question"`
	ParseResult extract.ClassificationRecord `json:"parseResult"`
	Solution    extract.SolutionRecord       `json:"solution"`
	CreatedAt   time.Time                    `json:"createdAt"`
}

// Page is one page of a user's records, newest first.
type Page struct {
	Records []Record `json:"records"`
	Page    int      `json:"page"`
	Limit   int      `json:"limit"`
	Total   int      `json:"total"`
}

// TotalPages returns the number of pages at the page's limit.
func (p Page) TotalPages() int {
	if p.Total <= 0 || p.Limit <= 0 {
		return 0
	}
	return (p.Total + p.Limit - 1) / p.Limit
}

// Store persists history records. Every read and delete is scoped to the
// owning user.
type Store interface {
	Save(ctx context.Context, rec Record) (Record, error)
	List(ctx context.Context, userID string, page, limit int) (Page, error)
	Get(ctx context.Context, userID, id string) (Record, error)
	Delete(ctx context.Context, userID, id string) error
	Clear(ctx context.Context, userID string) error
}

// prepare assigns the ID and timestamp of a new record.
func prepare(rec Record) (Record, error) {
	if rec.UserID == "" {
		return Record{}, fmt.Errorf("user_id is required")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	// Millisecond precision survives every backend unchanged.
	rec.CreatedAt = rec.CreatedAt.UTC().Truncate(time.Millisecond)
	if rec.Solution.Steps == nil {
		rec.Solution.Steps = []string{}
	}
	return rec, nil
}

// bounds clamps paging arguments and returns the row offset.
func bounds(page, limit int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit, (page - 1) * limit
}

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	records map[string]Record
	mu      sync.RWMutex
}

// NewMemoryStore creates a new in-memory history store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
	}
}

func (s *MemoryStore) Save(_ context.Context, rec Record) (Record, error) {
	rec, err := prepare(rec)
	if err != nil {
		return Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = rec
	return rec, nil
}

func (s *MemoryStore) List(_ context.Context, userID string, page, limit int) (Page, error) {
	page, limit, offset := bounds(page, limit)

	s.mu.RLock()
	var owned []Record
	for _, rec := range s.records {
		if rec.UserID == userID {
			owned = append(owned, rec)
		}
	}
	s.mu.RUnlock()

	sort.Slice(owned, func(i, j int) bool {
		if owned[i].CreatedAt.Equal(owned[j].CreatedAt) {
			return owned[i].ID > owned[j].ID
		}
		return owned[i].CreatedAt.After(owned[j].CreatedAt)
	})

	out := Page{Records: []Record{}, Page: page, Limit: limit, Total: len(owned)}
	if offset < len(owned) {
		end := min(offset+limit, len(owned))
		out.Records = slices.Clone(owned[offset:end])
	}
	return out, nil
}

func (s *MemoryStore) Get(_ context.Context, userID, id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok || rec.UserID != userID {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) Delete(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok || rec.UserID != userID {
		return ErrNotFound
	}
	delete(s.records, id)
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, rec := range s.records {
		if rec.UserID == userID {
			delete(s.records, id)
		}
	}
	return nil
}
