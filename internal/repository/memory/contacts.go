package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/contact-service/internal/domain"
	"github.com/spec-kit/contact-service/internal/repository"
)

// Contacts is an in-memory ContactRepository.
type Contacts struct {
	mu   sync.RWMutex
	byID map[string]domain.Contact
}

// NewContacts returns an empty store.
func NewContacts() *Contacts {
	return &Contacts{byID: make(map[string]domain.Contact)}
}

var _ repository.ContactRepository = (*Contacts)(nil)

func (s *Contacts) Create(_ context.Context, contact *domain.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	contact.ID = uuid.NewString()
	contact.CreatedAt = now
	contact.UpdatedAt = now
	s.byID[contact.ID] = *contact
	return nil
}

func (s *Contacts) Update(_ context.Context, contact *domain.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byID[contact.ID]
	if !ok || existing.UserID != contact.UserID {
		return repository.ErrNotFound
	}
	contact.CreatedAt = existing.CreatedAt
	contact.UpdatedAt = time.Now().UTC()
	s.byID[contact.ID] = *contact
	return nil
}

func (s *Contacts) Delete(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byID[id]
	if !ok || existing.UserID != userID {
		return repository.ErrNotFound
	}
	delete(s.byID, id)
	return nil
}

func (s *Contacts) GetByID(_ context.Context, userID, id string) (*domain.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	contact, ok := s.byID[id]
	if !ok || contact.UserID != userID {
		return nil, repository.ErrNotFound
	}
	return &contact, nil
}

func (s *Contacts) List(_ context.Context, filter repository.ContactFilter) ([]domain.Contact, int, error) {
	s.mu.RLock()
	term := strings.ToLower(strings.TrimSpace(filter.SearchTerm))
	matched := []domain.Contact{}
	for _, c := range s.byID {
		if c.UserID != filter.UserID {
			continue
		}
		if term != "" && !contactMatches(c, term) {
			continue
		}
		matched = append(matched, c)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if a.LastName != b.LastName {
			return a.LastName < b.LastName
		}
		if a.FirstName != b.FirstName {
			return a.FirstName < b.FirstName
		}
		return a.ID < b.ID
	})

	total := len(matched)
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []domain.Contact{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func contactMatches(c domain.Contact, term string) bool {
	return strings.Contains(strings.ToLower(c.FirstName), term) ||
		strings.Contains(strings.ToLower(c.LastName), term) ||
		strings.Contains(strings.ToLower(c.EmailAddress), term) ||
		strings.Contains(c.ContactNumber, term)
}
