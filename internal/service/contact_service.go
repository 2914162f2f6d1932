package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/contact-service/internal/domain"
	"github.com/spec-kit/contact-service/internal/events"
	"github.com/spec-kit/contact-service/internal/repository"
	apperrors "github.com/spec-kit/contact-service/pkg/util"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
	// keeps (page-1)*size far from int overflow
	maxPage = 1_000_000
)

// ContactService manages a user's address book.
type ContactService struct {
	contacts   repository.ContactRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// ContactDependencies bundles requirements for the contact service.
type ContactDependencies struct {
	ContactRepo repository.ContactRepository
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// ContactInput describes a full contact.
type ContactInput struct {
	FirstName       string
	LastName        string
	ContactNumber   string
	EmailAddress    string
	DeliveryAddress string
	BillingAddress  string
}

// ContactUpdateInput holds optional overwrites. Nil keeps the stored value.
type ContactUpdateInput struct {
	FirstName       *string
	LastName        *string
	ContactNumber   *string
	EmailAddress    *string
	DeliveryAddress *string
	BillingAddress  *string
}

// ContactListFilter describes a page request. Page is 1-based.
type ContactListFilter struct {
	Search   string
	Page     int
	PageSize int
}

// ContactPage is one page of contacts plus the total match count.
type ContactPage struct {
	Items    []domain.Contact
	Total    int
	Page     int
	PageSize int
}

// NewContactService constructs the service.
func NewContactService(deps ContactDependencies) *ContactService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContactService{
		contacts:   deps.ContactRepo,
		dispatcher: deps.Dispatcher,
		logger:     logger.Named("contacts"),
	}
}

// Create stores a new contact owned by userID.
func (s *ContactService) Create(ctx context.Context, userID string, in ContactInput) (*domain.Contact, error) {
	contact := &domain.Contact{
		UserID:          userID,
		FirstName:       strings.TrimSpace(in.FirstName),
		LastName:        strings.TrimSpace(in.LastName),
		ContactNumber:   strings.TrimSpace(in.ContactNumber),
		EmailAddress:    strings.TrimSpace(in.EmailAddress),
		DeliveryAddress: strings.TrimSpace(in.DeliveryAddress),
		BillingAddress:  strings.TrimSpace(in.BillingAddress),
	}
	if err := validateContact(contact); err != nil {
		return nil, err
	}
	if err := s.contacts.Create(ctx, contact); err != nil {
		return nil, s.mapError("create_contact", err)
	}
	s.publish(ctx, events.EventContactCreated, userID, contact.ID)
	return contact, nil
}

// List returns one page of the caller's contacts, optionally filtered by a search term.
func (s *ContactService) List(ctx context.Context, userID string, filter ContactListFilter) (*ContactPage, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	if page > maxPage {
		page = maxPage
	}
	size := filter.PageSize
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	items, total, err := s.contacts.List(ctx, repository.ContactFilter{
		UserID:     userID,
		SearchTerm: filter.Search,
		Limit:      size,
		Offset:     (page - 1) * size,
	})
	if err != nil {
		return nil, s.mapError("list_contacts", err)
	}
	return &ContactPage{Items: items, Total: total, Page: page, PageSize: size}, nil
}

// Get returns a single contact. Contacts of other users are reported as not found.
func (s *ContactService) Get(ctx context.Context, userID, id string) (*domain.Contact, error) {
	contact, err := s.contacts.GetByID(ctx, userID, id)
	if err != nil {
		return nil, s.mapError("get_contact", err)
	}
	return contact, nil
}

// Update applies the provided fields to an existing contact.
func (s *ContactService) Update(ctx context.Context, userID, id string, in ContactUpdateInput) (*domain.Contact, error) {
	contact, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	overwrite(&contact.FirstName, in.FirstName)
	overwrite(&contact.LastName, in.LastName)
	overwrite(&contact.ContactNumber, in.ContactNumber)
	overwrite(&contact.EmailAddress, in.EmailAddress)
	overwrite(&contact.DeliveryAddress, in.DeliveryAddress)
	overwrite(&contact.BillingAddress, in.BillingAddress)

	if err := validateContact(contact); err != nil {
		return nil, err
	}
	if err := s.contacts.Update(ctx, contact); err != nil {
		return nil, s.mapError("update_contact", err)
	}
	s.publish(ctx, events.EventContactUpdated, userID, contact.ID)
	return contact, nil
}

// Delete removes a contact.
func (s *ContactService) Delete(ctx context.Context, userID, id string) error {
	if err := s.contacts.Delete(ctx, userID, id); err != nil {
		return s.mapError("delete_contact", err)
	}
	s.publish(ctx, events.EventContactDeleted, userID, id)
	return nil
}

func overwrite(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func validateContact(c *domain.Contact) error {
	if c.FirstName == "" && c.LastName == "" {
		return apperrors.NewValidationError("Validation failed.", map[string]string{
			"firstName": "first or last name is required",
			"lastName":  "first or last name is required",
		})
	}
	return nil
}

func (s *ContactService) mapError(operation string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound("Contact")
	}
	if errors.Is(err, repository.ErrUnknownUser) {
		return ErrUnknownIdentity
	}
	s.logger.Error("contact operation failed", zap.String("operation", operation), zap.Error(err))
	return apperrors.NewInternalError(err)
}

func (s *ContactService) publish(ctx context.Context, eventType events.EventType, userID, contactID string) {
	if s.dispatcher == nil {
		return
	}
	event := events.NewEvent(eventType, userID, events.ContactPayload{ContactID: contactID})
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("audit publish failed", zap.String("event", string(eventType)), zap.Error(err))
	}
}
