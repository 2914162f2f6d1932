package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/contact-service/internal/api/dto"
	"github.com/spec-kit/contact-service/internal/service"
)

// ContactsHandler manages the caller's contacts.
type ContactsHandler struct {
	service *service.ContactService
}

// NewContactsHandler constructs handler.
func NewContactsHandler(contactService *service.ContactService) *ContactsHandler {
	return &ContactsHandler{service: contactService}
}

// Create POST /Contacts.
func (h *ContactsHandler) Create(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.ContactCreateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	contact, err := h.service.Create(c.UserContext(), principal.User.ID, service.ContactInput{
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		ContactNumber:   req.ContactNumber,
		EmailAddress:    req.EmailAddress,
		DeliveryAddress: req.DeliveryAddress,
		BillingAddress:  req.BillingAddress,
	})
	if err != nil {
		return err
	}
	c.Location("/Contacts/" + contact.ID)
	return c.Status(http.StatusCreated).JSON(dto.NewContactResponse(contact))
}

// List GET /Contacts?search=&page=&pageSize=.
func (h *ContactsHandler) List(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	page, err := h.service.List(c.UserContext(), principal.User.ID, service.ContactListFilter{
		Search:   c.Query("search"),
		Page:     c.QueryInt("page", 1),
		PageSize: c.QueryInt("pageSize", 0),
	})
	if err != nil {
		return err
	}
	items := make([]dto.ContactResponse, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, dto.NewContactResponse(&page.Items[i]))
	}
	return c.JSON(dto.ContactListResponse{
		Items:    items,
		Total:    page.Total,
		Page:     page.Page,
		PageSize: page.PageSize,
	})
}

// Get GET /Contacts/:id.
func (h *ContactsHandler) Get(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	contact, err := h.service.Get(c.UserContext(), principal.User.ID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.NewContactResponse(contact))
}

// Update PUT /Contacts/:id.
func (h *ContactsHandler) Update(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.ContactUpdateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	contact, err := h.service.Update(c.UserContext(), principal.User.ID, c.Params("id"), service.ContactUpdateInput{
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		ContactNumber:   req.ContactNumber,
		EmailAddress:    req.EmailAddress,
		DeliveryAddress: req.DeliveryAddress,
		BillingAddress:  req.BillingAddress,
	})
	if err != nil {
		return err
	}
	return c.JSON(dto.NewContactResponse(contact))
}

// Delete DELETE /Contacts/:id.
func (h *ContactsHandler) Delete(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), principal.User.ID, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
