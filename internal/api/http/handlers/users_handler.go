package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/service"
)

// UsersHandler exposes account management and the caller's own profile.
type UsersHandler struct {
	service *service.UserService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(userService *service.UserService) *UsersHandler {
	return &UsersHandler{service: userService}
}

// Me GET /api/me.
func (h *UsersHandler) Me(c *fiber.Ctx) error {
	user, err := h.service.Me(c.UserContext(), auth.Principal(c))
	if err != nil {
		return err
	}
	return data(c, dto.NewUserResponse(user))
}

// UpdateProfile PATCH /api/me.
func (h *UsersHandler) UpdateProfile(c *fiber.Ctx) error {
	var req dto.UpdateProfileRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	user, err := h.service.UpdateProfile(c.UserContext(), auth.Principal(c), service.ProfileInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return err
	}
	return data(c, dto.NewUserResponse(user))
}

// List GET /api/users.
func (h *UsersHandler) List(c *fiber.Ctx) error {
	users, err := h.service.List(c.UserContext(), auth.Principal(c))
	if err != nil {
		return err
	}
	return data(c, dto.NewUserList(users))
}

// Get GET /api/users/:id.
func (h *UsersHandler) Get(c *fiber.Ctx) error {
	user, err := h.service.Get(c.UserContext(), auth.Principal(c), c.Params("id"))
	if err != nil {
		return err
	}
	return data(c, dto.NewUserResponse(user))
}

// Create POST /api/users.
func (h *UsersHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateUserRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	user, err := h.service.Create(c.UserContext(), auth.Principal(c), service.UserCreateInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		return err
	}
	return created(c, dto.NewUserResponse(user))
}

// Update PATCH /api/users/:id.
func (h *UsersHandler) Update(c *fiber.Ctx) error {
	var req dto.UpdateUserRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	user, err := h.service.Update(c.UserContext(), auth.Principal(c), c.Params("id"), service.UserUpdateInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
		IsActive: req.IsActive,
	})
	if err != nil {
		return err
	}
	return data(c, dto.NewUserResponse(user))
}

// Delete DELETE /api/users/:id.
func (h *UsersHandler) Delete(c *fiber.Ctx) error {
	user, err := h.service.Delete(c.UserContext(), auth.Principal(c), c.Params("id"))
	if err != nil {
		return err
	}
	return data(c, dto.NewUserResponse(user))
}
