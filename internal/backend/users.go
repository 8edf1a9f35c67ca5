package backend

import (
	"context"
	"errors"
	"net/http"

	"mri-console/internal/schemas"
)

// DefaultRole is assigned when a create request leaves the role empty.
const DefaultRole = "user"

var ErrMissingUserFields = errors.New("email, full_name and password are required")

func userPath(id string) string {
	return "/users/" + id
}

func (c *Client) CreateUser(ctx context.Context, in schemas.CreateUserRequest) (schemas.User, error) {
	var out schemas.User
	if in.Email == "" || in.FullName == "" || in.Password == "" {
		return out, ErrMissingUserFields
	}
	if in.Role == "" {
		in.Role = DefaultRole
	}
	err := c.sendJSON(ctx, http.MethodPost, "/users", in, "failed to create user", &out)
	return out, err
}

func (c *Client) ListUsers(ctx context.Context) ([]schemas.User, error) {
	var out []schemas.User
	err := c.getJSON(ctx, "/users", nil, "failed to fetch users", &out)
	return out, err
}

func (c *Client) GetUser(ctx context.Context, id string) (schemas.User, error) {
	var out schemas.User
	err := c.getJSON(ctx, userPath(id), nil, "failed to fetch user", &out)
	return out, err
}

func (c *Client) UpdateUser(ctx context.Context, id string, in schemas.UpdateUserRequest) (schemas.User, error) {
	var out schemas.User
	err := c.sendJSON(ctx, http.MethodPut, userPath(id), in, "failed to update user", &out)
	return out, err
}

func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.sendJSON(ctx, http.MethodDelete, userPath(id), nil, "failed to delete user", nil)
}
