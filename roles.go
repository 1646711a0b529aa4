package limsclient

import (
	"context"
	"net/url"
)

// ListRolesParams filters the role listing.
type ListRolesParams struct {
	IncludeInactive bool
	IncludeSystem   bool
	WithPermissions bool
}

func (p ListRolesParams) query() url.Values {
	q := url.Values{}
	if p.IncludeInactive {
		q.Set("includeInactive", "true")
	}
	if p.IncludeSystem {
		q.Set("includeSystem", "true")
	}
	if p.WithPermissions {
		q.Set("withPermissions", "true")
	}
	return q
}

// RoleInput is the create/update payload for a role.
type RoleInput struct {
	Name        string   `json:"name,omitempty"`
	DisplayName string   `json:"displayName,omitempty"`
	Description string   `json:"description,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	IsActive    *bool    `json:"isActive,omitempty"`
}

// ListRoles describes the listroles operation and its observable behavior.
//
// ListRoles may return an error when input validation or dependency calls fail.
func (c *Client) ListRoles(ctx context.Context, params ListRolesParams) ([]Role, error) {
	var resp struct {
		Roles []Role `json:"roles"`
	}
	if err := c.get(ctx, "/roles", params.query(), &resp); err != nil {
		return nil, err
	}
	return resp.Roles, nil
}

// GetRole describes the getrole operation and its observable behavior.
//
// GetRole may return an error when input validation or dependency calls fail.
func (c *Client) GetRole(ctx context.Context, roleID string) (*Role, error) {
	var role Role
	if err := c.get(ctx, "/roles/"+url.PathEscape(roleID), nil, &role); err != nil {
		return nil, err
	}
	return &role, nil
}

// CreateRole describes the createrole operation and its observable behavior.
//
// CreateRole may return an error when input validation or dependency calls fail.
func (c *Client) CreateRole(ctx context.Context, input RoleInput) (*Role, error) {
	if err := c.requireAction(ctx, "create", "role"); err != nil {
		return nil, err
	}
	var role Role
	if err := c.post(ctx, "/roles", input, &role); err != nil {
		return nil, err
	}
	return &role, nil
}

// UpdateRole describes the updaterole operation and its observable behavior.
//
// UpdateRole may return an error when input validation or dependency calls fail.
func (c *Client) UpdateRole(ctx context.Context, roleID string, input RoleInput) (*Role, error) {
	if err := c.requireAction(ctx, "update", "role"); err != nil {
		return nil, err
	}
	var role Role
	if err := c.put(ctx, "/roles/"+url.PathEscape(roleID), input, &role); err != nil {
		return nil, err
	}
	return &role, nil
}

// DeleteRole removes a custom role. System roles are rejected server-side.
func (c *Client) DeleteRole(ctx context.Context, roleID string) error {
	if err := c.requireAction(ctx, "delete", "role"); err != nil {
		return err
	}
	return c.delete(ctx, "/roles/"+url.PathEscape(roleID), nil, nil, nil)
}

// SetRolePermissions replaces the role's permission set wholesale.
func (c *Client) SetRolePermissions(ctx context.Context, roleID string, permissions []string) (*Role, error) {
	if err := c.requireAction(ctx, "update", "role"); err != nil {
		return nil, err
	}
	body := map[string][]string{"permissions": permissions}
	var role Role
	if err := c.put(ctx, "/roles/"+url.PathEscape(roleID)+"/permissions", body, &role); err != nil {
		return nil, err
	}
	return &role, nil
}
