package limsclient

import (
	"context"
	"net/url"
)

// ListPermissionsParams filters the permission catalog listing.
type ListPermissionsParams struct {
	Category        string
	Resource        string
	IncludeInactive bool
}

func (p ListPermissionsParams) query() url.Values {
	q := url.Values{}
	if p.Category != "" {
		q.Set("category", p.Category)
	}
	if p.Resource != "" {
		q.Set("resource", p.Resource)
	}
	if p.IncludeInactive {
		q.Set("includeInactive", "true")
	}
	return q
}

// PermissionInput is the create/update payload for a catalog permission.
type PermissionInput struct {
	Name        string `json:"name,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	Resource    string `json:"resource,omitempty"`
	Action      string `json:"action,omitempty"`
	IsActive    *bool  `json:"isActive,omitempty"`
}

// ListPermissions describes the listpermissions operation and its observable behavior.
//
// ListPermissions may return an error when input validation or dependency calls fail.
func (c *Client) ListPermissions(ctx context.Context, params ListPermissionsParams) ([]Permission, error) {
	var resp struct {
		Permissions []Permission `json:"permissions"`
	}
	if err := c.get(ctx, "/permissions", params.query(), &resp); err != nil {
		return nil, err
	}
	return resp.Permissions, nil
}

// PermissionCategories lists the distinct categories of the catalog.
func (c *Client) PermissionCategories(ctx context.Context) ([]string, error) {
	var resp struct {
		Categories []string `json:"categories"`
	}
	if err := c.get(ctx, "/permissions/categories", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Categories, nil
}

// GetPermission describes the getpermission operation and its observable behavior.
//
// GetPermission may return an error when input validation or dependency calls fail.
func (c *Client) GetPermission(ctx context.Context, permissionID string) (*Permission, error) {
	var perm Permission
	if err := c.get(ctx, "/permissions/"+url.PathEscape(permissionID), nil, &perm); err != nil {
		return nil, err
	}
	return &perm, nil
}

// CreatePermission describes the createpermission operation and its observable behavior.
//
// CreatePermission may return an error when input validation or dependency calls fail.
func (c *Client) CreatePermission(ctx context.Context, input PermissionInput) (*Permission, error) {
	if err := c.requireAction(ctx, "create", "permission"); err != nil {
		return nil, err
	}
	var perm Permission
	if err := c.post(ctx, "/permissions", input, &perm); err != nil {
		return nil, err
	}
	return &perm, nil
}

// UpdatePermission describes the updatepermission operation and its observable behavior.
//
// UpdatePermission may return an error when input validation or dependency calls fail.
func (c *Client) UpdatePermission(ctx context.Context, permissionID string, input PermissionInput) (*Permission, error) {
	if err := c.requireAction(ctx, "update", "permission"); err != nil {
		return nil, err
	}
	var perm Permission
	if err := c.put(ctx, "/permissions/"+url.PathEscape(permissionID), input, &perm); err != nil {
		return nil, err
	}
	return &perm, nil
}

// DeletePermission removes a catalog permission. Permissions still
// referenced by roles are rejected server-side.
func (c *Client) DeletePermission(ctx context.Context, permissionID string) error {
	if err := c.requireAction(ctx, "delete", "permission"); err != nil {
		return err
	}
	return c.delete(ctx, "/permissions/"+url.PathEscape(permissionID), nil, nil, nil)
}
