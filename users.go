package limsclient

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/srclims/limsclient/permission"
)

// requireAction is the local pre-gate for mutating admin calls: when a
// cached profile exists and the evaluator already denies the action, no
// network call is attempted. With no cached profile the backend decides
// alone — it is authoritative either way.
func (c *Client) requireAction(ctx context.Context, action, resource string) error {
	user, err := c.cachedUser(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCredentialStoreUnavailable, err)
	}
	if user == nil {
		return nil
	}
	if permission.CanPerformAction(user.Subject(), action, resource) {
		return nil
	}

	c.metricInc(MetricPermissionDenied)
	c.emit(ctx, EventPermissionDenied, false, "", map[string]string{
		"action":   action,
		"resource": resource,
	})
	return fmt.Errorf("%w: %s %s", ErrPermissionDenied, action, resource)
}

// ListUsersParams filters and pages the user listing. Zero values are
// omitted from the query.
type ListUsersParams struct {
	Search    string
	Role      string
	Status    string
	Page      int
	Limit     int
	SortBy    string
	SortOrder string
}

func (p ListUsersParams) query() url.Values {
	q := url.Values{}
	if p.Search != "" {
		q.Set("search", p.Search)
	}
	if p.Role != "" {
		q.Set("role", p.Role)
	}
	if p.Status != "" {
		q.Set("status", p.Status)
	}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.SortBy != "" {
		q.Set("sortBy", p.SortBy)
	}
	if p.SortOrder != "" {
		q.Set("sortOrder", p.SortOrder)
	}
	return q
}

// UserPage is one page of the user listing.
type UserPage struct {
	Users      []User     `json:"users"`
	Pagination Pagination `json:"pagination"`
}

// UserInput is the create/update payload for a user account. Password is
// only consumed on create; pointer fields distinguish "leave unchanged"
// from explicit zero values on update.
type UserInput struct {
	Username  string  `json:"username,omitempty"`
	Email     string  `json:"email,omitempty"`
	FirstName string  `json:"firstName,omitempty"`
	LastName  string  `json:"lastName,omitempty"`
	Password  string  `json:"password,omitempty"`
	Role      string  `json:"role,omitempty"`
	IsActive  *bool   `json:"isActive,omitempty"`
	Remarks   *string `json:"remarks,omitempty"`
}

// OverrideInput is the grant/deny payload for a permission override.
type OverrideInput struct {
	PermissionID string     `json:"permissionId"`
	Reason       string     `json:"reason,omitempty"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
}

// ResetPasswordResult carries the temporary password issued by the backend.
type ResetPasswordResult struct {
	TemporaryPassword string `json:"temporaryPassword"`
}

// ListUsers describes the listusers operation and its observable behavior.
//
// ListUsers may return an error when input validation or dependency calls fail.
func (c *Client) ListUsers(ctx context.Context, params ListUsersParams) (*UserPage, error) {
	var page UserPage
	if err := c.get(ctx, "/users", params.query(), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetUser describes the getuser operation and its observable behavior.
//
// GetUser may return an error when input validation or dependency calls fail.
func (c *Client) GetUser(ctx context.Context, userID string) (*User, error) {
	var user User
	if err := c.get(ctx, "/users/"+url.PathEscape(userID), nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateUser describes the createuser operation and its observable behavior.
//
// CreateUser may return an error when input validation or dependency calls fail.
func (c *Client) CreateUser(ctx context.Context, input UserInput) (*User, error) {
	if err := c.requireAction(ctx, "create", "user"); err != nil {
		return nil, err
	}
	var user User
	if err := c.post(ctx, "/users", input, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUser describes the updateuser operation and its observable behavior.
//
// UpdateUser may return an error when input validation or dependency calls fail.
func (c *Client) UpdateUser(ctx context.Context, userID string, input UserInput) (*User, error) {
	if err := c.requireAction(ctx, "update", "user"); err != nil {
		return nil, err
	}
	var user User
	if err := c.put(ctx, "/users/"+url.PathEscape(userID), input, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// DeleteUser soft-deletes the account server-side.
func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	if err := c.requireAction(ctx, "delete", "user"); err != nil {
		return err
	}
	return c.delete(ctx, "/users/"+url.PathEscape(userID), nil, nil, nil)
}

// ActivateUser describes the activateuser operation and its observable behavior.
//
// ActivateUser may return an error when input validation or dependency calls fail.
func (c *Client) ActivateUser(ctx context.Context, userID string) error {
	if err := c.requireAction(ctx, "update", "user"); err != nil {
		return err
	}
	return c.put(ctx, "/users/"+url.PathEscape(userID)+"/activate", nil, nil)
}

// DeactivateUser describes the deactivateuser operation and its observable behavior.
//
// DeactivateUser may return an error when input validation or dependency calls fail.
func (c *Client) DeactivateUser(ctx context.Context, userID string) error {
	if err := c.requireAction(ctx, "update", "user"); err != nil {
		return err
	}
	return c.put(ctx, "/users/"+url.PathEscape(userID)+"/deactivate", nil, nil)
}

// ResetUserPassword asks the backend to issue a temporary password for the
// account.
func (c *Client) ResetUserPassword(ctx context.Context, userID string) (*ResetPasswordResult, error) {
	if err := c.requireAction(ctx, "update", "user"); err != nil {
		return nil, err
	}
	var result ResetPasswordResult
	if err := c.post(ctx, "/users/"+url.PathEscape(userID)+"/reset-password", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AssignableRoles lists the role names an administrator may assign.
func (c *Client) AssignableRoles(ctx context.Context) ([]string, error) {
	var resp struct {
		Roles []string `json:"roles"`
	}
	if err := c.get(ctx, "/users/roles", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Roles, nil
}

// UserPermissions returns the flat permission name list for one user.
func (c *Client) UserPermissions(ctx context.Context, userID string) ([]string, error) {
	var resp struct {
		Permissions []string `json:"permissions"`
	}
	if err := c.get(ctx, "/users/"+url.PathEscape(userID)+"/permissions", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Permissions, nil
}

// UserEffectivePermissions returns the server-resolved permission set with
// the raw override records for administrative display, expired ones
// included.
func (c *Client) UserEffectivePermissions(ctx context.Context, userID string) (*EffectivePermissions, error) {
	var eff EffectivePermissions
	if err := c.get(ctx, "/users/"+url.PathEscape(userID)+"/effective-permissions", nil, &eff); err != nil {
		return nil, err
	}
	return &eff, nil
}

// GrantPermission creates a grant override for the user.
func (c *Client) GrantPermission(ctx context.Context, userID string, input OverrideInput) (*PermissionOverride, error) {
	if err := c.requireAction(ctx, "update", "user"); err != nil {
		return nil, err
	}
	var override PermissionOverride
	if err := c.post(ctx, "/users/"+url.PathEscape(userID)+"/permissions/grant", input, &override); err != nil {
		return nil, err
	}
	return &override, nil
}

// DenyPermission creates a deny override for the user. When both an active
// grant and an active deny exist for the same pair, the backend lets the
// deny win; the client never has to break that tie.
func (c *Client) DenyPermission(ctx context.Context, userID string, input OverrideInput) (*PermissionOverride, error) {
	if err := c.requireAction(ctx, "update", "user"); err != nil {
		return nil, err
	}
	var override PermissionOverride
	if err := c.post(ctx, "/users/"+url.PathEscape(userID)+"/permissions/deny", input, &override); err != nil {
		return nil, err
	}
	return &override, nil
}

// RemovePermissionOverride deletes one override, reverting that permission
// to its role-derived default.
func (c *Client) RemovePermissionOverride(ctx context.Context, userID, permissionID string, kind OverrideKind) error {
	if err := c.requireAction(ctx, "update", "user"); err != nil {
		return err
	}
	q := url.Values{}
	q.Set("type", string(kind))
	path := "/users/" + url.PathEscape(userID) + "/permissions/" + url.PathEscape(permissionID)
	return c.delete(ctx, path, q, nil, nil)
}

// SetCustomRole assigns a custom role to the user in place of a built-in
// one.
func (c *Client) SetCustomRole(ctx context.Context, userID, customRoleID string) error {
	if err := c.requireAction(ctx, "update", "user"); err != nil {
		return err
	}
	body := map[string]string{"customRoleId": customRoleID}
	return c.put(ctx, "/users/"+url.PathEscape(userID)+"/role/custom", body, nil)
}

// ClearCustomRole removes the user's custom role assignment.
func (c *Client) ClearCustomRole(ctx context.Context, userID string) error {
	if err := c.requireAction(ctx, "update", "user"); err != nil {
		return err
	}
	return c.delete(ctx, "/users/"+url.PathEscape(userID)+"/role/custom", nil, nil, nil)
}

type bulkUserRequest struct {
	UserIDs []string  `json:"userIds"`
	Updates UserInput `json:"updates,omitempty"`
}

// BulkUpdateUsers applies the same update to every listed user.
func (c *Client) BulkUpdateUsers(ctx context.Context, userIDs []string, updates UserInput) error {
	if err := c.requireAction(ctx, "update", "user"); err != nil {
		return err
	}
	return c.patch(ctx, "/users/bulk", bulkUserRequest{UserIDs: userIDs, Updates: updates}, nil)
}

// BulkDeleteUsers soft-deletes every listed user.
func (c *Client) BulkDeleteUsers(ctx context.Context, userIDs []string) error {
	if err := c.requireAction(ctx, "delete", "user"); err != nil {
		return err
	}
	return c.delete(ctx, "/users/bulk", nil, bulkUserRequest{UserIDs: userIDs}, nil)
}
