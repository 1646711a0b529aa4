package limsclient

import (
	"context"
	"net/http"
	"testing"
)

func TestListPermissionsQueryAndDecode(t *testing.T) {
	backend := &recordingBackend{respond: func(string) string {
		return `{"permissions":[` +
			`{"id":"p-1","name":"sample_read","category":"samples","resource":"sample","action":"read","isActive":true},` +
			`{"id":"p-2","name":"sample_create","category":"samples","resource":"sample","action":"create","isActive":false}]}`
	}}
	c := newAdminClient(t, backend)

	perms, err := c.ListPermissions(context.Background(), ListPermissionsParams{
		Category:        "samples",
		IncludeInactive: true,
	})
	if err != nil {
		t.Fatalf("list permissions: %v", err)
	}

	req := backend.last(t)
	if req.Method != http.MethodGet || req.Path != "/permissions" {
		t.Fatalf("request = %s %s", req.Method, req.Path)
	}
	if req.Query.Get("category") != "samples" || req.Query.Get("includeInactive") != "true" {
		t.Fatalf("query = %v", req.Query)
	}
	if req.Query.Has("resource") {
		t.Fatal("unset resource must be omitted from the query")
	}

	if len(perms) != 2 || perms[0].Action != "read" || perms[1].IsActive {
		t.Fatalf("decoded permissions = %+v", perms)
	}
}

func TestPermissionCategories(t *testing.T) {
	backend := &recordingBackend{respond: func(string) string {
		return `{"categories":["samples","reports","administration"]}`
	}}
	c := newAdminClient(t, backend)

	categories, err := c.PermissionCategories(context.Background())
	if err != nil {
		t.Fatalf("categories: %v", err)
	}
	if req := backend.last(t); req.Path != "/permissions/categories" {
		t.Fatalf("path = %s", req.Path)
	}
	if len(categories) != 3 || categories[2] != "administration" {
		t.Fatalf("categories = %v", categories)
	}
}

func TestPermissionCatalogWritePaths(t *testing.T) {
	backend := &recordingBackend{}
	c := newAdminClient(t, backend)
	ctx := context.Background()

	if _, err := c.CreatePermission(ctx, PermissionInput{Name: "report_export", Resource: "report", Action: "export"}); err != nil {
		t.Fatalf("create permission: %v", err)
	}
	req := backend.last(t)
	if req.Method != http.MethodPost || req.Path != "/permissions" {
		t.Fatalf("request = %s %s", req.Method, req.Path)
	}

	if _, err := c.UpdatePermission(ctx, "p-9", PermissionInput{Description: "export reports as PDF"}); err != nil {
		t.Fatalf("update permission: %v", err)
	}
	req = backend.last(t)
	if req.Method != http.MethodPut || req.Path != "/permissions/p-9" {
		t.Fatalf("request = %s %s", req.Method, req.Path)
	}

	if err := c.DeletePermission(ctx, "p-9"); err != nil {
		t.Fatalf("delete permission: %v", err)
	}
	req = backend.last(t)
	if req.Method != http.MethodDelete || req.Path != "/permissions/p-9" {
		t.Fatalf("request = %s %s", req.Method, req.Path)
	}
}
