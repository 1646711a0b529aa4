package limsclient

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/srclims/limsclient/permission"
)

// AuditLogParams filters and pages the audit trail listing. Zero values
// are omitted from the query; timestamps are sent as RFC 3339.
type AuditLogParams struct {
	Page      int
	Limit     int
	Search    string
	Action    string
	Resource  string
	UserID    string
	Success   *bool
	StartDate time.Time
	EndDate   time.Time
}

func (p AuditLogParams) query() url.Values {
	q := url.Values{}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Search != "" {
		q.Set("search", p.Search)
	}
	if p.Action != "" {
		q.Set("action", p.Action)
	}
	if p.Resource != "" {
		q.Set("resource", p.Resource)
	}
	if p.UserID != "" {
		q.Set("userId", p.UserID)
	}
	if p.Success != nil {
		q.Set("success", strconv.FormatBool(*p.Success))
	}
	if !p.StartDate.IsZero() {
		q.Set("startDate", p.StartDate.Format(time.RFC3339))
	}
	if !p.EndDate.IsZero() {
		q.Set("endDate", p.EndDate.Format(time.RFC3339))
	}
	return q
}

// AuditLogPage is one page of the audit trail.
type AuditLogPage struct {
	Logs       []AuditLogEntry `json:"logs"`
	Pagination Pagination      `json:"pagination"`
}

// AuditFilterOptions lists the distinct values the backend has seen, for
// populating filter dropdowns.
type AuditFilterOptions struct {
	Actions   []string `json:"actions"`
	Resources []string `json:"resources"`
}

// DateRange is a half-open [From, To) interval used by the audit presets.
type DateRange struct {
	From time.Time
	To   time.Time
}

// requireAuditAccess pre-gates audit endpoints locally. Same contract as
// requireAction: no cached profile means the backend decides alone.
func (c *Client) requireAuditAccess(ctx context.Context) error {
	user, err := c.cachedUser(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCredentialStoreUnavailable, err)
	}
	if user == nil || permission.HasAuditAccess(user.Subject()) {
		return nil
	}

	c.metricInc(MetricPermissionDenied)
	c.emit(ctx, EventPermissionDenied, false, "", map[string]string{
		"resource": permission.AuditSentinel,
	})
	return fmt.Errorf("%w: %s", ErrPermissionDenied, permission.AuditSentinel)
}

// ListAuditLogs describes the listauditlogs operation and its observable behavior.
//
// ListAuditLogs may return an error when input validation or dependency calls fail.
func (c *Client) ListAuditLogs(ctx context.Context, params AuditLogParams) (*AuditLogPage, error) {
	if err := c.requireAuditAccess(ctx); err != nil {
		return nil, err
	}
	var page AuditLogPage
	if err := c.get(ctx, "/audit-logs", params.query(), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// AuditLogFilterOptions describes the auditlogfilteroptions operation and its observable behavior.
//
// AuditLogFilterOptions may return an error when input validation or dependency calls fail.
func (c *Client) AuditLogFilterOptions(ctx context.Context) (*AuditFilterOptions, error) {
	if err := c.requireAuditAccess(ctx); err != nil {
		return nil, err
	}
	var opts AuditFilterOptions
	if err := c.get(ctx, "/audit-logs/filter-options", nil, &opts); err != nil {
		return nil, err
	}
	return &opts, nil
}

// AuditDatePresets returns the standard quick-filter ranges relative to
// now, keyed by preset name: today, yesterday, last7days, last30days,
// thismonth, lastmonth. Purely local, no network.
func AuditDatePresets(now time.Time) map[string]DateRange {
	y, m, d := now.Date()
	startOfDay := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	startOfMonth := time.Date(y, m, 1, 0, 0, 0, 0, now.Location())

	return map[string]DateRange{
		"today":      {From: startOfDay, To: startOfDay.AddDate(0, 0, 1)},
		"yesterday":  {From: startOfDay.AddDate(0, 0, -1), To: startOfDay},
		"last7days":  {From: startOfDay.AddDate(0, 0, -6), To: startOfDay.AddDate(0, 0, 1)},
		"last30days": {From: startOfDay.AddDate(0, 0, -29), To: startOfDay.AddDate(0, 0, 1)},
		"thismonth":  {From: startOfMonth, To: startOfMonth.AddDate(0, 1, 0)},
		"lastmonth":  {From: startOfMonth.AddDate(0, -1, 0), To: startOfMonth},
	}
}
