package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/costscope/costscope/internal/domain"
	"github.com/costscope/costscope/internal/domain/billing"
)

// Upstream wire shapes. The API uses camelCase field names and ISO-8601
// dates; domain types are mapped explicitly so wire drift stays local.

type lineItemDTO struct {
	SubscriptionID   int64   `json:"subscriptionId"`
	TotalSalesPrice  float64 `json:"totalSalesPrice"`
	Currency         string  `json:"currency"`
	StartDate        string  `json:"startDate"`
	EndDate          string  `json:"endDate"`
	InvoiceProfileID int64   `json:"invoiceProfileId"`
}

type subscriptionDTO struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	Status           string `json:"status"`
	Type             string `json:"type"`
	CreatedDate      string `json:"createdDate"`
	InvoiceProfileID int64  `json:"invoiceProfileId"`
}

type invoiceDTO struct {
	ID               int64   `json:"id"`
	InvoiceProfileID int64   `json:"invoiceProfileId"`
	Number           string  `json:"number"`
	Date             string  `json:"date"`
	Total            float64 `json:"total"`
	Currency         string  `json:"currency"`
}

type pageDTO[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalCount int `json:"totalCount"`
}

func parseDate(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func (d lineItemDTO) toDomain() billing.LineItem {
	return billing.LineItem{
		SubscriptionID:   d.SubscriptionID,
		TotalSalesPrice:  d.TotalSalesPrice,
		Currency:         d.Currency,
		StartDate:        parseDate(d.StartDate),
		EndDate:          parseDate(d.EndDate),
		InvoiceProfileID: d.InvoiceProfileID,
	}
}

func (d subscriptionDTO) toDomain() billing.Subscription {
	return billing.Subscription{
		ID:               d.ID,
		Name:             d.Name,
		Status:           d.Status,
		Type:             d.Type,
		CreatedDate:      parseDate(d.CreatedDate),
		InvoiceProfileID: d.InvoiceProfileID,
	}
}

func (d invoiceDTO) toDomain() billing.Invoice {
	return billing.Invoice{
		ID:               d.ID,
		InvoiceProfileID: d.InvoiceProfileID,
		Number:           d.Number,
		Date:             parseDate(d.Date),
		Total:            d.Total,
		Currency:         d.Currency,
	}
}

// GetBillingStatements returns one page of billing statements.
func (c *Client) GetBillingStatements(ctx context.Context, orgID int64, page, pageSize int) (*billing.StatementPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("pageSize", strconv.Itoa(pageSize))

	var dto pageDTO[lineItemDTO]
	path := fmt.Sprintf("/organizations/%d/billingstatements", orgID)
	if err := c.doGet(ctx, path, q, &dto); err != nil {
		return nil, fmt.Errorf("billing statements: %w", err)
	}

	out := &billing.StatementPage{
		Items:      make([]billing.LineItem, 0, len(dto.Items)),
		Page:       dto.Page,
		PageSize:   dto.PageSize,
		TotalCount: dto.TotalCount,
	}
	for _, it := range dto.Items {
		out.Items = append(out.Items, it.toDomain())
	}
	return out, nil
}

// GetGroupedStatements returns all line items for a period, grouped by
// subscription. The start boundary is snapped to the first calendar day of
// the starting month so periods straddling month boundaries are fully
// included. This is deliberate policy, not an artifact.
func (c *Client) GetGroupedStatements(ctx context.Context, orgID int64, period billing.Period) ([]billing.LineItem, error) {
	q := url.Values{}
	q.Set("startDate", billing.MonthStart(period.Start).Format(time.RFC3339))
	q.Set("endDate", period.End.Format(time.RFC3339))
	q.Set("grouped", "true")

	var dto struct {
		Items []lineItemDTO `json:"items"`
	}
	path := fmt.Sprintf("/organizations/%d/billingstatements/grouped", orgID)
	if err := c.doGet(ctx, path, q, &dto); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// No plan provisioned for this tenant: empty, not an error.
			return nil, nil
		}
		return nil, fmt.Errorf("grouped statements: %w", err)
	}

	items := make([]billing.LineItem, 0, len(dto.Items))
	for _, it := range dto.Items {
		items = append(items, it.toDomain())
	}
	return items, nil
}

// GetSubscriptions returns one page of subscriptions.
func (c *Client) GetSubscriptions(ctx context.Context, orgID int64, page, pageSize int) (*billing.SubscriptionPage, error) {
	key := fmt.Sprintf("subs:%d:%d:%d", orgID, page, pageSize)
	if cached, ok := c.cacheGet(ctx, key); ok {
		var out billing.SubscriptionPage
		if json.Unmarshal(cached, &out) == nil {
			return &out, nil
		}
	}

	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("pageSize", strconv.Itoa(pageSize))

	var dto pageDTO[subscriptionDTO]
	path := fmt.Sprintf("/organizations/%d/subscriptions", orgID)
	if err := c.doGet(ctx, path, q, &dto); err != nil {
		return nil, fmt.Errorf("subscriptions: %w", err)
	}

	out := &billing.SubscriptionPage{
		Items:      make([]billing.Subscription, 0, len(dto.Items)),
		Page:       dto.Page,
		PageSize:   dto.PageSize,
		TotalCount: dto.TotalCount,
	}
	for _, s := range dto.Items {
		out.Items = append(out.Items, s.toDomain())
	}
	c.cacheSet(ctx, key, out)
	return out, nil
}

// ListAllSubscriptions walks every subscription page.
func (c *Client) ListAllSubscriptions(ctx context.Context, orgID int64) ([]billing.Subscription, error) {
	var all []billing.Subscription
	for page := 1; ; page++ {
		p, err := c.GetSubscriptions(ctx, orgID, page, c.pageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, p.Items...)
		if len(p.Items) == 0 || len(all) >= p.TotalCount {
			break
		}
	}
	return all, nil
}

// GetSubscriptionTags returns the tag set of one subscription.
// A 404 means the tenant has no tag resource for it: empty set, no error.
func (c *Client) GetSubscriptionTags(ctx context.Context, subscriptionID int64) (billing.TagSet, error) {
	key := fmt.Sprintf("tags:%d", subscriptionID)
	if cached, ok := c.cacheGet(ctx, key); ok {
		var out billing.TagSet
		if json.Unmarshal(cached, &out) == nil {
			return out, nil
		}
	}

	var dto struct {
		Tags map[string]string `json:"tags"`
	}
	path := fmt.Sprintf("/subscriptions/%d/tags", subscriptionID)
	if err := c.doGet(ctx, path, nil, &dto); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return billing.TagSet{}, nil
		}
		return nil, fmt.Errorf("subscription tags: %w", err)
	}

	tags := billing.TagSet(dto.Tags)
	if tags == nil {
		tags = billing.TagSet{}
	}
	c.cacheSet(ctx, key, tags)
	return tags, nil
}

// UpdateSubscriptionTags replaces the full tag set of a subscription and
// invalidates its cache entry.
func (c *Client) UpdateSubscriptionTags(ctx context.Context, subscriptionID int64, tags billing.TagSet) error {
	path := fmt.Sprintf("/subscriptions/%d/tags", subscriptionID)
	body := struct {
		Tags map[string]string `json:"tags"`
	}{Tags: tags}

	if err := c.doPut(ctx, path, body); err != nil {
		return fmt.Errorf("update subscription tags: %w", err)
	}
	if c.cache != nil {
		_ = c.cache.Delete(ctx, fmt.Sprintf("tags:%d", subscriptionID))
	}
	return nil
}

// GetInvoices returns invoices for an organization, most recent first.
// A tenant without invoicing enabled yields an empty list.
func (c *Client) GetInvoices(ctx context.Context, orgID int64) ([]billing.Invoice, error) {
	var dto struct {
		Items []invoiceDTO `json:"items"`
	}
	path := fmt.Sprintf("/organizations/%d/invoices", orgID)
	if err := c.doGet(ctx, path, nil, &dto); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("invoices: %w", err)
	}

	invoices := make([]billing.Invoice, 0, len(dto.Items))
	for _, inv := range dto.Items {
		invoices = append(invoices, inv.toDomain())
	}
	return invoices, nil
}

func (c *Client) cacheGet(ctx context.Context, key string) ([]byte, bool) {
	if c.cache == nil {
		return nil, false
	}
	data, ok, err := c.cache.Get(ctx, key)
	if err != nil || !ok {
		return nil, false
	}
	return data, true
}

func (c *Client) cacheSet(ctx context.Context, key string, value any) {
	if c.cache == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = c.cache.Set(ctx, key, data, c.cacheTTL)
}
