// Package billing defines the domain types for cost and usage data
// returned by the upstream cost-management API.
package billing

import "time"

// LineItem is one billed record for a subscription over a period.
// Items are immutable once returned by upstream and never persisted.
type LineItem struct {
	SubscriptionID   int64     `json:"subscription_id"`
	TotalSalesPrice  float64   `json:"total_sales_price"`
	Currency         string    `json:"currency"`
	StartDate        time.Time `json:"start_date"`
	EndDate          time.Time `json:"end_date"`
	InvoiceProfileID int64     `json:"invoice_profile_id"`
}

// Subscription represents a cloud resource subscription.
type Subscription struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	Status           string    `json:"status"`
	Type             string    `json:"type"`
	CreatedDate      time.Time `json:"created_date"`
	InvoiceProfileID int64     `json:"invoice_profile_id"`
}

// TagSet maps tag keys to values for one subscription.
// Keys are unique within a single subscription's tag set.
type TagSet map[string]string

// Invoice is a finalized invoice issued for an invoice profile.
type Invoice struct {
	ID               int64     `json:"id"`
	InvoiceProfileID int64     `json:"invoice_profile_id"`
	Number           string    `json:"number"`
	Date             time.Time `json:"date"`
	Total            float64   `json:"total"`
	Currency         string    `json:"currency"`
}

// StatementPage is one page of billing statements.
type StatementPage struct {
	Items      []LineItem `json:"items"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
	TotalCount int        `json:"total_count"`
}

// SubscriptionPage is one page of subscriptions.
type SubscriptionPage struct {
	Items      []Subscription `json:"items"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
	TotalCount int            `json:"total_count"`
}
