// Package costapi defines the port interface over the upstream
// cost-management REST API. The analytics engine depends on this interface
// so aggregations can be tested against in-memory fakes.
package costapi

import (
	"context"

	"github.com/costscope/costscope/internal/domain/billing"
)

// Client is the set of typed fetch operations the upstream API provides.
// All operations are idempotent GETs except UpdateSubscriptionTags, which
// is a full-replace PUT keyed by subscription id.
type Client interface {
	// GetBillingStatements returns one page of billing statements for an
	// organization.
	GetBillingStatements(ctx context.Context, orgID int64, page, pageSize int) (*billing.StatementPage, error)

	// GetGroupedStatements returns all billing line items for a period,
	// grouped by subscription. The period's start boundary must already be
	// snapped to month start; the adapter enforces this.
	GetGroupedStatements(ctx context.Context, orgID int64, period billing.Period) ([]billing.LineItem, error)

	// GetSubscriptions returns one page of subscriptions.
	GetSubscriptions(ctx context.Context, orgID int64, page, pageSize int) (*billing.SubscriptionPage, error)

	// ListAllSubscriptions walks all subscription pages.
	ListAllSubscriptions(ctx context.Context, orgID int64) ([]billing.Subscription, error)

	// GetSubscriptionTags returns the tag set of one subscription.
	// A tenant-scoped 404 yields an empty set, not an error.
	GetSubscriptionTags(ctx context.Context, subscriptionID int64) (billing.TagSet, error)

	// UpdateSubscriptionTags replaces the full tag set of a subscription.
	UpdateSubscriptionTags(ctx context.Context, subscriptionID int64, tags billing.TagSet) error

	// GetInvoices returns invoices for an organization, most recent first.
	GetInvoices(ctx context.Context, orgID int64) ([]billing.Invoice, error)
}
