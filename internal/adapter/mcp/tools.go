package mcp

import (
	"context"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/costscope/costscope/internal/domain/billing"
	"github.com/costscope/costscope/internal/domain/principal"
	"github.com/costscope/costscope/internal/validate"
)

// toolSpec is one entry of the closed tool catalog: its MCP declaration,
// the role it requires, and the typed operation behind it. Dispatch never
// reaches a handler without validated arguments and an authorized caller.
type toolSpec struct {
	tool   mcplib.Tool
	role   principal.Role
	handle func(ctx context.Context, args map[string]any) (any, error)
}

// registerTools builds the catalog and registers every tool on the server.
func (s *Server) registerTools() {
	s.catalog = map[string]toolSpec{
		"get_billing_statements": {
			tool: mcplib.NewTool("get_billing_statements",
				mcplib.WithDescription("Get one page of billing statements for an organization"),
				mcplib.WithNumber("organizationId", mcplib.Required(), mcplib.Description("Organization id")),
				mcplib.WithNumber("page", mcplib.Description("Page number, starting at 1")),
				mcplib.WithNumber("pageSize", mcplib.Description("Items per page, 1-500")),
			),
			role:   principal.RoleViewer,
			handle: s.handleBillingStatements,
		},
		"get_subscriptions": {
			tool: mcplib.NewTool("get_subscriptions",
				mcplib.WithDescription("Get one page of subscriptions for an organization"),
				mcplib.WithNumber("organizationId", mcplib.Required(), mcplib.Description("Organization id")),
				mcplib.WithNumber("page", mcplib.Description("Page number, starting at 1")),
				mcplib.WithNumber("pageSize", mcplib.Description("Items per page, 1-500")),
			),
			role:   principal.RoleViewer,
			handle: s.handleSubscriptions,
		},
		"get_subscription_tags": {
			tool: mcplib.NewTool("get_subscription_tags",
				mcplib.WithDescription("Get the tag set of a subscription"),
				mcplib.WithNumber("organizationId", mcplib.Required(), mcplib.Description("Organization owning the subscription")),
				mcplib.WithNumber("subscriptionId", mcplib.Required(), mcplib.Description("Subscription id")),
			),
			role:   principal.RoleViewer,
			handle: s.handleSubscriptionTags,
		},
		"update_subscription_tags": {
			tool: mcplib.NewTool("update_subscription_tags",
				mcplib.WithDescription("Replace the full tag set of a subscription"),
				mcplib.WithNumber("organizationId", mcplib.Required(), mcplib.Description("Organization owning the subscription")),
				mcplib.WithNumber("subscriptionId", mcplib.Required(), mcplib.Description("Subscription id")),
				mcplib.WithObject("tags", mcplib.Required(), mcplib.Description("Tag key/value pairs; replaces all existing tags")),
			),
			role:   principal.RoleEditor,
			handle: s.handleUpdateSubscriptionTags,
		},
		"get_historical_billing": {
			tool: mcplib.NewTool("get_historical_billing",
				mcplib.WithDescription("Get billing statements for the past months, starting at a month boundary"),
				mcplib.WithNumber("organizationId", mcplib.Required(), mcplib.Description("Organization id")),
				mcplib.WithNumber("monthsBack", mcplib.Description("Lookback in months, 1-24")),
			),
			role:   principal.RoleViewer,
			handle: s.handleHistoricalBilling,
		},
		"get_cost_trends": {
			tool: mcplib.NewTool("get_cost_trends",
				mcplib.WithDescription("Compute month-over-month cost trends with a summary"),
				mcplib.WithNumber("organizationId", mcplib.Required(), mcplib.Description("Organization id")),
				mcplib.WithNumber("monthsBack", mcplib.Description("Lookback in months, 1-24")),
			),
			role:   principal.RoleViewer,
			handle: s.handleCostTrends,
		},
		"detect_cost_anomalies": {
			tool: mcplib.NewTool("detect_cost_anomalies",
				mcplib.WithDescription("Flag subscriptions whose period-over-period cost change exceeds a threshold"),
				mcplib.WithNumber("organizationId", mcplib.Required(), mcplib.Description("Organization id")),
				mcplib.WithNumber("monthsBack", mcplib.Description("Lookback in months, 1-24")),
				mcplib.WithNumber("changeThresholdPercent", mcplib.Description("Change threshold percentage, 1-100")),
			),
			role:   principal.RoleViewer,
			handle: s.handleDetectAnomalies,
		},
		"analyze_costs_by_tags": {
			tool: mcplib.NewTool("analyze_costs_by_tags",
				mcplib.WithDescription("Allocate costs to every tag key/value pair over the lookback period"),
				mcplib.WithNumber("organizationId", mcplib.Required(), mcplib.Description("Organization id")),
				mcplib.WithNumber("monthsBack", mcplib.Description("Lookback in months, 1-24")),
			),
			role:   principal.RoleViewer,
			handle: s.handleAnalyzeCostsByTags,
		},
		"track_costs_by_tags": {
			tool: mcplib.NewTool("track_costs_by_tags",
				mcplib.WithDescription("Track one tag key's cost with a per-value breakdown"),
				mcplib.WithNumber("organizationId", mcplib.Required(), mcplib.Description("Organization id")),
				mcplib.WithString("tagKey", mcplib.Required(), mcplib.Description("Tag key to track")),
				mcplib.WithNumber("monthsBack", mcplib.Description("Lookback in months, 1-24")),
			),
			role:   principal.RoleViewer,
			handle: s.handleTrackCostsByTags,
		},
		"get_last_month_costs_by_tags": {
			tool: mcplib.NewTool("get_last_month_costs_by_tags",
				mcplib.WithDescription("Allocate the previous calendar month's costs to every tag pair"),
				mcplib.WithNumber("organizationId", mcplib.Required(), mcplib.Description("Organization id")),
			),
			role:   principal.RoleViewer,
			handle: s.handleLastMonthCostsByTags,
		},
		"get_last_month_costs_by_tag_value": {
			tool: mcplib.NewTool("get_last_month_costs_by_tag_value",
				mcplib.WithDescription("Get the previous calendar month's cost for one tag key/value pair"),
				mcplib.WithNumber("organizationId", mcplib.Required(), mcplib.Description("Organization id")),
				mcplib.WithString("tagKey", mcplib.Required(), mcplib.Description("Tag key")),
				mcplib.WithString("tagValue", mcplib.Required(), mcplib.Description("Tag value")),
			),
			role:   principal.RoleViewer,
			handle: s.handleLastMonthCostsByTagValue,
		},
		"find_similar_subscriptions_and_invoices": {
			tool: mcplib.NewTool("find_similar_subscriptions_and_invoices",
				mcplib.WithDescription("Find subscriptions whose name matches a pattern, with tags and recent invoices"),
				mcplib.WithNumber("organizationId", mcplib.Required(), mcplib.Description("Organization id")),
				mcplib.WithString("namePattern", mcplib.Required(), mcplib.Description("Case-insensitive regular expression, at most 100 characters")),
			),
			role:   principal.RoleViewer,
			handle: s.handleFindSimilar,
		},
	}

	tools := make([]mcpserver.ServerTool, 0, len(s.catalog))
	for name, spec := range s.catalog {
		tools = append(tools, mcpserver.ServerTool{
			Tool:    spec.tool,
			Handler: s.toolHandler(name),
		})
	}
	s.mcpServer.AddTools(tools...)
}

func (s *Server) handleBillingStatements(ctx context.Context, args map[string]any) (any, error) {
	return s.deps.API.GetBillingStatements(ctx,
		validate.Int64Arg(args, "organizationId"),
		int(validate.Int64Arg(args, "page")),
		int(validate.Int64Arg(args, "pageSize")),
	)
}

func (s *Server) handleSubscriptions(ctx context.Context, args map[string]any) (any, error) {
	return s.deps.API.GetSubscriptions(ctx,
		validate.Int64Arg(args, "organizationId"),
		int(validate.Int64Arg(args, "page")),
		int(validate.Int64Arg(args, "pageSize")),
	)
}

func (s *Server) handleSubscriptionTags(ctx context.Context, args map[string]any) (any, error) {
	tags, err := s.deps.API.GetSubscriptionTags(ctx, validate.Int64Arg(args, "subscriptionId"))
	if err != nil {
		return nil, err
	}
	return map[string]any{"tags": tags}, nil
}

func (s *Server) handleUpdateSubscriptionTags(ctx context.Context, args map[string]any) (any, error) {
	subID := validate.Int64Arg(args, "subscriptionId")
	tags := billing.TagSet(validate.TagsArg(args, "tags"))
	if err := s.deps.API.UpdateSubscriptionTags(ctx, subID, tags); err != nil {
		return nil, err
	}
	return map[string]any{"subscription_id": subID, "tags": tags, "updated": true}, nil
}

func (s *Server) handleHistoricalBilling(ctx context.Context, args map[string]any) (any, error) {
	return s.deps.Engine.HistoricalBilling(ctx,
		validate.Int64Arg(args, "organizationId"),
		int(validate.Int64Arg(args, "monthsBack")),
	)
}

func (s *Server) handleCostTrends(ctx context.Context, args map[string]any) (any, error) {
	return s.deps.Engine.CostTrends(ctx,
		validate.Int64Arg(args, "organizationId"),
		int(validate.Int64Arg(args, "monthsBack")),
	)
}

func (s *Server) handleDetectAnomalies(ctx context.Context, args map[string]any) (any, error) {
	return s.deps.Engine.DetectAnomalies(ctx,
		validate.Int64Arg(args, "organizationId"),
		int(validate.Int64Arg(args, "monthsBack")),
		validate.Float64Arg(args, "changeThresholdPercent"),
	)
}

func (s *Server) handleAnalyzeCostsByTags(ctx context.Context, args map[string]any) (any, error) {
	return s.deps.Engine.AnalyzeCostsByTags(ctx,
		validate.Int64Arg(args, "organizationId"),
		int(validate.Int64Arg(args, "monthsBack")),
	)
}

func (s *Server) handleTrackCostsByTags(ctx context.Context, args map[string]any) (any, error) {
	return s.deps.Engine.TrackCostsByTags(ctx,
		validate.Int64Arg(args, "organizationId"),
		validate.StringArg(args, "tagKey"),
		int(validate.Int64Arg(args, "monthsBack")),
	)
}

func (s *Server) handleLastMonthCostsByTags(ctx context.Context, args map[string]any) (any, error) {
	return s.deps.Engine.LastMonthCostsByTags(ctx, validate.Int64Arg(args, "organizationId"))
}

func (s *Server) handleLastMonthCostsByTagValue(ctx context.Context, args map[string]any) (any, error) {
	return s.deps.Engine.LastMonthCostsByTagValue(ctx,
		validate.Int64Arg(args, "organizationId"),
		validate.StringArg(args, "tagKey"),
		validate.StringArg(args, "tagValue"),
	)
}

func (s *Server) handleFindSimilar(ctx context.Context, args map[string]any) (any, error) {
	matches, err := s.deps.Engine.FindSimilarSubscriptions(ctx,
		validate.Int64Arg(args, "organizationId"),
		validate.StringArg(args, "namePattern"),
	)
	if err != nil {
		return nil, err
	}
	return map[string]any{"matches": matches, "count": len(matches)}, nil
}
