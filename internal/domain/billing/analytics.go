package billing

// HistoricalReport is the rollup of billing statements over a lookback
// period whose start is snapped to month start.
type HistoricalReport struct {
	OrganizationID int64      `json:"organization_id"`
	MonthsBack     int        `json:"months_back"`
	Period         Period     `json:"period"`
	Items          []LineItem `json:"items"`
	TotalCost      float64    `json:"total_cost"`
}

// TrendPoint is the derived month-over-month cost for one YYYY-MM bucket.
// The first point in a sequence has nil PreviousCost, Change and ChangePercent.
type TrendPoint struct {
	Month         string   `json:"month"`
	Cost          float64  `json:"cost"`
	PreviousCost  *float64 `json:"previous_cost"`
	Change        *float64 `json:"change"`
	ChangePercent *float64 `json:"change_percent"`
}

// TrendSummary aggregates a trend sequence.
type TrendSummary struct {
	AverageCost  float64 `json:"average_cost"`
	HighestMonth string  `json:"highest_month"`
	HighestCost  float64 `json:"highest_cost"`
	LowestMonth  string  `json:"lowest_month"`
	LowestCost   float64 `json:"lowest_cost"`
}

// TrendReport is the full result of a cost-trend analysis.
type TrendReport struct {
	OrganizationID int64        `json:"organization_id"`
	MonthsBack     int          `json:"months_back"`
	Trends         []TrendPoint `json:"trends"`
	Summary        TrendSummary `json:"summary"`
}

// Anomaly is a subscription-level cost change between two consecutive
// periods exceeding the configured percentage threshold.
type Anomaly struct {
	SubscriptionID int64   `json:"subscription_id"`
	PreviousCost   float64 `json:"previous_cost"`
	CurrentCost    float64 `json:"current_cost"`
	ChangePercent  float64 `json:"change_percent"`
	Date           string  `json:"date"`
}

// AnomalyReport is the result of an anomaly detection run.
type AnomalyReport struct {
	OrganizationID   int64     `json:"organization_id"`
	ThresholdPercent float64   `json:"threshold_percent"`
	Anomalies        []Anomaly `json:"anomalies"`
}

// TagValueCost is the total cost attributed to one (key, value) tag pair.
type TagValueCost struct {
	Value         string  `json:"value"`
	Cost          float64 `json:"cost"`
	Subscriptions int     `json:"subscriptions"`
}

// TagKeyCost groups per-value costs under one tag key. Values are sorted
// by descending cost.
type TagKeyCost struct {
	Key    string         `json:"key"`
	Total  float64        `json:"total"`
	Values []TagValueCost `json:"values"`
}

// TagCostReport is the result of a tag-based cost allocation. A subscription
// with N tags contributes its full cost to N independent buckets.
type TagCostReport struct {
	OrganizationID int64        `json:"organization_id"`
	Period         Period       `json:"period"`
	TotalCost      float64      `json:"total_cost"`
	CostBreakdown  []TagKeyCost `json:"cost_breakdown"`
	DegradedTags   int          `json:"degraded_tags,omitempty"`
}

// TagTrackReport tracks a single tag key: its total plus a per-value
// breakdown whose costs sum to the total.
type TagTrackReport struct {
	OrganizationID int64          `json:"organization_id"`
	TagKey         string         `json:"tag_key"`
	Period         Period         `json:"period"`
	Total          float64        `json:"total"`
	Breakdown      []TagValueCost `json:"breakdown"`
}

// SubscriptionMatch is one subscription whose name matched a search pattern,
// with its tags and recent invoices attached.
type SubscriptionMatch struct {
	Subscription   Subscription `json:"subscription"`
	Tags           TagSet       `json:"tags"`
	LatestInvoice  *Invoice     `json:"latest_invoice"`
	RecentInvoices []Invoice    `json:"recent_invoices"`
}
