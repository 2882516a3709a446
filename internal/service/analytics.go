package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/costscope/costscope/internal/config"
	"github.com/costscope/costscope/internal/domain/billing"
	"github.com/costscope/costscope/internal/port/costapi"
	"github.com/costscope/costscope/internal/validate"
)

// Engine runs the aggregation algorithms over data fetched through the
// costapi port. All operations are pure functions of fetched data; no
// state is retained between calls.
type Engine struct {
	api            costapi.Client
	log            *slog.Logger
	now            func() time.Time
	tagConcurrency int
	maxAnomalies   int
}

// NewEngine creates the analytics engine.
func NewEngine(api costapi.Client, cfg config.Analytics, log *slog.Logger) *Engine {
	concurrency := cfg.TagFetchConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	maxAnomalies := cfg.MaxAnomalies
	if maxAnomalies < 1 {
		maxAnomalies = 50
	}
	return &Engine{
		api:            api,
		log:            log,
		now:            time.Now,
		tagConcurrency: concurrency,
		maxAnomalies:   maxAnomalies,
	}
}

// SetClock injects a clock for tests.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// round2 rounds to 2 decimals; all derived costs and percentages use it.
func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// changePercent implements the shared month-over-month formula:
// (current-previous)/previous*100 rounded to 2 decimals, 0 when the
// previous cost is 0.
func changePercent(previous, current float64) float64 {
	if previous == 0 {
		return 0
	}
	return round2((current - previous) / previous * 100)
}

// HistoricalBilling fetches grouped billing statements for the monthsBack
// months ending now, start boundary snapped to month start.
func (e *Engine) HistoricalBilling(ctx context.Context, orgID int64, monthsBack int) (*billing.HistoricalReport, error) {
	period := billing.LastMonths(e.now(), monthsBack)
	items, err := e.api.GetGroupedStatements(ctx, orgID, period)
	if err != nil {
		return nil, fmt.Errorf("historical billing: %w", err)
	}

	total := 0.0
	for _, it := range items {
		total += it.TotalSalesPrice
	}
	return &billing.HistoricalReport{
		OrganizationID: orgID,
		MonthsBack:     monthsBack,
		Period:         period,
		Items:          items,
		TotalCost:      round2(total),
	}, nil
}

// CostTrends buckets line items by YYYY-MM of their start date, sums cost
// per bucket and produces one TrendPoint per bucket in ascending month
// order. The first bucket carries nil previous/change fields.
func (e *Engine) CostTrends(ctx context.Context, orgID int64, monthsBack int) (*billing.TrendReport, error) {
	period := billing.LastMonths(e.now(), monthsBack)
	items, err := e.api.GetGroupedStatements(ctx, orgID, period)
	if err != nil {
		return nil, fmt.Errorf("cost trends: %w", err)
	}

	buckets := make(map[string]float64)
	for _, it := range items {
		buckets[billing.MonthKey(it.StartDate)] += it.TotalSalesPrice
	}

	months := make([]string, 0, len(buckets))
	for m := range buckets {
		months = append(months, m)
	}
	sort.Strings(months)

	trends := make([]billing.TrendPoint, 0, len(months))
	for i, m := range months {
		cost := round2(buckets[m])
		point := billing.TrendPoint{Month: m, Cost: cost}
		if i > 0 {
			prev := round2(buckets[months[i-1]])
			change := round2(cost - prev)
			pct := changePercent(prev, cost)
			point.PreviousCost = &prev
			point.Change = &change
			point.ChangePercent = &pct
		}
		trends = append(trends, point)
	}

	return &billing.TrendReport{
		OrganizationID: orgID,
		MonthsBack:     monthsBack,
		Trends:         trends,
		Summary:        summarize(trends),
	}, nil
}

// summarize computes the mean cost and the single highest/lowest-cost
// months. First occurrence wins ties.
func summarize(trends []billing.TrendPoint) billing.TrendSummary {
	if len(trends) == 0 {
		return billing.TrendSummary{}
	}

	sum := 0.0
	highest, lowest := trends[0], trends[0]
	for _, t := range trends {
		sum += t.Cost
		if t.Cost > highest.Cost {
			highest = t
		}
		if t.Cost < lowest.Cost {
			lowest = t
		}
	}
	return billing.TrendSummary{
		AverageCost:  round2(sum / float64(len(trends))),
		HighestMonth: highest.Month,
		HighestCost:  highest.Cost,
		LowestMonth:  lowest.Month,
		LowestCost:   lowest.Cost,
	}
}

// DetectAnomalies flags subscription-level cost changes between
// consecutive periods whose magnitude exceeds the threshold. Subscriptions
// with no previous-cost baseline are skipped, never flagged. Line items
// without a subscription id (some provision types omit it on grouped
// statements) are excluded rather than pooled into a synthetic bucket.
func (e *Engine) DetectAnomalies(ctx context.Context, orgID int64, monthsBack int, thresholdPercent float64) (*billing.AnomalyReport, error) {
	period := billing.LastMonths(e.now(), monthsBack)
	items, err := e.api.GetGroupedStatements(ctx, orgID, period)
	if err != nil {
		return nil, fmt.Errorf("detect anomalies: %w", err)
	}

	bySub := make(map[int64][]billing.LineItem)
	for _, it := range items {
		if it.SubscriptionID == 0 {
			continue
		}
		bySub[it.SubscriptionID] = append(bySub[it.SubscriptionID], it)
	}

	var anomalies []billing.Anomaly
	for subID, subItems := range bySub {
		sort.Slice(subItems, func(i, j int) bool {
			return subItems[i].StartDate.Before(subItems[j].StartDate)
		})
		for i := 1; i < len(subItems); i++ {
			prev, cur := subItems[i-1], subItems[i]
			if prev.TotalSalesPrice == 0 {
				continue
			}
			pct := changePercent(prev.TotalSalesPrice, cur.TotalSalesPrice)
			if math.Abs(pct) > thresholdPercent {
				anomalies = append(anomalies, billing.Anomaly{
					SubscriptionID: subID,
					PreviousCost:   prev.TotalSalesPrice,
					CurrentCost:    cur.TotalSalesPrice,
					ChangePercent:  pct,
					Date:           cur.StartDate.Format("2006-01-02"),
				})
			}
		}
	}

	sort.SliceStable(anomalies, func(i, j int) bool {
		return math.Abs(anomalies[i].ChangePercent) > math.Abs(anomalies[j].ChangePercent)
	})
	if len(anomalies) > e.maxAnomalies {
		anomalies = anomalies[:e.maxAnomalies]
	}

	return &billing.AnomalyReport{
		OrganizationID:   orgID,
		ThresholdPercent: thresholdPercent,
		Anomalies:        anomalies,
	}, nil
}

// tagResult is the per-subscription outcome of the tag fan-out. A failed
// fetch degrades to an empty tag set rather than failing the operation.
type tagResult struct {
	Tags     billing.TagSet
	Degraded bool
	Reason   string
}

// fetchTags resolves the tag set of every subscription concurrently with
// bounded parallelism. Failures never abort sibling fetches.
func (e *Engine) fetchTags(ctx context.Context, subs []billing.Subscription) map[int64]tagResult {
	results := make([]tagResult, len(subs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.tagConcurrency)
	for i, sub := range subs {
		g.Go(func() error {
			tags, err := e.api.GetSubscriptionTags(gctx, sub.ID)
			if err != nil {
				e.log.Warn("tag fetch degraded to empty set",
					"subscription_id", sub.ID, "error", err)
				results[i] = tagResult{Tags: billing.TagSet{}, Degraded: true, Reason: err.Error()}
				return nil
			}
			results[i] = tagResult{Tags: tags}
			return nil
		})
	}
	_ = g.Wait() // goroutines never return errors; degradation is per item

	out := make(map[int64]tagResult, len(subs))
	for i, sub := range subs {
		out[sub.ID] = results[i]
	}
	return out
}

// fetchSubsAndItems issues the subscription walk and the grouped-statement
// fetch concurrently and joins them.
func (e *Engine) fetchSubsAndItems(ctx context.Context, orgID int64, period billing.Period) ([]billing.Subscription, []billing.LineItem, error) {
	var (
		subs  []billing.Subscription
		items []billing.LineItem
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		subs, err = e.api.ListAllSubscriptions(gctx, orgID)
		return err
	})
	g.Go(func() error {
		var err error
		items, err = e.api.GetGroupedStatements(gctx, orgID, period)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return subs, items, nil
}

// AnalyzeCostsByTags allocates every line item's full cost to every
// (key, value) tag pair on its subscription. A subscription with N tags
// contributes its cost to N independent buckets; cost is not divided.
func (e *Engine) AnalyzeCostsByTags(ctx context.Context, orgID int64, monthsBack int) (*billing.TagCostReport, error) {
	period := billing.LastMonths(e.now(), monthsBack)
	return e.allocateByTags(ctx, orgID, period)
}

// LastMonthCostsByTags is the tag allocation over the previous full
// calendar month.
func (e *Engine) LastMonthCostsByTags(ctx context.Context, orgID int64) (*billing.TagCostReport, error) {
	return e.allocateByTags(ctx, orgID, billing.LastCalendarMonth(e.now()))
}

func (e *Engine) allocateByTags(ctx context.Context, orgID int64, period billing.Period) (*billing.TagCostReport, error) {
	subs, items, err := e.fetchSubsAndItems(ctx, orgID, period)
	if err != nil {
		return nil, fmt.Errorf("tag allocation: %w", err)
	}
	tags := e.fetchTags(ctx, subs)

	type valueAgg struct {
		cost float64
		subs map[int64]struct{}
	}
	byKey := make(map[string]map[string]*valueAgg)
	total := 0.0
	degraded := 0
	for _, r := range tags {
		if r.Degraded {
			degraded++
		}
	}

	for _, it := range items {
		total += it.TotalSalesPrice
		res, ok := tags[it.SubscriptionID]
		if !ok {
			continue
		}
		for k, v := range res.Tags {
			values := byKey[k]
			if values == nil {
				values = make(map[string]*valueAgg)
				byKey[k] = values
			}
			agg := values[v]
			if agg == nil {
				agg = &valueAgg{subs: make(map[int64]struct{})}
				values[v] = agg
			}
			agg.cost += it.TotalSalesPrice
			agg.subs[it.SubscriptionID] = struct{}{}
		}
	}

	breakdown := make([]billing.TagKeyCost, 0, len(byKey))
	for k, values := range byKey {
		kc := billing.TagKeyCost{Key: k, Values: make([]billing.TagValueCost, 0, len(values))}
		for v, agg := range values {
			cost := round2(agg.cost)
			kc.Total = round2(kc.Total + cost)
			kc.Values = append(kc.Values, billing.TagValueCost{
				Value:         v,
				Cost:          cost,
				Subscriptions: len(agg.subs),
			})
		}
		// Within each tag key, values sort by descending total cost.
		sort.SliceStable(kc.Values, func(i, j int) bool {
			return kc.Values[i].Cost > kc.Values[j].Cost
		})
		breakdown = append(breakdown, kc)
	}
	sort.Slice(breakdown, func(i, j int) bool {
		return breakdown[i].Key < breakdown[j].Key
	})

	return &billing.TagCostReport{
		OrganizationID: orgID,
		Period:         period,
		TotalCost:      round2(total),
		CostBreakdown:  breakdown,
		DegradedTags:   degraded,
	}, nil
}

// TrackCostsByTags tracks a single tag key over the lookback period. The
// breakdown costs sum exactly to the reported total.
func (e *Engine) TrackCostsByTags(ctx context.Context, orgID int64, tagKey string, monthsBack int) (*billing.TagTrackReport, error) {
	period := billing.LastMonths(e.now(), monthsBack)
	return e.trackTagKey(ctx, orgID, tagKey, "", period)
}

// LastMonthCostsByTagValue reports the previous calendar month's cost for
// one (key, value) pair.
func (e *Engine) LastMonthCostsByTagValue(ctx context.Context, orgID int64, tagKey, tagValue string) (*billing.TagTrackReport, error) {
	return e.trackTagKey(ctx, orgID, tagKey, tagValue, billing.LastCalendarMonth(e.now()))
}

func (e *Engine) trackTagKey(ctx context.Context, orgID int64, tagKey, tagValue string, period billing.Period) (*billing.TagTrackReport, error) {
	report, err := e.allocateByTags(ctx, orgID, period)
	if err != nil {
		return nil, err
	}

	out := &billing.TagTrackReport{
		OrganizationID: orgID,
		TagKey:         tagKey,
		Period:         period,
		Breakdown:      []billing.TagValueCost{},
	}
	for _, kc := range report.CostBreakdown {
		if kc.Key != tagKey {
			continue
		}
		for _, vc := range kc.Values {
			if tagValue != "" && vc.Value != tagValue {
				continue
			}
			out.Breakdown = append(out.Breakdown, vc)
			out.Total = round2(out.Total + vc.Cost)
		}
	}
	return out, nil
}

// FindSimilarSubscriptions applies a validated, case-insensitive pattern
// to subscription names. Each match carries its tags (degraded to empty on
// fetch failure) plus its most recent and up to 5 recent invoices.
func (e *Engine) FindSimilarSubscriptions(ctx context.Context, orgID int64, pattern string) ([]billing.SubscriptionMatch, error) {
	re, err := validate.CompilePattern(pattern)
	if err != nil {
		return nil, err
	}

	var (
		subs     []billing.Subscription
		invoices []billing.Invoice
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		subs, err = e.api.ListAllSubscriptions(gctx, orgID)
		return err
	})
	g.Go(func() error {
		var err error
		invoices, err = e.api.GetInvoices(gctx, orgID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("find similar subscriptions: %w", err)
	}

	var matched []billing.Subscription
	for _, sub := range subs {
		if re.MatchString(sub.Name) {
			matched = append(matched, sub)
		}
	}
	tags := e.fetchTags(ctx, matched)

	sort.SliceStable(invoices, func(i, j int) bool {
		return invoices[i].Date.After(invoices[j].Date)
	})
	byProfile := make(map[int64][]billing.Invoice)
	for _, inv := range invoices {
		byProfile[inv.InvoiceProfileID] = append(byProfile[inv.InvoiceProfileID], inv)
	}

	matches := make([]billing.SubscriptionMatch, 0, len(matched))
	for _, sub := range matched {
		m := billing.SubscriptionMatch{
			Subscription:   sub,
			Tags:           billing.TagSet{},
			RecentInvoices: []billing.Invoice{},
		}
		if r, ok := tags[sub.ID]; ok && r.Tags != nil {
			m.Tags = r.Tags
		}
		recent := byProfile[sub.InvoiceProfileID]
		if len(recent) > 0 {
			latest := recent[0]
			m.LatestInvoice = &latest
			if len(recent) > 5 {
				recent = recent[:5]
			}
			m.RecentInvoices = recent
		}
		matches = append(matches, m)
	}
	return matches, nil
}
