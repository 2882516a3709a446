// Package validate normalizes and validates tool-call arguments against
// per-tool schemas before any upstream call is made.
package validate

import (
	"fmt"
	"math"

	"github.com/costscope/costscope/internal/domain"
)

// Bounds shared by all tool schemas.
const (
	MaxPageSize   = 500
	MaxMonthsBack = 24
	MaxThreshold  = 100
	MaxTagEntries = 50
	MaxTagLength  = 256
)

// Defaults are applied to optional fields during normalization.
type Defaults struct {
	Page             int
	PageSize         int
	MonthsBack       int
	ThresholdPercent float64
}

// Validator validates raw tool arguments and produces normalized argument
// maps: defaults applied, unknown fields stripped, numeric fields coerced
// to canonical types. Validation is idempotent on its own output.
type Validator struct {
	defaults Defaults
	schemas  map[string][]field
}

type kind int

const (
	kindInt kind = iota
	kindNumber
	kindString
	kindPattern
	kindTagMap
)

type field struct {
	name     string
	kind     kind
	required bool
	min      float64
	max      float64
	def      any // nil means no default
}

// New creates a Validator with the given defaults and the full tool catalog.
func New(d Defaults) *Validator {
	if d.Page == 0 {
		d.Page = 1
	}
	if d.PageSize == 0 {
		d.PageSize = 100
	}
	if d.MonthsBack == 0 {
		d.MonthsBack = 6
	}
	if d.ThresholdPercent == 0 {
		d.ThresholdPercent = 25
	}

	orgID := field{name: "organizationId", kind: kindInt, required: true, min: 1, max: math.MaxInt64}
	subID := field{name: "subscriptionId", kind: kindInt, required: true, min: 1, max: math.MaxInt64}
	page := field{name: "page", kind: kindInt, min: 1, max: math.MaxInt32, def: int64(d.Page)}
	pageSize := field{name: "pageSize", kind: kindInt, min: 1, max: MaxPageSize, def: int64(d.PageSize)}
	monthsBack := field{name: "monthsBack", kind: kindInt, min: 1, max: MaxMonthsBack, def: int64(d.MonthsBack)}
	threshold := field{name: "changeThresholdPercent", kind: kindNumber, min: 1, max: MaxThreshold, def: d.ThresholdPercent}

	schemas := map[string][]field{
		"get_billing_statements":                  {orgID, page, pageSize},
		"get_subscriptions":                       {orgID, page, pageSize},
		"get_subscription_tags":                   {orgID, subID},
		"update_subscription_tags":                {orgID, subID, {name: "tags", kind: kindTagMap, required: true}},
		"get_historical_billing":                  {orgID, monthsBack},
		"get_cost_trends":                         {orgID, monthsBack},
		"detect_cost_anomalies":                   {orgID, monthsBack, threshold},
		"analyze_costs_by_tags":                   {orgID, monthsBack},
		"track_costs_by_tags":                     {orgID, monthsBack, {name: "tagKey", kind: kindString, required: true, max: MaxTagLength}},
		"get_last_month_costs_by_tags":            {orgID},
		"get_last_month_costs_by_tag_value":       {orgID, {name: "tagKey", kind: kindString, required: true, max: MaxTagLength}, {name: "tagValue", kind: kindString, required: true, max: MaxTagLength}},
		"find_similar_subscriptions_and_invoices": {orgID, {name: "namePattern", kind: kindPattern, required: true}},
	}

	return &Validator{defaults: d, schemas: schemas}
}

// Known reports whether the tool name is in the catalog.
func (v *Validator) Known(tool string) bool {
	_, ok := v.schemas[tool]
	return ok
}

// Validate checks raw against the schema for tool and returns the
// normalized argument map. All violations are collected, not just the first.
func (v *Validator) Validate(tool string, raw map[string]any) (map[string]any, error) {
	schema, ok := v.schemas[tool]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownTool, tool)
	}

	normalized := make(map[string]any, len(schema))
	var violations []domain.FieldViolation

	for _, f := range schema {
		val, present := raw[f.name]
		if !present || val == nil {
			if f.required {
				violations = append(violations, domain.FieldViolation{
					Field: f.name, Reason: "required field is missing",
				})
				continue
			}
			if f.def != nil {
				normalized[f.name] = f.def
			}
			continue
		}

		out, reason := coerce(f, val)
		if reason != "" {
			violations = append(violations, domain.FieldViolation{Field: f.name, Reason: reason})
			continue
		}
		normalized[f.name] = out
	}

	if len(violations) > 0 {
		return nil, domain.NewValidationError(violations...)
	}
	return normalized, nil
}

// coerce converts val to the field's canonical type and checks its bounds.
// Returns a non-empty reason on violation.
func coerce(f field, val any) (any, string) {
	switch f.kind {
	case kindInt:
		n, ok := toInt64(val)
		if !ok {
			return nil, "must be an integer"
		}
		if float64(n) < f.min || float64(n) > f.max {
			return nil, fmt.Sprintf("must be in [%d,%d]", int64(f.min), int64(f.max))
		}
		return n, ""

	case kindNumber:
		x, ok := toFloat64(val)
		if !ok {
			return nil, "must be a number"
		}
		if x < f.min || x > f.max {
			return nil, fmt.Sprintf("must be in [%g,%g]", f.min, f.max)
		}
		return x, ""

	case kindString:
		s, ok := val.(string)
		if !ok {
			return nil, "must be a string"
		}
		if s == "" {
			return nil, "must not be empty"
		}
		if f.max > 0 && len(s) > int(f.max) {
			return nil, fmt.Sprintf("must be at most %d characters", int(f.max))
		}
		return s, ""

	case kindPattern:
		s, ok := val.(string)
		if !ok {
			return nil, "must be a string"
		}
		if reason := CheckPattern(s); reason != "" {
			return nil, reason
		}
		return s, ""

	case kindTagMap:
		return coerceTagMap(val)
	}
	return nil, "unsupported field kind"
}

func coerceTagMap(val any) (any, string) {
	var entries map[string]any
	switch m := val.(type) {
	case map[string]string:
		entries = make(map[string]any, len(m))
		for k, s := range m {
			entries[k] = s
		}
	case map[string]any:
		entries = m
	default:
		return nil, "must be an object of string values"
	}

	if len(entries) > MaxTagEntries {
		return nil, fmt.Sprintf("must have at most %d entries", MaxTagEntries)
	}

	tags := make(map[string]string, len(entries))
	for k, raw := range entries {
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Sprintf("value for key %q must be a string", k)
		}
		if k == "" {
			return nil, "tag keys must not be empty"
		}
		if len(k) > MaxTagLength || len(s) > MaxTagLength {
			return nil, fmt.Sprintf("keys and values must be at most %d characters", MaxTagLength)
		}
		tags[k] = s
	}
	return tags, ""
}

// toInt64 accepts JSON and native integer encodings. Fractional floats fail.
func toInt64(val any) (int64, bool) {
	switch n := val.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	default:
		return 0, false
	}
}

func toFloat64(val any) (float64, bool) {
	switch n := val.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
