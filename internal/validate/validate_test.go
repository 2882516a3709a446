package validate

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/costscope/costscope/internal/domain"
)

func newTestValidator() *Validator {
	return New(Defaults{PageSize: 100, MonthsBack: 6, ThresholdPercent: 25})
}

func TestValidateAppliesDefaults(t *testing.T) {
	v := newTestValidator()

	got, err := v.Validate("get_billing_statements", map[string]any{
		"organizationId": float64(42),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := map[string]any{
		"organizationId": int64(42),
		"page":           int64(1),
		"pageSize":       int64(100),
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("normalized = %v, want %v", got, want)
	}
}

func TestValidateIsIdempotent(t *testing.T) {
	v := newTestValidator()

	first, err := v.Validate("detect_cost_anomalies", map[string]any{
		"organizationId": float64(7),
		"monthsBack":     float64(12),
	})
	if err != nil {
		t.Fatalf("first pass: %v", err)
	}

	second, err := v.Validate("detect_cost_anomalies", first)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("second pass changed output: %v vs %v", first, second)
	}
}

func TestValidateStripsUnknownFields(t *testing.T) {
	v := newTestValidator()

	got, err := v.Validate("get_subscription_tags", map[string]any{
		"organizationId": float64(1),
		"subscriptionId": float64(5),
		"injected":       "payload",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := got["injected"]; ok {
		t.Fatal("expected unknown field to be stripped")
	}
}

func TestValidateCollectsAllViolations(t *testing.T) {
	v := newTestValidator()

	_, err := v.Validate("get_billing_statements", map[string]any{
		"page":     float64(0),
		"pageSize": float64(9999),
	})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	// organizationId missing + page below minimum + pageSize above maximum.
	if len(verr.Violations) != 3 {
		t.Fatalf("expected 3 violations, got %d: %v", len(verr.Violations), verr.Violations)
	}
}

func TestValidateRejections(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		name  string
		tool  string
		args  map[string]any
		field string
	}{
		{
			name:  "missing required org",
			tool:  "get_cost_trends",
			args:  map[string]any{},
			field: "organizationId",
		},
		{
			name:  "tag lookup missing org",
			tool:  "get_subscription_tags",
			args:  map[string]any{"subscriptionId": float64(5)},
			field: "organizationId",
		},
		{
			name:  "tag update missing org",
			tool:  "update_subscription_tags",
			args:  map[string]any{"subscriptionId": float64(5), "tags": map[string]any{"env": "prod"}},
			field: "organizationId",
		},
		{
			name:  "fractional integer",
			tool:  "get_cost_trends",
			args:  map[string]any{"organizationId": 1.5},
			field: "organizationId",
		},
		{
			name:  "non-numeric integer",
			tool:  "get_cost_trends",
			args:  map[string]any{"organizationId": "one"},
			field: "organizationId",
		},
		{
			name:  "months back above cap",
			tool:  "get_cost_trends",
			args:  map[string]any{"organizationId": float64(1), "monthsBack": float64(48)},
			field: "monthsBack",
		},
		{
			name:  "threshold above cap",
			tool:  "detect_cost_anomalies",
			args:  map[string]any{"organizationId": float64(1), "changeThresholdPercent": float64(250)},
			field: "changeThresholdPercent",
		},
		{
			name:  "empty tag key string",
			tool:  "track_costs_by_tags",
			args:  map[string]any{"organizationId": float64(1), "tagKey": ""},
			field: "tagKey",
		},
		{
			name:  "tag key too long",
			tool:  "track_costs_by_tags",
			args:  map[string]any{"organizationId": float64(1), "tagKey": strings.Repeat("k", 300)},
			field: "tagKey",
		},
		{
			name:  "tags not an object",
			tool:  "update_subscription_tags",
			args:  map[string]any{"organizationId": float64(1), "subscriptionId": float64(1), "tags": "env=prod"},
			field: "tags",
		},
		{
			name:  "tag value not a string",
			tool:  "update_subscription_tags",
			args:  map[string]any{"organizationId": float64(1), "subscriptionId": float64(1), "tags": map[string]any{"env": float64(3)}},
			field: "tags",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Validate(tt.tool, tt.args)
			var verr *domain.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			found := false
			for _, viol := range verr.Violations {
				if viol.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected violation on %q, got %v", tt.field, verr.Violations)
			}
		})
	}
}

func TestValidateTagMapEntryCap(t *testing.T) {
	v := newTestValidator()

	tags := make(map[string]any, MaxTagEntries+1)
	for i := 0; i <= MaxTagEntries; i++ {
		tags[strings.Repeat("k", i+1)] = "v"
	}
	_, err := v.Validate("update_subscription_tags", map[string]any{
		"organizationId": float64(1),
		"subscriptionId": float64(1),
		"tags":           tags,
	})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestValidateNormalizesTagMap(t *testing.T) {
	v := newTestValidator()

	got, err := v.Validate("update_subscription_tags", map[string]any{
		"organizationId": float64(1),
		"subscriptionId": float64(9),
		"tags":           map[string]any{"env": "prod", "team": "platform"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tags, ok := got["tags"].(map[string]string)
	if !ok {
		t.Fatalf("tags normalized to %T, want map[string]string", got["tags"])
	}
	if tags["env"] != "prod" || tags["team"] != "platform" {
		t.Fatalf("unexpected tags: %v", tags)
	}
}

func TestValidateUnknownTool(t *testing.T) {
	v := newTestValidator()

	_, err := v.Validate("drop_all_subscriptions", map[string]any{})
	if !errors.Is(err, domain.ErrUnknownTool) {
		t.Fatalf("expected ErrUnknownTool, got %v", err)
	}
	if v.Known("drop_all_subscriptions") {
		t.Fatal("expected tool to be unknown")
	}
	if !v.Known("get_subscriptions") {
		t.Fatal("expected catalog tool to be known")
	}
}

func TestCheckPattern(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		ok      bool
	}{
		{"plain substring", "prod", true},
		{"anchored prefix", "^sub-prod.*", true},
		{"alternation", "(prod|staging)", true},
		{"single wildcard", "api-.*-east", true},
		{"empty", "", false},
		{"over length cap", strings.Repeat("a", 150), false},
		{"nested quantifier", "(a+)+", false},
		{"quantified wildcard group", "(.*)+", false},
		{"counted quantified group", "(a+){10}", false},
		{"chained wildcards", ".*.*", false},
		{"chained plus wildcards", ".+.+", false},
		{"adjacent wildcard groups", "(.*)(.*)", false},
		{"invalid syntax", "prod[", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason := CheckPattern(tt.pattern)
			if tt.ok && reason != "" {
				t.Fatalf("expected pattern accepted, got rejection: %s", reason)
			}
			if !tt.ok && reason == "" {
				t.Fatal("expected pattern rejected")
			}
		})
	}
}

func TestCompilePatternCaseInsensitive(t *testing.T) {
	re, err := CompilePattern("sub-PROD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !re.MatchString("my-sub-prod-01") {
		t.Fatal("expected case-insensitive match")
	}
}

func TestCompilePatternRejectsDenylisted(t *testing.T) {
	_, err := CompilePattern("(.*)+")
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}
