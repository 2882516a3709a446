package validate

import (
	"regexp"

	"github.com/costscope/costscope/internal/domain"
)

// MaxPatternLength caps user-supplied matching patterns.
const MaxPatternLength = 100

// denylist rejects pattern shapes known for catastrophic backtracking:
// nested quantifiers, repeated quantified groups, chained wildcard groups.
// The denylist is a heuristic, not a proof; match-time safety additionally
// rests on the length cap and on Go's backtracking-free RE2 engine.
var denylist = []*regexp.Regexp{
	regexp.MustCompile(`\([^)]*[+*]\)[+*]`),       // (a+)+ , (.*)+
	regexp.MustCompile(`\([^)]*[+*]\)\{\d`),       // (a+){10}
	regexp.MustCompile(`(\.\*){2,}`),              // .*.* chained wildcards
	regexp.MustCompile(`(\.\+){2,}`),              // .+.+
	regexp.MustCompile(`\(\.[+*]\)\s*\(\.[+*]\)`), // (.*)(.*)
}

// CheckPattern validates a user-supplied matching pattern. It returns a
// non-empty rejection reason unless the pattern is within the length cap,
// clears the denylist, and compiles case-insensitively. It fails closed:
// the pattern must never be used to scan names unless this returns "".
func CheckPattern(pattern string) string {
	if pattern == "" {
		return "must not be empty"
	}
	if len(pattern) > MaxPatternLength {
		return "must be at most 100 characters"
	}
	for _, deny := range denylist {
		if deny.MatchString(pattern) {
			return "contains a disallowed quantifier construct"
		}
	}
	if _, err := regexp.Compile("(?i)" + pattern); err != nil {
		return "is not a valid regular expression"
	}
	return ""
}

// CompilePattern compiles a pattern that already passed CheckPattern,
// case-insensitively.
func CompilePattern(pattern string) (*regexp.Regexp, error) {
	if reason := CheckPattern(pattern); reason != "" {
		return nil, domain.NewValidationError(domain.FieldViolation{Field: "namePattern", Reason: reason})
	}
	return regexp.Compile("(?i)" + pattern)
}
