// Package identifier parses and checks analytics resource identifiers.
//
// Property IDs have the shape UA-<accountDigits>-<suffixDigits>; account,
// profile and internal web property IDs are plain digit strings.
package identifier

import "regexp"

// PropertyPrefix is the literal tag that starts every property ID
const PropertyPrefix = "UA"

var (
	propertyIDPattern = regexp.MustCompile(`^` + PropertyPrefix + `-(\d+)-(\d+)$`)
	numericPattern    = regexp.MustCompile(`^\d+$`)
)

// ParseAccountID returns the account digits of a property ID such as
// "UA-2358017-2". It returns "" when the input does not have exactly the
// prefix and two numeric groups.
func ParseAccountID(propertyID string) string {
	m := propertyIDPattern.FindStringSubmatch(propertyID)
	if m == nil {
		return ""
	}
	return m[1]
}

// IsPropertyID reports whether s is a well-formed property ID
func IsPropertyID(s string) bool {
	return propertyIDPattern.MatchString(s)
}

// IsAccountID reports whether s is a well-formed account ID
func IsAccountID(s string) bool {
	return numericPattern.MatchString(s)
}

// IsProfileID reports whether s is a well-formed profile (view) ID
func IsProfileID(s string) bool {
	return numericPattern.MatchString(s)
}

// IsInternalWebPropertyID reports whether s is a well-formed internal web property ID
func IsInternalWebPropertyID(s string) bool {
	return numericPattern.MatchString(s)
}
