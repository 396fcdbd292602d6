// Package domain holds the message, category and result types shared by the
// classification engine, the model and the outer surfaces.
package domain

import (
	"fmt"
	"strings"
)

// Category is the incident type assigned to a message.
type Category int

// Incident categories. The zero value is invalid on purpose.
const (
	CategoryUnknown Category = iota
	CategoryStalking
	CategoryCoerciveControl
	CategoryDeathThreat
	CategoryEmotionalManipulation
	CategoryLocationMonitoring
	CategoryNormal
	CategoryFriendly
)

var categoryNames = map[Category]string{
	CategoryStalking:              "Stalking",
	CategoryCoerciveControl:       "Coercive Control",
	CategoryDeathThreat:           "Death Threat",
	CategoryEmotionalManipulation: "Emotional Manipulation",
	CategoryLocationMonitoring:    "Location Monitoring",
	CategoryNormal:                "Normal Communication",
	CategoryFriendly:              "Friendly",
}

// Categories lists every valid category in declaration order.
func Categories() []Category {
	return []Category{
		CategoryStalking,
		CategoryCoerciveControl,
		CategoryDeathThreat,
		CategoryEmotionalManipulation,
		CategoryLocationMonitoring,
		CategoryNormal,
		CategoryFriendly,
	}
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "Unknown"
}

// Valid reports whether c is one of the declared categories.
func (c Category) Valid() bool {
	_, ok := categoryNames[c]
	return ok
}

// IsConcerning is false only for the two benign categories.
func (c Category) IsConcerning() bool {
	return c.Valid() && c != CategoryNormal && c != CategoryFriendly
}

// IsThreat reports whether a match on c flags potential crime regardless of
// severity.
func (c Category) IsThreat() bool {
	return c == CategoryDeathThreat || c == CategoryStalking
}

// ParseCategory accepts the display name or a few historical aliases,
// case-insensitively.
func ParseCategory(s string) (Category, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for c, name := range categoryNames {
		if strings.ToLower(name) == key {
			return c, nil
		}
	}
	switch key {
	case "verbal threat", "verbal threats", "threat":
		return CategoryDeathThreat, nil
	case "gaslighting", "manipulation":
		return CategoryEmotionalManipulation, nil
	case "normal", "normal communication":
		return CategoryNormal, nil
	}
	return CategoryUnknown, fmt.Errorf("unknown category %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid category %d", int(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Category) UnmarshalText(b []byte) error {
	parsed, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
