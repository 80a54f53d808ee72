package jurisdiction

import (
	"fmt"
	"strings"
)

// Jurisdiction carries the locally appropriate emergency contacts quoted in
// prompts, disclaimers and error bodies.
type Jurisdiction struct {
	Code             string   `json:"code"`
	Name             string   `json:"name"`
	EmergencyNumbers []Number `json:"emergencyNumbers"`
}

// Number is one dialable emergency service.
type Number struct {
	Label  string `json:"label"`
	Number string `json:"number"`
}

// NumbersText renders the numbers as "108 or 112".
func (j Jurisdiction) NumbersText() string {
	nums := make([]string, 0, len(j.EmergencyNumbers))
	for _, n := range j.EmergencyNumbers {
		nums = append(nums, n.Number)
	}
	return strings.Join(nums, " or ")
}

// NumbersDetail renders the numbers with labels, e.g.
// "112 (National Emergency Number) or 108 (Medical Emergency)".
func (j Jurisdiction) NumbersDetail() string {
	parts := make([]string, 0, len(j.EmergencyNumbers))
	for _, n := range j.EmergencyNumbers {
		if n.Label == "" {
			parts = append(parts, n.Number)
			continue
		}
		parts = append(parts, fmt.Sprintf("%s (%s)", n.Number, n.Label))
	}
	return strings.Join(parts, " or ")
}

// Seed provides the built-in jurisdictions. India is listed first because it
// is the default deployment region.
func Seed() []Jurisdiction {
	return []Jurisdiction{
		{
			Code: "IN",
			Name: "India",
			EmergencyNumbers: []Number{
				{Label: "National Emergency Number", Number: "112"},
				{Label: "Medical Emergency", Number: "108"},
			},
		},
		{
			Code: "US",
			Name: "United States",
			EmergencyNumbers: []Number{
				{Label: "Emergency Services", Number: "911"},
				{Label: "Suicide & Crisis Lifeline", Number: "988"},
			},
		},
		{
			Code: "UK",
			Name: "United Kingdom",
			EmergencyNumbers: []Number{
				{Label: "Emergency Services", Number: "999"},
				{Label: "NHS Non-Emergency", Number: "111"},
			},
		},
		{
			Code: "EU",
			Name: "European Union",
			EmergencyNumbers: []Number{
				{Label: "European Emergency Number", Number: "112"},
			},
		},
	}
}
