package prescription

import "strings"

// InteractionRule lists the drugs that must not be combined with Drug.
type InteractionRule struct {
	Drug      string
	Dangerous []string
	Severity  string
	Effect    string
}

// InteractionTable is an immutable lookup of interaction rules keyed by
// lower-cased drug name.
type InteractionTable struct {
	rules map[string]InteractionRule
}

func NewInteractionTable(rules ...InteractionRule) *InteractionTable {
	t := &InteractionTable{rules: make(map[string]InteractionRule, len(rules))}
	for _, r := range rules {
		dangerous := make([]string, len(r.Dangerous))
		for i, d := range r.Dangerous {
			dangerous[i] = strings.ToLower(d)
		}
		r.Dangerous = dangerous
		t.rules[strings.ToLower(r.Drug)] = r
	}
	return t
}

// DefaultInteractionTable holds the hospital formulary's known interactions.
func DefaultInteractionTable() *InteractionTable {
	return NewInteractionTable(
		InteractionRule{
			Drug:      "warfarin",
			Dangerous: []string{"aspirin", "ibuprofen", "naproxen"},
			Severity:  SeveritySevere,
			Effect:    "Increased bleeding risk",
		},
		InteractionRule{
			Drug:      "metformin",
			Dangerous: []string{"alcohol", "contrast dye"},
			Severity:  SeverityModerate,
			Effect:    "Risk of lactic acidosis",
		},
		InteractionRule{
			Drug:      "lisinopril",
			Dangerous: []string{"potassium supplements", "spironolactone"},
			Severity:  SeverityModerate,
			Effect:    "Hyperkalemia risk",
		},
		InteractionRule{
			Drug:      "amoxicillin",
			Dangerous: []string{"methotrexate"},
			Severity:  SeverityModerate,
			Effect:    "Increased methotrexate toxicity",
		},
		InteractionRule{
			Drug:      "simvastatin",
			Dangerous: []string{"clarithromycin", "erythromycin", "grapefruit"},
			Severity:  SeveritySevere,
			Effect:    "Increased risk of muscle damage",
		},
	)
}

// interacts reports whether drug a has a rule naming drug b. Both names are
// matched exactly after lower-casing.
func (t *InteractionTable) interacts(a, b string) (InteractionRule, bool) {
	r, ok := t.rules[strings.ToLower(a)]
	if !ok {
		return InteractionRule{}, false
	}
	lb := strings.ToLower(b)
	for _, d := range r.Dangerous {
		if d == lb {
			return r, true
		}
	}
	return InteractionRule{}, false
}

// Len reports how many drugs carry a rule.
func (t *InteractionTable) Len() int {
	return len(t.rules)
}
