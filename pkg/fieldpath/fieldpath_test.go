package fieldpath

import "testing"

func TestValid(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"Patient.demographics", true},
		{"Observation.vital-signs", true},
		{"AllergyIntolerance", true},
		{"Observation.*", true},
		{"*", true},
		{"patient.identifier.value", true},
		{"", false},
		{"a.b.c.d.e", false},
		{"Observation..genetic", false},
		{"*.genetic", false},
		{"Observation.gen etic", false},
		{"Observation.gen/etic", false},
	}
	for _, tc := range cases {
		if got := Valid(tc.path); got != tc.want {
			t.Errorf("Valid(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestParentAndRoot(t *testing.T) {
	if got := Parent("Observation.vital-signs"); got != "Observation" {
		t.Errorf("Parent = %q", got)
	}
	if got := Parent("AllergyIntolerance"); got != "" {
		t.Errorf("Parent of single segment = %q, want empty", got)
	}
	if got := Root("patient.identifier.value"); got != "patient" {
		t.Errorf("Root = %q", got)
	}
	if got := Root("AllergyIntolerance"); got != "AllergyIntolerance" {
		t.Errorf("Root of single segment = %q", got)
	}
}

func TestMatches(t *testing.T) {
	cases := []struct {
		pattern, path string
		want          bool
	}{
		{"*", "Observation.genetic", true},
		{"Observation.genetic", "Observation.genetic", true},
		{"Observation.*", "Observation.genetic", true},
		{"Observation.*", "Observation", true},
		{"Observation.*", "Condition.diagnosis", false},
		{"Observation", "Observation.genetic", false},
		{"Observation.vital-signs", "Observation.genetic", false},
	}
	for _, tc := range cases {
		if got := Matches(tc.pattern, tc.path); got != tc.want {
			t.Errorf("Matches(%q, %q) = %v, want %v", tc.pattern, tc.path, got, tc.want)
		}
	}
}

func TestCoverOf(t *testing.T) {
	cases := []struct {
		pattern, path string
		want          Cover
	}{
		{"Observation.genetic", "Observation.genetic", CoverExact},
		{"Observation.*", "Observation.genetic", CoverParent},
		{"Observation", "Observation.genetic", CoverParent},
		{"*", "Observation.genetic", CoverWildcard},
		{"Condition", "Observation.genetic", CoverNone},
		{"Condition.*", "Observation.genetic", CoverNone},
	}
	for _, tc := range cases {
		if got := CoverOf(tc.pattern, tc.path); got != tc.want {
			t.Errorf("CoverOf(%q, %q) = %v, want %v", tc.pattern, tc.path, got, tc.want)
		}
	}
}
