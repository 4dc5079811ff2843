package analyzer

import "testing"

func TestIdentifierMatcherFind(t *testing.T) {
	m, err := newIdentifierMatcher(`(?:governor\s*)?id`, 6, 20)
	if err != nil {
		t.Fatalf("newIdentifierMatcher: %v", err)
	}
	cases := []struct {
		name string
		text string
		want string
	}{
		{"labelled", "Governor ID: 58532591", "58532591"},
		{"full width", "ＩＤ：５８５３２５９１", "58532591"},
		{"split digits", "id 5853 2591", "58532591"},
		{"hash separator", "GovernorID#58532591", "58532591"},
		{"leading group wins", "ID 58532591 12345678", "58532591"},
		{"too short", "ID 12345", ""},
		{"no label", "Power 58532591", ""},
		{"label inside word", "identity 123456", ""},
		{"second label matches", "ID 12\nGovernor ID 7654321", "7654321"},
		{"glued", "ID58532591", "58532591"},
		{"glued with prefix", "Governor ID58532591", "58532591"},
		{"label then letters", "idx 58532591", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := m.Find(tc.text)
			if tc.want == "" {
				if ok {
					t.Fatalf("expected no match, got %q", got)
				}
				return
			}
			if !ok || got != tc.want {
				t.Fatalf("Find(%q) = %q,%v want %q", tc.text, got, ok, tc.want)
			}
		})
	}
}
