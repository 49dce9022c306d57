package phone

import "testing"

func TestNormalizeE164(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		input  string
		region string
		want   string
	}{
		{"national US", "(650) 253-0000", "US", "+16502530000"},
		{"already e164", "+16502530000", "US", "+16502530000"},
		{"international with spaces", " +1 650 253 0000 ", "NL", "+16502530000"},
		{"default region", "650-253-0000", "", "+16502530000"},
		{"garbage returned trimmed", "  not-a-number ", "US", "not-a-number"},
		{"empty", "   ", "US", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeE164(tc.input, tc.region); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestValid(t *testing.T) {
	t.Parallel()

	if !Valid("+16502530000", "US") {
		t.Fatalf("expected valid number")
	}
	if Valid("12", "US") {
		t.Fatalf("expected invalid number")
	}
}
