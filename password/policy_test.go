package password

import "testing"

func TestPolicyCheck(t *testing.T) {
	policy := DefaultPolicy()

	cases := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"valid", "Sup3r-Secret!", false},
		{"too short", "Ab1!xyz", true},
		{"missing upper", "sup3r-secret!", true},
		{"missing lower", "SUP3R-SECRET!", true},
		{"missing digit", "Super-Secret!", true},
		{"missing special", "Sup3rSecret99", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := policy.Check(tc.password)
			if tc.wantErr && err == nil {
				t.Fatalf("Check(%q) = nil, want error", tc.password)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("Check(%q) error: %v", tc.password, err)
			}
		})
	}
}

func TestPolicyCheckRelaxed(t *testing.T) {
	policy := Policy{MinLength: 4}

	if err := policy.Check("abcd"); err != nil {
		t.Fatalf("expected relaxed policy to accept simple password: %v", err)
	}
	if err := policy.Check("abc"); err == nil {
		t.Fatal("expected relaxed policy to still enforce minimum length")
	}
}
