package utils

import "testing"

func TestEmailToKey(t *testing.T) {
	tests := []struct {
		email string
		want  string
	}{
		{"alice@example.com", "alice@example%2Ecom"},
		{"bob.smith@mail.co", "bob%2Esmith@mail%2Eco"},
		{"weird#$[]/@x.y", "weird%23%24%5B%5D%2F@x%2Ey"},
		{"pre%25cent@a.b", "pre%2525cent@a%2Eb"},
		{"plain@host", "plain@host"},
	}

	for _, tt := range tests {
		if got := EmailToKey(tt.email); got != tt.want {
			t.Fatalf("EmailToKey(%q) = %q, want %q", tt.email, got, tt.want)
		}
	}
}

func TestEmailToKeyDeterministic(t *testing.T) {
	email := "alice.b#1@example.com"
	first := EmailToKey(email)
	for i := 0; i < 10; i++ {
		if got := EmailToKey(email); got != first {
			t.Fatalf("EmailToKey not deterministic: %q vs %q", got, first)
		}
	}
}

func TestEmailToKeyInjective(t *testing.T) {
	// Addresses that would collide under a naive strip-the-dots scheme.
	emails := []string{
		"a.b@c.d",
		"a%2Eb@c.d",
		"a%b@c.d",
		"a.b@c%2Ed",
		"ab@cd",
		"a#b@c.d",
		"a%23b@c.d",
	}
	seen := make(map[string]string)
	for _, email := range emails {
		key := EmailToKey(email)
		if prev, ok := seen[key]; ok {
			t.Fatalf("key collision: %q and %q both map to %q", prev, email, key)
		}
		seen[key] = email
	}
}

func TestValidEmailShape(t *testing.T) {
	tests := []struct {
		email string
		want  bool
	}{
		{"alice@example.com", true},
		{"a@b", true},
		{"", false},
		{"@example.com", false},
		{"alice@", false},
		{"no-at-sign", false},
		{"has space@example.com", false},
		{"tab\t@example.com", false},
	}

	for _, tt := range tests {
		if got := ValidEmailShape(tt.email); got != tt.want {
			t.Fatalf("ValidEmailShape(%q) = %v, want %v", tt.email, got, tt.want)
		}
	}
}
