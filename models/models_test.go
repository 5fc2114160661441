package models

import (
	"errors"
	"testing"
)

func TestValidateDomain(t *testing.T) {
	valid := []string{
		"example.com",
		"sub.example-site.co",
		"a.b.c.d",
		"xn--nxasmq6b.com",
		"localhost",
	}
	for _, d := range valid {
		if err := ValidateDomain(d); err != nil {
			t.Errorf("ValidateDomain(%q) = %v, want nil", d, err)
		}
	}

	invalid := []string{
		"",
		"invalid_domain.com",
		"-lead.com",
		"trail-.com",
		"UPPER.com",
		"spaces here.com",
		"dot..dot.com",
	}
	for _, d := range invalid {
		if err := ValidateDomain(d); !errors.Is(err, ErrInvalidDomain) {
			t.Errorf("ValidateDomain(%q) = %v, want ErrInvalidDomain", d, err)
		}
	}
}

func TestValidateSystemUser(t *testing.T) {
	for _, name := range []string{"u_example", "_svc", "web-01", "a"} {
		if err := ValidateSystemUser(name); err != nil {
			t.Errorf("ValidateSystemUser(%q) = %v, want nil", name, err)
		}
	}
	for _, name := range []string{"", "1leading", "Upper", "has space", "u_really_long_username_over_32_chars_x"} {
		if err := ValidateSystemUser(name); !errors.Is(err, ErrInvalidIdentity) {
			t.Errorf("ValidateSystemUser(%q) = %v, want ErrInvalidIdentity", name, err)
		}
	}
}

func TestDeriveSystemUser(t *testing.T) {
	cases := map[string]string{
		"example.com":                    "u_example",
		"my-shop.example.com":            "u_myshop",
		"averylongdomainlabel.com":       "u_averylongdom",
		"shop2.co":                       "u_shop2",
	}
	for domain, want := range cases {
		if got := DeriveSystemUser(domain); got != want {
			t.Errorf("DeriveSystemUser(%q) = %q, want %q", domain, got, want)
		}
	}
	if err := ValidateSystemUser(DeriveSystemUser("my-shop.example.com")); err != nil {
		t.Errorf("derived identity should always validate: %v", err)
	}
}
