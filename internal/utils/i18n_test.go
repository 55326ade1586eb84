package utils

import (
	"reflect"
	"testing"
)

func TestT(t *testing.T) {
	cases := []struct {
		locale, key, want string
	}{
		{"fr", "health.ok", "ok"},
		{"zh", "error.not_found", "问卷不存在"},
		{"en", "error.inactive", "This survey is not accepting responses"},
		{"en", "no.such.key", "no.such.key"},
	}
	for _, c := range cases {
		if got := T(c.locale, c.key); got != c.want {
			t.Fatalf("T(%q, %q) = %q, want %q", c.locale, c.key, got, c.want)
		}
	}
}

func TestTranslationsShareKeys(t *testing.T) {
	for key := range translations["en"] {
		if _, ok := translations["zh"][key]; !ok {
			t.Fatalf("zh is missing %q", key)
		}
	}
	if got := Locales(); !reflect.DeepEqual(got, []string{"en", "zh"}) {
		t.Fatalf("locales = %v", got)
	}
}
