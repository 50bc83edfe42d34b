package secret

import "testing"

func TestMask(t *testing.T) {
	tests := map[string]string{
		"":                          "",
		"abc":                       "***",
		"abcdef":                    "a****f",
		"abcdefghijklmnopqrstuvwxy": "abc*********************y",
	}
	for in, want := range tests {
		if got := Mask(in); got != want {
			t.Fatalf("Mask(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestMaskURL(t *testing.T) {
	tests := map[string]string{
		"localhost:6379":                "localhost:6379",
		"redis://cache:6379/0":          "redis://cache:6379/0",
		"redis://:hunter2@cache:6379/1": "redis://:h*****2@cache:6379/1",
		"rediss://app:pw@cache:6380":    "rediss://app:**@cache:6380",
		"redis://app@cache:6380":        "redis://app@cache:6380",
	}
	for in, want := range tests {
		if got := MaskURL(in); got != want {
			t.Fatalf("MaskURL(%q) = %q; want %q", in, got, want)
		}
	}
}
