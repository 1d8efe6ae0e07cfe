package util

import (
	"testing"
)

func TestParseBoolEnv(t *testing.T) {
	tests := []struct {
		name  string
		value string
		def   bool
		want  bool
	}{
		{"unset uses default", "", true, true},
		{"true", "true", false, true},
		{"one", "1", false, true},
		{"yes upper", "YES", false, true},
		{"false", "false", true, false},
		{"zero", "0", true, false},
		{"off", "off", true, false},
		{"garbage uses default", "maybe", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				t.Setenv("PARTSFLOW_TEST_BOOL", tt.value)
			}
			if got := ParseBoolEnv("PARTSFLOW_TEST_BOOL", tt.def); got != tt.want {
				t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tt.value, tt.def, got, tt.want)
			}
		})
	}
}

func TestGetenvDefault(t *testing.T) {
	if got := GetenvDefault("PARTSFLOW_TEST_UNSET", "fallback"); got != "fallback" {
		t.Errorf("GetenvDefault unset = %q, want fallback", got)
	}
	t.Setenv("PARTSFLOW_TEST_SET", "value")
	if got := GetenvDefault("PARTSFLOW_TEST_SET", "fallback"); got != "value" {
		t.Errorf("GetenvDefault set = %q, want value", got)
	}
}

func TestNewID(t *testing.T) {
	a := NewID()
	b := NewID()

	if len(a) != 32 {
		t.Errorf("NewID length = %d, want 32", len(a))
	}
	if a == b {
		t.Error("NewID returned duplicate identifiers")
	}
	for _, c := range a {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			t.Errorf("NewID contains non-hex character %q", c)
		}
	}
}
