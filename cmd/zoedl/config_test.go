package main

import "testing"

func TestParseBandwidthLimit(t *testing.T) {
	tests := []struct {
		input    string
		expected int64
		hasError bool
	}{
		{"1M", 1024 * 1024, false},
		{"1MB", 1024 * 1024, false},
		{"500K", 500 * 1024, false},
		{"500KB", 500 * 1024, false},
		{"100KB/s", 100 * 1024, false},
		{"1.5M", int64(1.5 * 1024 * 1024), false},
		{"1G", 1024 * 1024 * 1024, false},
		{"", 0, false},
		{"invalid", 0, true},
		{"1X", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := parseBandwidthLimit(tt.input)
			if tt.hasError {
				if err == nil {
					t.Errorf("expected error for input %s, but got none", tt.input)
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error for input %s: %v", tt.input, err)
				}
				if result != tt.expected {
					t.Errorf("for input %s, expected %d but got %d", tt.input, tt.expected, result)
				}
			}
		})
	}
}

func TestParseHashKind(t *testing.T) {
	tests := []struct {
		input    string
		hasError bool
	}{
		{"md5", false},
		{"MD5", false},
		{"crc32", false},
		{"sha256", false},
		{"", false},
		{"bogus", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := parseHashKind(tt.input)
			if tt.hasError && err == nil {
				t.Errorf("expected error for input %q, got none", tt.input)
			}
			if !tt.hasError && err != nil {
				t.Errorf("unexpected error for input %q: %v", tt.input, err)
			}
		})
	}
}

func TestBuildConfigFlagOverridesRCDefaults(t *testing.T) {
	rc := defaultRCConfig()
	rc.threadNum = 8

	cfg, err := buildConfig(rc, 16, "", "", "", "")
	if err != nil {
		t.Fatalf("buildConfig: %v", err)
	}
	if cfg.ThreadNum != 16 {
		t.Errorf("expected CLI thread_num to override rc default, got %d", cfg.ThreadNum)
	}
}

func TestBuildConfigFallsBackToRCWhenFlagUnset(t *testing.T) {
	rc := defaultRCConfig()
	rc.threadNum = 5

	cfg, err := buildConfig(rc, 0, "", "", "", "")
	if err != nil {
		t.Fatalf("buildConfig: %v", err)
	}
	if cfg.ThreadNum != 5 {
		t.Errorf("expected rc thread_num used when no flag given, got %d", cfg.ThreadNum)
	}
}

func TestBuildConfigRejectsBadHashValue(t *testing.T) {
	rc := defaultRCConfig()
	_, err := buildConfig(rc, 0, "", "", "bogus", "deadbeef")
	if err == nil {
		t.Fatal("expected an error for an unsupported hash kind")
	}
}
