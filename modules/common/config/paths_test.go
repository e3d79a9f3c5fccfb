package config

import (
	"path/filepath"
	"testing"
)

func TestResolveConfigPath(t *testing.T) {
	tests := []struct {
		goos, home, pd, want string
	}{
		{"linux", "/home/u", "", filepath.Join("/etc", "wspush", "server.yaml")},
		{"darwin", "/Users/u", "", filepath.Join("/Users/u", "Library", "Application Support", "wspush", "server.yaml")},
		{"windows", "", "", filepath.Join("C:/ProgramData", "wspush", "server.yaml")},
		{"windows", "", "D:/Data/", filepath.Join("D:/Data", "wspush", "server.yaml")},
	}
	for _, tt := range tests {
		if got := ResolveConfigPath(tt.goos, tt.home, tt.pd, "server.yaml"); got != tt.want {
			t.Fatalf("ResolveConfigPath(%q) = %q; want %q", tt.goos, got, tt.want)
		}
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("WSPUSH_TEST_VAR", "x")
	if got := GetEnv("WSPUSH_TEST_VAR", "d"); got != "x" {
		t.Fatalf("GetEnv = %q", got)
	}
	t.Setenv("WSPUSH_TEST_VAR", "  ")
	if got := GetEnv("WSPUSH_TEST_VAR", "d"); got != "d" {
		t.Fatalf("GetEnv blank = %q", got)
	}
}
