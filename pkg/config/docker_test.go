package config

import (
	"testing"
)

func TestResolveHostForDocker_NonLoopbackUnchanged(t *testing.T) {
	tests := []string{"mydb.example.com", "192.168.1.100", "host.docker.internal"}

	for _, host := range tests {
		// These hosts are never modified regardless of Docker status
		if got := ResolveHostForDocker(host); got != host {
			t.Errorf("ResolveHostForDocker(%q) = %q, want unchanged", host, got)
		}
	}
}

func TestResolveHostForDocker_LocalhostVariants(t *testing.T) {
	for _, host := range []string{"localhost", "127.0.0.1"} {
		result := ResolveHostForDocker(host)
		if IsRunningInDocker() {
			if result != dockerHostAlias {
				t.Errorf("ResolveHostForDocker(%q) in Docker = %q, want %q", host, result, dockerHostAlias)
			}
		} else if result != host {
			t.Errorf("ResolveHostForDocker(%q) not in Docker = %q, want %q", host, result, host)
		}
	}
}

func TestResolveURLLoopback(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"http://localhost:30000/v1", "http://host.docker.internal:30000/v1"},
		{"http://127.0.0.1/v1", "http://host.docker.internal/v1"},
		{"https://api.openai.com/v1", "https://api.openai.com/v1"},
		{"http://sparkone:30000/v1", "http://sparkone:30000/v1"},
		{"not a url", "not a url"},
		{"://bad", "://bad"},
	}

	for _, tt := range tests {
		if got := resolveURLLoopback(tt.input); got != tt.expected {
			t.Errorf("resolveURLLoopback(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestResolveURLForDocker_Empty(t *testing.T) {
	if got := ResolveURLForDocker(""); got != "" {
		t.Errorf("ResolveURLForDocker(\"\") = %q, want empty", got)
	}
}

func TestIsRunningInDocker_Cached(t *testing.T) {
	first := IsRunningInDocker()
	if second := IsRunningInDocker(); second != first {
		t.Errorf("IsRunningInDocker changed between calls: %v then %v", first, second)
	}
}
