package mounts

import (
	"testing"

	"github.com/docker/docker/api/types"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		raw      []types.MountPoint
		expected []string // expected host sources, in order
	}{
		{
			name:     "no mounts",
			raw:      nil,
			expected: nil,
		},
		{
			name: "bind and volume mounts with host paths",
			raw: []types.MountPoint{
				{Type: "bind", Source: "/srv/app/data", Destination: "/data"},
				{Type: "volume", Name: "pgdata", Source: "/var/lib/docker/volumes/pgdata/_data", Destination: "/var/lib/postgresql/data"},
			},
			expected: []string{"/srv/app/data", "/var/lib/docker/volumes/pgdata/_data"},
		},
		{
			name: "empty source excluded",
			raw: []types.MountPoint{
				{Type: "volume", Source: "", Destination: "/cache"},
				{Type: "bind", Source: "/srv/app", Destination: "/app"},
			},
			expected: []string{"/srv/app"},
		},
		{
			name: "relative source excluded",
			raw: []types.MountPoint{
				{Type: "bind", Source: "data", Destination: "/data"},
			},
			expected: nil,
		},
		{
			name: "duplicate host path deduplicated, first wins",
			raw: []types.MountPoint{
				{Type: "bind", Source: "/srv/shared", Destination: "/a"},
				{Type: "bind", Source: "/srv/shared", Destination: "/b"},
				{Type: "bind", Source: "/srv/other", Destination: "/c"},
			},
			expected: []string{"/srv/shared", "/srv/other"},
		},
		{
			name: "discovery order preserved",
			raw: []types.MountPoint{
				{Type: "bind", Source: "/z", Destination: "/z"},
				{Type: "bind", Source: "/a", Destination: "/a"},
				{Type: "bind", Source: "/m", Destination: "/m"},
			},
			expected: []string{"/z", "/a", "/m"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve("test-container", tt.raw)
			if len(got) != len(tt.expected) {
				t.Fatalf("Resolve() returned %d mounts, want %d", len(got), len(tt.expected))
			}
			for i, m := range got {
				if m.Source != tt.expected[i] {
					t.Errorf("Resolve()[%d].Source = %q, want %q", i, m.Source, tt.expected[i])
				}
				if m.Source == "" {
					t.Errorf("Resolve() produced a mount with empty host path")
				}
			}
		})
	}
}

func TestResolveKeepsDestination(t *testing.T) {
	got := Resolve("web", []types.MountPoint{
		{Type: "bind", Source: "/srv/www", Destination: "/var/www/html"},
	})
	if len(got) != 1 {
		t.Fatalf("Resolve() returned %d mounts, want 1", len(got))
	}
	if got[0].Destination != "/var/www/html" {
		t.Errorf("Destination = %q, want /var/www/html", got[0].Destination)
	}
}
