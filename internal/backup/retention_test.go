package backup

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testArchives(now time.Time) []Info {
	return []Info{
		{Path: "/b/5", CreatedAt: now, Size: 100},
		{Path: "/b/4", CreatedAt: now.Add(-1 * time.Hour), Size: 100},
		{Path: "/b/3", CreatedAt: now.Add(-30 * time.Hour), Size: 100},
		{Path: "/b/2", CreatedAt: now.Add(-48 * time.Hour), Size: 100},
		{Path: "/b/1", CreatedAt: now.Add(-720 * time.Hour), Size: 100},
	}
}

func paths(infos []Info) []string {
	out := make([]string, len(infos))
	for i, a := range infos {
		out[i] = a.Path
	}
	return out
}

func TestPolicies(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name   string
		policy RetentionPolicy
		want   []string
	}{
		{"count", &CountPolicy{MaxCount: 3}, []string{"/b/5", "/b/4", "/b/3"}},
		{"count above total", &CountPolicy{MaxCount: 9}, []string{"/b/5", "/b/4", "/b/3", "/b/2", "/b/1"}},
		{"age", &AgePolicy{MaxAge: 24 * time.Hour}, []string{"/b/5", "/b/4"}},
		{"size", &SizePolicy{MaxTotalBytes: 250}, []string{"/b/5", "/b/4"}},
		{"size keeps newest", &SizePolicy{MaxTotalBytes: 10}, []string{"/b/5"}},
		{"composite union", &CompositePolicy{Policies: []RetentionPolicy{
			&CountPolicy{MaxCount: 1},
			&AgePolicy{MaxAge: 36 * time.Hour},
		}}, []string{"/b/5", "/b/4", "/b/3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := paths(tt.policy.Apply(testArchives(now)))
			if len(got) != len(tt.want) {
				t.Fatalf("kept %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("kept %v, want %v", got, tt.want)
					break
				}
			}
		})
	}
}

func TestListAndApplyRetention(t *testing.T) {
	dir := t.TempDir()
	names := []string{
		"nestsim-runs-20260101-000000.json.gz",
		"nestsim-runs-20260102-000000.json.gz",
		"nestsim-runs-20260103-000000.json.gz",
		"notes.txt",
	}
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("x\n"), 0600); err != nil {
			t.Fatal(err)
		}
	}

	archives, err := List(dir)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(archives) != 3 {
		t.Fatalf("List() found %d archives, want 3", len(archives))
	}
	if filepath.Base(archives[0].Path) != names[2] {
		t.Errorf("newest = %s, want %s", archives[0].Path, names[2])
	}

	deleted, err := ApplyRetention(dir, &CountPolicy{MaxCount: 1})
	if err != nil {
		t.Fatalf("ApplyRetention() error = %v", err)
	}
	if len(deleted) != 2 {
		t.Errorf("deleted %v, want 2 archives", deleted)
	}
	if _, err := os.Stat(filepath.Join(dir, names[2])); err != nil {
		t.Errorf("newest archive removed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "notes.txt")); err != nil {
		t.Errorf("unrelated file removed: %v", err)
	}
}

func TestList_MissingDir(t *testing.T) {
	archives, err := List(filepath.Join(t.TempDir(), "absent"))
	if err != nil || archives != nil {
		t.Errorf("List() = %v, %v; want nil, nil", archives, err)
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"720h", 720 * time.Hour, false},
		{"30d", 30 * 24 * time.Hour, false},
		{"2w", 14 * 24 * time.Hour, false},
		{"", 0, true},
		{"d", 0, true},
		{"3y", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDuration(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseDuration(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"500KB", 500 * 1000, false},
		{"100MiB", 100 * 1024 * 1024, false},
		{"1GB", 1000 * 1000 * 1000, false},
		{"42", 42, false},
		{"lots", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSize(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSize(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseSize(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}
