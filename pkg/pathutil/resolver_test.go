package pathutil

import (
	"path/filepath"
	"testing"
	"time"
)

func TestNewDefaults(t *testing.T) {
	p := New(Config{Root: "/data/tb"})

	if got := p.GetRoot(); got != "/data/tb" {
		t.Errorf("GetRoot() = %q, want /data/tb", got)
	}
	if got, want := p.GetDatabasePath(), filepath.Join("/data/tb", ".archive", "reports.db"); got != want {
		t.Errorf("GetDatabasePath() = %q, want %q", got, want)
	}
	if got, want := p.GetExportDir(), filepath.Join("/data/tb", "exports"); got != want {
		t.Errorf("GetExportDir() = %q, want %q", got, want)
	}

	p = New(Config{Root: "/data/tb", DatabasePath: "/tmp/x.db", ExportDir: "/tmp/out"})
	if p.GetDatabasePath() != "/tmp/x.db" || p.GetExportDir() != "/tmp/out" {
		t.Errorf("explicit paths not honoured: %q %q", p.GetDatabasePath(), p.GetExportDir())
	}
}

func TestGetExportPath(t *testing.T) {
	p := New(Config{Root: "/data"})
	at := time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		label   string
		ext     string
		want    string
		wantErr bool
	}{
		{name: "simple", label: "March Close", ext: "csv", want: "/data/exports/2026/03/variance-march-close.csv"},
		{name: "dotted ext", label: "q1", ext: ".xlsx", want: "/data/exports/2026/03/variance-q1.xlsx"},
		{name: "empty label", label: "  --  ", ext: "csv", wantErr: true},
		{name: "empty ext", label: "q1", ext: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.GetExportPath(tt.label, tt.ext, at)
			if (err != nil) != tt.wantErr {
				t.Fatalf("GetExportPath() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != filepath.FromSlash(tt.want) && !tt.wantErr {
				t.Errorf("GetExportPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"March Close":         "march-close",
		"tb_2026-03.xlsx":     "tb-2026-03-xlsx",
		"  leading/trailing ": "leading-trailing",
		"":                    "",
	}
	for in, want := range tests {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEnsureParentDir(t *testing.T) {
	root := t.TempDir()
	p := New(Config{Root: root})

	path, err := p.GetExportPath("test", "csv", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if err := p.EnsureParentDir(path); err != nil {
		t.Fatalf("EnsureParentDir() error = %v", err)
	}
	if !p.FileExists(filepath.Dir(path)) {
		t.Errorf("directory %s was not created", filepath.Dir(path))
	}
	if p.FileExists(path) {
		t.Errorf("FileExists(%s) = true before anything was written", path)
	}
}
