package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeGo(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("package q\n\n"+body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLintFindsMissingAndDuplicateMarkers(t *testing.T) {
	dir := t.TempDir()
	writeGo(t, dir, "a.go", "const QGood = `--sql 11111111-2222-4333-8444-555555555555\nselect 1;\n`\n\n"+
		"const QNoMarker = `select id from documents;`\n\n"+
		"const Greeting = \"hello\"\n")
	writeGo(t, dir, "b.go", "const QDup = `--sql 11111111-2222-4333-8444-555555555555\nupdate documents set status = 'ready';\n`\n\n"+
		"const QBadMarker = `--sql not-a-uuid\ndelete from video_jobs;\n`\n")

	violations, err := lint([]string{dir})
	if err != nil {
		t.Fatalf("lint: %v", err)
	}

	got := map[string]string{}
	for _, v := range violations {
		got[v.name] = v.message
	}
	if len(got) != 3 {
		t.Fatalf("violations = %+v, want 3", violations)
	}
	if !strings.Contains(got["QNoMarker"], "missing") {
		t.Fatalf("QNoMarker: %q", got["QNoMarker"])
	}
	if !strings.Contains(got["QBadMarker"], "invalid") {
		t.Fatalf("QBadMarker: %q", got["QBadMarker"])
	}
	if !strings.Contains(got["QDup"], "already used at") {
		t.Fatalf("QDup: %q", got["QDup"])
	}
}

func TestLintRepositoryQueries(t *testing.T) {
	violations, err := lint([]string{"../../sqlinline"})
	if err != nil {
		t.Fatalf("lint: %v", err)
	}
	for _, v := range violations {
		t.Errorf("%s:%d %s (%s)", v.file, v.line, v.message, v.name)
	}
}
