package dotenv

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFile_MissingFileIsNoop(t *testing.T) {
	t.Parallel()
	if err := LoadFile(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Fatalf("LoadFile missing file error: %v", err)
	}
}

func TestLoadFile_LoadsValuesAndPreservesExisting(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), ".env")
	content := "" +
		"# comment\n" +
		"COVERCALL_ADDR=:9090\n" +
		"QUOTED=\"hello world\"\n" +
		"export EXPORTED=ok\n" +
		"EXISTING=from_file\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	t.Setenv("EXISTING", "already_set")
	t.Setenv("COVERCALL_ADDR", "")
	os.Unsetenv("COVERCALL_ADDR")
	defer os.Unsetenv("QUOTED")
	defer os.Unsetenv("EXPORTED")
	defer os.Unsetenv("COVERCALL_ADDR")

	if err := LoadFile(envPath); err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}

	if got := os.Getenv("COVERCALL_ADDR"); got != ":9090" {
		t.Fatalf("COVERCALL_ADDR=%q, want %q", got, ":9090")
	}
	if got := os.Getenv("QUOTED"); got != "hello world" {
		t.Fatalf("QUOTED=%q, want %q", got, "hello world")
	}
	if got := os.Getenv("EXPORTED"); got != "ok" {
		t.Fatalf("EXPORTED=%q, want %q", got, "ok")
	}
	if got := os.Getenv("EXISTING"); got != "already_set" {
		t.Fatalf("EXISTING=%q, want existing value preserved", got)
	}
}

func TestParseLine(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in  string
		key string
		val string
		ok  bool
	}{
		{"KEY=value", "KEY", "value", true},
		{"export KEY=value", "KEY", "value", true},
		{"KEY='quoted'", "KEY", "quoted", true},
		{"# comment", "", "", false},
		{"", "", "", false},
		{"=nokey", "", "", false},
	}
	for _, c := range cases {
		key, val, ok := parseLine(c.in)
		if key != c.key || val != c.val || ok != c.ok {
			t.Fatalf("parseLine(%q)=(%q,%q,%v), want (%q,%q,%v)", c.in, key, val, ok, c.key, c.val, c.ok)
		}
	}
}
