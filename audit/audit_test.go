package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestRecentNewestFirst(t *testing.T) {
	trail, err := New("")
	if err != nil {
		t.Fatal(err)
	}
	trail.Record("admin", "site created", "a.com", "success")
	trail.Record("admin", "site created", "b.com", "success")

	recent := trail.Recent()
	if len(recent) != 2 {
		t.Fatalf("got %d entries, want 2", len(recent))
	}
	if recent[0].Target != "b.com" || recent[1].Target != "a.com" {
		t.Errorf("entries not newest-first: %+v", recent)
	}
}

func TestRingCap(t *testing.T) {
	trail, err := New("")
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < ringSize+20; i++ {
		trail.Record("admin", "action", fmt.Sprintf("t%d", i), "success")
	}
	recent := trail.Recent()
	if len(recent) != ringSize {
		t.Errorf("ring holds %d, want %d", len(recent), ringSize)
	}
	if recent[0].Target != fmt.Sprintf("t%d", ringSize+19) {
		t.Errorf("newest entry = %q", recent[0].Target)
	}
}

func TestFileSinkWritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	trail, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	trail.Record("billing", "tenant termination queued", "u_acme", "queued")
	if err := trail.log.Sync(); err != nil {
		t.Logf("sync: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	scanner := bufio.NewScanner(file)
	if !scanner.Scan() {
		t.Fatal("audit file is empty")
	}
	var line map[string]any
	if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
		t.Fatalf("line is not JSON: %v", err)
	}
	if line["actor"] != "billing" || line["target"] != "u_acme" {
		t.Errorf("line = %v", line)
	}
}
