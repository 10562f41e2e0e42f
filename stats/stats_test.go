package stats

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestReporterWritesHeaderAndRows(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stats.csv")

	c := &Counters{}
	c.AddData()
	c.AddData()
	c.AddParity()
	c.SetLost(2)

	done := make(chan struct{})
	go Reporter(path, 10*time.Millisecond, c, done)

	time.Sleep(35 * time.Millisecond)
	close(done)
	time.Sleep(10 * time.Millisecond)

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lines := 0
	var first string
	for scanner.Scan() {
		if lines == 0 {
			first = scanner.Text()
		}
		lines++
	}
	if lines < 2 {
		t.Fatalf("expected a header plus at least one data row, got %d lines", lines)
	}
	want := "Unix,DataFrames,ParityFrames,LostSlots,Complete"
	if first != want {
		t.Fatalf("header = %q, want %q", first, want)
	}
}

func TestReporterNoopOnEmptyPath(t *testing.T) {
	c := &Counters{}
	done := make(chan struct{})
	close(done)
	// Must return immediately without blocking or panicking.
	Reporter("", time.Millisecond, c, done)
}
