package sample

import (
	"bytes"
	"strings"
	"testing"
)

func TestCount(t *testing.T) {
	if got := Count(); got != 46 {
		t.Errorf("Count() = %d, want 46", got)
	}
}

func TestDataShape(t *testing.T) {
	lines := strings.Split(strings.TrimRight(string(Data()), "\n"), "\n")
	if lines[0] != "Date,Time,Transaction Details,Amount,Tags" {
		t.Errorf("unexpected header %q", lines[0])
	}
	if len(lines) != Count()+1 {
		t.Errorf("expected %d lines (header + rows), got %d", Count()+1, len(lines))
	}
	for i, line := range lines[1:] {
		if strings.Count(line, ",") < 4 {
			t.Errorf("row %d has too few columns: %q", i+1, line)
		}
	}
}

func TestDataReturnsCopy(t *testing.T) {
	a := Data()
	a[0] = 'X'
	b := Data()
	if bytes.Equal(a[:1], b[:1]) {
		t.Error("Data must return a defensive copy")
	}
}
