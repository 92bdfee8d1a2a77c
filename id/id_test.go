package id_test

import (
	"strings"
	"testing"

	"github.com/graphgate/graphgate/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"JobID", id.NewJobID, "cjob_"},
		{"WorkerID", id.NewWorkerID, "wkr_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	orig := id.NewJobID()

	parsed, err := id.Parse(orig.String())
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if parsed.String() != orig.String() {
		t.Errorf("round trip mismatch: %q != %q", parsed.String(), orig.String())
	}
	if parsed.Prefix() != id.PrefixJob {
		t.Errorf("expected prefix %q, got %q", id.PrefixJob, parsed.Prefix())
	}
}

func TestParseErrors(t *testing.T) {
	if _, err := id.Parse(""); err == nil {
		t.Error("expected error for empty string")
	}
	if _, err := id.Parse("not a typeid"); err == nil {
		t.Error("expected error for invalid string")
	}
	if _, err := id.ParseJobID(id.NewWorkerID().String()); err == nil {
		t.Error("expected error for wrong prefix")
	}
}

func TestNil(t *testing.T) {
	if !id.Nil.IsNil() {
		t.Error("Nil should report IsNil")
	}
	if id.Nil.String() != "" {
		t.Errorf("Nil should stringify empty, got %q", id.Nil.String())
	}
	if id.NewJobID().IsNil() {
		t.Error("generated ID should not be nil")
	}
}

func TestTextMarshalling(t *testing.T) {
	orig := id.NewWorkerID()

	data, err := orig.MarshalText()
	if err != nil {
		t.Fatalf("unexpected marshal error: %v", err)
	}

	var back id.ID
	if err := back.UnmarshalText(data); err != nil {
		t.Fatalf("unexpected unmarshal error: %v", err)
	}
	if back.String() != orig.String() {
		t.Errorf("round trip mismatch: %q != %q", back.String(), orig.String())
	}

	var zero id.ID
	if err := zero.UnmarshalText(nil); err != nil {
		t.Fatalf("unexpected unmarshal error for empty input: %v", err)
	}
	if !zero.IsNil() {
		t.Error("empty input should unmarshal to Nil")
	}
}
