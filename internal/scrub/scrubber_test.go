package scrub

import (
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/researchflow/phi-sentinel/internal/phi"
)

func newTestScrubber(t *testing.T) *Scrubber {
	t.Helper()
	lib, err := phi.NewLibrary(phi.DefaultPatternTable(), zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to load default table: %v", err)
	}
	return New(phi.NewScanner(lib, phi.ScannerConfig{}, zap.NewNop()))
}

func TestValue(t *testing.T) {
	scrubber := newTestScrubber(t)

	t.Run("StringLeaf", func(t *testing.T) {
		got := scrubber.Value("SSN: 123-45-6789")
		if got != "SSN: [REDACTED:SSN]" {
			t.Errorf("Value = %q", got)
		}
	})

	t.Run("MapValue", func(t *testing.T) {
		in := map[string]any{"contact": "jd@example.org"}
		got := scrubber.Value(in).(map[string]any)
		if got["contact"] != "[REDACTED:EMAIL]" {
			t.Errorf("Value = %q", got["contact"])
		}
		// Input must not be mutated.
		if in["contact"] != "jd@example.org" {
			t.Error("Input map was mutated")
		}
	})

	t.Run("MapKeysAreScrubbed", func(t *testing.T) {
		in := map[string]any{"jd@example.org": true}
		got := scrubber.Value(in).(map[string]any)
		if _, ok := got["[REDACTED:EMAIL]"]; !ok {
			t.Errorf("Key not scrubbed: %+v", got)
		}
	})

	t.Run("NestedStructures", func(t *testing.T) {
		in := map[string]any{
			"note": "patient reachable at (555) 867-5309",
			"tags": []any{"routine", "MRN: 4412876"},
			"meta": map[string]string{"addr": "12 Main Street"},
		}
		got := scrubber.Value(in).(map[string]any)

		if got["note"] != "patient reachable at [REDACTED:PHONE]" {
			t.Errorf("note = %q", got["note"])
		}
		tags := got["tags"].([]any)
		if tags[0] != "routine" {
			t.Errorf("tags[0] = %q, clean string changed", tags[0])
		}
		if tags[1] != "[REDACTED:MRN]" {
			t.Errorf("tags[1] = %q", tags[1])
		}
		meta := got["meta"].(map[string]string)
		if meta["addr"] != "[REDACTED:ADDRESS]" {
			t.Errorf("meta.addr = %q", meta["addr"])
		}
	})

	t.Run("NonStringScalarsPassThrough", func(t *testing.T) {
		now := time.Now()
		in := map[string]any{
			"count": 42,
			"ratio": 0.5,
			"ok":    true,
			"when":  now,
			"gone":  nil,
		}
		got := scrubber.Value(in).(map[string]any)
		if got["count"] != 42 || got["ratio"] != 0.5 || got["ok"] != true {
			t.Errorf("Scalars changed: %+v", got)
		}
		if !got["when"].(time.Time).Equal(now) {
			t.Error("Timestamp changed")
		}
		if got["gone"] != nil {
			t.Errorf("nil changed to %v", got["gone"])
		}
	})

	t.Run("StringSlice", func(t *testing.T) {
		got := scrubber.Value([]string{"clean", "123-45-6789"}).([]string)
		if got[1] != "[REDACTED:SSN]" {
			t.Errorf("got = %+v", got)
		}
	})

	t.Run("NonStringMapKeysStayDistinct", func(t *testing.T) {
		in := map[int]any{
			1: "123-45-6789",
			2: "plain",
		}
		got := scrubber.Value(in).(map[string]any)
		if len(got) != 2 {
			t.Fatalf("Entries = %d, want 2: %+v", len(got), got)
		}
		if got["1"] != "[REDACTED:SSN]" {
			t.Errorf(`got["1"] = %v`, got["1"])
		}
		if got["2"] != "plain" {
			t.Errorf(`got["2"] = %v`, got["2"])
		}
	})
}

func TestValueCycles(t *testing.T) {
	scrubber := newTestScrubber(t)

	t.Run("SelfReferentialMap", func(t *testing.T) {
		m := map[string]any{"ssn": "123-45-6789"}
		m["self"] = m

		got := scrubber.Value(m).(map[string]any)
		if got["self"] != CircularMarker {
			t.Errorf("self = %v, want %q", got["self"], CircularMarker)
		}
		if got["ssn"] != "[REDACTED:SSN]" {
			t.Errorf("ssn = %q", got["ssn"])
		}
	})

	t.Run("MutualCycle", func(t *testing.T) {
		a := map[string]any{}
		b := map[string]any{"back": a}
		a["forward"] = b

		got := scrubber.Value(a).(map[string]any)
		forward := got["forward"].(map[string]any)
		if forward["back"] != CircularMarker {
			t.Errorf("back = %v, want %q", forward["back"], CircularMarker)
		}
	})

	t.Run("SharedButAcyclicIsNotMarked", func(t *testing.T) {
		shared := map[string]any{"v": "x"}
		in := map[string]any{"a": shared, "b": shared}

		got := scrubber.Value(in).(map[string]any)
		if got["a"] == CircularMarker || got["b"] == CircularMarker {
			t.Error("Shared sibling container marked as circular")
		}
	})

	t.Run("CyclicSlice", func(t *testing.T) {
		s := []any{nil}
		s[0] = s

		got := scrubber.Value(s).([]any)
		if got[0] != CircularMarker {
			t.Errorf("got[0] = %v, want %q", got[0], CircularMarker)
		}
	})
}

func TestValueThroughput(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping throughput test in short mode")
	}
	scrubber := newTestScrubber(t)

	const objects = 10000
	start := time.Now()
	for i := 0; i < objects; i++ {
		scrubber.Value(map[string]any{
			"id":   fmt.Sprintf("obj-%d", i),
			"note": "routine follow up scheduled",
		})
	}
	elapsed := time.Since(start)

	perSec := float64(objects) / elapsed.Seconds()
	if perSec < 10000 {
		t.Errorf("Scrub throughput %.0f objects/sec, want >= 10000", perSec)
	}
}

func BenchmarkValue(b *testing.B) {
	lib, err := phi.NewLibrary(phi.DefaultPatternTable(), zap.NewNop())
	if err != nil {
		b.Fatalf("Failed to load default table: %v", err)
	}
	scrubber := New(phi.NewScanner(lib, phi.ScannerConfig{}, zap.NewNop()))

	payload := map[string]any{
		"id":      "obj-1",
		"note":    "routine follow up scheduled",
		"contact": "jd@example.org",
		"nested":  map[string]any{"tags": []any{"a", "b"}},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		scrubber.Value(payload)
	}
}
