package cache

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dshills/scribe/internal/redact"
)

func result(text string) redact.Result {
	return redact.Result{
		Text: text,
		Detections: []redact.Detection{{
			Category: redact.CategoryEmail, Rule: "email", Severity: redact.SeverityMedium,
			Start: 0, End: len(text), Replacement: text,
		}},
		Counts: redact.SeverityCounts{Medium: 1},
	}
}

// newCache returns an enabled cache in a temp dir whose clock the test
// controls.
func newCache(t *testing.T, ttlSeconds int) (*Cache, *time.Time) {
	t.Helper()
	c, err := New(true, t.TempDir(), ttlSeconds)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	clock := time.Date(2026, 5, 3, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }
	return c, &clock
}

func TestKeyHash(t *testing.T) {
	base := Key{Fingerprint: "fp1", Field: "body", Text: "text"}
	tests := []struct {
		name  string
		other Key
		same  bool
	}{
		{"identical", base, true},
		{"rule set", Key{"fp2", "body", "text"}, false},
		{"field", Key{"fp1", "title", "text"}, false},
		{"text", Key{"fp1", "body", "text!"}, false},
		{"boundary shift", Key{"fp1b", "ody", "text"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := base.Hash() == tt.other.Hash(); got != tt.same {
				t.Errorf("Hash equal = %v, want %v", got, tt.same)
			}
		})
	}
	if n := len(base.Hash()); n != 64 {
		t.Errorf("Hash length = %d, want 64", n)
	}
}

func TestCache_PutGet(t *testing.T) {
	c, _ := newCache(t, 3600)
	key := Key{Fingerprint: "fp", Field: "body", Text: "mail me"}

	if _, ok := c.Get(key); ok {
		t.Error("expected a miss before Put")
	}
	if err := c.Put(context.Background(), key, result("[EMAIL_REMOVED]")); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	got, ok := c.Get(key)
	if !ok {
		t.Fatal("expected a hit after Put")
	}
	if got.Text != "[EMAIL_REMOVED]" || len(got.Detections) != 1 || got.Counts.Medium != 1 {
		t.Errorf("Get = %+v", got)
	}

	hash := key.Hash()
	if _, err := os.Stat(filepath.Join(c.Dir(), hash[:2], hash+".json")); err != nil {
		t.Errorf("entry not sharded by hash prefix: %v", err)
	}
}

func TestCache_TTLExpiration(t *testing.T) {
	c, clock := newCache(t, 60)
	key := Key{Fingerprint: "fp", Field: "body", Text: "x"}
	if err := c.Put(context.Background(), key, result("x")); err != nil {
		t.Fatal(err)
	}

	*clock = clock.Add(59 * time.Second)
	if _, ok := c.Get(key); !ok {
		t.Error("expected a hit inside the TTL")
	}
	*clock = clock.Add(2 * time.Second)
	if _, ok := c.Get(key); ok {
		t.Error("expected a miss after the TTL")
	}
	if st, _ := c.GetStats("fp"); st.Entries != 0 {
		t.Errorf("expired entry should be removed on read, %d left", st.Entries)
	}
}

func TestCache_Disabled(t *testing.T) {
	c, err := New(false, "", 0)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if c.Enabled() {
		t.Error("cache should be disabled")
	}
	key := Key{Text: "value"}
	if err := c.Put(context.Background(), key, result("value")); err != nil {
		t.Errorf("Put on disabled cache should not error: %v", err)
	}
	if _, ok := c.Get(key); ok {
		t.Error("Get on disabled cache should always miss")
	}
	if n, err := c.Clear(); err != nil || n != 0 {
		t.Errorf("Clear on disabled cache = %d, %v", n, err)
	}
}

func TestCache_ClearAndPrune(t *testing.T) {
	c, clock := newCache(t, 60)
	ctx := context.Background()
	put := func(fp, text string) {
		t.Helper()
		if err := c.Put(ctx, Key{Fingerprint: fp, Field: "body", Text: text}, result(text)); err != nil {
			t.Fatal(err)
		}
	}

	put("old-rules", "a")
	*clock = clock.Add(2 * time.Minute)
	put("rules", "b")
	put("old-rules", "c")
	put("rules", "d")
	junk := filepath.Join(c.Dir(), "ff", "junk.json")
	if err := os.MkdirAll(filepath.Dir(junk), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(junk, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	st, err := c.GetStats("rules")
	if err != nil {
		t.Fatalf("GetStats error: %v", err)
	}
	if st.Entries != 5 || st.Expired != 1 || st.Stale != 2 || st.TotalBytes <= 0 {
		t.Errorf("stats = %+v, want 5 entries, 1 expired, 2 stale", st)
	}

	// Expired "a", stale "c" and the junk file go; "b" and "d" stay.
	n, err := c.Prune("rules")
	if err != nil || n != 3 {
		t.Fatalf("Prune = %d, %v, want 3", n, err)
	}
	for _, text := range []string{"b", "d"} {
		if _, ok := c.Get(Key{Fingerprint: "rules", Field: "body", Text: text}); !ok {
			t.Errorf("%q should survive Prune", text)
		}
	}

	n, err = c.Clear()
	if err != nil || n != 2 {
		t.Errorf("Clear = %d, %v, want 2", n, err)
	}
	if st, _ := c.GetStats("rules"); st.Entries != 0 {
		t.Errorf("entries after Clear = %d", st.Entries)
	}
}

func TestCache_HitMissCounters(t *testing.T) {
	c, _ := newCache(t, 0)
	key := Key{Fingerprint: "fp", Field: "body", Text: "v"}
	_ = c.Put(context.Background(), key, result("v"))
	c.Get(key)
	c.Get(Key{Fingerprint: "fp", Field: "body", Text: "missing"})

	st, err := c.GetStats("fp")
	if err != nil {
		t.Fatal(err)
	}
	if st.Hits != 1 || st.Misses != 1 || st.Dir != c.Dir() {
		t.Errorf("stats = %+v, want 1 hit, 1 miss", st)
	}
}

func TestScanner(t *testing.T) {
	c, _ := newCache(t, 0)
	s := &Scanner{Engine: redact.NewEngine(nil), Cache: c}
	ctx := context.Background()
	text := "contact ops@corp.example.com for access"

	first := s.Scan(ctx, "body", text)
	if strings.Contains(first.Text, "ops@corp.example.com") {
		t.Fatalf("email not redacted: %q", first.Text)
	}
	if len(first.Detections) == 0 || first.Detections[0].Field != "body" {
		t.Fatalf("detections = %+v, want field body", first.Detections)
	}

	second := s.Scan(ctx, "body", text)
	if second.Text != first.Text || len(second.Detections) != len(first.Detections) {
		t.Errorf("cached result differs: %+v vs %+v", second, first)
	}
	if st, _ := c.GetStats(s.Fingerprint()); st.Hits != 1 || st.Stale != 0 {
		t.Errorf("stats = %+v, want one hit and nothing stale", st)
	}

	title := s.Scan(ctx, "title", text)
	if title.Detections[0].Field != "title" {
		t.Errorf("field = %q, want title", title.Detections[0].Field)
	}

	plain := &Scanner{Engine: redact.NewEngine(nil)}
	if got := plain.Scan(ctx, "body", text); got.Text != first.Text {
		t.Errorf("uncached scan = %q, want %q", got.Text, first.Text)
	}
}
