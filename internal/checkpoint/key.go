package checkpoint

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dshills/scribe/internal/document"
)

// Suffix names the stage that wrote a checkpoint.
type Suffix string

const (
	SuffixRead           Suffix = ""
	SuffixOptimized      Suffix = "_optimized"
	SuffixEnhanced       Suffix = "_enhanced"
	SuffixReviewed       Suffix = "_reviewed"
	SuffixPrivacyChecked Suffix = "_privacy_checked"
	SuffixFormatChecked  Suffix = "_format_checked"
	SuffixPublished      Suffix = "_published"
)

var suffixes = []Suffix{
	SuffixRead, SuffixOptimized, SuffixEnhanced, SuffixReviewed,
	SuffixPrivacyChecked, SuffixFormatChecked, SuffixPublished,
}

// Suffixes returns every suffix in pipeline order.
func Suffixes() []Suffix {
	out := make([]Suffix, len(suffixes))
	copy(out, suffixes)
	return out
}

// SuffixFor returns the suffix of the checkpoint written when records reach s.
func SuffixFor(s document.Status) Suffix {
	if s == document.StatusRead {
		return SuffixRead
	}
	return Suffix("_" + string(s))
}

// ParseSuffix accepts a stage status name ("reviewed") or a suffix
// ("_reviewed"). "read" maps to the reader's empty suffix.
func ParseSuffix(s string) (Suffix, error) {
	if s == "read" || s == "" {
		return SuffixRead, nil
	}
	if !strings.HasPrefix(s, "_") {
		s = "_" + s
	}
	for _, x := range suffixes {
		if string(x) == s {
			return x, nil
		}
	}
	return "", fmt.Errorf("unknown checkpoint stage: %q", strings.TrimPrefix(s, "_"))
}

// Stage returns the status name the suffix stands for.
func (s Suffix) Stage() string {
	if s == SuffixRead {
		return "read"
	}
	return strings.TrimPrefix(string(s), "_")
}

// Key identifies one checkpoint: a batch and the stage that wrote it.
type Key struct {
	Batch  string
	Suffix Suffix
}

const stampLayout = "20060102_150405"

// NewBatchID returns the batch identifier for the seq-th batch of a run
// started at at.
func NewBatchID(at time.Time, seq int) string {
	return at.Format(stampLayout) + "_" + strconv.Itoa(seq)
}

// Name is the checkpoint file name.
func (k Key) Name() string {
	return "batch_" + k.Batch + string(k.Suffix) + ".json"
}

func (k Key) String() string { return k.Name() }

// WithSuffix returns the key of the same batch at another stage.
func (k Key) WithSuffix(s Suffix) Key {
	return Key{Batch: k.Batch, Suffix: s}
}

// RunStamp is the timestamp part of the batch, shared by all batches
// created by one reader pass.
func (k Key) RunStamp() string {
	if len(k.Batch) < len(stampLayout) {
		return k.Batch
	}
	return k.Batch[:len(stampLayout)]
}

// Seq is the batch sequence number, or 0 if the batch ID is malformed.
func (k Key) Seq() int {
	i := strings.LastIndexByte(k.Batch, '_')
	if i < 0 {
		return 0
	}
	n, _ := strconv.Atoi(k.Batch[i+1:])
	return n
}

var namePattern = regexp.MustCompile(`^batch_(\d{8}_\d{6}_\d+)((?:_[a-z]+)*)\.json$`)

// ParseName is the inverse of Key.Name.
func ParseName(name string) (Key, error) {
	m := namePattern.FindStringSubmatch(name)
	if m == nil {
		return Key{}, fmt.Errorf("not a checkpoint name: %q", name)
	}
	for _, s := range suffixes {
		if string(s) == m[2] {
			return Key{Batch: m[1], Suffix: s}, nil
		}
	}
	return Key{}, fmt.Errorf("unknown checkpoint suffix in %q", name)
}

// Less orders keys by run stamp, then sequence number, then stage.
func Less(a, b Key) bool {
	if a.RunStamp() != b.RunStamp() {
		return a.RunStamp() < b.RunStamp()
	}
	if a.Seq() != b.Seq() {
		return a.Seq() < b.Seq()
	}
	return suffixRank(a.Suffix) < suffixRank(b.Suffix)
}

func suffixRank(s Suffix) int {
	for i, x := range suffixes {
		if x == s {
			return i
		}
	}
	return len(suffixes)
}

// LatestRun filters keys down to those of the most recent run stamp.
func LatestRun(keys []Key) []Key {
	var latest string
	for _, k := range keys {
		if k.RunStamp() > latest {
			latest = k.RunStamp()
		}
	}
	var out []Key
	for _, k := range keys {
		if k.RunStamp() == latest {
			out = append(out, k)
		}
	}
	return out
}
