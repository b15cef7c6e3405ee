package leak

import (
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/nativeguard/errors"
)

// Index values returned by Open besides a valid index.
const (
	IndexDisabled  int32 = -1
	IndexExhausted int32 = -2
)

// Kind selects which counts a report includes.
type Kind uint8

const (
	KindOpen Kind = iota
	KindLost
	KindClosed
)

func (k Kind) String() string {
	switch k {
	case KindOpen:
		return "Open"
	case KindLost:
		return "Lost"
	case KindClosed:
		return "Closed"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

const maxStackDepth = 32

// Counter tracks references per allocation site. It is safe for concurrent use.
type Counter struct {
	name        string
	max         int
	logStacks   bool
	failIfEmpty bool

	mu     sync.Mutex
	sites  map[string]int32
	last   int32
	open   []atomic.Int32
	closed []atomic.Int32
	lost   []atomic.Int32
}

// NewCounter creates a counter. A Max <= 0 yields a disabled counter.
func NewCounter(cfg Config) (*Counter, error) {
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		return nil, errors.InvalidInput(errors.PhaseTrack, "counter name cannot be empty")
	}

	c := &Counter{name: name, max: cfg.Max}
	if cfg.Max <= 0 {
		return c, nil
	}

	c.logStacks = cfg.LogStacks
	c.failIfEmpty = cfg.FailIfStackEmpty
	c.sites = make(map[string]int32)
	c.last = -1
	c.open = make([]atomic.Int32, cfg.Max)
	c.closed = make([]atomic.Int32, cfg.Max)
	c.lost = make([]atomic.Int32, cfg.Max)
	if !c.logStacks {
		c.sites[""] = 0
		c.last = 0
	}

	Logger().Debug("leak counter created",
		zap.String("name", name),
		zap.Int("max", cfg.Max),
		zap.Bool("logStacks", c.logStacks))
	return c, nil
}

// Name returns the counter name.
func (c *Counter) Name() string {
	if c == nil {
		return ""
	}
	return c.name
}

// Enabled reports whether the counter counts anything.
func (c *Counter) Enabled() bool {
	return c != nil && c.max > 0
}

// Max returns the size of the index space.
func (c *Counter) Max() int {
	if c == nil {
		return 0
	}
	return c.max
}

// Open counts a new reference and returns its index. skip is the number of
// caller frames to omit from the site key, 0 meaning the caller of Open.
// It returns IndexDisabled when the counter is off and IndexExhausted when the
// stack maps to a new site beyond Max.
func (c *Counter) Open(skip int) (int32, error) {
	if !c.Enabled() {
		return IndexDisabled, nil
	}

	var stack string
	if c.logStacks {
		stack = captureStack(skip + 3)
		if c.failIfEmpty && stack == "" {
			return IndexDisabled, errors.InvalidInput(errors.PhaseTrack, "unable to store empty stack")
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	idx, ok := c.sites[stack]
	if !ok {
		c.last++
		idx = c.last
		if c.bad(idx) {
			Logger().Warn("leak counter exhausted",
				zap.String("name", c.name),
				zap.Int("max", c.max))
			return IndexExhausted, nil
		}
		c.sites[stack] = idx
	}

	c.open[idx].Add(1)
	return idx, nil
}

// Close counts an explicit release of idx. Invalid indexes are ignored.
func (c *Counter) Close(idx int32) {
	if !c.Enabled() || c.bad(idx) {
		return
	}
	c.open[idx].Add(-1)
	c.closed[idx].Add(1)
}

// Lost counts a reference released by the collector. Invalid indexes are ignored.
func (c *Counter) Lost(idx int32) {
	if !c.Enabled() || c.bad(idx) {
		return
	}
	c.open[idx].Add(-1)
	c.lost[idx].Add(1)
	Logger().Debug("reference lost",
		zap.String("name", c.name),
		zap.Int32("leakIndex", idx))
}

// OpenCount returns the references currently open, -1 when disabled.
func (c *Counter) OpenCount() int {
	if !c.Enabled() {
		return -1
	}
	return sum(c.open)
}

// LostCount returns the references released by the collector, -1 when disabled.
func (c *Counter) LostCount() int {
	if !c.Enabled() {
		return -1
	}
	return sum(c.lost)
}

// ClosedCount returns the references closed explicitly, -1 when disabled.
func (c *Counter) ClosedCount() int {
	if !c.Enabled() {
		return -1
	}
	return sum(c.closed)
}

func sum(counts []atomic.Int32) int {
	n := 0
	for i := range counts {
		n += int(counts[i].Load())
	}
	return n
}

func (c *Counter) bad(idx int32) bool {
	return idx < 0 || int(idx) >= c.max
}

// Site is the per-index view of a counter.
type Site struct {
	Key    string
	Index  int32
	Open   int32
	Lost   int32
	Closed int32
}

// Snapshot returns every known site ordered by index.
func (c *Counter) Snapshot() []Site {
	if !c.Enabled() {
		return nil
	}
	c.mu.Lock()
	sites := make([]Site, 0, len(c.sites))
	for key, idx := range c.sites {
		sites = append(sites, Site{
			Key:    key,
			Index:  idx,
			Open:   c.open[idx].Load(),
			Lost:   c.lost[idx].Load(),
			Closed: c.closed[idx].Load(),
		})
	}
	c.mu.Unlock()

	sort.Slice(sites, func(i, j int) bool { return sites[i].Index < sites[j].Index })
	return sites
}

// Report returns one line per site and kind with a positive count, followed by
// the totals. No kinds means all of them. Closed references are always
// totalled.
func (c *Counter) Report(kinds ...Kind) []string {
	if !c.Enabled() {
		return []string{"disabled"}
	}
	if len(kinds) == 0 {
		kinds = []Kind{KindOpen, KindLost, KindClosed}
	}
	want := func(k Kind) bool {
		for _, x := range kinds {
			if x == k {
				return true
			}
		}
		return false
	}

	var lines []string
	var totalOpen, totalLost, totalClosed int
	add := func(kind Kind, n int32, s Site) int {
		if n <= 0 {
			return 0
		}
		lines = append(lines, fmt.Sprintf("REFCOUNT: %s: %d references at i=%d key=%s", kind, n, s.Index, s.Key))
		return int(n)
	}

	for _, s := range c.Snapshot() {
		if want(KindLost) {
			totalLost += add(KindLost, s.Lost, s)
		}
		if want(KindOpen) {
			totalOpen += add(KindOpen, s.Open, s)
		}
		if want(KindClosed) {
			add(KindClosed, s.Closed, s)
		}
		if s.Closed > 0 {
			totalClosed += int(s.Closed)
		}
	}

	return append(lines,
		fmt.Sprintf("REFCOUNT: Open: %d", totalOpen),
		fmt.Sprintf("REFCOUNT: Lost: %d", totalLost),
		fmt.Sprintf("REFCOUNT: Closed: %d", totalClosed),
	)
}

// captureStack formats the caller stack, skipping skip frames.
func captureStack(skip int) string {
	pcs := make([]uintptr, maxStackDepth)
	n := runtime.Callers(skip, pcs)
	if n == 0 {
		return ""
	}

	var sb strings.Builder
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if frame.Function != "" {
			fmt.Fprintf(&sb, "%s\n\t%s:%d\n", frame.Function, frame.File, frame.Line)
		}
		if !more {
			break
		}
	}
	return sb.String()
}
