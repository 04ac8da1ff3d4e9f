package collector

import (
	_ "embed"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math/rand"
	"regexp"
	"strings"
	"sync"

	"github.com/hazyhaar/utrack/event"
	"github.com/hazyhaar/utrack/internal/util"
)

//go:embed js/error.js
var errorJS string

const (
	errMessageLimit = 500
	errStackLimit   = 2000
	errDedupCap     = 100
)

var defaultIgnorePatterns = []string{"Script error", "ResizeObserver loop", "Loading chunk", "Network request failed"}

type ErrorConfig struct {
	SampleRate      float64
	IgnorePatterns  []string
	IgnoreRegexes   []*regexp.Regexp
}

func DefaultErrorConfig() ErrorConfig {
	return ErrorConfig{SampleRate: 1.0, IgnorePatterns: append([]string{}, defaultIgnorePatterns...)}
}

// Error captures JS exceptions, unhandled promise rejections, and resource
// load failures, running each candidate through sampling, ignore-pattern
// filtering, and hash-based dedup before it reaches the tracker.
type Error struct {
	Base
	cfg ErrorConfig

	mu      sync.Mutex
	dedup   *util.Queue[string]
	dedupSet map[string]struct{}
}

func NewError(base Base, cfg ErrorConfig) *Error {
	return &Error{
		Base:     base,
		cfg:      cfg,
		dedup:    util.NewQueue[string](errDedupCap),
		dedupSet: make(map[string]struct{}, errDedupCap),
	}
}

func (e *Error) Name() string { return "error" }

func (e *Error) Install(ctx context.Context) error {
	if !e.MarkInstalling() {
		return nil
	}
	e.Bridge.Register("error", e.handleCandidate)
	if err := e.Bridge.Inject(errorJS); err != nil {
		e.MarkUninstalled()
		return fmt.Errorf("error: inject script: %w", err)
	}
	return nil
}

func (e *Error) Uninstall() error {
	if !e.IsInstalled() {
		return nil
	}
	e.MarkUninstalled()
	return e.Bridge.Inject(`window.__utrackError && window.__utrackError.uninstall();`)
}

// AddIgnorePattern registers a substring match applied against the error
// message.
func (e *Error) AddIgnorePattern(pattern string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg.IgnorePatterns = append(e.cfg.IgnorePatterns, pattern)
}

// AddIgnoreRegex registers a regex match applied against the error message.
func (e *Error) AddIgnoreRegex(re *regexp.Regexp) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg.IgnoreRegexes = append(e.cfg.IgnoreRegexes, re)
}

// CaptureException is the programmatic API for reporting an error directly,
// bypassing the in-page listeners.
func (e *Error) CaptureException(message, stack, level string) {
	e.process(event.ErrorData{ErrorType: "js", Message: message, Stack: stack, Level: level})
}

// CaptureMessage reports a plain message at the given severity level.
func (e *Error) CaptureMessage(message, level string) {
	e.process(event.ErrorData{ErrorType: "js", Message: message, Level: level})
}

func (e *Error) handleCandidate(raw json.RawMessage) {
	var data event.ErrorData
	if err := json.Unmarshal(raw, &data); err != nil {
		e.Logger.Warn("error: decode candidate", "error", err)
		return
	}
	e.process(data)
}

func (e *Error) process(data event.ErrorData) {
	if !e.shouldSample() {
		return
	}
	if e.isIgnored(data.Message) {
		return
	}

	if len(data.Message) > errMessageLimit {
		data.Message = data.Message[:errMessageLimit]
	}
	if len(data.Stack) > errStackLimit {
		data.Stack = data.Stack[:errStackLimit]
	}

	key := dedupKey(data)
	if e.seen(key) {
		return
	}

	e.Emit(event.TrackEvent{Type: event.TypeError, Name: "error_" + data.ErrorType, Data: data})
}

func (e *Error) shouldSample() bool {
	e.mu.Lock()
	rate := e.cfg.SampleRate
	e.mu.Unlock()
	if rate >= 1.0 {
		return true
	}
	if rate <= 0 {
		return false
	}
	return rand.Float64() < rate
}

func (e *Error) isIgnored(message string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, p := range e.cfg.IgnorePatterns {
		if strings.Contains(message, p) {
			return true
		}
	}
	for _, re := range e.cfg.IgnoreRegexes {
		if re.MatchString(message) {
			return true
		}
	}
	return false
}

func (e *Error) seen(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.dedupSet[key]; ok {
		return true
	}
	if e.dedup.IsFull() {
		if old, ok := e.dedup.Dequeue(); ok {
			delete(e.dedupSet, old)
		}
	}
	e.dedup.Enqueue(key)
	e.dedupSet[key] = struct{}{}
	return false
}

func dedupKey(d event.ErrorData) string {
	msg := d.Message
	if len(msg) > 100 {
		msg = msg[:100]
	}
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|%s|%d|%d", d.ErrorType, msg, d.Filename, d.Lineno, d.Colno)
	return fmt.Sprintf("%x", h.Sum64())
}
