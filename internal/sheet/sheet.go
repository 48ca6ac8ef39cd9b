// Package sheet provides the memoized, cycle-detecting cache that evaluates
// cells per time step for one model variant.
package sheet

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/vk/cashgrid/internal/value"
)

// ErrNotRegistered is returned when a cell has no evaluator on the sheet.
var ErrNotRegistered = errors.New("method not registered")

// Evaluator computes the value of one cell at time t.
type Evaluator func(t int) (value.Value, error)

// CycleError reports a cell that was requested again at the same t while
// it was still being computed.
type CycleError struct {
	Sheet string
	T     int
	// Chain lists the cells from the first occurrence of the repeated cell
	// to its re-entry, e.g. [A B A].
	Chain []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("circular reference in %s at t=%d: %s", e.Sheet, e.T, strings.Join(e.Chain, " -> "))
}

// Sheet is one cache namespace: the cells of one model evaluated under one
// parameter variant. Cached entries are write-once until Clear.
//
// A Sheet is not safe for concurrent use.
type Sheet struct {
	name       string
	cache      map[string]map[int]value.Value
	evaluators map[string]Evaluator
	// order holds registered cells in registration order, followed by
	// cells that only ever received values through Set.
	order []string
	known map[string]bool
	// stacks holds, per t, the cells currently being computed.
	stacks map[int][]string
}

// New returns an empty sheet. The name only appears in diagnostics.
func New(name string) *Sheet {
	return &Sheet{
		name:       name,
		cache:      make(map[string]map[int]value.Value),
		evaluators: make(map[string]Evaluator),
		known:      make(map[string]bool),
		stacks:     make(map[int][]string),
	}
}

// Name returns the sheet's diagnostic name.
func (s *Sheet) Name() string { return s.name }

// Register installs or replaces the evaluator for a cell. Values already
// cached for the cell are dropped.
func (s *Sheet) Register(cell string, fn Evaluator) {
	s.evaluators[cell] = fn
	delete(s.cache, cell)
	s.remember(cell)
}

func (s *Sheet) remember(cell string) {
	if !s.known[cell] {
		s.known[cell] = true
		s.order = append(s.order, cell)
	}
}

// Get returns the value of cell at t, computing and caching it on first use.
// Negative t is the time before inception and always yields 0.
func (s *Sheet) Get(cell string, t int) (value.Value, error) {
	if t < 0 {
		return value.Number(0), nil
	}
	if v, ok := s.Lookup(cell, t); ok {
		return v, nil
	}
	fn, ok := s.evaluators[cell]
	if !ok {
		return value.Null, fmt.Errorf("%s.%s: %w", s.name, cell, ErrNotRegistered)
	}

	stack := s.stacks[t]
	for i, active := range stack {
		if active == cell {
			chain := append(append([]string(nil), stack[i:]...), cell)
			return value.Null, &CycleError{Sheet: s.name, T: t, Chain: chain}
		}
	}
	s.stacks[t] = append(stack, cell)
	v, err := fn(t)
	s.pop(t)
	if err != nil {
		return value.Null, err
	}

	s.store(cell, t, v)
	return v, nil
}

func (s *Sheet) pop(t int) {
	stack := s.stacks[t]
	if len(stack) <= 1 {
		delete(s.stacks, t)
		return
	}
	s.stacks[t] = stack[:len(stack)-1]
}

func (s *Sheet) store(cell string, t int, v value.Value) {
	series, ok := s.cache[cell]
	if !ok {
		series = make(map[int]value.Value)
		s.cache[cell] = series
	}
	series[t] = v
}

// Set writes v into the cache unconditionally.
func (s *Sheet) Set(cell string, t int, v value.Value) {
	s.remember(cell)
	s.store(cell, t, v)
}

// Lookup returns a cached value without computing it.
func (s *Sheet) Lookup(cell string, t int) (value.Value, bool) {
	v, ok := s.cache[cell][t]
	return v, ok
}

// Clear drops every cached value. Evaluators stay registered.
func (s *Sheet) Clear() {
	s.cache = make(map[string]map[int]value.Value)
	s.stacks = make(map[int][]string)
	kept := s.order[:0]
	for _, cell := range s.order {
		if _, ok := s.evaluators[cell]; ok {
			kept = append(kept, cell)
			continue
		}
		delete(s.known, cell)
	}
	s.order = kept
}

// Cells returns the names of cells holding at least one cached value, in
// registration order.
func (s *Sheet) Cells() []string {
	var cells []string
	for _, cell := range s.order {
		if len(s.cache[cell]) > 0 {
			cells = append(cells, cell)
		}
	}
	return cells
}

// Times returns every t that holds a cached value, ascending.
func (s *Sheet) Times() []int {
	seen := make(map[int]bool)
	for _, series := range s.cache {
		for t := range series {
			seen[t] = true
		}
	}
	times := make([]int, 0, len(seen))
	for t := range seen {
		times = append(times, t)
	}
	sort.Ints(times)
	return times
}

// GetAllData renders the cache as tab-separated text: a header row with
// "t" and the cached cell names, then one row per observed t. Cells with
// no value at a given t leave the field empty.
func (s *Sheet) GetAllData() string {
	cells := s.Cells()
	var b strings.Builder
	b.WriteString("t")
	for _, cell := range cells {
		b.WriteByte('\t')
		b.WriteString(cell)
	}
	b.WriteByte('\n')
	for _, t := range s.Times() {
		b.WriteString(strconv.Itoa(t))
		for _, cell := range cells {
			b.WriteByte('\t')
			if v, ok := s.cache[cell][t]; ok {
				b.WriteString(v.Text())
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}
