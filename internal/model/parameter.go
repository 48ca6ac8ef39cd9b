// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package model

import (
	"sort"
	"strconv"
	"strings"

	"github.com/vk/cashgrid/internal/value"
)

// Pair is one variable override.
type Pair struct {
	Key   string
	Value value.Value
}

// Parameter is an ordered set of variable overrides identifying a model
// variant. Its canonical form ignores insertion order.
type Parameter struct {
	pairs  []Pair
	lookup map[string]value.Value
}

// NewParameter builds a parameter from pairs. A repeated key keeps its
// first position and its last value.
func NewParameter(pairs ...Pair) *Parameter {
	p := &Parameter{lookup: make(map[string]value.Value, len(pairs))}
	for _, pair := range pairs {
		p.Set(pair.Key, pair.Value)
	}
	return p
}

// Set adds or replaces an override.
func (p *Parameter) Set(key string, v value.Value) {
	if _, ok := p.lookup[key]; ok {
		for i := range p.pairs {
			if p.pairs[i].Key == key {
				p.pairs[i].Value = v
				break
			}
		}
	} else {
		p.pairs = append(p.pairs, Pair{Key: key, Value: v})
	}
	p.lookup[key] = v
}

// Get returns the override for key.
func (p *Parameter) Get(key string) (value.Value, bool) {
	v, ok := p.lookup[key]
	return v, ok
}

// Len returns the number of overrides.
func (p *Parameter) Len() int { return len(p.pairs) }

// Pairs returns a copy of the overrides in insertion order.
func (p *Parameter) Pairs() []Pair {
	return append([]Pair(nil), p.pairs...)
}

// Merge applies pairs on top of the current overrides and returns a
// function restoring the exact prior pair list.
func (p *Parameter) Merge(pairs []Pair) (restore func()) {
	saved := p.Pairs()
	for _, pair := range pairs {
		p.Set(pair.Key, pair.Value)
	}
	return func() { p.replace(saved) }
}

// Reset removes every override.
func (p *Parameter) Reset() {
	p.replace(nil)
}

func (p *Parameter) replace(pairs []Pair) {
	p.pairs = pairs
	p.lookup = make(map[string]value.Value, len(pairs))
	for _, pair := range pairs {
		p.lookup[pair.Key] = pair.Value
	}
}

// Canonical renders the overrides sorted by key, with string values
// quoted. Two parameters holding the same pairs always render the same.
// The empty parameter renders as "".
func (p *Parameter) Canonical() string {
	if len(p.pairs) == 0 {
		return ""
	}
	keys := make([]string, 0, len(p.pairs))
	for _, pair := range p.pairs {
		keys = append(keys, pair.Key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		v := p.lookup[k]
		if v.Kind() == value.KindString || v.Kind() == value.KindDate {
			b.WriteString(strconv.Quote(v.Text()))
		} else {
			b.WriteString(v.Text())
		}
	}
	return b.String()
}

// String implements fmt.Stringer.
func (p *Parameter) String() string {
	return "{" + p.Canonical() + "}"
}
