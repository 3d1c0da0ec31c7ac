// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package mediaframework

import (
	"bytes"
	"reflect"
)

// Caps is an immutable capability descriptor attached to pads and buffers
// (GLOSSARY: Caps). Name is the media-framework structure name (e.g.
// "audio/x-raw", "video/x-h264"); Fields carries the structure's key/value
// pairs. Caps are copy-on-write: every mutator returns a new *Caps so a
// held reference never changes underneath a reader, mirroring the
// copy-then-set pattern the delivery path relies on.
type Caps struct {
	name   string
	fields map[string]interface{}
}

// NewCaps builds an immutable Caps with the given structure name and an
// initial field set. The passed map is copied.
func NewCaps(name string, fields map[string]interface{}) *Caps {
	c := &Caps{name: name, fields: make(map[string]interface{}, len(fields))}
	for k, v := range fields {
		c.fields[k] = v
	}
	return c
}

// Name returns the caps structure name, e.g. "audio/x-raw".
func (c *Caps) Name() string {
	if c == nil {
		return ""
	}
	return c.name
}

// Get returns a field value and whether it was set.
func (c *Caps) Get(field string) (interface{}, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.fields[field]
	return v, ok
}

// Copy returns a deep-enough copy of c suitable for "copy current caps →
// set fields → setCaps" sequences.
func (c *Caps) Copy() *Caps {
	if c == nil {
		return NewCaps("", nil)
	}
	return NewCaps(c.name, c.fields)
}

// With returns a copy of c with field set to value, leaving c unmodified.
func (c *Caps) With(field string, value interface{}) *Caps {
	cp := c.Copy()
	cp.fields[field] = value
	return cp
}

// Equal reports whether two caps carry the same name and fields. nil caps
// are only equal to other nil caps, matching the "old caps == new caps"
// comparisons in the attach and delivery paths, where a nil attached-caps
// means "nothing attached yet".
func (c *Caps) Equal(o *Caps) bool {
	if c == nil || o == nil {
		return c == nil && o == nil
	}
	if c.name != o.name || len(c.fields) != len(o.fields) {
		return false
	}
	for k, v := range c.fields {
		ov, ok := o.fields[k]
		if !ok || !fieldEqual(v, ov) {
			return false
		}
	}
	return true
}

// fieldEqual compares two field values without tripping over
// non-comparable dynamic types: codec_data is a []byte, and opus header
// helpers may hand back arbitrary structures.
func fieldEqual(a, b interface{}) bool {
	if ab, ok := a.([]byte); ok {
		bb, ok := b.([]byte)
		return ok && bytes.Equal(ab, bb)
	}
	return reflect.DeepEqual(a, b)
}

// Fields returns a copy of the field map, for callers that need to iterate.
func (c *Caps) Fields() map[string]interface{} {
	if c == nil {
		return nil
	}
	out := make(map[string]interface{}, len(c.fields))
	for k, v := range c.fields {
		out[k] = v
	}
	return out
}
