// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package surface

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// DefaultKind is the kind Open uses for an empty name.
const DefaultKind = "headless"

// Kind is a named surface configuration the harness can open by name.
type Kind struct {
	Name string
	// Usage is a one-line description for command-line help.
	Usage   string
	Options []Option
}

var kinds = struct {
	sync.RWMutex
	m map[string]Kind
}{m: make(map[string]Kind)}

func init() {
	Register(Kind{
		Name:  DefaultKind,
		Usage: "host-visible buffers, host devices share memory with the surface",
	})
	Register(Kind{
		Name:    "offscreen",
		Usage:   "buffers hidden from compute devices, host devices copy",
		Options: []Option{WithoutHostAccess()},
	})
}

// Register adds k, replacing any kind of the same name.
func Register(k Kind) {
	kinds.Lock()
	kinds.m[k.Name] = k
	kinds.Unlock()
}

// Unregister removes the named kind.
func Unregister(name string) {
	kinds.Lock()
	delete(kinds.m, name)
	kinds.Unlock()
}

// Kinds returns the registered kind names in sorted order.
func Kinds() []string {
	kinds.RLock()
	defer kinds.RUnlock()
	names := make([]string, 0, len(kinds.m))
	for n := range kinds.m {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Lookup returns the named kind.
func Lookup(name string) (Kind, error) {
	if name == "" {
		name = DefaultKind
	}
	kinds.RLock()
	k, ok := kinds.m[name]
	kinds.RUnlock()
	if !ok {
		return Kind{}, &UnknownKindError{Name: name, Known: Kinds()}
	}
	return k, nil
}

// Open creates a surface of the named kind. opts apply after the kind's
// own options.
func Open(name string, width, height int, opts ...Option) (*Headless, error) {
	k, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	return NewHeadless(width, height, append(slices.Clone(k.Options), opts...)...), nil
}

// UnknownKindError reports a surface kind that is not registered.
type UnknownKindError struct {
	Name  string
	Known []string
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("surface: unknown kind %q (have %s)", e.Name, strings.Join(e.Known, ", "))
}
