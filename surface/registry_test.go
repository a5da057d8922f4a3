// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package surface

import (
	"errors"
	"slices"
	"testing"
)

func TestKinds(t *testing.T) {
	if got := Kinds(); !slices.Contains(got, "headless") || !slices.Contains(got, "offscreen") {
		t.Fatalf("Kinds() = %v", got)
	}
	tests := []struct {
		name string
		host bool
	}{
		{"", true},
		{"headless", true},
		{"offscreen", false},
	}
	for _, tt := range tests {
		s, err := Open(tt.name, 32, 16)
		if err != nil {
			t.Fatalf("Open(%q) error = %v", tt.name, err)
		}
		if s.HostAccessible() != tt.host {
			t.Errorf("Open(%q).HostAccessible() = %v, want %v", tt.name, s.HostAccessible(), tt.host)
		}
		if w, h := s.Size(); w != 32 || h != 16 {
			t.Errorf("Open(%q).Size() = %dx%d", tt.name, w, h)
		}
		_ = s.Close()
	}
}

func TestOpenAppliesCallerOptions(t *testing.T) {
	s, err := Open("headless", 8, 8, WithoutHostAccess())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if s.HostAccessible() {
		t.Error("caller option not applied")
	}
}

func TestRegisterKind(t *testing.T) {
	Register(Kind{Name: "test-private", Options: []Option{WithoutHostAccess()}})
	t.Cleanup(func() { Unregister("test-private") })
	k, err := Lookup("test-private")
	if err != nil || len(k.Options) != 1 {
		t.Fatalf("Lookup() = %+v, %v", k, err)
	}
	Unregister("test-private")
	_, err = Open("test-private", 8, 8)
	var uk *UnknownKindError
	if !errors.As(err, &uk) || uk.Name != "test-private" || !slices.Contains(uk.Known, "headless") {
		t.Errorf("Open(unregistered) error = %v", err)
	}
}
