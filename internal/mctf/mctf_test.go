package mctf

import (
	"errors"
	"testing"
)

func TestRunner_PassFailSkip(t *testing.T) {
	r := NewRunner()
	for _, tc := range []test{
		{name: "ok", module: "m", file: "f.go", fn: func() error { return nil }},
		{name: "bad", module: "m", file: "f.go", fn: func() error { return errors.New("boom") }},
		{name: "skip-me", module: "m", file: "f.go", fn: func() error { return Skip("not applicable") }},
	} {
		r.runOne(tc)
	}

	if r.failed != 1 {
		t.Fatalf("failed = %d, want 1", r.failed)
	}
	if r.passed != 1 {
		t.Fatalf("passed = %d, want 1", r.passed)
	}
	if r.skipped != 1 {
		t.Fatalf("skipped = %d, want 1", r.skipped)
	}
}

func TestRunner_RecoversPanic(t *testing.T) {
	r := NewRunner()
	r.runOne(test{name: "panics", module: "m", file: "f.go", fn: func() error {
		panic("kaboom")
	}})
	results := r.Results()
	if len(results) != 1 || results[0].Passed || results[0].Skipped {
		t.Fatalf("a panicking test must record as a failure, got %+v", results)
	}
}

func TestRunner_FilterByModule(t *testing.T) {
	registry.mu.Lock()
	saved := registry.tests
	registry.tests = []test{
		{name: "a", module: "alpha", file: "a.go", fn: func() error { return nil }},
		{name: "b", module: "beta", file: "b.go", fn: func() error { return nil }},
	}
	registry.mu.Unlock()
	defer func() {
		registry.mu.Lock()
		registry.tests = saved
		registry.mu.Unlock()
	}()

	r := NewRunner()
	r.Run(FilterModule, "alpha")
	results := r.Results()
	if len(results) != 1 || results[0].TestName != "a" {
		t.Fatalf("module filter should run exactly test a, got %+v", results)
	}
}

func TestExtractModuleName(t *testing.T) {
	if got := extractModuleName("/x/y/artspec/insert_test.go"); got != "artspec" {
		t.Fatalf("extractModuleName = %q, want artspec", got)
	}
}
