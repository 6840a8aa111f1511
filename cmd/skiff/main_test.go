package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "skiff dev" {
		t.Fatalf("version output = %q, want skiff dev", got)
	}
}

func TestPlayRequiresLocator(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"play"})
	if err := root.Execute(); err == nil {
		t.Fatalf("play without a locator returned nil error")
	}
}

func TestExitCodeUnwraps(t *testing.T) {
	var code exitCode
	if !errors.As(error(exitCode(4)), &code) || code != 4 {
		t.Fatalf("exitCode did not round-trip through errors.As")
	}
}
