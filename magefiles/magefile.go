//go:build mage

// Package main provides build targets for bib using Mage.
//
// Usage:
//
//	mage build     Compile the bib binary to bin/
//	mage test      Run all tests
//	mage race      Run all tests with the race detector
//	mage cover     Write a coverage profile to bin/cover.out
//	mage lint      Run golangci-lint
//	mage smoke     Build, then run a short bib session in a temp directory
//	mage clean     Remove build artifacts
//	mage install   Install bib to GOPATH/bin
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binLint    = "golangci-lint"
	binaryName = "bib"
	binaryDir  = "bin"
	cmdDir     = "./cmd/bib"
	versionVar = "github.com/mesh-intelligence/bib/internal/cli.Version"
)

// version returns the checked-out tag, or "dev" outside a tagged checkout.
func version() string {
	v, err := sh.Output("git", "describe", "--tags", "--always", "--dirty")
	if err != nil || v == "" {
		return "dev"
	}
	return strings.TrimPrefix(v, "v")
}

// Build compiles the bib binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	ldflags := fmt.Sprintf("-X %s=%s", versionVar, version())
	return sh.RunV(binGo, "build", "-v", "-ldflags", ldflags,
		"-o", filepath.Join(binaryDir, binaryName), cmdDir)
}

// Test runs all tests.
func Test() error {
	return sh.RunV(binGo, "test", "./...")
}

// Race runs all tests with the race detector.
func Race() error {
	return sh.RunV(binGo, "test", "-race", "./...")
}

// Cover writes a coverage profile and prints per-function coverage.
func Cover() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	profile := filepath.Join(binaryDir, "cover.out")
	if err := sh.RunV(binGo, "test", "-coverprofile", profile, "./..."); err != nil {
		return err
	}
	return sh.RunV(binGo, "tool", "cover", "-func", profile)
}

// Lint runs golangci-lint.
func Lint() error {
	return sh.RunV(binLint, "run", "./...")
}

// Smoke builds bib and drives it through init, stack, fork and export in a
// throwaway directory.
func Smoke() error {
	mg.Deps(Build)

	dir, err := os.MkdirTemp("", "bib-smoke-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	paper := filepath.Join(dir, "paper.txt")
	if err := os.WriteFile(paper, []byte("A smoke test paper\n"), 0o644); err != nil {
		return err
	}

	bin, err := filepath.Abs(filepath.Join(binaryDir, binaryName))
	if err != nil {
		return err
	}
	run := func(args ...string) error {
		full := append([]string{
			"--config-dir", filepath.Join(dir, "config"),
			"--data-dir", filepath.Join(dir, "data"),
		}, args...)
		return sh.RunV(bin, full...)
	}
	for _, args := range [][]string{
		{"init"},
		{"add", paper},
		{"fork", "reading", "--checkout"},
		{"stack"},
		{"papers", "--stack", "all"},
		{"export"},
	} {
		if err := run(args...); err != nil {
			return fmt.Errorf("bib %s: %w", strings.Join(args, " "), err)
		}
	}
	return nil
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	return sh.RunV(binGo, "clean")
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output(binGo, "env", "GOPATH")
	if err != nil {
		return err
	}
	src := filepath.Join(binaryDir, binaryName)
	dst := filepath.Join(gopath, "bin", binaryName)
	return sh.Copy(dst, src)
}
