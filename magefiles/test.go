//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const coverProfile = "coverage.out"

// Test groups test targets (all, race, cover, pkg).
type Test mg.Namespace

// All runs every package's tests.
func (Test) All() error {
	return sh.RunV(binGo, "test", "-v", "./...")
}

// Race runs every package's tests with the race detector. The inbox
// watcher and the notifier rate limiter are the concurrent paths.
func (Test) Race() error {
	return sh.RunV(binGo, "test", "-race", "./...")
}

// Cover writes a coverage profile and prints per-function coverage.
func (Test) Cover() error {
	if err := sh.RunV(binGo, "test", "-coverprofile="+coverProfile, "./..."); err != nil {
		return err
	}
	out, err := sh.Output(binGo, "tool", "cover", "-func="+coverProfile)
	if err != nil {
		return err
	}
	lines := strings.Split(out, "\n")
	fmt.Println(lines[len(lines)-1])
	return nil
}

// Pkg runs the tests of one package, e.g. mage test:pkg lifecycle.
func (Test) Pkg(name string) error {
	for _, root := range []string{"./internal/", "./pkg/"} {
		pkgs, err := sh.Output(binGo, "list", root+name)
		if err == nil && pkgs != "" {
			return sh.RunV(binGo, "test", "-v", root+name)
		}
	}
	return fmt.Errorf("no package named %q under internal/ or pkg/", name)
}
