//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

var Default = Build

// Build compiles the retarget command into bin/.
func Build() error {
	mg.Deps(Vet)
	out := filepath.Join("bin", "retarget")
	if ext := os.Getenv("GOEXE"); ext != "" {
		out += ext
	}
	fmt.Println("Build", out)
	return sh.RunV("go", "build", "-o", out, "./cmd/retarget")
}

// Vet runs go vet on every package.
func Vet() error {
	return sh.RunV("go", "vet", "./...")
}

// Test runs the tests with the race detector.
func Test() error {
	return sh.RunV("go", "test", "-race", "./...")
}

// Clean removes build outputs.
func Clean() error {
	return sh.Rm("bin")
}
