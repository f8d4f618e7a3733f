//go:build mage

package main

import (
	"fmt"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// File locking differs between these, so both must always compile.
var releaseTargets = []struct{ goos, goarch string }{
	{"linux", "amd64"},
	{"linux", "arm64"},
	{"windows", "amd64"},
	{"darwin", "arm64"},
}

// Build compiles the drop ingester for the current platform into dist/.
func Build() error {
	mg.Deps(goCheck)
	return buildFor(checkOs(), runtimeArch())
}

// BuildAll cross-compiles the drop ingester for every release target.
func BuildAll() error {
	mg.Deps(goCheck)
	for _, target := range releaseTargets {
		if err := buildFor(target.goos, target.goarch); err != nil {
			return err
		}
	}
	return nil
}

func buildFor(goos string, goarch string) error {
	name := "dropingester"
	if goos == "windows" {
		name += ".exe"
	}
	out := filepath.Join("dist", fmt.Sprintf("%s_%s", goos, goarch), name)
	fmt.Printf("Building %s\n", out)
	env := map[string]string{
		"GOOS":        goos,
		"GOARCH":      goarch,
		"CGO_ENABLED": "0",
	}
	return sh.RunWith(env, goBinary(), "build", "-o", out, "./cmd/dropingester")
}
