//go:build mage

package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
)

const binDir = "bin"

type Build mg.Namespace

// Builds the assetc converter into bin/.
func (Build) Assetc() error {
	if err := os.MkdirAll(binDir, 0755); err != nil {
		return err
	}
	_, err := executeCmd("go", withArgs("build", "-o", filepath.Join(binDir, "assetc"), "./cmd/assetc"), withEnv("CGO_ENABLED=0"))
	return err
}

// Installs assetc into GOBIN.
func (Build) Install() error {
	_, err := executeCmd("go", withArgs("install", "./cmd/assetc"), withStream())
	return err
}

// Removes build output.
func (Build) Clean() error {
	return os.RemoveAll(binDir)
}
