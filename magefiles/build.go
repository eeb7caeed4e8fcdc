//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

// Runs go vet over every package.
func (Build) Vet() error {
	_, err := executeCmd("go", withArgs("vet", "./..."), withStream())
	return err
}

// Compiles the headless demo into bin/tessera.
func (Build) Demo() error {
	mg.Deps(Build.Vet)
	_, err := executeCmd("go", withArgs("build", "-o", "bin/tessera", "."), withStream())
	return err
}
