//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Test mg.Namespace

// Runs the unit tests of every package.
func (Test) Unit() error {
	_, err := executeCmd("go", withArgs("test", "./..."), withStream())
	return err
}

// Runs the engine tests with the race detector enabled.
func (Test) Race() error {
	_, err := executeCmd("go", withArgs("test", "-race", "-count=1", "./engine/..."), withStream())
	return err
}

// Runs the tests of a single package, e.g. mage test:pkg systems.
func (Test) Pkg(name string) error {
	_, err := executeCmd("go", withArgs("test", "-v", "./engine/"+name+"/..."), withStream())
	return err
}
