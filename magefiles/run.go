//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Runs the headless demo for the given number of frames.
func (Run) Demo(frames int) error {
	fmt.Println("Run demo...")
	_, err := executeCmd("go", withArgs("run", ".", "-frames", fmt.Sprint(frames)), withStream())
	return err
}
