// The main package for the normcrawler executable.
package main

import (
	"github.com/brlegis/normcrawler/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
