// The main package for the guugle executable.
package main

import (
	"github.com/JakeFAU/guugle/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
