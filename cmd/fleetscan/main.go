// Command fleetscan runs the scan and lookup flows headless against a
// fleetscan backend and prints the resulting form as JSON.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}
