// Command pricingctl administers pricing configuration and versions from the shell.
package main

import (
	"fmt"
	"os"
)

func main() {
	root, c := newRootCmd()
	if err := execute(root, c); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
