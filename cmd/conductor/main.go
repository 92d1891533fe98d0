// Command conductor runs role-based coding agent tasks from the terminal:
// load a task list, schedule it, gate risky plans on operator approval and
// stream execution events as they happen.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
