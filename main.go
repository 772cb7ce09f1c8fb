// main is the entry point for the cpapinsight CLI.
package main

import (
	"fmt"
	"os"

	"github.com/sleepdata/cpapinsight/cmd"
)

func main() {
	err := cmd.Execute()
	if shutdownErr := cmd.Shutdown(); shutdownErr != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Warn shutdown: %v\n", shutdownErr)
	}
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}
