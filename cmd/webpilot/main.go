package main

import (
	"fmt"
	"os"

	"github.com/probelab/webpilot/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "webpilot: %v\n", err)
		os.Exit(1)
	}
}
