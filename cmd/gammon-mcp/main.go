package main

import (
	"fmt"
	"os"
)

var (
	// Version information injected at build time.
	Version   string = "dev"
	GitCommit string = "unknown"
	BuildTime string = "unknown"
)

func main() {
	app := newCLIApp(os.Stdout)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
