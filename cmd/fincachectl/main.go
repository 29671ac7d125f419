// Package main is the entry point for fincachectl, the command-line client
// for the financial statement cache.
package main

import (
	"os"

	"github.com/aristath/fincache/internal/cli"
)

// version is set at build time with -ldflags.
var version = "dev"

func main() {
	os.Exit(cli.Execute(version))
}
