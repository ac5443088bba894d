package main

import (
	"os"

	"dirsweep/internal/cli"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	os.Exit(cli.Execute(version, os.Args[1:], cli.StdStreams()))
}
