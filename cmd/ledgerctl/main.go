package main

import (
	"os"

	"github.com/spf13/afero"
)

// version is overridden at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newApp(afero.NewOsFs(), os.Stdout, os.Stderr).execute(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}
