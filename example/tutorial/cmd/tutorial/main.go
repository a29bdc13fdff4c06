package main

import (
	"os"

	_ "embed"
)

// embeddedConfig is the default application configuration. --config replaces it.
//
//go:embed resources/application.yaml
var embeddedConfig []byte

func main() {
	if err := newRootCommand(embeddedConfig).Execute(); err != nil {
		os.Exit(1)
	}
}
