// Package main is the single-binary entrypoint for Loka.
package main

import "github.com/loka-network/loka/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
