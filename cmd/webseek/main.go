// Package main provides the entry point for the webseek CLI.
package main

import (
	"os"

	"github.com/webseek/webseek/cmd/webseek/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
