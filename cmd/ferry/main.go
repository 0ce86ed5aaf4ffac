// Package main provides the entry point for the ferry file-operation CLI.
package main

import (
	"errors"
	"os"

	"github.com/jamesainslie/ferry/pkg/ferry/engine"
)

// Exit codes. Partial failures and infrastructure errors exit 1; an
// operation refused at the confirmation gate exits 2 so scripts can tell
// "it went wrong" from "it was not allowed".
const (
	exitFailure  = 1
	exitRejected = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	err := Execute()
	if err == nil {
		return 0
	}
	printError("%v", err)
	if errors.Is(err, engine.ErrRejected) {
		return exitRejected
	}
	return exitFailure
}
