// ABOUTME: Entry point for the sketchbook client CLI
// ABOUTME: Delegates to the cobra commands in internal/cli

package main

import "github.com/2389/sketchbook/internal/cli"

func main() {
	cli.Execute()
}
