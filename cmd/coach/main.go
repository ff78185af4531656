// Package main provides the coach CLI: it builds a chess.com player's
// coaching profile and answers questions about it.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
