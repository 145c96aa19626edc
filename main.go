package main

import (
	"os"

	"github.com/router-for-me/SnippetRelay/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
