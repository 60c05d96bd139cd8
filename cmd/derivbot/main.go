package main

import (
	"os"

	"github.com/the-code-writer/deriv-bots-app-sub001/cmd/derivbot/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
