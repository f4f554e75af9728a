package main

import (
	"os"

	"github.com/Alias1177/SignalBot/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
