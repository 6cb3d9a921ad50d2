package main

import (
	"os"

	"github.com/veilscope/veilscope/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
