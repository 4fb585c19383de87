package main

import (
	"os"

	"github.com/jwiersma/interflow/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
