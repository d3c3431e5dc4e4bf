package main

import (
	"fmt"
	"os"

	"github.com/Connicpu/boop/cmd/boop/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "boop: %v\n", err)
		os.Exit(1)
	}
}
