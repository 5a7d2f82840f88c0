package main

import (
	"fmt"
	"os"

	"github.com/bitschema/bitschema/internal/cliapp"
)

func main() {
	wd, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to determine working directory")
		os.Exit(1)
	}

	root := cliapp.NewRoot(cliapp.Settings{WorkingDir: wd})
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
