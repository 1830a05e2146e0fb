package main

import (
	"os"

	"github.com/caseflow-systems/caseflow-import/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
