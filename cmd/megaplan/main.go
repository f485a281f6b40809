package main

import (
	"fmt"
	"os"

	"github.com/Iron-Ham/megaplan/internal/cmd"
	"github.com/Iron-Ham/megaplan/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.IsStageFailure(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
