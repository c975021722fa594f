package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/skyyMo/skynet-ai/internal/cli"
	"github.com/skyyMo/skynet-ai/internal/domain"
)

const (
	exitFailure      = 1
	exitConfigErrors = 2
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "skynet:", err)
		if errors.Is(err, domain.ErrConfiguration) || errors.Is(err, domain.ErrValidation) {
			os.Exit(exitConfigErrors)
		}
		os.Exit(exitFailure)
	}
}
