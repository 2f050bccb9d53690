package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"sjsage522/psa10finder/logger"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Logs go to stderr so stdout carries only command output
	logger.Init()

	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		var exit exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

// exitError ends the process with code after the command has written its own output
type exitError struct {
	code int
}

func (e exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}
