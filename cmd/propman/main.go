package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	a := &app{lookuper: envconfig.OsLookuper()}
	err := newRootCommand(a).Execute()
	if closeErr := a.close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
