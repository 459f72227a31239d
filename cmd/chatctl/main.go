package main

import (
	"fmt"
	"os"

	"whatsjuju-chat/backend/internal/cli"
	"whatsjuju-chat/backend/pkg/config"
)

func main() {
	if err := cli.NewRootCmd(config.NewDB).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
