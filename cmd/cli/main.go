package main

import (
	"os"

	"github.com/apricopt/zoro-web/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
