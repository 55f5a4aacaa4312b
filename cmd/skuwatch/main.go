package main

import (
	"os"

	"github.com/yourneighborhoodchef/skuwatch/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
