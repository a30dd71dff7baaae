package main

import (
	"os"

	"github.com/jmercadier/chargeshare/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
