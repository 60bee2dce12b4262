package main

import (
	"fmt"
	"os"

	"github.com/AnyUserName/pixconv/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "pixconv: %v\n", err)
		os.Exit(1)
	}
}
