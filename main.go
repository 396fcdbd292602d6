package main

import (
	"fmt"
	"os"

	"github.com/mounikasaka1/hackai/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
