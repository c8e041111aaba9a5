package main

import (
	"fmt"
	"os"

	"StudyBuddy/internal/cli"
)

func main() {
	code, err := cli.Run(os.Args[1:], cli.DefaultStdio())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(code)
}
