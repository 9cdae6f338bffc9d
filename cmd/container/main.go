package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newCLI().Exec(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
