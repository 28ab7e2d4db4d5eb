package main

import (
	"fmt"
	"os"

	"github.com/kirillkom/rx-crosscheck/internal/adapters/cli"
)

func main() {
	root := cli.NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
