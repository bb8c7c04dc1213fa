// Command preview prints the welcome banner and a sample research session
// using the interactive renderers, so styles can be checked without a service.
//
//	go run ./cmd/preview [width]
package main

import (
	"fmt"
	"os"
	"strconv"

	"research-cli/internal/tui"
)

func main() {
	width := 100
	if len(os.Args) > 1 {
		n, err := strconv.Atoi(os.Args[1])
		if err != nil || n <= 0 {
			fmt.Fprintf(os.Stderr, "invalid width %q\n", os.Args[1])
			os.Exit(2)
		}
		width = n
	}

	if err := tui.Preview(os.Stdout, "dev", width); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
