package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/slotkeeper/internal/app"
)

func main() {
	// ログはstderrに出力し、stdoutはexportの出力用に空けておく
	if err := app.Run(os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
