package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/roach88/automaton/internal/cli"
)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cmd := cli.NewRootCommand()
	cmd.Version = getVersion()

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
