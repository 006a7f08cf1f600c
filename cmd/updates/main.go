package main

import (
	"fmt"
	"os"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "check":
		os.Exit(runCheck(os.Args[2:]))
	case "version":
		fmt.Printf("updates %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`updates - a publishing engine for Markdown/MDX writing sites

Usage:
  updates <command> [arguments]

Commands:
  check [flags] <file|dir>...   Run editorial checks against post sources
  version                       Print the updates version
  help                          Show this help message

Examples:
  updates check content/
  updates check -links content/hello-world.mdx`)
}
