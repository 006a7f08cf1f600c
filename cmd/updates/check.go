package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"

	updates "github.com/Lottamob/Updates"
	"github.com/Lottamob/Updates/check"
	"github.com/Lottamob/Updates/content"
)

// runCheck runs the editorial checks against one or more post sources and
// prints every finding. Exit codes: 0 all checks passed, 1 at least one
// error-severity finding, 2 usage or I/O problem.
func runCheck(args []string) int {
	// Pick up the site's .env so the checker sees the same content
	// configuration as the server.
	_ = godotenv.Load()

	flags := flag.NewFlagSet("check", flag.ContinueOnError)
	links := flags.Bool("links", false, "probe external links over the network")
	timeout := flags.Duration("timeout", 10*time.Second, "per-request timeout for link probes")
	authorsFile := flags.String("authors", os.Getenv("AUTHORS_FILE"), "authors registry YAML, enables the author check")
	layouts := flags.String("layouts", "", "comma-separated accepted layout names")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	targets := flags.Args()
	if len(targets) == 0 {
		targets = []string{updates.EnvOr("CONTENT_DIR", "content")}
	}

	paths, err := collectSources(targets)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "No .md or .mdx files to check")
		return 2
	}

	checker := &check.Checker{Layouts: updates.SplitCSV(*layouts)}
	if *authorsFile != "" {
		authors, err := updates.LoadAuthors(*authorsFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 2
		}
		ids := make(map[string]bool, len(authors))
		for id := range authors {
			ids[id] = true
		}
		checker.Authors = ids
	}

	parser := content.NewParser()
	var linkChecker *check.LinkChecker
	if *links {
		linkChecker = &check.LinkChecker{Timeout: *timeout}
	}

	errors, warnings := 0, 0
	for _, path := range paths {
		src, err := os.ReadFile(path)
		if err != nil {
			fmt.Printf("%s: error: %v\n", path, err)
			errors++
			continue
		}
		doc, err := parser.Parse(src)
		if err != nil {
			fmt.Printf("%s: error: %v\n", path, err)
			errors++
			continue
		}
		report := checker.Check(doc)
		if linkChecker != nil {
			report.Merge(linkChecker.Check(context.Background(), doc))
		}
		for _, f := range report.Findings {
			printFinding(path, f)
		}
		errors += report.Errors()
		warnings += report.Warnings()
	}

	if errors > 0 {
		fmt.Printf("✗ %d error(s), %d warning(s) in %d file(s)\n", errors, warnings, len(paths))
		return 1
	}
	fmt.Printf("✓ %d file(s) checked, %d warning(s)\n", len(paths), warnings)
	return 0
}

func printFinding(path string, f check.Finding) {
	if f.Line > 0 {
		fmt.Printf("%s:%d: %s %s: %s\n", path, f.Line, f.Severity, f.Rule, f.Message)
		return
	}
	fmt.Printf("%s: %s %s: %s\n", path, f.Severity, f.Rule, f.Message)
}

// collectSources expands directory targets into the .md and .mdx files they
// contain. Plain file targets pass through untouched so a stray extension can
// still be checked explicitly.
func collectSources(targets []string) ([]string, error) {
	var paths []string
	for _, target := range targets {
		info, err := os.Stat(target)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, target)
			continue
		}
		err = filepath.WalkDir(target, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			ext := strings.ToLower(filepath.Ext(path))
			if ext == ".md" || ext == ".mdx" {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(paths)
	return paths, nil
}
