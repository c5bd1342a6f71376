// pytype-infer runs type inference on a program file and prints the
// inferred types and diagnostics.
//
// Usage:
//
//	pytype-infer [-overlay extra.yaml] [-log debug] [-source mod.py] program.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/LaudateCorpus1/pytype/infer"
)

func main() {
	overlayPath := flag.String("overlay", "", "extra overlay declarations (YAML)")
	sourcePath := flag.String("source", "", "source file for diagnostic snippets")
	logLevel := flag.String("log", "", "log level (debug, info, warn, error)")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: pytype-infer [flags] program.yaml")
		os.Exit(2)
	}

	if err := run(flag.Arg(0), *overlayPath, *sourcePath, *logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "pytype-infer: %v\n", err)
		os.Exit(1)
	}
}

func run(programPath, overlayPath, sourcePath, logLevel string) error {
	code, err := loadProgram(programPath)
	if err != nil {
		return err
	}

	opts := infer.DefaultOptions()
	opts.LogLevel = logLevel

	if overlayPath != "" {
		doc, err := os.ReadFile(overlayPath)
		if err != nil {
			return err
		}
		opts.OverlayYAML = append(opts.OverlayYAML, doc)
	}

	result, err := infer.Run(context.Background(), code, opts)
	if err != nil {
		return err
	}

	var source string
	if sourcePath != "" {
		data, err := os.ReadFile(sourcePath)
		if err != nil {
			return err
		}
		source = string(data)
	}

	for _, f := range result.Solution.Funcs {
		fmt.Printf("%s -> %s\n", f.Name, f.Returns)
		exit := f.Exit()
		for name, v := range exit.Locals.All() {
			fmt.Printf("  %s: %s\n", name, v)
		}
	}

	if len(result.Errors) > 0 {
		fmt.Println()
		fmt.Print(infer.FormatErrors(result.Errors, source))
	}
	if result.LimitHit {
		fmt.Println("\nnote: analysis budget was exhausted; some results are approximate")
	}
	return nil
}
