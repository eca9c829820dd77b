// varschema prints the inferred variable schema of a prompt template, read
// from a file argument or stdin.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/relayforge/relayforge/internal/template"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [template-file]\n", os.Args[0])
		flag.PrintDefaults()
	}
	declaredPath := flag.String("declared", "", "path to a declared schema JSON to merge the inference into")
	flag.Parse()

	src, err := readSource(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "read template: %v\n", err)
		os.Exit(1)
	}

	var declared *template.Schema
	if *declaredPath != "" {
		raw, err := os.ReadFile(*declaredPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read declared schema: %v\n", err)
			os.Exit(1)
		}
		declared = &template.Schema{}
		if err := json.Unmarshal(raw, declared); err != nil {
			fmt.Fprintf(os.Stderr, "parse declared schema: %v\n", err)
			os.Exit(1)
		}
	}

	engine, err := template.NewEngine(template.DefaultCacheSize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init engine: %v\n", err)
		os.Exit(1)
	}

	schema, err := engine.InferVariables(string(src), declared)
	if err != nil {
		var serr *template.SyntaxError
		if errors.As(err, &serr) {
			fmt.Fprintf(os.Stderr, "syntax error on line %d: %s\n", serr.Line, serr.Message)
		} else {
			fmt.Fprintf(os.Stderr, "infer schema: %v\n", err)
		}
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(schema); err != nil {
		fmt.Fprintf(os.Stderr, "encode schema: %v\n", err)
		os.Exit(1)
	}
}

func readSource(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
