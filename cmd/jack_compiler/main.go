package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/teris-io/cli"
	"its-hmny.dev/nand2tetris/pkg/jack"
	"its-hmny.dev/nand2tetris/pkg/vm"
)

var Description = strings.ReplaceAll(`
The Jack Compiler compiles programs (composed of multiple classes/files) written in
the Jack language into VM modules that can be further elaborated. The Jack language
is a higher-level OOP language tailored for use with the Hack computer architecture.
`, "\n", " ")

var JackCompiler = cli.New(Description).
	WithArg(cli.NewArg("path", "The source (.jack) file or directory to be compiled")).
	WithOption(cli.NewOption("out", "Overrides the computed output path").WithType(cli.TypeString)).
	WithAction(Handler)

// Bounds how many files get parsed concurrently, parsing is the only phase
// parallelized across files: each class compiles to its own '.vm' file independently
// of every other (see 'pkg/jack/emitter.go's doc comment on why no cross-class lookup,
// not even against the standard library, is ever needed).
const maxParallelism = 8

type parseResult struct {
	path  string
	class jack.Class
	err   error
}

func Handler(args []string, options map[string]string) int {
	if len(args) < 1 {
		fmt.Printf("ERROR: Not enough arguments provided, use --help\n")
		return -1
	}

	inputs, err := collectInputs(args[0], ".jack")
	if err != nil {
		fmt.Printf("ERROR: Unable to walk input path: %s\n", err)
		return -1
	}
	if len(inputs) == 0 {
		fmt.Printf("ERROR: No '.jack' files found at '%s'\n", args[0])
		return -1
	}

	failed, program := false, vm.Program{}

	for _, result := range parseAll(inputs) {
		if result.err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %s: unable to complete 'parsing' pass: %s\n", result.path, result.err)
			failed = true
			continue
		}

		// A fresh Emitter per class: its ScopeTable accumulates static variables as
		// it walks a class's fields, and nothing resets that between classes, so
		// reusing one Emitter across files would leak one file's statics into the next.
		emitter := jack.NewEmitter()
		module, err := emitter.Emit(result.class)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %s: unable to complete 'emit' pass: %s\n", result.path, err)
			failed = true
			continue
		}

		program[moduleName(result.path)] = module
	}

	// Parse/emit failures are recorded but don't stop here: every class that did
	// compile still gets its '.vm' file written below, same as a failed 'codegen'
	// or write further down only affects its own input, not the others.
	if len(program) == 0 {
		return 1
	}

	// Instantiates a code generator for the Vm (compiled) program
	codegen := vm.NewCodeGenerator(program)
	// Iterates over each instruction and spits out the relative textual representation.
	compiled, err := codegen.Generate()
	if err != nil {
		fmt.Printf("ERROR: Unable to complete 'codegen' pass: %s\n", err)
		return -1
	}

	for _, input := range inputs {
		module, ok := compiled[moduleName(input)]
		if !ok {
			fmt.Fprintf(os.Stderr, "ERROR: %s: no compiled module produced\n", input)
			failed = true
			continue
		}

		output := outputPathFor(input, ".vm")
		if len(inputs) == 1 && options["out"] != "" {
			output = options["out"]
		}

		if err := writeAtomic(output, module); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %s: unable to write output: %s\n", input, err)
			failed = true
		}
	}

	if failed {
		return 1
	}
	return 0
}

// Parses every input file concurrently, bounded by 'maxParallelism'.
func parseAll(inputs []string) []parseResult {
	results := make([]parseResult, len(inputs))
	sem := make(chan struct{}, maxParallelism)
	var wg sync.WaitGroup

	for i, input := range inputs {
		wg.Add(1)
		sem <- struct{}{}

		go func(i int, input string) {
			defer wg.Done()
			defer func() { <-sem }()

			file, err := os.Open(input)
			if err != nil {
				results[i] = parseResult{path: input, err: fmt.Errorf("unable to open input file: %w", err)}
				return
			}
			defer file.Close()

			// Instantiate a parser for the Jack source file
			parser, err := jack.NewParser(file)
			if err != nil {
				results[i] = parseResult{path: input, err: fmt.Errorf("unable to tokenize source: %w", err)}
				return
			}

			// Parses the input file content and extracts the class declared in it.
			class, err := parser.Parse()
			results[i] = parseResult{path: input, class: class, err: err}
		}(i, input)
	}

	wg.Wait()
	return results
}

// Resolves the set of files to compile for a single positional 'path' argument.
func collectInputs(root string, ext string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		return []string{root}, nil
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	inputs := []string{}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ext {
			continue
		}
		inputs = append(inputs, filepath.Join(root, entry.Name()))
	}
	return inputs, nil
}

// The key used both in 'vm.Program' and to look up each file's compiled output: the
// input file's base name, extension stripped.
func moduleName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// Replaces 'input's extension with 'newExt'.
func outputPathFor(input string, newExt string) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + newExt
}

// Writes 'lines' to 'path' via a temporary file in the same directory, renamed into
// place only once the write fully succeeds.
func writeAtomic(path string, lines []string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".jack_compiler-*.tmp")
	if err != nil {
		return fmt.Errorf("unable to create temporary output file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	for _, line := range lines {
		if _, err := fmt.Fprintf(tmp, "%s\n", line); err != nil {
			tmp.Close()
			return fmt.Errorf("unable to write output: %w", err)
		}
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("unable to close temporary output file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("unable to rename temporary output file into place: %w", err)
	}
	return nil
}

func main() { os.Exit(JackCompiler.Run(os.Args, os.Stdout)) }
