package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/teris-io/cli"
	"its-hmny.dev/nand2tetris/pkg/asm"
	"its-hmny.dev/nand2tetris/pkg/hack"
)

var Description = strings.ReplaceAll(`
The Hack Assembler takes assembly language code written in the Hack assembly language
and translates it into machine code that can be executed by the Hack computer. The process
involves parsing the assembly code, resolving symbols, and generating machine code.
`, "\n", " ")

var HackAssembler = cli.New(Description).
	WithArg(cli.NewArg("path", "The assembly (.asm) file or directory to be compiled")).
	WithOption(cli.NewOption("out", "Overrides the computed output path").WithType(cli.TypeString)).
	WithAction(Handler)

// Bounds how many files get parsed concurrently, parsing is the only phase
// parallelized across files since each file's lowering/codegen/output are independent.
const maxParallelism = 8

type parseResult struct {
	path    string
	program asm.Program
	err     error
}

func Handler(args []string, options map[string]string) int {
	if len(args) < 1 {
		fmt.Printf("ERROR: Not enough arguments provided, use --help\n")
		return -1
	}

	inputs, err := collectInputs(args[0], ".asm")
	if err != nil {
		fmt.Printf("ERROR: Unable to walk input path: %s\n", err)
		return -1
	}
	if len(inputs) == 0 {
		fmt.Printf("ERROR: No '.asm' files found at '%s'\n", args[0])
		return -1
	}

	failed := false
	for _, result := range parseAll(inputs) {
		if result.err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %s: unable to complete 'parsing' pass: %s\n", result.path, result.err)
			failed = true
			continue
		}

		output := outputPathFor(result.path, ".hack")
		if len(inputs) == 1 && options["out"] != "" {
			output = options["out"]
		}

		if err := assembleOne(result.path, result.program, output); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %s: %s\n", result.path, err)
			failed = true
		}
	}

	if failed {
		return 1
	}
	return 0
}

func assembleOne(input string, program asm.Program, output string) error {
	// Instantiate a lowerer to convert the program from Asm to Hack
	lowerer := asm.NewLowerer(program)
	// Lowers the asm.Program to an in-memory/IR representation of its Hack counterpart 'hack.Program'.
	hackProgram, table, err := lowerer.Lower()
	if err != nil {
		return fmt.Errorf("unable to complete 'lowering' pass: %w", err)
	}

	// Now, instantiates a code generator for the Hack (compiled) program
	codegen := hack.NewCodeGenerator(hackProgram, table)
	// Iterates over each instruction and spits out the relative textual representation.
	compiled, err := codegen.Generate()
	if err != nil {
		return fmt.Errorf("unable to complete 'codegen' pass: %w", err)
	}

	if err := writeAtomic(output, compiled); err != nil {
		return fmt.Errorf("unable to write output: %w", err)
	}
	return nil
}

// Parses every input file concurrently, bounded by 'maxParallelism'. Each file is
// parsed independently of the others, so there's no ordering requirement to preserve.
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

			// Instantiate a parser for the Asm program
			parser := asm.NewParser(file)
			// Parses the input file content and extract an AST (as an 'asm.Program') from it.
			program, err := parser.Parse()
			results[i] = parseResult{path: input, program: program, err: err}
		}(i, input)
	}

	wg.Wait()
	return results
}

// Resolves the set of files to compile for a single positional 'path' argument: if it
// names a file directly that file alone is returned, if it names a directory every
// file in it (non-recursively) matching 'ext' is returned.
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

// Replaces 'input's extension with 'newExt'.
func outputPathFor(input string, newExt string) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + newExt
}

// Writes 'lines' to 'path' via a temporary file in the same directory, renamed into
// place only once the write fully succeeds, so a failed or interrupted run never
// leaves a partially written output file behind.
func writeAtomic(path string, lines []string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".hack_assembler-*.tmp")
	if err != nil {
		return fmt.Errorf("unable to create temporary output file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // No-op once the rename below succeeds

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

func main() { os.Exit(HackAssembler.Run(os.Args, os.Stdout)) }
