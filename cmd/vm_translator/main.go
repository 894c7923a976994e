package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/teris-io/cli"
	"its-hmny.dev/nand2tetris/pkg/asm"
	"its-hmny.dev/nand2tetris/pkg/vm"
)

var Description = strings.ReplaceAll(`
The VM Translator translates programs (composed of multiple modules/files) written in
the VM language into Hack assembly code that can be further elaborated. The VM language
is a higher-level (bytecode'like) language tailored for use with the Hack computer arch.
`, "\n", " ")

var VmTranslator = cli.New(Description).
	WithArg(cli.NewArg("path", "The bytecode (.vm) file or directory to be compiled")).
	WithOption(cli.NewOption("out", "Overrides the computed output path").WithType(cli.TypeString)).
	WithOption(cli.NewOption("bootstrap", "Forces inclusion of the bootstrap code").WithType(cli.TypeBool)).
	WithOption(cli.NewOption("no-bootstrap", "Forces exclusion of the bootstrap code").WithType(cli.TypeBool)).
	WithAction(Handler)

// Bounds how many files get parsed concurrently. Unlike the assembler and the Jack
// compiler, translated output for a directory is a single, merged '.asm' file, so
// lowering/emission still has to happen sequentially, in input order, after parsing.
const maxParallelism = 8

type parseResult struct {
	path   string
	module vm.Module
	err    error
}

func Handler(args []string, options map[string]string) int {
	if len(args) < 1 {
		fmt.Printf("ERROR: Not enough arguments provided, use --help\n")
		return -1
	}

	root := args[0]
	info, err := os.Stat(root)
	if err != nil {
		fmt.Printf("ERROR: Unable to open input path: %s\n", err)
		return -1
	}

	inputs, err := collectInputs(root, info, ".vm")
	if err != nil {
		fmt.Printf("ERROR: Unable to walk input path: %s\n", err)
		return -1
	}
	if len(inputs) == 0 {
		fmt.Printf("ERROR: No '.vm' files found at '%s'\n", root)
		return -1
	}

	failed := false
	program := vm.Program{}

	// Parsing is concurrent, but results are folded back in input order, which is
	// what determines the order modules are later emitted in.
	for _, result := range parseAll(inputs) {
		if result.err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %s: unable to complete 'parsing' pass: %s\n", result.path, result.err)
			failed = true
			continue
		}
		program[moduleName(result.path)] = result.module
	}

	if failed {
		return 1
	}

	emitter := vm.NewEmitter()
	asmProgram := asm.Program{}

	for _, input := range inputs {
		chunk, err := emitter.Emit(moduleName(input), program[moduleName(input)])
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %s: unable to complete 'emit' pass: %s\n", input, err)
			return 1
		}
		asmProgram = append(asmProgram, chunk...)
	}

	// Bootstrap code is emitted by default only when translating a whole directory
	// (the usual case for a multi-file program with a 'Sys.init' entry point); either
	// option lets the caller override that default explicitly.
	bootstrap := info.IsDir()
	if _, enabled := options["bootstrap"]; enabled {
		bootstrap = true
	}
	if _, disabled := options["no-bootstrap"]; disabled {
		bootstrap = false
	}

	if bootstrap {
		prelude, err := emitter.Bootstrap()
		if err != nil {
			fmt.Printf("ERROR: Unable to generate bootstrap code: %s\n", err)
			return -1
		}
		asmProgram = append(prelude, asmProgram...)
	}

	// Now, instantiates a code generator for the Asm (compiled) program
	codegen := asm.NewCodeGenerator(asmProgram)
	// Iterates over each instruction and spits out the relative textual representation.
	compiled, err := codegen.Generate()
	if err != nil {
		fmt.Printf("ERROR: Unable to complete 'codegen' pass: %s\n", err)
		return -1
	}

	output := outputPathFor(root, info)
	if options["out"] != "" {
		output = options["out"]
	}

	if err := writeAtomic(output, compiled); err != nil {
		fmt.Printf("ERROR: Unable to write output: %s\n", err)
		return -1
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

			// Instantiate a parser for the Vm program
			parser := vm.NewParser(file)
			// Parses the input file content and extract an AST (as a 'vm.Module') from it.
			module, err := parser.Parse()
			results[i] = parseResult{path: input, module: module, err: err}
		}(i, input)
	}

	wg.Wait()
	return results
}

// Resolves the set of files to translate for a single positional 'path' argument.
func collectInputs(root string, info os.FileInfo, ext string) ([]string, error) {
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

// The key used both in 'vm.Program' and to qualify 'static' variables/labels during
// emission: the input file's base name, extension stripped.
func moduleName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// For a single file, output replaces the '.vm' extension with '.asm'. For a directory
// 'D', output is 'D/D.asm'.
func outputPathFor(root string, info os.FileInfo) string {
	if !info.IsDir() {
		return strings.TrimSuffix(root, filepath.Ext(root)) + ".asm"
	}
	dirName := filepath.Base(filepath.Clean(root))
	return filepath.Join(root, dirName+".asm")
}

// Writes 'lines' to 'path' via a temporary file in the same directory, renamed into
// place only once the write fully succeeds.
func writeAtomic(path string, lines []string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".vm_translator-*.tmp")
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

func main() { os.Exit(VmTranslator.Run(os.Args, os.Stdout)) }
