package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const simpleAddVm = `// Pushes and adds two constants
push constant 7
push constant 8
add
`

var simpleAddAsm = strings.Join([]string{
	"@7", "D=A", "@SP", "A=M", "M=D", "@SP", "M=M+1",
	"@8", "D=A", "@SP", "A=M", "M=D", "@SP", "M=M+1",
	"@SP", "M=M-1", "A=M", "D=M", "A=A-1", "M=D+M",
}, "\n") + "\n"

func readOutputVM(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("unable to read %s: %s", path, err)
	}
	return string(content)
}

func TestVMTranslatorSingleFile(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "SimpleAdd.vm")
	if err := os.WriteFile(input, []byte(simpleAddVm), 0644); err != nil {
		t.Fatalf("unable to write fixture: %s", err)
	}

	if status := Handler([]string{input}, map[string]string{}); status != 0 {
		t.Fatalf("expected exit status 0, got %d", status)
	}

	got := readOutputVM(t, filepath.Join(dir, "SimpleAdd.asm"))
	if got != simpleAddAsm {
		t.Fatalf("unexpected output:\ngot:\n%s\nwant:\n%s", got, simpleAddAsm)
	}
}

func TestVMTranslatorSingleFileBootstrapOverride(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "SimpleAdd.vm")
	if err := os.WriteFile(input, []byte(simpleAddVm), 0644); err != nil {
		t.Fatalf("unable to write fixture: %s", err)
	}

	if status := Handler([]string{input}, map[string]string{"bootstrap": ""}); status != 0 {
		t.Fatalf("expected exit status 0, got %d", status)
	}

	got := readOutputVM(t, filepath.Join(dir, "SimpleAdd.asm"))
	wantPrefix := "@256\nD=A\n@SP\nM=D\n"
	if !strings.HasPrefix(got, wantPrefix) {
		t.Fatalf("expected output to start with the bootstrap sequence, got:\n%s", got)
	}
	if !strings.HasSuffix(got, simpleAddAsm) {
		t.Fatalf("expected output to end with the translated module, got:\n%s", got)
	}
}

func TestVMTranslatorDirectoryBootstrapsByDefault(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "SimpleAdd.vm"), []byte(simpleAddVm), 0644); err != nil {
		t.Fatalf("unable to write fixture: %s", err)
	}

	if status := Handler([]string{dir}, map[string]string{}); status != 0 {
		t.Fatalf("expected exit status 0, got %d", status)
	}

	dirName := filepath.Base(dir)
	got := readOutputVM(t, filepath.Join(dir, dirName+".asm"))
	wantPrefix := "@256\nD=A\n@SP\nM=D\n"
	if !strings.HasPrefix(got, wantPrefix) {
		t.Fatalf("expected output to start with the bootstrap sequence, got:\n%s", got)
	}
}

func TestVMTranslatorNoBootstrapOverride(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "SimpleAdd.vm"), []byte(simpleAddVm), 0644); err != nil {
		t.Fatalf("unable to write fixture: %s", err)
	}

	if status := Handler([]string{dir}, map[string]string{"no-bootstrap": ""}); status != 0 {
		t.Fatalf("expected exit status 0, got %d", status)
	}

	dirName := filepath.Base(dir)
	got := readOutputVM(t, filepath.Join(dir, dirName+".asm"))
	if got != simpleAddAsm {
		t.Fatalf("unexpected output:\ngot:\n%s\nwant:\n%s", got, simpleAddAsm)
	}
}

func TestVMTranslatorOutOption(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "SimpleAdd.vm")
	output := filepath.Join(dir, "custom.asm")
	if err := os.WriteFile(input, []byte(simpleAddVm), 0644); err != nil {
		t.Fatalf("unable to write fixture: %s", err)
	}

	if status := Handler([]string{input}, map[string]string{"out": output}); status != 0 {
		t.Fatalf("expected exit status 0, got %d", status)
	}

	if got := readOutputVM(t, output); got != simpleAddAsm {
		t.Fatalf("unexpected output:\ngot:\n%s\nwant:\n%s", got, simpleAddAsm)
	}
}

func TestVMTranslatorRejectsMismatchedArgCounts(t *testing.T) {
	dir := t.TempDir()
	broken := "push constant\n" // missing the required offset operand
	input := filepath.Join(dir, "Broken.vm")
	if err := os.WriteFile(input, []byte(broken), 0644); err != nil {
		t.Fatalf("unable to write fixture: %s", err)
	}

	if status := Handler([]string{input}, map[string]string{}); status == 0 {
		t.Fatalf("expected a non-zero exit status for malformed input")
	}
}

func TestVMTranslatorNoArgs(t *testing.T) {
	if status := Handler([]string{}, map[string]string{}); status == 0 {
		t.Fatalf("expected a non-zero exit status when no path is provided")
	}
}

func TestModuleName(t *testing.T) {
	if got := moduleName("foo/Bar.vm"); got != "Bar" {
		t.Fatalf("unexpected module name: %s", got)
	}
}
