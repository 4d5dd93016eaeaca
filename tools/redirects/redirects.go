// Command redirects patches the kernel image so that selected Go runtime
// functions jump to kernel replacements. Kernel functions opt in with a
//
//	//go:redirect-from runtime.symbol
//
// comment. The "count" command prints the number of redirects (the rt0 code
// sizes the .goredirectstbl section with it) and "populate-table" writes
// the (source, destination) address pairs into that section of a linked
// image.
package main

import (
	"debug/elf"
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	redirectDirective = "//go:redirect-from"
	redirectSection   = ".goredirectstbl"
)

type redirect struct {
	src string
	dst string

	srcVMA uint64
	dstVMA uint64
}

func exit(err error) {
	fmt.Fprintf(os.Stderr, "[redirects] error: %s\n", err.Error())
	os.Exit(1)
}

// modulePath returns the module path declared by the go.mod file in dir.
func modulePath(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, "go.mod"))
	if err != nil {
		return "", err
	}

	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 2 && fields[0] == "module" {
			return strings.Trim(fields[1], `"`), nil
		}
	}

	return "", errors.New("go.mod: missing module directive")
}

// collectGoFiles returns the non-test Go sources below root, relative to
// the current directory.
func collectGoFiles(root string) ([]string, error) {
	var goFiles []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}

		if filepath.Ext(path) == ".go" && !strings.HasSuffix(path, "_test.go") {
			goFiles = append(goFiles, path)
		}
		return nil
	})

	return goFiles, err
}

// findRedirects scans goFiles for redirect directives attached to function
// declarations. Destination symbols are qualified as module/dir.Func, which
// matches the symbol names the linker emits.
func findRedirects(module string, goFiles []string) ([]*redirect, error) {
	var redirects []*redirect

	for _, goFile := range goFiles {
		fset := token.NewFileSet()
		f, err := parser.ParseFile(fset, goFile, nil, parser.ParseComments)
		if err != nil {
			return nil, fmt.Errorf("%s: %s", goFile, err)
		}

		pkgPath := module + "/" + filepath.ToSlash(filepath.Dir(goFile))
		for _, decl := range f.Decls {
			fnDecl, ok := decl.(*ast.FuncDecl)
			if !ok || fnDecl.Doc == nil {
				continue
			}

			for _, comment := range fnDecl.Doc.List {
				if !strings.HasPrefix(comment.Text, redirectDirective) {
					continue
				}

				dst := pkgPath + "." + fnDecl.Name.Name
				fields := strings.Fields(comment.Text)
				if len(fields) != 2 || fields[0] != redirectDirective {
					return nil, fmt.Errorf("malformed %s syntax for %q", redirectDirective, dst)
				}

				redirects = append(redirects, &redirect{src: fields[1], dst: dst})
			}
		}
	}

	return redirects, nil
}

// resolveSymbols fills in the virtual addresses of every redirect from the
// image symbol table.
func resolveSymbols(redirects []*redirect, symbols []elf.Symbol) error {
	addrs := make(map[string]uint64, len(symbols))
	for _, symbol := range symbols {
		addrs[symbol.Name] = symbol.Value
	}

	for _, r := range redirects {
		r.srcVMA, r.dstVMA = addrs[r.src], addrs[r.dst]

		switch {
		case r.srcVMA == 0:
			return fmt.Errorf("could not locate address of %q", r.src)
		case r.dstVMA == 0:
			return fmt.Errorf("could not locate address of %q", r.dst)
		}
	}

	return nil
}

// writeTable emits the redirect table as little-endian (src, dst) pairs.
func writeTable(w io.Writer, redirects []*redirect) error {
	for _, r := range redirects {
		if err := binary.Write(w, binary.LittleEndian, [2]uint64{r.srcVMA, r.dstVMA}); err != nil {
			return err
		}
	}
	return nil
}

func populateTable(redirects []*redirect, imgFile string) error {
	img, err := elf.Open(imgFile)
	if err != nil {
		return err
	}

	section := img.Section(redirectSection)
	symbols, symErr := img.Symbols()
	img.Close()

	switch {
	case section == nil:
		return fmt.Errorf("%s: missing %s section", imgFile, redirectSection)
	case symErr != nil:
		return fmt.Errorf("%s: %s", imgFile, symErr)
	}

	if err = resolveSymbols(redirects, symbols); err != nil {
		return fmt.Errorf("%s: %s", imgFile, err)
	}

	f, err := os.OpenFile(imgFile, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err = f.Seek(int64(section.Offset), io.SeekStart); err != nil {
		return err
	}
	return writeTable(f, redirects)
}

func main() {
	flag.Parse()
	if matches, _ := filepath.Glob("kernel/"); len(matches) != 1 {
		exit(errors.New("this tool must be run from the kernel root folder"))
	}

	if len(flag.Args()) == 0 {
		exit(errors.New("missing command"))
	}

	cmd := flag.Arg(0)
	var imgFile string
	switch cmd {
	case "count":
	case "populate-table":
		if len(flag.Args()) != 2 {
			exit(errors.New("populate-table requires the path to the kernel image as an argument"))
		}
		imgFile = flag.Arg(1)
	default:
		exit(fmt.Errorf("unknown command %q", cmd))
	}

	module, err := modulePath(".")
	if err != nil {
		exit(err)
	}

	goFiles, err := collectGoFiles("kernel/")
	if err != nil {
		exit(err)
	}

	redirects, err := findRedirects(module, goFiles)
	if err != nil {
		exit(err)
	}

	if cmd == "count" {
		fmt.Printf("%d", len(redirects))
		return
	}

	if err = populateTable(redirects, imgFile); err != nil {
		exit(err)
	}
}
