// Package depanalysis captures a Go callable's defining function and
// analyzes its AST for imports, local callees, data-file references, and
// filesystem-abstraction calls — the information the bundle packager needs
// to decide what to ship alongside a dispatched call.
//
// This replaces the original system's dynamic runtime introspection
// (inspect.getsource plus a live __globals__ walk) with an explicit,
// static capture step: a Go function has no running global scope to
// inspect, so the callable's identity is resolved once, up front, via
// runtime.FuncForPC, and everything else follows from parsing its own
// source file.
package depanalysis

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
)

// CapturedFunction is the result of locating a callable's own declaration
// in its source file.
type CapturedFunction struct {
	// Name is the function's short name (e.g. "RunSimulation"), stripped
	// of its package qualifier and any method receiver wrapper.
	Name string

	// SourceFile is the absolute path to the file defining the function.
	SourceFile string

	// PackageDir is SourceFile's containing directory, used to resolve
	// local callees declared in sibling files of the same package.
	PackageDir string

	decl *ast.FuncDecl
	file *ast.File
	fset *token.FileSet
}

// Capture resolves fn (any Go func value) to its declaring source and
// parses that file. It returns an error if fn is not a function, or if its
// defining file cannot be located or parsed — both are unrecoverable, since
// everything downstream (dependency analysis, bundling) needs the AST.
func Capture(fn interface{}) (*CapturedFunction, error) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return nil, fmt.Errorf("depanalysis: %T is not a function", fn)
	}

	rf := runtime.FuncForPC(v.Pointer())
	if rf == nil {
		return nil, fmt.Errorf("depanalysis: could not resolve runtime function for %T", fn)
	}

	file, startLine := rf.FileLine(rf.Entry())
	if file == "" {
		return nil, fmt.Errorf("depanalysis: no source file recorded for %s (built without debug info?)", rf.Name())
	}
	absFile, err := filepath.Abs(file)
	if err != nil {
		absFile = file
	}

	fset := token.NewFileSet()
	astFile, err := parser.ParseFile(fset, absFile, nil, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("depanalysis: parse %s: %w", absFile, err)
	}

	decl := findEnclosingFunc(fset, astFile, startLine)
	if decl == nil {
		return nil, fmt.Errorf("depanalysis: no function declaration in %s covers line %d (runtime name %s)", absFile, startLine, rf.Name())
	}

	return &CapturedFunction{
		Name:       shortName(decl, rf.Name()),
		SourceFile: absFile,
		PackageDir: filepath.Dir(absFile),
		decl:       decl,
		file:       astFile,
		fset:       fset,
	}, nil
}

// findEnclosingFunc returns the FuncDecl whose source span contains line,
// preferring the tightest match (a closure nested inside an outer func
// reports the same entry line as its parent in some builds, so ties
// resolve to the innermost declaration by source length).
func findEnclosingFunc(fset *token.FileSet, file *ast.File, line int) *ast.FuncDecl {
	var best *ast.FuncDecl
	var bestSpan int

	ast.Inspect(file, func(n ast.Node) bool {
		fd, ok := n.(*ast.FuncDecl)
		if !ok || fd.Body == nil {
			return true
		}
		startLine := fset.Position(fd.Pos()).Line
		endLine := fset.Position(fd.End()).Line
		if line < startLine || line > endLine {
			return true
		}
		span := endLine - startLine
		if best == nil || span < bestSpan {
			best = fd
			bestSpan = span
		}
		return true
	})

	return best
}

// shortName derives a readable function name, falling back to the
// runtime-reported symbol name (package-qualified, possibly with a
// closure suffix like ".func1") when the AST node is anonymous.
func shortName(decl *ast.FuncDecl, runtimeName string) string {
	if decl.Name != nil && decl.Name.Name != "" {
		return decl.Name.Name
	}
	if i := strings.LastIndex(runtimeName, "."); i >= 0 {
		return runtimeName[i+1:]
	}
	return runtimeName
}

// FuncType exposes the captured function's signature AST, letting callers
// (the bundle packager) render its parameter/result types back to source
// text without needing to re-parse or re-locate the declaration.
func (c *CapturedFunction) FuncType() *ast.FuncType { return c.decl.Type }

// FileSet returns the token.FileSet the declaration was parsed with,
// required by go/format to render any AST node taken from it.
func (c *CapturedFunction) FileSet() *token.FileSet { return c.fset }

// CanonicalSource renders the captured function's own declaration as
// normalized text: common leading indentation stripped, line endings
// canonicalized to "\n". Only the function's AST span is included, not the
// rest of the file — this is what spec §8 invariant 4 requires
// ("identical function body, different surrounding whitespace/formatting
// ⇒ identical bundle id") and is stricter than the original's whole-source
// dedent, since unrelated file-level reformatting never perturbs it.
func (c *CapturedFunction) CanonicalSource() (string, error) {
	startOffset := c.fset.Position(c.decl.Pos()).Offset
	endOffset := c.fset.Position(c.decl.End()).Offset

	data, err := os.ReadFile(c.SourceFile)
	if err != nil {
		return "", fmt.Errorf("depanalysis: read %s: %w", c.SourceFile, err)
	}
	if endOffset > len(data) || startOffset < 0 || startOffset > endOffset {
		return "", fmt.Errorf("depanalysis: function span out of bounds in %s", c.SourceFile)
	}

	raw := string(data[startOffset:endOffset])
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	return dedent(raw), nil
}

func dedent(s string) string {
	lines := strings.Split(s, "\n")

	minIndent := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := len(line) - len(strings.TrimLeft(line, " \t"))
		if minIndent == -1 || indent < minIndent {
			minIndent = indent
		}
	}
	if minIndent <= 0 {
		return s
	}

	for i, line := range lines {
		if len(line) >= minIndent {
			lines[i] = line[minIndent:]
		} else {
			lines[i] = strings.TrimLeft(line, " \t")
		}
	}
	return strings.Join(lines, "\n")
}
