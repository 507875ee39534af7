package bundle

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"strings"
	"text/template"
)

// renderBootstrap assembles the archive's /bootstrap/main.go: a single
// self-contained package main that concatenates the captured function's
// own declarations (stripped of their original package clause and import
// block, which are merged and deduplicated across every contributing
// file) with a generated main() implementing the entry contract in
// spec.md §6. This mirrors the original system's own approach of rehoming
// function source into a standalone script (file_packaging.py's
// _add_filesystem_utilities rewrites relative imports into inline
// definitions for the same reason) rather than trying to reconstruct the
// original module/import graph on the remote side, which Go's static
// compilation makes far more brittle than Python's runtime exec.
func renderBootstrap(sourceFiles []collectedFile, entryFuncName, functionName, inputTypeExpr string, requiresRemoteFS bool) ([]byte, error) {
	imports := newImportSet()
	imports.add("context", "")
	imports.add("encoding/json", "")
	imports.add("fmt", "")
	imports.add("os", "")
	imports.add("time", "")

	var body bytes.Buffer
	for _, f := range sourceFiles {
		decls, fileImports, err := splitDecls(f.content)
		if err != nil {
			return nil, &PackagingError{Kind: ErrorKindArchiveWrite, Path: f.archivePath, Err: fmt.Errorf("bootstrap: parse %s: %w", f.archivePath, err)}
		}
		for _, imp := range fileImports {
			path, alias := remapFSAbstractionImport(imp.path, imp.alias)
			imports.add(path, alias)
		}
		body.WriteString(decls)
		body.WriteString("\n\n")
	}

	if requiresRemoteFS {
		// fs_shim ships as its own tiny module (see packager.go's
		// fsShimGoMod) so the generated main.go can import it normally
		// rather than needing its declarations inlined: a user file's
		// own import of internal/fsabstraction is remapped below to the
		// shim module's local name.
		imports.add(fsShimModuleName, fsShimImportAlias)
	}

	tmpl := template.Must(template.New("bootstrap").Parse(bootstrapMainTemplate))
	var rendered bytes.Buffer
	if err := tmpl.Execute(&rendered, bootstrapTemplateData{
		Imports:      imports.render(),
		Body:         body.String(),
		EntryFunc:    entryFuncName,
		FunctionName: functionName,
		InputType:    inputTypeExpr,
	}); err != nil {
		return nil, &PackagingError{Kind: ErrorKindArchiveWrite, Err: err}
	}

	formatted, err := format.Source(rendered.Bytes())
	if err != nil {
		// Fall back to the unformatted source: a bundle that fails
		// gofmt but still compiles is still usable, and the caller has
		// no toolchain available to fix it up anyway.
		return rendered.Bytes(), nil
	}
	return formatted, nil
}

type bootstrapTemplateData struct {
	Imports      string
	Body         string
	EntryFunc    string
	FunctionName string
	InputType    string
}

const bootstrapMainTemplate = `// Code generated by internal/bundle. DO NOT EDIT.
package main

import (
{{.Imports}}
)

{{.Body}}

type bootstrapResult struct {
	Status   string                 ` + "`json:\"status\"`" + `
	Result   interface{}            ` + "`json:\"result,omitempty\"`" + `
	Error    string                 ` + "`json:\"error,omitempty\"`" + `
	ErrorType string                ` + "`json:\"error_type,omitempty\"`" + `
	Metadata map[string]interface{} ` + "`json:\"metadata\"`" + `
}

func bootstrapMetadata(backendID string) map[string]interface{} {
	hostname, _ := os.Hostname()
	return map[string]interface{}{
		"hostname":   hostname,
		"backend_id": backendID,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	}
}

func main() {
	originalCWD := os.Getenv("ORIGINAL_CWD")
	backendID := os.Getenv("CLUSTRIX_BACKEND_ID")

	argsData, err := os.ReadFile("../args.payload")
	if err != nil {
		bootstrapFail(originalCWD, backendID, fmt.Errorf("read args.payload: %w", err))
	}

	var in {{.InputType}}
	if err := bootstrapDecodeArgs(argsData, &in); err != nil {
		bootstrapFail(originalCWD, backendID, err)
	}

	out, err := {{.EntryFunc}}(context.Background(), in)
	if err != nil {
		bootstrapFail(originalCWD, backendID, err)
		return
	}

	resultPath := fmt.Sprintf("%s/result_{{.FunctionName}}_%s.json", originalCWD, backendID)
	result := bootstrapResult{Status: "SUCCESS", Result: out, Metadata: bootstrapMetadata(backendID)}
	resultJSON, _ := json.Marshal(result)
	_ = os.WriteFile(resultPath, resultJSON, 0o644)

	compact, _ := json.Marshal(result)
	fmt.Println("RESULT_JSON:" + string(compact))
	fmt.Println("CLUSTRIX_END")
	os.Exit(0)
}

func bootstrapFail(originalCWD, backendID string, cause error) {
	errPath := fmt.Sprintf("%s/error_{{.FunctionName}}_%s.json", originalCWD, backendID)
	result := bootstrapResult{Status: "ERROR", Error: cause.Error(), ErrorType: fmt.Sprintf("%T", cause), Metadata: bootstrapMetadata(backendID)}
	errJSON, _ := json.Marshal(result)
	_ = os.WriteFile(errPath, errJSON, 0o644)

	compact, _ := json.Marshal(result)
	fmt.Println("ERROR_JSON:" + string(compact))
	fmt.Println("CLUSTRIX_END")
	os.Exit(1)
}

func bootstrapDecodeArgs(data []byte, out interface{}) error {
	var envelope struct {
		Format     string            ` + "`json:\"format\"`" + `
		Positional []json.RawMessage ` + "`json:\"positional\"`" + `
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return err
	}
	if len(envelope.Positional) == 0 {
		return fmt.Errorf("args payload has no positional value")
	}
	return json.Unmarshal(envelope.Positional[0], out)
}
`

// splitDecls reparses a source file and renders every declaration except
// the package clause and import block back to source text, returning the
// file's own imports separately so the caller can merge them into one
// deduplicated block.
func splitDecls(src []byte) (string, []importSpec, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "", src, parser.ParseComments)
	if err != nil {
		return "", nil, err
	}

	var imports []importSpec
	var buf bytes.Buffer
	for _, decl := range file.Decls {
		if gd, ok := decl.(*ast.GenDecl); ok && gd.Tok == token.IMPORT {
			for _, spec := range gd.Specs {
				is := spec.(*ast.ImportSpec)
				path, _ := parseStringLit(is.Path.Value)
				alias := ""
				if is.Name != nil {
					alias = is.Name.Name
				}
				imports = append(imports, importSpec{path: path, alias: alias})
			}
			continue
		}
		if err := format.Node(&buf, fset, decl); err != nil {
			return "", nil, err
		}
		buf.WriteString("\n\n")
	}
	return buf.String(), imports, nil
}

// fsShimModuleName and fsShimImportAlias name the module fs_shim/go.mod
// declares (see packager.go's fsShimGoMod) and the identifier bootstrap
// source uses to reach it, matching the unqualified name a captured
// function's own internal/fsabstraction import resolves to once flattened
// into the bootstrap's own import block.
const (
	fsShimModuleName  = "fsshim"
	fsShimImportAlias = "fsabstraction"
)

// remapFSAbstractionImport rewrites a user file's import of this module's
// internal/fsabstraction package to the standalone fsshim module the
// bootstrap actually ships (packager.go copies fs_shim/{api,local,default}.go
// plus a one-line go.mod under fs_shim/, replaced in by bootstrap's own
// go.mod): the bootstrap is not part of this module, so the original
// fully-qualified import path would not resolve there.
func remapFSAbstractionImport(path, alias string) (string, string) {
	if strings.HasSuffix(path, "/internal/fsabstraction") {
		return fsShimModuleName, fsShimImportAlias
	}
	return path, alias
}

func parseStringLit(quoted string) (string, error) {
	var s string
	_, err := fmt.Sscanf(quoted, "%q", &s)
	return s, err
}

// bootstrapGoMod declares the generated main.go's own module, with a
// replace directive pulling in the sibling fs_shim module when the
// captured function touches the filesystem abstraction. A bundle's
// bootstrap is never part of the dispatching module itself, so it needs
// its own go.mod rather than inheriting one.
func bootstrapGoMod(requiresRemoteFS bool) []byte {
	var b strings.Builder
	b.WriteString("module bundlebootstrap\n\ngo 1.25\n")
	if requiresRemoteFS {
		fmt.Fprintf(&b, "\nrequire %s v0.0.0\n\nreplace %s => ../fs_shim\n", fsShimModuleName, fsShimModuleName)
	}
	return []byte(b.String())
}

// fsShimGoMod names the fs_shim directory's own module so bootstrap's
// replace directive above has something to resolve against.
func fsShimGoMod() string {
	return "module " + fsShimModuleName + "\n\ngo 1.25\n"
}
