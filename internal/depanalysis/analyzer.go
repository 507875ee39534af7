package depanalysis

import (
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/stlpine/clustergo/pkg/models"
)

// fsAPINames is the filesystem-abstraction API surface (internal/fsabstraction);
// calls through any import alias bound to that package are recorded as
// FSCall entries and set RequiresRemoteFS, mirroring the original's
// cluster_fs_functions set.
var fsAPINames = map[string]bool{
	"List": true, "Find": true, "Glob": true, "Stat": true,
	"Exists": true, "IsDir": true, "IsFile": true,
	"TreeSize": true, "Count": true,
}

const fsAbstractionImportSuffix = "/internal/fsabstraction"

// dataFileExtensions mirrors the original's heuristic extension set for
// recognizing a string literal as a data-file path reference.
var dataFileExtensions = []string{
	".txt", ".csv", ".json", ".xml", ".yaml", ".yml",
	".h5", ".hdf5", ".pkl", ".npy", ".npz", ".dat", ".log",
	".conf", ".cfg", ".ini", ".parquet",
}

// Analyzer walks a CapturedFunction's AST to produce a DependencyReport.
type Analyzer struct {
	// packageFuncs is the set of top-level function names declared
	// anywhere in the captured function's package directory, used to
	// decide whether a call is "local" (spec §4.3's local_callees).
	packageFuncs map[string]string // name -> defining file
}

// NewAnalyzer builds an Analyzer, pre-scanning every sibling .go file in
// cf.PackageDir (excluding _test.go files) for top-level function
// declarations.
func NewAnalyzer(cf *CapturedFunction) (*Analyzer, error) {
	funcs := make(map[string]string)

	entries, err := os.ReadDir(cf.PackageDir)
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		path := filepath.Join(cf.PackageDir, name)

		var file *ast.File
		if path == cf.SourceFile {
			file = cf.file
		} else {
			f, err := parseSiblingFile(path)
			if err != nil {
				continue // unreadable sibling files are skipped, not fatal
			}
			file = f
		}

		for _, decl := range file.Decls {
			fd, ok := decl.(*ast.FuncDecl)
			if !ok || fd.Recv != nil { // skip methods; only plain functions count as local callees
				continue
			}
			funcs[fd.Name.Name] = path
		}
	}

	return &Analyzer{packageFuncs: funcs}, nil
}

// Analyze produces the DependencyReport for cf.
func (a *Analyzer) Analyze(cf *CapturedFunction) models.DependencyReport {
	report := models.DependencyReport{}

	report.Imports = collectImports(cf.fset, cf.file)

	seenCallees := make(map[string]bool)
	seenDataRefs := make(map[string]bool)

	ast.Inspect(cf.decl, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		line := cf.fset.Position(call.Pos()).Line

		switch fn := call.Fun.(type) {
		case *ast.Ident:
			if file, ok := a.packageFuncs[fn.Name]; ok && fn.Name != cf.Name {
				key := fn.Name + "@" + strconv.Itoa(line)
				if !seenCallees[key] {
					seenCallees[key] = true
					report.LocalCallees = append(report.LocalCallees, models.LocalCallee{
						Name:       fn.Name,
						SourceFile: file,
						Line:       line,
					})
				}
			}
		case *ast.SelectorExpr:
			if pkgIdent, ok := fn.X.(*ast.Ident); ok && fsAPINames[fn.Sel.Name] && isFSAbstractionAlias(cf.file, pkgIdent.Name) {
				report.FSCalls = append(report.FSCalls, models.FSCall{
					APIName:        fn.Sel.Name,
					LiteralArgs:    literalArgs(call.Args),
					SourceLocation: cf.SourceFile + ":" + strconv.Itoa(line),
				})
			}
			if pkgIdent, ok := fn.X.(*ast.Ident); ok && pkgIdent.Name == "os" && len(call.Args) > 0 {
				switch fn.Sel.Name {
				case "Open", "OpenFile", "ReadFile", "Create":
					if lit, ok := call.Args[0].(*ast.BasicLit); ok && lit.Kind == token.STRING {
						litLine := cf.fset.Position(lit.Pos()).Line
						if value, err := strconv.Unquote(lit.Value); err == nil && !seenDataRefs[value+"@"+strconv.Itoa(litLine)] {
							seenDataRefs[value+"@"+strconv.Itoa(litLine)] = true
							report.DataRefs = append(report.DataRefs, models.DataRef{Path: value, Line: litLine})
						}
					}
				}
			}
		}
		return true
	})

	ast.Inspect(cf.decl, func(n ast.Node) bool {
		lit, ok := n.(*ast.BasicLit)
		if !ok || lit.Kind != token.STRING {
			return true
		}
		value, err := strconv.Unquote(lit.Value)
		if err != nil {
			return true
		}
		if !looksLikeDataPath(value) {
			return true
		}
		line := cf.fset.Position(lit.Pos()).Line
		key := value + "@" + strconv.Itoa(line)
		if seenDataRefs[key] {
			return true
		}
		seenDataRefs[key] = true
		report.DataRefs = append(report.DataRefs, models.DataRef{
			Path: value,
			Weak: true,
			Line: line,
		})
		return true
	})

	report.RequiresRemoteFS = len(report.FSCalls) > 0

	sort.Slice(report.LocalCallees, func(i, j int) bool { return report.LocalCallees[i].Line < report.LocalCallees[j].Line })
	sort.Slice(report.DataRefs, func(i, j int) bool { return report.DataRefs[i].Line < report.DataRefs[j].Line })
	sort.Slice(report.FSCalls, func(i, j int) bool { return report.FSCalls[i].SourceLocation < report.FSCalls[j].SourceLocation })

	return report
}

func collectImports(fset *token.FileSet, file *ast.File) []models.ImportRecord {
	var imports []models.ImportRecord
	for _, imp := range file.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			continue
		}
		alias := ""
		if imp.Name != nil {
			alias = imp.Name.Name
		}
		imports = append(imports, models.ImportRecord{
			Path:  path,
			Alias: alias,
			Line:  fset.Position(imp.Pos()).Line,
		})
	}
	return imports
}

func isFSAbstractionAlias(file *ast.File, ident string) bool {
	for _, imp := range file.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			continue
		}
		if !strings.HasSuffix(path, fsAbstractionImportSuffix) {
			continue
		}
		alias := filepath.Base(path)
		if imp.Name != nil {
			alias = imp.Name.Name
		}
		if alias == ident {
			return true
		}
	}
	return false
}

func literalArgs(args []ast.Expr) []string {
	var out []string
	for _, arg := range args {
		lit, ok := arg.(*ast.BasicLit)
		if !ok {
			out = append(out, "<expr>")
			continue
		}
		if lit.Kind == token.STRING {
			if v, err := strconv.Unquote(lit.Value); err == nil {
				out = append(out, v)
				continue
			}
		}
		out = append(out, lit.Value)
	}
	return out
}

func looksLikeDataPath(value string) bool {
	if !strings.Contains(value, "/") && !strings.Contains(value, "\\") {
		return false
	}
	lower := strings.ToLower(value)
	for _, ext := range dataFileExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

func parseSiblingFile(path string) (*ast.File, error) {
	fset := token.NewFileSet()
	return parser.ParseFile(fset, path, nil, 0)
}
