package main

import (
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/mod/modfile"
)

type violation struct {
	File   string
	Line   int
	Import string
	Rule   string
}

// layerRule describes what one layer of a bounded context may import beyond
// the standard library.
type layerRule struct {
	name            string
	forbidAdapters  bool
	forbidInternal  bool
	allowedSuffixes []string
	allowedModules  []string
	allowThirdParty bool
}

var layerRules = map[string]layerRule{
	"domain": {
		name:            "domain",
		forbidAdapters:  true,
		forbidInternal:  true,
		allowedSuffixes: []string{"/domain"},
	},
	"ports": {
		name:            "ports",
		forbidAdapters:  true,
		forbidInternal:  true,
		allowedSuffixes: []string{"/domain"},
		allowedModules:  []string{"/contracts"},
	},
	"application": {
		name:            "application",
		forbidAdapters:  true,
		forbidInternal:  true,
		allowedSuffixes: []string{"/application", "/domain", "/ports"},
		allowedModules:  []string{"/contracts"},
	},
	"transport": {
		name:           "transport",
		forbidAdapters: true,
		forbidInternal: true,
	},
	"adapters": {
		name:            "adapters",
		forbidInternal:  true,
		allowedSuffixes: []string{"/adapters", "/application", "/domain", "/ports", "/transport"},
		allowedModules:  []string{"/contracts"},
		allowThirdParty: true,
	},
}

func main() {
	modulePath, err := readModulePath("go.mod")
	if err != nil {
		fmt.Fprintf(os.Stderr, "read go.mod: %v\n", err)
		os.Exit(2)
	}

	violations := collectViolations("contexts", modulePath)
	if len(violations) == 0 {
		fmt.Println("boundary checks passed")
		return
	}

	sort.Slice(violations, func(i, j int) bool {
		if violations[i].File == violations[j].File {
			if violations[i].Line == violations[j].Line {
				return violations[i].Import < violations[j].Import
			}
			return violations[i].Line < violations[j].Line
		}
		return violations[i].File < violations[j].File
	})

	fmt.Println("boundary violations found:")
	for _, v := range violations {
		fmt.Printf("- %s:%d imports %q (%s)\n", v.File, v.Line, v.Import, v.Rule)
	}
	os.Exit(1)
}

func readModulePath(goModPath string) (string, error) {
	raw, err := os.ReadFile(goModPath)
	if err != nil {
		return "", err
	}
	modulePath := modfile.ModulePath(raw)
	if modulePath == "" {
		return "", fmt.Errorf("%s has no module directive", goModPath)
	}
	return modulePath, nil
}

func collectViolations(root string, modulePath string) []violation {
	var violations []violation

	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) < 3 {
			return nil
		}

		contextName := parts[0]
		serviceName := parts[1]
		layer := parts[2]
		servicePrefix := fmt.Sprintf("%s/contexts/%s/%s", modulePath, contextName, serviceName)
		displayPath := filepath.ToSlash(filepath.Join("contexts", rel))

		violations = append(violations, validateFile(path, displayPath, layer, modulePath, servicePrefix)...)
		return nil
	})

	return violations
}

func validateFile(path string, displayPath string, layer string, modulePath string, servicePrefix string) []violation {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
	if err != nil {
		return []violation{{
			File: displayPath,
			Line: 1,
			Rule: "file must parse",
		}}
	}

	var violations []violation
	for _, imp := range file.Imports {
		importPath := strings.Trim(imp.Path.Value, "\"")
		line := fset.Position(imp.Pos()).Line

		if hasPrefix(importPath, modulePath+"/contexts") && !hasPrefix(importPath, servicePrefix) {
			violations = append(violations, violation{
				File:   displayPath,
				Line:   line,
				Import: importPath,
				Rule:   "cross-module imports are forbidden",
			})
		}

		rule, ok := layerRules[layer]
		if !ok {
			continue
		}
		if reason := rule.check(importPath, modulePath, servicePrefix); reason != "" {
			violations = append(violations, violation{
				File:   displayPath,
				Line:   line,
				Import: importPath,
				Rule:   reason,
			})
		}
	}
	return violations
}

// check returns the broken rule for importPath, or "" when the import is fine.
func (r layerRule) check(importPath string, modulePath string, servicePrefix string) string {
	if isStdlib(importPath, modulePath) {
		return ""
	}
	if r.forbidAdapters && strings.Contains(importPath, "/adapters") && hasPrefix(importPath, servicePrefix) {
		return r.name + " must not import adapters"
	}
	if r.forbidInternal && hasPrefix(importPath, modulePath+"/internal") {
		return r.name + " must not import runtime infrastructure"
	}

	for _, suffix := range r.allowedSuffixes {
		if hasPrefix(importPath, servicePrefix+suffix) {
			return ""
		}
	}
	for _, module := range r.allowedModules {
		if hasPrefix(importPath, modulePath+module) {
			return ""
		}
	}
	if r.allowThirdParty && !hasPrefix(importPath, modulePath) {
		return ""
	}
	return r.name + " import is outside explicit allowlist"
}

func hasPrefix(path string, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func isStdlib(importPath string, modulePath string) bool {
	if hasPrefix(importPath, modulePath) {
		return false
	}
	first := importPath
	if idx := strings.Index(first, "/"); idx != -1 {
		first = first[:idx]
	}
	return !strings.Contains(first, ".")
}
