// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"go/ast"
	"go/constant"
	"go/token"
	"go/types"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/tools/go/packages"
)

// ref is a source position of a msgid, relative to the project root.
type ref struct {
	file string
	line int
}

// msgidArg is the argument index of the msgid in each i18n function.
var msgidArg = map[string]int{
	"Tr":           1, // Tr(ctx, "msg", ...)
	"NewUserError": 2, // NewUserError(ctx, status, "msg", ...)
}

// scanner collects msgids from the packages of one module.
type scanner struct {
	root     string
	i18nPkgs map[string]bool
	refs     map[string][]ref
}

// extractRefs returns every constant msgid passed to package i18n, keyed by msgid.
func extractRefs(pkgs []*packages.Package, projectRoot string) map[string][]ref {
	s := &scanner{
		root:     projectRoot,
		i18nPkgs: i18nPackages(pkgs),
		refs:     make(map[string][]ref),
	}

	for _, p := range pkgs {
		if p.TypesInfo == nil {
			continue
		}

		for _, f := range p.Syntax {
			ast.Inspect(f, func(n ast.Node) bool {
				if call, ok := n.(*ast.CallExpr); ok {
					s.call(p, call)
				}

				return true
			})
		}
	}

	return s.refs
}

// i18nPackages finds the packages named i18n declaring a string-based MsgKey type.
func i18nPackages(pkgs []*packages.Package) map[string]bool {
	found := make(map[string]bool)

	packages.Visit(pkgs, nil, func(p *packages.Package) {
		if p.Name != "i18n" || p.Types == nil {
			return
		}

		if tn, ok := p.Types.Scope().Lookup("MsgKey").(*types.TypeName); ok {
			if basic, ok := tn.Type().Underlying().(*types.Basic); ok && basic.Info()&types.IsString != 0 {
				found[p.PkgPath] = true
			}
		}
	})

	return found
}

// call records the msgid of an i18n.MsgKey("...") conversion or an i18n function call.
func (s *scanner) call(p *packages.Package, call *ast.CallExpr) {
	if tv, ok := p.TypesInfo.Types[call.Fun]; ok && tv.IsType() {
		if len(call.Args) == 1 && s.isI18n(tv.Type, "MsgKey") {
			s.record(p, call.Args[0])
		}

		return
	}

	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok {
		return
	}

	fn, ok := p.TypesInfo.Uses[sel.Sel].(*types.Func)
	if !ok || fn.Pkg() == nil || !s.i18nPkgs[fn.Pkg().Path()] {
		return
	}

	if i, ok := msgidArg[fn.Name()]; ok && i < len(call.Args) {
		s.record(p, call.Args[i])
	}
}

func (s *scanner) isI18n(t types.Type, name string) bool {
	named, ok := t.(*types.Named)
	if !ok {
		return false
	}

	obj := named.Obj()

	return obj.Pkg() != nil && obj.Name() == name && s.i18nPkgs[obj.Pkg().Path()]
}

// record adds expr when it is a constant string.
func (s *scanner) record(p *packages.Package, expr ast.Expr) {
	tv, ok := p.TypesInfo.Types[expr]
	if !ok || tv.Value == nil || tv.Value.Kind() != constant.String {
		return
	}

	pos := p.Fset.Position(expr.Pos())
	s.refs[constant.StringVal(tv.Value)] = append(s.refs[constant.StringVal(tv.Value)], ref{
		file: relPath(s.root, pos),
		line: pos.Line,
	})
}

func relPath(root string, pos token.Position) string {
	if rel, err := filepath.Rel(root, pos.Filename); err == nil {
		return filepath.ToSlash(rel)
	}

	return filepath.ToSlash(pos.Filename)
}

// detectVersion describes the checkout with git, or returns "dev".
func detectVersion() string {
	out, err := exec.Command("git", "describe", "--tags", "--always", "--dirty").Output()
	if err != nil {
		return "dev"
	}

	return strings.TrimSpace(string(out))
}

// findProjectRoot returns the nearest directory at or above wd holding go.mod, else wd.
func findProjectRoot(wd string) string {
	for dir := filepath.Clean(wd); ; dir = filepath.Dir(dir) {
		if fi, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil && !fi.IsDir() {
			return dir
		}

		if filepath.Dir(dir) == dir {
			return wd
		}
	}
}
