// Package project ties a shader file on disk to the source tree it is
// compiled from.
package project

import (
	"fmt"
	"os"
	"path"
	"path/filepath"

	"fixshade/pkg/compiler"
	"fixshade/pkg/config"
	"fixshade/pkg/ir"
	"fixshade/pkg/utils"
	"fixshade/pkg/vfs"
)

// Project is a main shader file plus every source file in its directory.
// Includes resolve inside that tree and may not climb above it.
type Project struct {
	Path   string // absolute path of the main file
	Dir    string // directory loaded into Tree
	Name   string // slash path of the main file within Tree
	Tree   *vfs.Tree
	Config *config.Config // nil without a config file
}

// Open loads the directory holding mainPath and any config file above it.
func Open(mainPath string) (*Project, error) {
	full, dir, err := utils.GetPathInfo(mainPath)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(full); err != nil {
		return nil, err
	}
	name := filepath.Base(full)
	if !vfs.ValidPath(name) {
		return nil, fmt.Errorf("%s: not a shader source name", name)
	}

	p := &Project{Path: full, Dir: dir, Name: name, Tree: vfs.NewTree()}
	if err := p.Tree.LoadFrom(dir); err != nil {
		return nil, fmt.Errorf("load %s: %w", dir, err)
	}
	if p.Config, _, err = config.Load(dir); err != nil {
		return nil, err
	}
	return p, nil
}

// Source returns the main file as currently loaded.
func (p *Project) Source() (string, error) {
	src, err := p.Tree.ReadFile(p.Name)
	if err != nil {
		return "", fmt.Errorf("%s: %w", p.Name, err)
	}
	return string(src), nil
}

// Compile builds the main file against the loaded tree.
func (p *Project) Compile() (*ir.Program, error) {
	src, err := p.Source()
	if err != nil {
		return nil, err
	}
	return compiler.CompileFrom(src, path.Dir(p.Name), p.Tree)
}

// Reload picks up edits made on disk and reports whether there were any.
func (p *Project) Reload() (bool, error) {
	return p.Tree.Sync(p.Dir)
}
