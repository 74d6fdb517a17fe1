package project

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/nodegraph/internal/ctxlog"
	"github.com/specialistvlad/nodegraph/internal/fsutil"
	"github.com/specialistvlad/nodegraph/internal/node"
)

// Extension is the suffix of project files.
const Extension = ".hcl"

// Load parses every project file found under paths into one Project.
// Directories are walked recursively.
func Load(ctx context.Context, paths ...string) (*Project, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Project loader started.", "path_count", len(paths))

	files, err := fsutil.CollectFiles(Extension, paths...)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no %s files found in %v", Extension, paths)
	}
	logger.Debug("Discovered project files.", "count", len(files))

	p := &Project{Files: files}
	parser := hclparse.NewParser()
	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse project file %s: %w", file, diags)
		}

		var root fileRoot
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &root); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode project file %s: %w", file, diags)
		}

		dir := filepath.Dir(file)
		for _, b := range root.Nodes {
			if err := p.addBlock(b, dir); err != nil {
				return nil, fmt.Errorf("%s: %w", file, err)
			}
		}
	}

	logger.Debug("Project loading complete.", "nodes", len(p.Nodes), "edges", len(p.Edges))
	return p, nil
}

func (p *Project) addBlock(b *nodeBlock, dir string) error {
	if err := node.ValidateID(b.ID); err != nil {
		return fmt.Errorf("node %q: %w", b.ID, err)
	}
	cfg, err := decodeConfig(b, dir)
	if err != nil {
		return fmt.Errorf("node %q: %w", b.ID, err)
	}
	p.Nodes = append(p.Nodes, node.New(b.ID, b.Name, cfg))
	for _, dep := range b.DependsOn {
		p.Edges = append(p.Edges, node.Edge{Source: dep, Target: b.ID})
	}
	return nil
}
