package project

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/specialistvlad/nodegraph/internal/node"
	"github.com/zclconf/go-cty/cty"
)

// decodeConfig decodes the kind-specific body of a node block.
func decodeConfig(b *nodeBlock, dir string) (node.Config, error) {
	switch node.Kind(b.Kind) {
	case node.KindAPI:
		var body apiBody
		if diags := gohcl.DecodeBody(b.Body, nil, &body); diags.HasErrors() {
			return nil, diags
		}
		return apiConfig(&body)
	case node.KindDB:
		var body dbBody
		if diags := gohcl.DecodeBody(b.Body, nil, &body); diags.HasErrors() {
			return nil, diags
		}
		return dbConfig(&body)
	case node.KindFile:
		var body fileBody
		if diags := gohcl.DecodeBody(b.Body, nil, &body); diags.HasErrors() {
			return nil, diags
		}
		return fileConfig(&body, dir)
	default:
		return nil, fmt.Errorf("unsupported node kind %q (want %q, %q or %q)", b.Kind, node.KindAPI, node.KindDB, node.KindFile)
	}
}

func apiConfig(b *apiBody) (node.Config, error) {
	timeout, err := parseTimeout(b.Timeout)
	if err != nil {
		return nil, err
	}
	query, err := parameters(b.Query)
	if err != nil {
		return nil, err
	}
	cfg := &node.APIConfig{
		Method:  b.Method,
		URL:     b.URL,
		Headers: headers(b.Headers),
		Query:   query,
		Timeout: timeout,
	}
	if b.Auth != nil {
		cfg.Auth = node.Auth{
			Type:     node.AuthType(b.Auth.Type),
			Token:    b.Auth.Token,
			Username: b.Auth.Username,
			Password: b.Auth.Password,
			KeyName:  b.Auth.KeyName,
			KeyValue: b.Auth.KeyValue,
		}
	}
	if b.Body != nil {
		cfg.Body = node.Body{Type: node.BodyType(b.Body.Type), Raw: b.Body.Raw, Form: headers(b.Body.Field)}
	}
	return cfg, nil
}

func dbConfig(b *dbBody) (node.Config, error) {
	timeout, err := parseTimeout(b.Timeout)
	if err != nil {
		return nil, err
	}
	args, err := parameters(b.Args)
	if err != nil {
		return nil, err
	}
	cfg := &node.DBConfig{
		Driver:  b.Driver,
		DSN:     b.DSN,
		Query:   b.Query,
		Args:    args,
		MaxRows: b.MaxRows,
		Timeout: timeout,
	}
	for _, c := range b.Columns {
		cfg.Columns = append(cfg.Columns, node.Column{Name: c.Name, Alias: c.Alias, Disabled: c.Disabled})
	}
	return cfg, nil
}

// fileConfig resolves a relative script path against the project file's directory.
func fileConfig(b *fileBody, dir string) (node.Config, error) {
	timeout, err := parseTimeout(b.Timeout)
	if err != nil {
		return nil, err
	}
	params, err := parameters(b.Params)
	if err != nil {
		return nil, err
	}
	path := b.Path
	if path != "" && !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	return &node.FileConfig{
		Path:        path,
		Interpreter: b.Interpreter,
		WorkDir:     b.WorkDir,
		Env:         b.Env,
		Params:      params,
		Timeout:     timeout,
	}, nil
}

func parseTimeout(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", s, err)
	}
	return d, nil
}

func headers(blocks []*headerBlock) []node.Header {
	if len(blocks) == 0 {
		return nil
	}
	out := make([]node.Header, 0, len(blocks))
	for _, h := range blocks {
		out = append(out, node.Header{Key: h.Key, Value: h.Value, Disabled: h.Disabled})
	}
	return out
}

func parameters(blocks []*paramBlock) ([]node.Parameter, error) {
	if len(blocks) == 0 {
		return nil, nil
	}
	out := make([]node.Parameter, 0, len(blocks))
	for _, p := range blocks {
		param := node.Parameter{Key: p.Key, Disabled: p.Disabled}
		if p.RefNode != "" {
			if !p.Value.IsNull() {
				return nil, fmt.Errorf("parameter %q: value and ref_node are mutually exclusive", p.Key)
			}
			param.Source = node.SourceReference
			param.ReferenceNodeID = p.RefNode
			param.ReferencePath = p.RefPath
		} else {
			v, err := ctyToGo(p.Value)
			if err != nil {
				return nil, fmt.Errorf("parameter %q: %w", p.Key, err)
			}
			param.Source = node.SourceManual
			param.Value = v
		}
		out = append(out, param)
	}
	return out, nil
}

// ctyToGo converts a decoded HCL value into plain Go values. Whole numbers
// become int64, other numbers float64.
func ctyToGo(val cty.Value) (any, error) {
	if val.IsNull() || !val.IsKnown() {
		return nil, nil
	}
	ty := val.Type()
	switch {
	case ty == cty.String:
		return val.AsString(), nil
	case ty == cty.Number:
		bf := val.AsBigFloat()
		if bf.IsInt() {
			if i, acc := bf.Int64(); acc == 0 {
				return i, nil
			}
		}
		f, _ := bf.Float64()
		return f, nil
	case ty == cty.Bool:
		return val.True(), nil
	case ty.IsObjectType() || ty.IsMapType():
		out := make(map[string]any)
		for it := val.ElementIterator(); it.Next(); {
			k, v := it.Element()
			item, err := ctyToGo(v)
			if err != nil {
				return nil, err
			}
			out[k.AsString()] = item
		}
		return out, nil
	case ty.IsTupleType() || ty.IsListType() || ty.IsSetType():
		out := []any{}
		for it := val.ElementIterator(); it.Next(); {
			_, v := it.Element()
			item, err := ctyToGo(v)
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported value type: %s", ty.FriendlyName())
}
