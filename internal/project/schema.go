package project

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// fileRoot decodes the top-level blocks of a project file.
type fileRoot struct {
	Nodes  []*nodeBlock `hcl:"node,block"`
	Remain hcl.Body     `hcl:",remain"`
}

// nodeBlock is `node "<kind>" "<id>" { ... }`. The kind-specific attributes
// stay in Body and are decoded in a second pass.
type nodeBlock struct {
	Kind      string   `hcl:"kind,label"`
	ID        string   `hcl:"id,label"`
	Name      string   `hcl:"name,optional"`
	DependsOn []string `hcl:"depends_on,optional"`
	Body      hcl.Body `hcl:",remain"`
}

// paramBlock is a named parameter: either a literal `value` or a reference
// given by `ref_node` and `ref_path`.
type paramBlock struct {
	Key      string    `hcl:"key,label"`
	Value    cty.Value `hcl:"value,optional"`
	RefNode  string    `hcl:"ref_node,optional"`
	RefPath  string    `hcl:"ref_path,optional"`
	Disabled bool      `hcl:"disabled,optional"`
}

type headerBlock struct {
	Key      string `hcl:"key,label"`
	Value    string `hcl:"value"`
	Disabled bool   `hcl:"disabled,optional"`
}

type authBlock struct {
	Type     string `hcl:"type"`
	Token    string `hcl:"token,optional"`
	Username string `hcl:"username,optional"`
	Password string `hcl:"password,optional"`
	KeyName  string `hcl:"key_name,optional"`
	KeyValue string `hcl:"key_value,optional"`
}

type bodyBlock struct {
	Type  string         `hcl:"type"`
	Raw   string         `hcl:"raw,optional"`
	Field []*headerBlock `hcl:"field,block"`
}

type apiBody struct {
	Method  string         `hcl:"method,optional"`
	URL     string         `hcl:"url"`
	Timeout string         `hcl:"timeout,optional"`
	Headers []*headerBlock `hcl:"header,block"`
	Query   []*paramBlock  `hcl:"query,block"`
	Auth    *authBlock     `hcl:"auth,block"`
	Body    *bodyBlock     `hcl:"body,block"`
}

type columnBlock struct {
	Name     string `hcl:"name,label"`
	Alias    string `hcl:"alias,optional"`
	Disabled bool   `hcl:"disabled,optional"`
}

type dbBody struct {
	Driver  string         `hcl:"driver,optional"`
	DSN     string         `hcl:"dsn"`
	Query   string         `hcl:"query"`
	MaxRows int            `hcl:"max_rows,optional"`
	Timeout string         `hcl:"timeout,optional"`
	Args    []*paramBlock  `hcl:"arg,block"`
	Columns []*columnBlock `hcl:"column,block"`
}

type fileBody struct {
	Path        string            `hcl:"path"`
	Interpreter string            `hcl:"interpreter,optional"`
	WorkDir     string            `hcl:"work_dir,optional"`
	Timeout     string            `hcl:"timeout,optional"`
	Env         map[string]string `hcl:"env,optional"`
	Params      []*paramBlock     `hcl:"param,block"`
}
