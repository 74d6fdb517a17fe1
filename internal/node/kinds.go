package node

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// AuthType selects how an API request authenticates.
type AuthType string

const (
	AuthNone   AuthType = ""
	AuthBearer AuthType = "bearer"
	AuthBasic  AuthType = "basic"
	AuthAPIKey AuthType = "api-key"
)

// Auth holds credentials for an API node.
type Auth struct {
	Type     AuthType
	Token    string
	Username string
	Password string
	// KeyName is the header that carries the API key, "X-API-Key" by default.
	KeyName  string
	KeyValue string
}

// BodyType is the encoding of an API request body.
type BodyType string

const (
	BodyNone BodyType = ""
	BodyJSON BodyType = "json"
	BodyRaw  BodyType = "raw"
	BodyForm BodyType = "x-www-form-urlencoded"
)

// Body is the payload of an API request.
type Body struct {
	Type BodyType
	Raw  string
	Form []Header
}

var httpMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}

// APIConfig configures an HTTP request node.
type APIConfig struct {
	Method  string
	URL     string
	Headers []Header
	Query   []Parameter
	Auth    Auth
	Body    Body
	Timeout time.Duration

	// ResolvedQuery holds the query parameters after Resolve.
	ResolvedQuery map[string]any
}

func (c *APIConfig) Kind() Kind { return KindAPI }

func (c *APIConfig) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return errors.New("url is required")
	}
	if c.Method != "" && !slices.Contains(httpMethods, strings.ToUpper(c.Method)) {
		return fmt.Errorf("unsupported http method %q", c.Method)
	}
	switch c.Body.Type {
	case BodyNone, BodyJSON, BodyRaw, BodyForm:
	default:
		return fmt.Errorf("unsupported body type %q", c.Body.Type)
	}
	switch c.Auth.Type {
	case AuthNone, AuthBearer, AuthBasic, AuthAPIKey:
	default:
		return fmt.Errorf("unsupported auth type %q", c.Auth.Type)
	}
	return nil
}

func (c *APIConfig) Resolve(ctx context.Context, r Resolver) Config {
	out := *c
	out.URL = r.ResolveTemplateString(ctx, c.URL)
	out.Headers = resolveHeaders(ctx, r, c.Headers)
	out.Query = slices.Clone(c.Query)
	out.ResolvedQuery = r.ResolveParameterSet(ctx, c.Query)
	out.Auth.Token = r.ResolveTemplateString(ctx, c.Auth.Token)
	out.Auth.Username = r.ResolveTemplateString(ctx, c.Auth.Username)
	out.Auth.Password = r.ResolveTemplateString(ctx, c.Auth.Password)
	out.Auth.KeyValue = r.ResolveTemplateString(ctx, c.Auth.KeyValue)
	out.Body.Raw = r.ResolveTemplateString(ctx, c.Body.Raw)
	out.Body.Form = resolveHeaders(ctx, r, c.Body.Form)
	return &out
}

// HTTPMethod returns the upper-cased method, GET when unset.
func (c *APIConfig) HTTPMethod() string {
	if c.Method == "" {
		return "GET"
	}
	return strings.ToUpper(c.Method)
}

// Column selects and optionally renames one result column of a DB node.
type Column struct {
	Name     string
	Alias    string
	Disabled bool
}

// DBConfig configures a SQL query node.
type DBConfig struct {
	// Driver is the database/sql driver name, "sqlite3" when empty.
	Driver  string
	DSN     string
	Query   string
	Args    []Parameter
	MaxRows int
	Columns []Column
	Timeout time.Duration

	// ResolvedArgs holds the named query arguments after Resolve.
	ResolvedArgs map[string]any
}

func (c *DBConfig) Kind() Kind { return KindDB }

func (c *DBConfig) Validate() error {
	if strings.TrimSpace(c.Query) == "" {
		return errors.New("query is empty")
	}
	if strings.TrimSpace(c.DSN) == "" {
		return errors.New("dsn is required")
	}
	if c.MaxRows < 0 {
		return fmt.Errorf("max_rows must not be negative, got %d", c.MaxRows)
	}
	return nil
}

func (c *DBConfig) Resolve(ctx context.Context, r Resolver) Config {
	out := *c
	out.DSN = r.ResolveTemplateString(ctx, c.DSN)
	out.Query = r.ResolveTemplateString(ctx, c.Query)
	out.Args = slices.Clone(c.Args)
	out.Columns = slices.Clone(c.Columns)
	out.ResolvedArgs = r.ResolveParameterSet(ctx, c.Args)
	return &out
}

// FileConfig configures a script node.
type FileConfig struct {
	Path string
	// Interpreter overrides the program chosen from the file extension.
	Interpreter string
	WorkDir     string
	Params      []Parameter
	Env         map[string]string
	Timeout     time.Duration

	// ResolvedParams holds the parameters after Resolve.
	ResolvedParams map[string]any
}

func (c *FileConfig) Kind() Kind { return KindFile }

func (c *FileConfig) Validate() error {
	if strings.TrimSpace(c.Path) == "" {
		return errors.New("path is required")
	}
	return nil
}

func (c *FileConfig) Resolve(ctx context.Context, r Resolver) Config {
	out := *c
	out.Path = r.ResolveTemplateString(ctx, c.Path)
	out.Params = slices.Clone(c.Params)
	out.ResolvedParams = r.ResolveParameterSet(ctx, c.Params)
	if c.Env != nil {
		out.Env = make(map[string]string, len(c.Env))
		for k, v := range c.Env {
			out.Env[k] = r.ResolveTemplateString(ctx, v)
		}
	}
	return &out
}

// GenericConfig is an untyped configuration for kinds that have no
// dedicated type. Every string inside Fields is templated.
type GenericConfig struct {
	KindName Kind
	Fields   map[string]any
}

func (c *GenericConfig) Kind() Kind { return c.KindName }

func (c *GenericConfig) Validate() error {
	if c.KindName == "" {
		return errors.New("kind is required")
	}
	return nil
}

func (c *GenericConfig) Resolve(ctx context.Context, r Resolver) Config {
	out := &GenericConfig{KindName: c.KindName}
	if c.Fields != nil {
		out.Fields = resolveAny(ctx, r, c.Fields).(map[string]any)
	}
	return out
}
