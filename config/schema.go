package config

import "github.com/zclconf/go-cty/cty"

// fileRoot decodes every top-level attribute and block of one topology file.
type fileRoot struct {
	LogLevel     *string       `hcl:"log_level,optional"`
	LogFormat    *string       `hcl:"log_format,optional"`
	DefaultScope *string       `hcl:"default_scope,optional"`
	Scopes       []*scopeBlock `hcl:"scope,block"`
}

type scopeBlock struct {
	Name     string          `hcl:"name,label"`
	Services []*serviceBlock `hcl:"service,block"`
}

type serviceBlock struct {
	Implementation string     `hcl:"implementation,label"`
	Provides       []string   `hcl:"provides"`
	Ranking        *cty.Value `hcl:"ranking,optional"`
	Properties     *cty.Value `hcl:"properties,optional"`
}
