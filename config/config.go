// Package config loads HCL topology files: runtime settings plus the scopes and
// services to publish into a memregistry.Registry.
package config

import (
	"errors"
	"fmt"
	"maps"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/centraunit/rebind"
	"github.com/centraunit/rebind/memregistry"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "console"
)

// ErrNoFiles is returned by Load when no .hcl file was found under the given paths.
var ErrNoFiles = errors.New("config: no .hcl files found")

// Config is a merged topology.
type Config struct {
	LogLevel     string
	LogFormat    string
	DefaultScope string
	Scopes       []*Scope
}

// Scope declares one registry scope.
type Scope struct {
	Name     string
	Services []*Service
}

// Service declares one service to publish.
type Service struct {
	Implementation string
	Provides       []string
	// Ranking is the raw ranking value; it is parsed leniently at resolution time.
	Ranking    any
	Properties map[string]any
}

// Declared is the instance published for a service declared in a topology file.
type Declared struct {
	Scope          string
	Implementation string
	Provides       []string
	Ranking        int
}

func (d *Declared) String() string {
	return fmt.Sprintf("%s (ranking %d)", d.Implementation, d.Ranking)
}

// Load reads every .hcl file under paths, merges them in order and validates the result.
func Load(paths ...string) (*Config, error) {
	files, err := findAllHCLFiles(paths)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	parser := hclparse.NewParser()
	cfg := &Config{}
	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}
		if err := cfg.decode(hclFile, file); err != nil {
			return nil, err
		}
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes a single topology from src and validates it.
func Parse(src []byte, filename string) (*Config, error) {
	hclFile, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}
	cfg := &Config{}
	if err := cfg.decode(hclFile, filename); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(file *hcl.File, filename string) error {
	var root fileRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}

	if root.LogLevel != nil {
		c.LogLevel = *root.LogLevel
	}
	if root.LogFormat != nil {
		c.LogFormat = *root.LogFormat
	}
	if root.DefaultScope != nil {
		c.DefaultScope = *root.DefaultScope
	}

	for _, sb := range root.Scopes {
		scope := &Scope{Name: sb.Name}
		for _, svc := range sb.Services {
			decoded, err := translateService(svc)
			if err != nil {
				return fmt.Errorf("%s: scope %q: %w", filename, sb.Name, err)
			}
			scope.Services = append(scope.Services, decoded)
		}
		c.Scopes = append(c.Scopes, scope)
	}
	return nil
}

func translateService(sb *serviceBlock) (*Service, error) {
	svc := &Service{Implementation: sb.Implementation, Provides: sb.Provides}
	if sb.Ranking != nil {
		ranking, err := ctyValueToInterface(*sb.Ranking)
		if err != nil {
			return nil, fmt.Errorf("service %q: ranking: %w", sb.Implementation, err)
		}
		svc.Ranking = ranking
	}
	if sb.Properties != nil {
		props, err := ctyValueToInterface(*sb.Properties)
		if err != nil {
			return nil, fmt.Errorf("service %q: properties: %w", sb.Implementation, err)
		}
		if props != nil {
			m, ok := props.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("service %q: properties must be an object, got %s", sb.Implementation, sb.Properties.Type().FriendlyName())
			}
			svc.Properties = m
		}
	}
	return svc, nil
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = DefaultLogFormat
	}
}

// Validate reports structural problems: duplicate names, services without types,
// unknown log settings and a default scope that is not declared.
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid log_level %q: must be 'debug', 'info', 'warn', or 'error'", c.LogLevel))
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("invalid log_format %q: must be 'console' or 'json'", c.LogFormat))
	}

	scopes := make(map[string]struct{}, len(c.Scopes))
	for _, scope := range c.Scopes {
		if scope.Name == "" {
			errs = append(errs, errors.New("scope name must not be empty"))
		}
		if _, dup := scopes[scope.Name]; dup {
			errs = append(errs, fmt.Errorf("duplicate scope %q", scope.Name))
		}
		scopes[scope.Name] = struct{}{}

		services := make(map[string]struct{}, len(scope.Services))
		for _, svc := range scope.Services {
			if _, dup := services[svc.Implementation]; dup {
				errs = append(errs, fmt.Errorf("scope %q: duplicate service %q", scope.Name, svc.Implementation))
			}
			services[svc.Implementation] = struct{}{}
			if len(svc.Provides) == 0 {
				errs = append(errs, fmt.Errorf("scope %q: service %q provides no types", scope.Name, svc.Implementation))
			}
			for _, t := range svc.Provides {
				if t == "" {
					errs = append(errs, fmt.Errorf("scope %q: service %q provides an empty type name", scope.Name, svc.Implementation))
				}
			}
		}
	}

	if c.DefaultScope != "" {
		if _, ok := scopes[c.DefaultScope]; !ok {
			errs = append(errs, fmt.Errorf("default_scope %q is not declared", c.DefaultScope))
		}
	}
	return errors.Join(errs...)
}

// Populate publishes every declared service into reg, scope by scope in file order.
// Each service's instance is a *Declared.
func (c *Config) Populate(reg *memregistry.Registry) error {
	for _, sc := range c.Scopes {
		scope := reg.Scope(sc.Name)
		for _, svc := range sc.Services {
			props := maps.Clone(svc.Properties)
			if props == nil {
				props = make(map[string]any)
			}
			if svc.Ranking != nil {
				props[rebind.RankingProperty] = svc.Ranking
			}
			instance := &Declared{
				Scope:          sc.Name,
				Implementation: svc.Implementation,
				Provides:       svc.Provides,
				Ranking:        rebind.ParseRanking(svc.Ranking),
			}
			_, err := reg.Publish(scope, memregistry.Service{
				Types:          svc.Provides,
				Implementation: svc.Implementation,
				Properties:     props,
				Instance:       instance,
			})
			if err != nil {
				return fmt.Errorf("config: publishing %s/%s: %w", sc.Name, svc.Implementation, err)
			}
		}
	}
	return nil
}

// findAllHCLFiles walks all given paths and returns a flat list of all .hcl files found.
func findAllHCLFiles(paths []string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]struct{})

	add := func(p string) {
		if _, wasSeen := seen[p]; !wasSeen {
			allFiles = append(allFiles, p)
			seen[p] = struct{}{}
		}
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}

		if info.IsDir() {
			err := filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if !info.IsDir() && filepath.Ext(p) == ".hcl" {
					add(p)
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
		} else if filepath.Ext(path) == ".hcl" {
			add(path)
		}
	}
	return allFiles, nil
}

// ctyValueToInterface converts a cty.Value to plain Go values. Whole numbers become
// int64, other numbers float64.
func ctyValueToInterface(val cty.Value) (any, error) {
	if !val.IsKnown() || val.IsNull() {
		return nil, nil
	}
	ty := val.Type()
	if ty.IsPrimitiveType() {
		switch ty {
		case cty.String:
			return val.AsString(), nil
		case cty.Number:
			bf := val.AsBigFloat()
			if bf.IsInt() {
				if i, acc := bf.Int64(); acc == big.Exact {
					return i, nil
				}
			}
			f, _ := bf.Float64()
			return f, nil
		case cty.Bool:
			return val.True(), nil
		default:
			return nil, fmt.Errorf("unsupported primitive type: %s", ty.FriendlyName())
		}
	}
	if ty.IsObjectType() || ty.IsMapType() {
		out := make(map[string]any)
		for it := val.ElementIterator(); it.Next(); {
			k, v := it.Element()
			converted, err := ctyValueToInterface(v)
			if err != nil {
				return nil, err
			}
			out[k.AsString()] = converted
		}
		return out, nil
	}
	if ty.IsTupleType() || ty.IsListType() || ty.IsSetType() {
		out := make([]any, 0, val.LengthInt())
		for it := val.ElementIterator(); it.Next(); {
			_, v := it.Element()
			converted, err := ctyValueToInterface(v)
			if err != nil {
				return nil, err
			}
			out = append(out, converted)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported cty.Type for conversion: %s", ty.FriendlyName())
}
