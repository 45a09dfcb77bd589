// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/flowkernel/kont"
)

// RunConfig is the YAML shape `kontvm run -c` loads: seed data for the
// Reader environment and the State store, the trace toggle, and the bound
// on concurrent host awaits.
type RunConfig struct {
	Env              map[string]any `yaml:"env"`
	Store            map[string]any `yaml:"store"`
	Trace            bool           `yaml:"trace"`
	AwaitConcurrency int64          `yaml:"await_concurrency"`
}

// DefaultConfig is an empty configuration with unbounded awaits.
func DefaultConfig() *RunConfig {
	return &RunConfig{}
}

// LoadConfig reads a RunConfig from a YAML file.
func LoadConfig(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("kontvm: parse %s: %w", path, err)
	}
	return cfg, nil
}

// NewVM builds a VM seeded from the configuration.
func (c *RunConfig) NewVM() (*kont.VM, error) {
	vm := kont.NewVM(c.AwaitConcurrency)
	for k, raw := range c.Env {
		v, err := toValue(raw)
		if err != nil {
			return nil, fmt.Errorf("kontvm: env %q: %w", k, err)
		}
		vm.SeedEnv(k, v)
	}
	for k, raw := range c.Store {
		v, err := toValue(raw)
		if err != nil {
			return nil, fmt.Errorf("kontvm: store %q: %w", k, err)
		}
		vm.SeedStore(k, v)
	}
	if c.Trace {
		vm.EnableTrace()
	}
	return vm, nil
}

// toValue converts a decoded YAML scalar/sequence into a VM value.
func toValue(raw any) (kont.Value, error) {
	switch v := raw.(type) {
	case nil:
		return kont.None, nil
	case bool:
		return kont.VBool(v), nil
	case int:
		return kont.VInt(int64(v)), nil
	case int64:
		return kont.VInt(v), nil
	case float64:
		return kont.VFloat(v), nil
	case string:
		return kont.VString(v), nil
	case []any:
		out := make([]kont.Value, 0, len(v))
		for _, e := range v {
			ev, err := toValue(e)
			if err != nil {
				return kont.Value{}, err
			}
			out = append(out, ev)
		}
		return kont.VList(out), nil
	default:
		return kont.Value{}, fmt.Errorf("unsupported value type %T", raw)
	}
}

// renderValue formats a VM value for terminal output.
func renderValue(v kont.Value) string {
	switch v.Kind {
	case kont.KindUnit:
		return "()"
	case kont.KindNone:
		return "none"
	case kont.KindBool:
		return fmt.Sprintf("%v", v.Bool)
	case kont.KindInt:
		return fmt.Sprintf("%d", v.Int)
	case kont.KindFloat:
		return fmt.Sprintf("%g", v.Float)
	case kont.KindString:
		return fmt.Sprintf("%q", v.Str)
	case kont.KindList:
		out := "["
		for i, e := range v.List {
			if i > 0 {
				out += ", "
			}
			out += renderValue(e)
		}
		return out + "]"
	case kont.KindTaskHandle:
		return v.Task.ID.String()
	case kont.KindPromiseHandle:
		return "promise#" + fmt.Sprint(uint64(v.Promise.ID))
	default:
		return v.Kind.String()
	}
}
