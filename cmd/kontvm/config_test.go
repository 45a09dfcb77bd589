// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowkernel/kont"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
env:
  host: prod
  retries: 3
store:
  x: 1
  flags: [true, false]
trace: true
await_concurrency: 4
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.True(t, cfg.Trace)
	assert.EqualValues(t, 4, cfg.AwaitConcurrency)
	assert.Equal(t, "prod", cfg.Env["host"])

	vm, err := cfg.NewVM()
	require.NoError(t, err)
	require.NotNil(t, vm.Trace(), "trace: true must enable tracing")
	assert.Equal(t, kont.VString("prod"), vm.Store().Env["host"])
	assert.Equal(t, kont.VInt(3), vm.Store().Env["retries"])
	assert.Equal(t, kont.VInt(1), vm.Store().State["x"])
	assert.Equal(t, kont.VList([]kont.Value{kont.VBool(true), kont.VBool(false)}), vm.Store().State["flags"])
}

func TestLoadConfigRejectsUnsupportedValue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  m:\n    nested: 1\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	_, err = cfg.NewVM()
	assert.Error(t, err)
}

func TestToValueScalars(t *testing.T) {
	v, err := toValue(int64(7))
	require.NoError(t, err)
	assert.Equal(t, kont.VInt(7), v)

	v, err = toValue(1.5)
	require.NoError(t, err)
	assert.Equal(t, kont.VFloat(1.5), v)

	v, err = toValue(nil)
	require.NoError(t, err)
	assert.Equal(t, kont.None, v)
}

func TestLookupProgram(t *testing.T) {
	_, ok := lookupProgram("state-roundtrip")
	assert.True(t, ok)
	_, ok = lookupProgram("nope")
	assert.False(t, ok)
}
