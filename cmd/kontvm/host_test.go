// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunProgramStateRoundtrip(t *testing.T) {
	var out bytes.Buffer
	cfg := DefaultConfig()
	cfg.Trace = true
	require.NoError(t, runProgram(context.Background(), "state-roundtrip", cfg, &out))
	assert.Contains(t, out.String(), "result: 2")
	assert.Contains(t, out.String(), "store: x = 2")
	assert.Contains(t, out.String(), "trace entries")
}

func TestRunProgramWriterLog(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runProgram(context.Background(), "writer-log", DefaultConfig(), &out))
	s := out.String()
	assert.Contains(t, s, "result: 0")
	assert.Contains(t, s, `log: "a"`)
	assert.Contains(t, s, `log: "b"`)
	assert.Contains(t, s, `log: "c"`)
}

func TestRunProgramReaderLocal(t *testing.T) {
	var out bytes.Buffer
	cfg := DefaultConfig()
	cfg.Env = map[string]any{"host": "prod"}
	require.NoError(t, runProgram(context.Background(), "reader-local", cfg, &out))
	assert.Contains(t, out.String(), `result: "test"`)
}

func TestRunProgramUnknown(t *testing.T) {
	var out bytes.Buffer
	err := runProgram(context.Background(), "nope", DefaultConfig(), &out)
	assert.Error(t, err)
}
