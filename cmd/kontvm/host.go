// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/flowkernel/kont"
)

// boundedExecutor wraps the default in-process executor, holding the VM's
// await semaphore across each blocking host await so a run configuration
// can cap how many are in flight at once.
func boundedExecutor(ctx context.Context, vm *kont.VM) kont.HostExecutor {
	inner := kont.DefaultExecutor(ctx)
	return func(call kont.ExternalCall) kont.Outcome {
		if call.Kind == kont.CallAsync {
			if err := vm.AwaitSemaphore().Acquire(ctx, 1); err != nil {
				return kont.Outcome{Kind: kont.OutcomeIteratorError, Err: kont.ValueFromError(err)}
			}
			defer vm.AwaitSemaphore().Release(1)
		}
		return inner(call)
	}
}

// runProgram executes one named demo program and prints a summary.
func runProgram(ctx context.Context, name string, cfg *RunConfig, out io.Writer) error {
	demo, ok := lookupProgram(name)
	if !ok {
		return fmt.Errorf("kontvm: unknown program %q (try `kontvm list`)", name)
	}
	vm, err := cfg.NewVM()
	if err != nil {
		return err
	}
	program, handlers := demo.Build(vm)

	started := time.Now()
	result := kont.RunProgram(ctx, vm, program, handlers, boundedExecutor(ctx, vm))
	printResult(out, result, time.Since(started))
	if !result.OK {
		return result.Err
	}
	return nil
}

// printResult renders a run result with a humanized one-line summary.
func printResult(out io.Writer, result kont.RunResult, elapsed time.Duration) {
	if result.OK {
		fmt.Fprintf(out, "result: %s\n", renderValue(result.Value))
	} else {
		fmt.Fprintf(out, "error: %v\n", result.Err)
	}
	for _, entry := range result.Log {
		fmt.Fprintf(out, "log: %s\n", renderValue(entry))
	}
	for k, v := range result.Store {
		fmt.Fprintf(out, "store: %s = %s\n", k, renderValue(v))
	}
	summary := fmt.Sprintf("done in %s", elapsed.Round(time.Microsecond))
	if result.Trace != nil {
		summary += fmt.Sprintf(" (%s trace entries, run %s)",
			humanize.Comma(int64(len(result.Trace.Entries))), result.Trace.RunID)
	}
	fmt.Fprintln(out, summary)
	if result.Trace != nil {
		for _, e := range result.Trace.Entries {
			if e.Kind == kont.TraceYield {
				fmt.Fprintf(out, "trace: %s %s\n", e.Kind, e.Tag)
			} else {
				fmt.Fprintf(out, "trace: %s %s %s\n", e.Kind, e.Effect, e.Handler)
			}
		}
	}
}
