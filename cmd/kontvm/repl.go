// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/mattn/go-isatty"

	"github.com/flowkernel/kont"
)

// runREPL drives an interactive session over one VM. Each line builds a
// small program and runs it to completion, so state and log accumulate
// across commands the way they would across effects in one program.
func runREPL(ctx context.Context, cfg *RunConfig) error {
	if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return fmt.Errorf("kontvm repl: stdin is not a terminal (pipe programs through `kontvm run` instead)")
	}

	vm, err := cfg.NewVM()
	if err != nil {
		return err
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "kont> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	fmt.Println("kontvm — get/put/tell/ask/run/list/exit")
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "exit" || fields[0] == "quit" {
			return nil
		}
		if err := evalLine(ctx, vm, fields); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
}

// evalLine turns one REPL command into a program and runs it.
func evalLine(ctx context.Context, vm *kont.VM, fields []string) error {
	var program *kont.Node
	switch fields[0] {
	case "get":
		if len(fields) != 2 {
			return fmt.Errorf("usage: get <key>")
		}
		program = kont.NGet(fields[1])
	case "put":
		if len(fields) != 3 {
			return fmt.Errorf("usage: put <key> <value>")
		}
		program = kont.NPut(fields[1], parseScalar(fields[2]))
	case "tell":
		if len(fields) < 2 {
			return fmt.Errorf("usage: tell <message>")
		}
		program = kont.NTell(kont.VString(strings.Join(fields[1:], " ")))
	case "ask":
		if len(fields) != 2 {
			return fmt.Errorf("usage: ask <key>")
		}
		program = kont.NAsk(fields[1])
	case "list":
		for _, p := range programCatalog() {
			fmt.Printf("%-16s %s\n", p.Name, p.Usage)
		}
		return nil
	case "run":
		if len(fields) != 2 {
			return fmt.Errorf("usage: run <program>")
		}
		demo, ok := lookupProgram(fields[1])
		if !ok {
			return fmt.Errorf("unknown program %q", fields[1])
		}
		p, handlers := demo.Build(vm)
		result := kont.RunProgram(ctx, vm, p, handlers, boundedExecutor(ctx, vm))
		if !result.OK {
			return result.Err
		}
		fmt.Printf("%s\n", renderValue(result.Value))
		return nil
	default:
		return fmt.Errorf("unknown command %q", fields[0])
	}

	result := kont.RunProgram(ctx, vm, program, vm.StandardHandlers(), boundedExecutor(ctx, vm))
	if !result.OK {
		return result.Err
	}
	fmt.Printf("%s\n", renderValue(result.Value))
	return nil
}

// parseScalar reads a REPL argument as int, float, bool, or string.
func parseScalar(s string) kont.Value {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return kont.VInt(n)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return kont.VFloat(f)
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return kont.VBool(b)
	}
	return kont.VString(s)
}
