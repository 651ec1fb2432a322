package toolchain

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"

	verrors "github.com/conneroisu/venok/internal/errors"
	"github.com/conneroisu/venok/internal/proc"
)

// Cycle is one completed watch-mode type check.
type Cycle struct {
	Program     Program
	Diagnostics []verrors.Diagnostic
	ErrorCount  int
}

// WatchTypeCheck runs tsc in watch mode without emitting and calls onCycle
// after every completed check, including the initial one. The tsconfig is
// re-read for each cycle so that added files reach the program snapshot. It
// returns when ctx is cancelled or tsc exits.
func (t *TypeScript) WatchTypeCheck(ctx context.Context, provider *ConfigProvider, configPath string, onCycle func(Cycle)) error {
	bin, err := t.Binary()
	if err != nil {
		return err
	}
	parsed, err := provider.GetByConfigFilename(configPath)
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, bin,
		"--noEmit", "--watch", "--preserveWatchOutput", "--pretty", "false",
		"-p", parsed.ConfigPath)
	cmd.Dir = t.Dir
	// tsc runs under node, which may fork workers; cancel takes the group.
	proc.NewGroup(cmd)
	cmd.Cancel = func() error { return proc.KillTree(cmd.Process.Pid) }
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	cmd.Stderr = cmd.Stdout
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start tsc watch: %w", err)
	}

	var block []string
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		count, done := t.parser.Summary(line)
		if !done {
			block = append(block, line)
			continue
		}

		if next, err := provider.GetByConfigFilename(configPath); err == nil {
			parsed = next
		} else {
			t.Logger.Warn(ctx, err, "keeping previous tsconfig for this cycle")
		}
		prog := &program{ts: t, parsed: parsed}
		diags := prog.absolutize(t.parser.Parse(strings.Join(block, "\n")))
		block = block[:0]
		onCycle(Cycle{Program: prog, Diagnostics: diags, ErrorCount: count})
	}

	err = cmd.Wait()
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("tsc watch exited: %w", err)
	}
	return nil
}
