package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jamesainslie/ferry/pkg/ferry/engine"
	"github.com/jamesainslie/ferry/pkg/ferry/types"
)

// maxPromptTargets caps how many target paths the prompt lists before
// summarizing the rest.
const maxPromptTargets = 5

// promptConfirmer asks the operator on the terminal. The prompt escalates
// with the demanded strength: y/N for MEDIUM, typing "yes" for HIGH, and
// typing the full acknowledgement phrase for CRITICAL.
type promptConfirmer struct{}

func (p *promptConfirmer) Confirm(ctx context.Context, req engine.ConfirmRequest) (bool, error) {
	p.describe(req)

	switch req.Strength {
	case engine.StrengthBasic:
		return p.ask(ctx, "Proceed? [y/N]: ", func(answer string) bool {
			answer = strings.ToLower(answer)
			return answer == "y" || answer == "yes"
		})
	case engine.StrengthStrong:
		return p.ask(ctx, `Type "yes" to proceed: `, func(answer string) bool {
			return strings.ToLower(answer) == "yes"
		})
	case engine.StrengthPhrase:
		prompt := fmt.Sprintf("Type %q to proceed: ", engine.CriticalPhrase)
		return p.ask(ctx, prompt, func(answer string) bool {
			return answer == engine.CriticalPhrase
		})
	default:
		return true, nil
	}
}

// describe summarizes what is being confirmed on stderr, where it does not
// pollute machine-readable stdout.
func (p *promptConfirmer) describe(req engine.ConfirmRequest) {
	fmt.Fprintf(os.Stderr, "\n%s: %d target(s)", req.Operation.String(), len(req.Targets))
	if req.Dest != "" {
		fmt.Fprintf(os.Stderr, " -> %s", req.Dest)
	}
	fmt.Fprintln(os.Stderr)

	for i, target := range req.Targets {
		if i == maxPromptTargets {
			fmt.Fprintf(os.Stderr, "  ... and %d more\n", len(req.Targets)-maxPromptTargets)
			break
		}
		fmt.Fprintf(os.Stderr, "  %s\n", target)
	}

	if req.Check != nil {
		fmt.Fprintf(os.Stderr, "Risk: %s\n", strings.ToUpper(req.Check.Risk.String()))
		for _, warning := range req.Check.Warnings {
			fmt.Fprintf(os.Stderr, "  ! %s\n", warning)
		}
		if req.Check.RequiredSpace > 0 && req.Check.AvailableSpace >= 0 {
			fmt.Fprintf(os.Stderr, "Space: need %s, have %s\n",
				types.FormatSize(req.Check.RequiredSpace),
				types.FormatSize(req.Check.AvailableSpace))
		}
	}
}

// ask reads one line from stdin and applies the acceptance test. The
// answer is read on a goroutine so a cancelled context stops the wait.
func (p *promptConfirmer) ask(ctx context.Context, prompt string, accept func(string) bool) (bool, error) {
	fmt.Fprint(os.Stderr, prompt)

	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		ch <- result{strings.TrimSpace(line), err}
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr)
		return false, ctx.Err()
	case res := <-ch:
		if res.err != nil {
			return false, fmt.Errorf("read confirmation: %w", res.err)
		}
		return accept(res.line), nil
	}
}
