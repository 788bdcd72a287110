package cli

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/cardgpt/internal/client/models"
	"github.com/dmitrijs2005/cardgpt/internal/client/services"
)

const defaultPairCount = 10

func (a *App) Generate(ctx context.Context, args []string) error {
	return a.generate(ctx, args, false)
}

// GenerateAndSave generates a set the server saves right away.
func (a *App) GenerateAndSave(ctx context.Context, args []string) error {
	return a.generate(ctx, args, true)
}

func (a *App) generate(ctx context.Context, args []string, persist bool) error {
	n, category, err := parseGenerateArgs(args)
	if err != nil {
		return err
	}

	a.setPrinting(true)
	defer a.setPrinting(false)

	a.muted("Generating %d pairs for %q...", models.ClampPairCount(n), category)
	if persist {
		_, err = a.coord.GenerateAndPersist(ctx, category, n)
	} else {
		_, err = a.coord.Generate(ctx, category, n)
	}
	if err != nil {
		return err
	}

	snap, err := a.gen.Wait(ctx)
	if err != nil {
		return err
	}
	a.printRevealed(snap)

	if snap.State == services.StateFailed {
		a.coord.Acknowledge()
		return errors.New(snap.Message)
	}
	if snap.Result == nil || len(snap.Result.Pairs) == 0 {
		a.say("No pairs came back; try another category.")
		return nil
	}

	if persist {
		a.success("Saved %d pairs as card set %s.", len(snap.Result.Pairs), snap.Result.CardID)
	} else {
		a.success("Generated %d pairs. Use 'save <name>' to keep them or 'download' for the PDF.", len(snap.Result.Pairs))
	}
	return nil
}

// parseGenerateArgs reads "[count] <category...>".
func parseGenerateArgs(args []string) (int, string, error) {
	const usage = usageError("generate [count] <category>")

	n := defaultPairCount
	if len(args) > 0 {
		if v, err := strconv.Atoi(args[0]); err == nil {
			n = v
			args = args[1:]
		}
	}

	category := strings.TrimSpace(strings.Join(args, " "))
	if category == "" {
		return 0, "", usage
	}
	return n, category, nil
}

func (a *App) setPrinting(on bool) {
	a.revealMu.Lock()
	a.printing = on
	a.revealMu.Unlock()
}

// onGeneration prints pairs as the generator reveals them.
func (a *App) onGeneration(s services.Snapshot) {
	a.printRevealed(s)
}

// printRevealed prints the pairs of s not printed yet. Snapshots of an
// older cycle, or older than what was already shown, print nothing.
func (a *App) printRevealed(s services.Snapshot) {
	a.revealMu.Lock()
	defer a.revealMu.Unlock()

	if !a.printing || s.Cycle < a.cycle {
		return
	}
	if s.Cycle > a.cycle {
		a.cycle = s.Cycle
		a.shown = 0
	}
	for ; a.shown < len(s.Revealed); a.shown++ {
		a.say("  %2d. %s", a.shown+1, s.Revealed[a.shown])
	}
}
