package services

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/kerbaras/mdown/pkg/data"
)

// LedgerRun is what happened to one ledger entry in a ledger-wide run
type LedgerRun struct {
	Entry   data.MangaLedger
	Summary *Summary
	Err     error
	// Missing is set when the entry's folder is gone; the entry was dropped
	Missing bool
}

// RunLedger runs every manga recorded in the ledger, each in its stored folder
// and language. opts.Language is only used for entries without one. Entries
// whose folder no longer exists are removed from the ledger. A failing manga
// is suspended and the loop moves on; only context cancellation stops it.
func (c *MangaController) RunLedger(ctx context.Context, pc *PipelineContext, opts RunOptions) ([]LedgerRun, error) {
	log := pc.Log.WithComponent("controller")
	entries := c.ledger.Document().Data
	runs := make([]LedgerRun, 0, len(entries))
	dropped := false

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return runs, err
		}

		if info, err := os.Stat(entry.MWD); entry.MWD == "" || err != nil || !info.IsDir() {
			log.Warn().Str("manga", entry.Name).Str("mwd", entry.MWD).Msg("folder not found, dropping from ledger")
			c.ledger.RemoveManga(entry.Name)
			dropped = true
			runs = append(runs, LedgerRun{Entry: entry, Missing: true})
			continue
		}

		entryOpts := opts
		entryOpts.MWD = entry.MWD
		if entry.Language != "" {
			entryOpts.Language = entry.Language
		}

		summary, err := c.Run(ctx, pc, entry.ID, entryOpts)
		runs = append(runs, LedgerRun{Entry: entry, Summary: summary, Err: err})
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return runs, err
		}
		pc.Suspend(entry.Name, err)
	}

	if dropped {
		if err := c.ledger.Save(); err != nil {
			return runs, fmt.Errorf("saving ledger: %w", err)
		}
	}
	return runs, nil
}
