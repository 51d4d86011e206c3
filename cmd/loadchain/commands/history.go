package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"git.home.luguber.info/inful/loadchain/internal/eventstore"
	"git.home.luguber.info/inful/loadchain/internal/foundation/errors"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Journal string `required:"" help:"SQLite journal written by build or watch"`
	Module  string `arg:"" optional:"" help:"Show only this module"`
	JSON    bool   `help:"Print as JSON"`
}

// Run prints the latest run of every journaled module.
func (cmd *HistoryCmd) Run(g *Global, _ *CLI) error {
	journal, err := eventstore.NewSQLiteStore(cmd.Journal)
	if err != nil {
		return errors.WrapError(err, errors.CategoryJournal, "failed to open journal").
			WithContext("path", cmd.Journal).Build()
	}
	defer func() { _ = journal.Close() }()

	history := eventstore.NewModuleHistoryProjection(journal)
	if err := history.Rebuild(context.Background()); err != nil {
		return errors.WrapError(err, errors.CategoryJournal, "failed to read journal").Build()
	}

	summaries := history.List()
	if cmd.Module != "" {
		s, ok := history.Get(cmd.Module)
		if !ok {
			return errors.NewError(errors.CategoryNotFound, "module not found in journal").
				WithContext("module", cmd.Module).Build()
		}
		summaries = []eventstore.ModuleSummary{s}
	}

	if cmd.JSON {
		enc := json.NewEncoder(g.out())
		enc.SetIndent("", "  ")
		return enc.Encode(summaries)
	}

	w := tabwriter.NewWriter(g.out(), 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "MODULE\tSTATUS\tRUNS\tDURATION\tEMITTED\tDETAIL")
	for _, s := range summaries {
		detail := s.ShortCircuit
		if s.Error != "" {
			detail = s.FailureKind + ": " + s.Error
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%dms\t%s\t%s\n",
			s.Module, s.Status, s.Runs, s.DurationMS, strings.Join(s.Emitted, ","), detail)
	}
	return w.Flush()
}
