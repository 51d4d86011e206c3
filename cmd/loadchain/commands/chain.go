package commands

import (
	"fmt"
	"log/slog"
	"os"

	"git.home.luguber.info/inful/loadchain/internal/foundation/errors"
	"git.home.luguber.info/inful/loadchain/internal/pipeline"
)

// ChainCmd implements the 'chain' command.
type ChainCmd struct {
	Module string `arg:"" help:"Module identifier, optionally with an inline chain"`
	Format string `short:"f" help:"Output format: text, mermaid, dot, json" default:"text" enum:"text,mermaid,dot,json"`
	Output string `short:"o" help:"Output file path (optional, prints to stdout if not specified)"`
}

// Run executes the chain command.
func (cmd *ChainCmd) Run(g *Global, root *CLI) error {
	cfg, baseDir, err := loadConfig(root.Config)
	if err != nil {
		return err
	}
	reg, err := newRegistry(cfg)
	if err != nil {
		return err
	}
	matcher, err := newMatcher(cfg, baseDir, reg)
	if err != nil {
		return err
	}

	chain, _, err := matcher.ResolveChain(cmd.Module)
	if err != nil {
		return errors.WrapError(err, errors.CategoryNoMatch, "failed to resolve chain").
			UserAction().WithContext("module", cmd.Module).Build()
	}

	output, err := pipeline.VisualizeChain(cmd.Module, chain, pipeline.VisualizationFormat(cmd.Format))
	if err != nil {
		return fmt.Errorf("failed to visualize chain: %w", err)
	}

	if cmd.Output != "" {
		if err := os.WriteFile(cmd.Output, []byte(output), 0o600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		slog.Info("Chain visualization written", "file", cmd.Output, "format", cmd.Format)
		return nil
	}
	_, err = fmt.Fprint(g.out(), output)
	return err
}
