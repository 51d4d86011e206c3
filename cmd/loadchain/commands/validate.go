package commands

import (
	stderrors "errors"
	"fmt"

	"git.home.luguber.info/inful/loadchain/internal/foundation/errors"
	"git.home.luguber.info/inful/loadchain/internal/schema"
)

// ValidateCmd implements the 'validate' command.
type ValidateCmd struct{}

// Run checks every configured stage against its schema, reporting all failures.
func (cmd *ValidateCmd) Run(g *Global, root *CLI) error {
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

	validator := schema.NewValidator()
	var errs []error
	for _, d := range matcher.Stages() {
		if err := validator.Validate(d.Name(), d.Options, d.EffectiveSchema()); err != nil {
			_, _ = fmt.Fprintf(g.out(), "rule %d: %s: %v\n", d.Rule, d.Name(), err)
			errs = append(errs, err)
			continue
		}
		_, _ = fmt.Fprintf(g.out(), "rule %d: %s: ok\n", d.Rule, d.Request())
	}
	if len(errs) > 0 {
		return errors.WrapError(stderrors.Join(errs...), errors.CategoryValidation,
			fmt.Sprintf("%d of %d stages have invalid options", len(errs), len(matcher.Stages()))).
			UserAction().Build()
	}
	_, _ = fmt.Fprintf(g.out(), "%d stages valid\n", len(matcher.Stages()))
	return nil
}
