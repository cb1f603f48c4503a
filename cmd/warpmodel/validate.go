package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/artpar/warpmodel/bootstrap"
	"github.com/artpar/warpmodel/config"
	"github.com/artpar/warpmodel/core/registry"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Compile every model file and report",
	Long: `Validate the configuration and every model definition.

Checks:
  - Configuration is valid
  - Every model file parses and compiles
  - Every pointer targets a loaded class

No database is opened.

Examples:
  warpmodel validate
  warpmodel validate --config /etc/warpmodel/config.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(cmd.OutOrStdout())
	},
}

const (
	checkMark = "\033[32m✓\033[0m"
	crossMark = "\033[31m✗\033[0m"
	warnMark  = "\033[33m!\033[0m"
)

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(out io.Writer) error {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		fmt.Fprintf(out, "  %s Configuration valid\n", crossMark)
		return err
	}
	fmt.Fprintf(out, "  %s Configuration valid\n", checkMark)

	rt, err := bootstrap.Compile(cfg, zerolog.Nop())
	if err != nil {
		fmt.Fprintf(out, "  %s Models compile (%s)\n", crossMark, cfg.Models.Dir)
		return err
	}
	fmt.Fprintf(out, "  %s Models compile (%s)\n", checkMark, cfg.Models.Dir)

	for _, m := range rt.Models() {
		def := m.Definition()
		fmt.Fprintf(out, "    %s -> %s (%d viewable, %d actionable, %d pointers)\n",
			def.ClassName(), def.Source(), len(def.Viewable()), len(def.Actionable()), len(def.Pointers()))
		for _, w := range def.Warnings() {
			fmt.Fprintf(out, "      %s %s\n", warnMark, w)
		}
	}

	err = rt.Registry().CheckReferences()
	var unresolved *registry.UnresolvedError
	switch {
	case errors.As(err, &unresolved):
		mark := warnMark
		if cfg.Models.Strict {
			mark = crossMark
		}
		fmt.Fprintf(out, "  %s Pointers resolve\n", mark)
		for _, ref := range unresolved.References {
			fmt.Fprintf(out, "      %s\n", ref)
		}
		if cfg.Models.Strict {
			return err
		}
	case err != nil:
		return err
	default:
		fmt.Fprintf(out, "  %s Pointers resolve\n", checkMark)
	}

	fmt.Fprintf(out, "\n%d models valid\n", len(rt.Models()))
	return nil
}
