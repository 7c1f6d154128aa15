package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/openucra/ucra-go/ucra/flagmap"
	"github.com/openucra/ucra-go/utils"
	"github.com/spf13/cobra"
)

var flagsList bool

var flagsCmd = &cobra.Command{
	Use:   "flags [FLAGS]",
	Short: "Translate legacy flags into engine options",
	Long: paragraph(fmt.Sprintf("\n%s a legacy flag string such as 'g=-5;B=60' through the configured flag rules and print the engine options it produces.", keyword("Map"))),
	Example: paragraph("ucra flags 'g=-5;B=60' --rules flags.yml\nucra flags --list --rules flags.yml"),
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()

		var mapper *flagmap.Mapper
		if cfg.Engine.FlagRules != "" {
			m, err := flagmap.Load(utils.ExpandPath(cfg.Engine.FlagRules))
			if err != nil {
				return err
			}
			mapper = m
		}

		if flagsList {
			if mapper == nil {
				return errors.New("no flag rules configured, use --rules FILE")
			}
			fmt.Fprintln(w, field("engine", keyword(strings.TrimSpace(mapper.Engine+" "+mapper.Version))))
			for _, r := range mapper.Rules {
				kind := flagmap.KindCopy
				if r.Transform != nil {
					kind = r.Transform.Kind
				}
				fmt.Fprintf(w, "  %s -> %s %s\n", keyword(r.Source.Name), r.Target.Name, faint("("+kind+")"))
			}
			return nil
		}

		if len(args) == 0 {
			return errors.New("missing flag string")
		}
		if mapper == nil {
			for _, kv := range flagmap.ParseLegacy(args[0]) {
				fmt.Fprintf(w, "%s=%s\n", keyword(kv.Key), kv.Value)
			}
			return nil
		}

		res := mapper.ApplyString(args[0])
		for _, kv := range res.Options {
			fmt.Fprintf(w, "%s=%s\n", keyword(kv.Key), kv.Value)
		}
		for _, msg := range res.Warnings {
			fmt.Fprintln(cmd.ErrOrStderr(), warning("warning: "+msg))
		}
		return nil
	},
}

func init() {
	flagsCmd.Flags().BoolVarP(&flagsList, "list", "l", false, "list the configured rules")
}
