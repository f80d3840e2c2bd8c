package main

import (
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/reactor"
	"github.com/vango-dev/reactor/internal/errors"
	"github.com/vango-dev/reactor/pkg/reactive"
	"github.com/vango-dev/reactor/pkg/sandbox"
)

func evalCmd() *cobra.Command {
	var (
		data    string
		global  string
		mode    string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "eval <expression>",
		Short: "Evaluate an expression",
		Long: `Evaluate an expression against JSON data and print the result.

Local data shadows global data. The instance data is also
available as $root.

Examples:
  reactor eval 'a + b' --data '{"a": 1, "b": 2}'
  reactor eval 'items.length' --data @state.json
  reactor eval 'var t = 0; for (var i of items) t += i; return t' --mode run --data '{"items": [1, 2]}'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			local, err := parseData("data", data)
			if err != nil {
				return err
			}
			globals, err := parseData("global", global)
			if err != nil {
				return err
			}
			m, err := sandbox.ParseMode(mode)
			if err != nil {
				return err
			}

			rt, err := reactor.New(reactor.Config{
				Data:          local,
				GlobalData:    globals,
				EvalTimeout:   timeout,
				SweepInterval: -1,
				Logger:        slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelError + 1})),
			})
			if err != nil {
				return err
			}
			defer rt.Destroy()

			result, err := rt.Exec(sandbox.Options{
				Expression: strings.Join(args, " "),
				Mode:       m,
				Ctx:        cmd.Context(),
			})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(reactive.Plain(result)); err != nil {
				return errors.New(errors.CodeCLIInput).
					WithDetail("result cannot be printed as JSON: " + err.Error())
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&data, "data", "d", "", "Instance data as JSON or @file")
	cmd.Flags().StringVarP(&global, "global", "g", "", "Global data as JSON or @file")
	cmd.Flags().StringVarP(&mode, "mode", "m", "return", "Evaluation mode: return, run or assign")
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", time.Second, "Evaluation time limit (0 for none)")

	return cmd
}
