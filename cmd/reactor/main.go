package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/reactor/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	if err := rootCmd.Execute(); err != nil {
		var re *errors.Error
		if errors.As(err, &re) {
			fmt.Fprintln(os.Stderr, re.Format())
		} else {
			fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		}
		os.Exit(1)
	}
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "reactor",
		Short: "Reactive expression runtime",
		Long: `reactor evaluates expressions against reactive data and serves
a runtime over HTTP for inspection.

  • eval   evaluate one expression and print the result as JSON
  • serve  run a runtime with the HTTP inspector`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	rootCmd.AddCommand(
		evalCmd(),
		serveCmd(),
		versionCmd(),
	)
	return rootCmd
}

// parseData reads a JSON object given inline or as @path.
func parseData(flag, value string) (map[string]any, error) {
	if value == "" {
		return nil, nil
	}
	raw := []byte(value)
	if strings.HasPrefix(value, "@") {
		b, err := os.ReadFile(strings.TrimPrefix(value, "@"))
		if err != nil {
			return nil, errors.New(errors.CodeCLIInput).
				WithDetail(fmt.Sprintf("--%s: %v", flag, err))
		}
		raw = b
	}

	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, errors.New(errors.CodeCLIInput).
			WithDetail(fmt.Sprintf("--%s must be a JSON object: %v", flag, err)).
			WithSuggestion(`Pass inline JSON such as '{"a": 1}' or @file.json`)
	}
	return data, nil
}
