package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agentuity/go-plancache/normalize"
	"github.com/agentuity/go-plancache/plancache"
	"github.com/agentuity/go-plancache/tui"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

type normalizeResult struct {
	SQL        string        `json:"sql"`
	Pattern    string        `json:"pattern,omitempty"`
	Key        string        `json:"key,omitempty"`
	Parameters []interface{} `json:"parameters,omitempty"`
	Types      []string      `json:"types,omitempty"`
	Tables     []string      `json:"tables,omitempty"`
	Error      string        `json:"error,omitempty"`
}

func newNormalizeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "normalize [sql...]",
		Short: "Print the normalized pattern, parameters and tables of SQL statements",
		Long: `Print the normalized pattern, parameters and tables of SQL statements.

Statements are taken from the arguments, or one per line from stdin when no
arguments are given.`,
		RunE: runNormalize,
	}
	cmd.Flags().Bool("json", false, "write one JSON object per statement")
	return cmd
}

func runNormalize(cmd *cobra.Command, args []string) error {
	statements := args
	if len(statements) == 0 {
		var err error
		if statements, err = readStatements(cmd.InOrStdin()); err != nil {
			return err
		}
	}
	results := make([]normalizeResult, 0, len(statements))
	failed := 0
	for _, sql := range statements {
		res := normalizeResult{SQL: sql}
		q, err := normalize.Normalize(sql)
		if err != nil {
			res.Error = err.Error()
			failed++
		} else {
			res.Pattern = q.Pattern
			res.Key = plancache.CacheKey(q.Pattern)
			res.Parameters = q.Parameters
			res.Tables = q.Tables
			for _, m := range q.Metadata {
				res.Types = append(res.Types, m.Type.String())
			}
		}
		results = append(results, res)
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		for _, res := range results {
			if err := enc.Encode(res); err != nil {
				return err
			}
		}
	} else {
		rows := make([][]string, 0, len(results))
		for _, res := range results {
			if res.Error != "" {
				rows = append(rows, []string{tui.MaxWidth(res.SQL, 60), tui.Warning(res.Error), "", ""})
				continue
			}
			params := make([]string, len(res.Parameters))
			for i, p := range res.Parameters {
				params[i] = fmt.Sprintf("%v:%s", p, res.Types[i])
			}
			rows = append(rows, []string{
				tui.MaxWidth(res.SQL, 60),
				tui.SQL(res.Pattern),
				strings.Join(params, ", "),
				strings.Join(res.Tables, ", "),
			})
		}
		tui.Table(out, []string{"SQL", "Pattern", "Parameters", "Tables"}, rows)
	}
	if failed > 0 {
		return errors.Newf("%d of %d statements could not be parsed", failed, len(results))
	}
	return nil
}
