/*
Copyright (C) 2026  Carl-Philip Hänsch

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
/*
	secdlisp: a Lisp reader, compiler and SECD machine
*/
package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/launix-de/secdlisp/engine"
	"github.com/launix-de/secdlisp/lisp"
)

var (
	casePolicy string
	trace      bool
	commands   []string
	watches    []string
	batch      bool
)

var rootCmd = &cobra.Command{
	Use:   "secdlisp [files...]",
	Short: "Lisp on a SECD machine",
	Long: `Loads the given source files, executes the -e commands and starts
an interactive session. Files ending in .gz, .xz or .lz4 are decompressed.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEngine()
		if err != nil {
			return err
		}
		defer e.Close()
		ctx := context.Background()

		for _, file := range args {
			fmt.Println("Loading " + file + " ...")
			if _, err := e.LoadFile(ctx, file); err != nil && batch {
				return err
			}
		}
		for _, path := range watches {
			if err := e.Watch(ctx, path); err != nil {
				return err
			}
		}
		for _, command := range commands {
			v, err := e.EvalContext(ctx, command)
			if err != nil {
				if batch {
					return err
				}
				fmt.Fprintln(os.Stderr, "error:", err)
				continue
			}
			fmt.Println(e.Sprint(v))
		}
		if batch {
			return nil
		}

		fmt.Print(`secdlisp Copyright (C) 2026   Carl-Philip Hänsch
    This program comes with ABSOLUTELY NO WARRANTY;
    This is free software, and you are welcome to redistribute it
    under certain conditions;

    Type (help) to show help

`)
		return e.Repl()
	},
}

var docCmd = &cobra.Command{
	Use:   "doc <folder>",
	Short: "Write the function reference as markdown",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEngine()
		if err != nil {
			return err
		}
		defer e.Close()
		return e.WriteDocumentation(args[0])
	},
}

func newEngine() (*engine.Engine, error) {
	policy, err := lisp.ParseCasePolicy(casePolicy)
	if err != nil {
		return nil, err
	}
	e, err := engine.New(engine.WithCase(policy))
	if err != nil {
		return nil, err
	}
	if trace {
		folder := os.Getenv("SECDLISP_TRACEDIR")
		if folder == "" {
			folder = "."
		}
		if err := e.SetTrace(true, folder); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func init() {
	rootCmd.AddCommand(docCmd)
	rootCmd.PersistentFlags().StringVar(&casePolicy, "case", "upcase",
		"Case policy of the reader: upcase, downcase or preserve")
	rootCmd.PersistentFlags().BoolVar(&trace, "trace", false,
		"Write a chrome://tracing file to $SECDLISP_TRACEDIR")
	rootCmd.Flags().StringArrayVarP(&commands, "eval", "e", nil,
		"Evaluate an expression after loading the files (repeatable)")
	rootCmd.Flags().StringArrayVar(&watches, "watch", nil,
		"Load a file and reload it whenever it changes (repeatable)")
	rootCmd.Flags().BoolVar(&batch, "batch", false,
		"Exit after the files and expressions instead of starting the REPL; stop at the first error")
}

func main() {
	// init random generator for UUIDs
	uuid.SetRand(rand.Reader)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
