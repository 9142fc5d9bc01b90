// This file is part of Gopher2600.
//
// Gopher2600 is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Gopher2600 is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Gopher2600.  If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wasmdwarf/wasmdwarf/logger"
)

// options collects the resolved flag/config/env values for a single run.
// Every field can come from a flag, a WASMDWARF_* environment variable, or a
// .wasmdwarf.yaml config file, in that order of precedence; viper does the
// layering, cobra only owns the flag definitions.
type options struct {
	source    string
	output    string
	sourceMap string
	splice    string
	inPlace   bool
	dumpGraph string
}

func newRootCommand() *cobra.Command {
	var opt options

	cmd := &cobra.Command{
		Use:          "wasmdwarf <source-file>",
		Short:        "rewrite the DWARF debug info embedded in a WebAssembly module",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opt.source = args[0]
			opt.output = viper.GetString("output")
			opt.sourceMap = viper.GetString("map")
			opt.splice = viper.GetString("wasm")
			opt.inPlace = viper.GetBool("in-place")
			opt.dumpGraph = viper.GetString("dump-graph")

			if !opt.inPlace && opt.output == "" {
				return fmt.Errorf("-o is required unless -i is set")
			}
			if opt.inPlace {
				opt.output = opt.source
			}

			return runPipeline(opt)
		},
	}

	flags := cmd.Flags()
	flags.StringP("output", "o", "", "output module path")
	flags.StringP("map", "m", "", "source-map JSON supplying the address translation table")
	flags.StringP("wasm", "w", "", "patched module to splice non-debug sections from")
	flags.BoolP("in-place", "i", false, "overwrite the source file instead of writing -o")
	flags.String("dump-graph", "", "write the dependency graph as Graphviz dot to this path")

	viper.BindPFlag("output", flags.Lookup("output"))
	viper.BindPFlag("map", flags.Lookup("map"))
	viper.BindPFlag("wasm", flags.Lookup("wasm"))
	viper.BindPFlag("in-place", flags.Lookup("in-place"))
	viper.BindPFlag("dump-graph", flags.Lookup("dump-graph"))

	viper.SetEnvPrefix("WASMDWARF")
	viper.AutomaticEnv()
	viper.SetConfigName(".wasmdwarf")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	_ = viper.ReadInConfig() // absent config file is not an error

	return cmd
}

// run executes the CLI and returns the process exit code, keeping main()
// itself a one-liner.
func run(args []string) int {
	cmd := newRootCommand()
	cmd.SetArgs(args)

	if err := cmd.Execute(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "wasmdwarf: %v\n", err)
		logger.Tail(os.Stderr, 20)
		return 1
	}
	return 0
}
