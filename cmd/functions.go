/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/notargets/femassemble/coefficient"
)

// registry holds the coefficient functions that problem files can name
var registry = coefficient.NewRegistry()

// FunctionsCmd represents the functions command
var FunctionsCmd = &cobra.Command{
	Use:   "functions",
	Short: "List the coefficient functions a problem file can reference by name",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		names, descriptions := registry.Names()
		w := cmd.OutOrStdout()
		for i, name := range names {
			fmt.Fprintf(w, "%-8s\t%s\n", name, descriptions[i])
		}
	},
}

func init() {
	rootCmd.AddCommand(FunctionsCmd)
}
