/*******************************************************************************
 * Copyright (c) 2026 Genome Research Ltd.
 *
 * Permission is hereby granted, free of charge, to any person obtaining
 * a copy of this software and associated documentation files (the
 * "Software"), to deal in the Software without restriction, including
 * without limitation the rights to use, copy, modify, merge, publish,
 * distribute, sublicense, and/or sell copies of the Software, and to
 * permit persons to whom the Software is furnished to do so, subject to
 * the following conditions:
 *
 * The above copyright notice and this permission notice shall be included
 * in all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND,
 * EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF
 * MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.
 * IN NO EVENT SHALL THE AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY
 * CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER IN AN ACTION OF CONTRACT,
 * TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN CONNECTION WITH THE
 * SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
 ******************************************************************************/

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/wtsi-npg/npg-irods/component"
	"github.com/wtsi-npg/npg-irods/illumina"
	"github.com/wtsi-npg/npg-irods/irods"
	"github.com/wtsi-npg/npg-irods/ont"
	"github.com/wtsi-npg/npg-irods/pacbio"
)

var componentsStore storeOptions

// componentsCmd represents the components command.
var componentsCmd = &cobra.Command{
	Use:   "components path [path...]",
	Short: "Show the sequencing components of items",
	Long: `Show the sequencing components of items.

For each data object or collection path given, infers the platform from the
path and prints a table of the sequencing components the item holds data for,
as read from its metadata (or, for ONT, the metadata of the run collection it
is in). These are what 'update-secondary-metadata' looks up in the warehouse.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		if logPath == "" {
			setCLIFormat()
		}

		s, store, err := componentsStore.open()
		if err != nil {
			die("failed to open store: %s", err)
		}

		defer s.Close()

		ctx, cancel := signalContext()
		defer cancel()

		if failed := printComponents(ctx, os.Stdout, store, args); failed > 0 {
			die("could not find the components of %d items", failed)
		}
	},
}

func init() {
	RootCmd.AddCommand(componentsCmd)

	componentsStore.addFlags(componentsCmd)
}

// printComponents writes a table of the components of the items at the given
// paths, and returns the number of items whose components could not be found.
func printComponents(ctx context.Context, w io.Writer, store irods.Store, paths []string) int {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Path", "Platform", "Component"})
	table.SetAutoMergeCells(true)

	failed := 0

	for _, p := range paths {
		platform, comps, err := componentsOf(ctx, store, p)
		if err != nil {
			warn("%s: %s", p, err)

			failed++

			continue
		}

		if len(comps) == 0 {
			table.Append([]string{p, platform.String(), "-"})

			continue
		}

		for _, c := range comps {
			table.Append([]string{p, platform.String(), c.String()})
		}
	}

	table.Render()

	return failed
}

func componentsOf(ctx context.Context, store irods.Store, p string) (component.Platform, []component.Component, error) {
	platform, err := component.Infer(p)
	if err != nil {
		return platform, nil, err
	}

	item, err := irods.Open(ctx, store, p)
	if err != nil {
		return platform, nil, err
	}

	var comps []component.Component

	switch platform { //nolint:exhaustive
	case component.Illumina:
		err = appendComponents(ctx, item, illumina.ComponentsOf, &comps)
	case component.OxfordNanopore:
		err = appendComponents(ctx, item, ont.ComponentsOf, &comps)
	case component.PacBio:
		err = appendComponents(ctx, item, pacbio.ComponentsOf, &comps)
	default:
		err = fmt.Errorf("no components are known for %s data", platform) //nolint:err113
	}

	return platform, comps, err
}

func appendComponents[T component.Component](ctx context.Context, item *irods.Item,
	of func(context.Context, *irods.Item) ([]T, error), comps *[]component.Component,
) error {
	found, err := of(ctx, item)

	for _, c := range found {
		*comps = append(*comps, c)
	}

	return err
}
