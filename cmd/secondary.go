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
	"github.com/spf13/cobra"
	"github.com/wtsi-npg/npg-irods/batch"
	"github.com/wtsi-npg/npg-irods/secondary"
)

// options for the update-secondary-metadata command.
var (
	secondaryStore           storeOptions
	secondaryWarehouse       warehouseOptions
	secondaryBatch           batchOptions
	secondaryPolicy          consentOptions
	secondaryIncludeControls bool
)

// updateSecondaryCmd represents the update-secondary-metadata command.
var updateSecondaryCmd = &cobra.Command{
	Use:   "update-secondary-metadata",
	Short: "Update study and sample metadata and permissions from the warehouse",
	Long: `Update study and sample metadata and permissions from the warehouse.

Reads the paths of Illumina, ONT and PacBio data objects and collections. For
each, the platform is inferred from the path, the sequencing components it
holds data for are read from its metadata, and their records are fetched from
the warehouse. The item's sample and study metadata are then brought into line
with the records, with any replaced values kept as history, and its study
permissions are set to match.

Items whose samples have withdrawn consent are withdrawn instead of being given
access. Use --identity and --admin to name the principals whose access is kept.

The warehouse is given with the --mlwh-* flags, or the MLWH_HOST, MLWH_PORT,
MLWH_SCHEMA, MLWH_USER and MLWH_PASSWORD environment variables, which may be set
in a .env or .env.local file.

With --print-pass, the paths of items that were changed are printed.`,
	Run: func(_ *cobra.Command, _ []string) {
		exitOnErrors(updateSecondary())
	},
}

func updateSecondary() batch.Counts {
	s, store, err := secondaryStore.open()
	if err != nil {
		die("failed to open store: %s", err)
	}

	defer s.Close()

	wh, err := secondaryWarehouse.open()
	if err != nil {
		die("failed to connect to the warehouse: %s", err)
	}

	defer wh.Close()

	syncer := &secondary.Synchronizer{
		Warehouse:       wh,
		Consent:         secondaryPolicy.policy(),
		IncludeControls: secondaryIncludeControls,
		Logger:          appLogger,
	}

	return secondaryBatch.run(itemOperation(store, syncer.Synchronize), "updated")
}

func init() {
	RootCmd.AddCommand(updateSecondaryCmd)

	secondaryStore.addFlags(updateSecondaryCmd)
	secondaryWarehouse.addFlags(updateSecondaryCmd)
	secondaryBatch.addFlags(updateSecondaryCmd)
	secondaryPolicy.addFlags(updateSecondaryCmd)

	updateSecondaryCmd.Flags().BoolVar(&secondaryIncludeControls, "include-controls", false,
		"resolve Illumina control tags (198 and 888) to their control records; otherwise they get none")
}
