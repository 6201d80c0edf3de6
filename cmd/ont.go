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
	"time"

	"github.com/spf13/cobra"
	"github.com/wtsi-npg/npg-irods/ont"
)

// options for the apply-ont-metadata command.
var (
	ontStore      storeOptions
	ontWarehouse  warehouseOptions
	ontPolicy     consentOptions
	ontWindow     windowOptions
	ontExperiment string
	ontSlot       int
)

// applyONTMetadataCmd represents the apply-ont-metadata command.
var applyONTMetadataCmd = &cobra.Command{
	Use:   "apply-ont-metadata",
	Short: "Annotate recently changed ONT runs",
	Long: `Annotate recently changed ONT runs.

Finds the ONT experiments and instrument slots whose warehouse records changed
between --begin-date and --end-date, then finds their run collections by their
experiment name and instrument slot metadata and adds sample and study
metadata and permissions to them. For multiplexed runs these are added to each
barcode collection, and MinKNOW reports are made public.

Use --experiment-name, and optionally --instrument-slot, to limit this to one
experiment.`,
	Run: func(_ *cobra.Command, _ []string) {
		since, until, err := ontWindow.window(time.Now())
		if err != nil {
			die("%s", err)
		}

		s, store, err := ontStore.open()
		if err != nil {
			die("failed to open store: %s", err)
		}

		defer s.Close()

		wh, err := ontWarehouse.open()
		if err != nil {
			die("failed to connect to the warehouse: %s", err)
		}

		defer wh.Close()

		a := &ont.Annotator{
			Store:     store,
			Warehouse: wh,
			Consent:   ontPolicy.policy(),
			Logger:    appLogger,
		}

		ctx, cancel := signalContext()
		defer cancel()

		counts, err := a.ApplyMetadata(ctx, ont.Filter{
			Since:          since,
			Until:          until,
			ExperimentName: ontExperiment,
			InstrumentSlot: ontSlot,
		})
		if err != nil {
			die("%s", err)
		}

		info("found %d collections, updated %d, errors %d", counts.Found, counts.Updated, counts.Errors)

		if counts.Errors > 0 {
			die("some collections could not be annotated")
		}
	},
}

func init() {
	RootCmd.AddCommand(applyONTMetadataCmd)

	ontStore.addFlags(applyONTMetadataCmd)
	ontWarehouse.addFlags(applyONTMetadataCmd)
	ontPolicy.addFlags(applyONTMetadataCmd)
	ontWindow.addFlags(applyONTMetadataCmd)

	applyONTMetadataCmd.Flags().StringVar(&ontExperiment, "experiment-name", "", "only annotate this experiment")
	applyONTMetadataCmd.Flags().IntVar(&ontSlot, "instrument-slot", 0,
		"only annotate this instrument slot of --experiment-name")
}
