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
	"time"

	"github.com/spf13/cobra"
	"github.com/wtsi-npg/npg-irods/batch"
	"github.com/wtsi-npg/npg-irods/locate"
)

// options for the locate-data-objects commands.
var (
	locateStore      storeOptions
	locateWarehouse  warehouseOptions
	locateWindow     windowOptions
	locateOutput     string
	locateSkipAbsent int
	locateReportTags bool
)

// locateCmd represents the locate-data-objects command.
var locateCmd = &cobra.Command{
	Use:   "locate-data-objects",
	Short: "Find data objects that need updating",
	Long: `Find data objects that need updating.

Each subcommand queries the warehouse for records of some kind, finds the data
objects of those records in the store, and prints their paths, one per line,
ready to be passed to another subcommand.`,
}

// locateConsentWithdrawnCmd represents the locate-data-objects
// consent-withdrawn command.
var locateConsentWithdrawnCmd = &cobra.Command{
	Use:   "consent-withdrawn",
	Short: "Find data objects of samples whose consent has been withdrawn",
	Long: `Find data objects of samples whose consent has been withdrawn.

Prints the data objects with the sample ID metadata of every sample the
warehouse marks as consent withdrawn, and the data objects in collections with
it. Pass them to 'withdraw-consent'.`,
	Run: func(_ *cobra.Command, _ []string) {
		exitOnErrors(runLocate(func(ctx context.Context, l *locate.Locator, _, _ time.Time) (batch.Counts, error) {
			return l.ConsentWithdrawn(ctx)
		}))
	},
}

// locateIlluminaCmd represents the locate-data-objects illumina-updates
// command.
var locateIlluminaCmd = &cobra.Command{
	Use:   "illumina-updates",
	Short: "Find data objects of changed Illumina products",
	Long: `Find data objects of changed Illumina products.

Prints the data objects of Illumina products whose warehouse records changed
between --begin-date and --end-date, and the contents of their QC collections.
Once --skip-absent-runs products of a run have been looked for without success,
the rest of the run is skipped.`,
	Run: func(_ *cobra.Command, _ []string) {
		exitOnErrors(runLocate(func(ctx context.Context, l *locate.Locator, since, until time.Time) (batch.Counts, error) {
			return l.IlluminaUpdates(ctx, since, until, locateSkipAbsent)
		}))
	},
}

// locateONTCmd represents the locate-data-objects ont-updates command.
var locateONTCmd = &cobra.Command{
	Use:   "ont-updates",
	Short: "Find run collections of changed ONT experiments",
	Long: `Find run collections of changed ONT experiments.

Prints the run collections of ONT experiment slots whose warehouse records
changed between --begin-date and --end-date. With --report-tags, the barcode
collections inside each run are printed instead.`,
	Run: func(_ *cobra.Command, _ []string) {
		exitOnErrors(runLocate(func(ctx context.Context, l *locate.Locator, since, until time.Time) (batch.Counts, error) {
			return l.ONTUpdates(ctx, since, until, locateReportTags)
		}))
	},
}

// locatePacBioCmd represents the locate-data-objects pacbio-updates command.
var locatePacBioCmd = &cobra.Command{
	Use:   "pacbio-updates",
	Short: "Find data objects of changed PacBio wells",
	Long: `Find data objects of changed PacBio wells.

Prints the data objects of PacBio run wells whose warehouse records changed
between --begin-date and --end-date. Well labels are matched whether or not
they are zero padded.`,
	Run: func(_ *cobra.Command, _ []string) {
		exitOnErrors(runLocate(func(ctx context.Context, l *locate.Locator, since, until time.Time) (batch.Counts, error) {
			return l.PacBioUpdates(ctx, since, until)
		}))
	},
}

// runLocate prints what find locates, closing the store and warehouse before
// returning the counts.
func runLocate(find func(context.Context, *locate.Locator, time.Time, time.Time) (batch.Counts, error)) batch.Counts {
	since, until, err := locateWindow.window(time.Now())
	if err != nil {
		die("%s", err)
	}

	s, store, err := locateStore.open()
	if err != nil {
		die("failed to open store: %s", err)
	}

	defer s.Close()

	wh, err := locateWarehouse.open()
	if err != nil {
		die("failed to connect to the warehouse: %s", err)
	}

	defer wh.Close()

	out, err := batch.OpenOutput(locateOutput)
	if err != nil {
		die("failed to open output: %s", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	l := &locate.Locator{Store: store, Warehouse: wh, Out: out, Logger: appLogger}

	counts, err := find(ctx, l, since, until)

	if errc := out.Close(); errc != nil && err == nil {
		err = errc
	}

	if err != nil {
		die("%s", err)
	}

	info(counts.Summary("found"))

	return counts
}

func init() {
	RootCmd.AddCommand(locateCmd)

	for _, cmd := range []*cobra.Command{locateConsentWithdrawnCmd, locateIlluminaCmd, locateONTCmd, locatePacBioCmd} {
		locateCmd.AddCommand(cmd)
		locateStore.addFlags(cmd)
		locateWarehouse.addFlags(cmd)
		cmd.Flags().StringVarP(&locateOutput, "output", "o", "-", "file to print paths to; - for STDOUT")
	}

	for _, cmd := range []*cobra.Command{locateIlluminaCmd, locateONTCmd, locatePacBioCmd} {
		locateWindow.addFlags(cmd)
	}

	locateIlluminaCmd.Flags().IntVar(&locateSkipAbsent, "skip-absent-runs", locate.DefaultSkipAbsentRuns,
		"skip the rest of a run after this many of its products are not found; 0 never skips")
	locateONTCmd.Flags().BoolVar(&locateReportTags, "report-tags", false,
		"print barcode collections rather than run collections")
}
