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

	"github.com/spf13/cobra"
	"github.com/wtsi-npg/npg-irods/batch"
	"github.com/wtsi-npg/npg-irods/irods"
	"github.com/wtsi-npg/npg-irods/locations"
	"github.com/wtsi-npg/npg-irods/metadata"
)

// options for the write-locations command.
var (
	locationsStore    storeOptions
	locationsBatch    batchOptions
	locationsFile     string
	locationsPlatform string
	locationsPipeline string
)

// writeLocationsCmd represents the write-locations command.
var writeLocationsCmd = &cobra.Command{
	Use:   "write-locations",
	Short: "Write a warehouse location file for data objects",
	Long: `Write a warehouse location file for data objects.

Reads the paths of data objects and writes a JSON file giving, for the product
of each (its id_product metadata), the collection and name of its data object,
in the form the warehouse loader expects. A second data object of the same
product in the same collection is recorded as the product's secondary data.

Data objects without exactly one id_product are errors. No file is written if
no products were found.`,
	Run: func(_ *cobra.Command, _ []string) {
		if locationsFile == "" {
			die("--json-file is required")
		}

		exitOnErrors(writeLocations())
	},
}

func writeLocations() batch.Counts {
	s, store, err := locationsStore.open()
	if err != nil {
		die("failed to open store: %s", err)
	}

	defer s.Close()

	w := locations.NewWriter(locationsPlatform)
	w.Pipeline = locationsPipeline
	w.Logger = appLogger

	op := itemOperation(store, func(ctx context.Context, obj *irods.Item) (bool, error) {
		if !obj.IsDataObject() {
			return false, irods.ErrNotDataObject
		}

		avu, err := obj.SingleAVU(ctx, metadata.IDProduct)
		if err != nil {
			return false, err
		}

		w.AddProduct(obj.Path, avu.Value)

		return true, nil
	})

	counts := locationsBatch.run(op, "found")

	written, err := w.WriteFile(locationsFile)
	if err != nil {
		die("failed to write %s: %s", locationsFile, err)
	}

	if written {
		info("wrote %d data objects to %s", w.Len(), locationsFile)
	} else {
		warn("found no products; %s not written", locationsFile)
	}

	return counts
}

func init() {
	RootCmd.AddCommand(writeLocationsCmd)

	locationsStore.addFlags(writeLocationsCmd)
	locationsBatch.addFlags(writeLocationsCmd)

	writeLocationsCmd.Flags().StringVar(&locationsFile, "json-file", "", "path of the location file to write")
	writeLocationsCmd.Flags().StringVar(&locationsPlatform, "platform", locations.PlatformPacBio, "platform name")
	writeLocationsCmd.Flags().StringVar(&locationsPipeline, "pipeline", locations.PipelineProduction, "pipeline name")
}
