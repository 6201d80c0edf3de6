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
	"github.com/wtsi-npg/npg-irods/integrity"
	"github.com/wtsi-npg/npg-irods/irods"
)

const defaultNumReplicas = 2

// integrityCmd is a check or repair subcommand that works on one item at a
// time.
type integrityCmd struct {
	store storeOptions
	batch batchOptions
}

func (c *integrityCmd) command(use, short, long, passed string,
	op func(context.Context, *irods.Item) (bool, error), check bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long:  long,
		Run: func(_ *cobra.Command, _ []string) {
			exitOnErrors(c.run(op, passed, check))
		},
	}

	c.store.addFlags(cmd)
	c.batch.addFlags(cmd)

	return cmd
}

// run applies op to the batch of items, closing the store before returning
// the counts.
func (c *integrityCmd) run(op func(context.Context, *irods.Item) (bool, error), passed string,
	check bool) batch.Counts {
	s, store, err := c.store.open()
	if err != nil {
		die("failed to open store: %s", err)
	}

	defer s.Close()

	itemOp := itemOperation(store, op)
	if check {
		itemOp = batch.Check(itemOp)
	}

	return c.batch.run(itemOp, passed)
}

var (
	numReplicas int
	creator     string
)

func init() {
	checkChecksums := (&integrityCmd{}).command("check-checksums",
		"Check data object checksums",
		`Check data object checksums.

Reads the paths of data objects and checks that every valid replica has a
checksum, that they all match, and that the data object has a single md5
metadata attribute with the same value.

With --print-fail, the paths of data objects that fail are printed, ready to
be passed to 'repair-checksums'.`,
		"passed", integrity.HasMatchingChecksumMetadata, true)

	repairChecksums := (&integrityCmd{}).command("repair-checksums",
		"Repair data object checksum metadata",
		`Repair data object checksum metadata.

Reads the paths of data objects and, for those whose replica checksums are
complete and match, makes their md5 metadata agree, superseding any old value.
Data objects with missing or disagreeing replica checksums are errors, as they
need a person to decide which replica is correct.`,
		"repaired", integrity.EnsureMatchingChecksumMetadata, false)

	checkReplicas := (&integrityCmd{}).command("check-replicas",
		"Check data object replicas",
		`Check data object replicas.

Reads the paths of data objects and checks that each has at least
--num-replicas valid replicas whose checksums match.`,
		"passed", func(ctx context.Context, obj *irods.Item) (bool, error) {
			return integrity.HasCompleteReplicas(ctx, obj, numReplicas)
		}, true)

	repairReplicas := (&integrityCmd{}).command("repair-replicas",
		"Trim excess and invalid replicas",
		`Trim excess and invalid replicas.

Reads the paths of data objects and trims their invalid replicas and any valid
replicas beyond the first --num-replicas. Data objects whose valid replica
checksums are missing or disagree are left alone and reported as errors.`,
		"repaired", func(ctx context.Context, obj *irods.Item) (bool, error) {
			return integrity.RepairReplicas(ctx, obj, numReplicas)
		}, false)

	checkCommon := (&integrityCmd{}).command("check-common-metadata",
		"Check data objects have common metadata",
		`Check data objects have common metadata.

Reads the paths of data objects and checks that each has creation and checksum
metadata, and type metadata if its file suffix is a recognised type.`,
		"passed", integrity.HasCommonMetadata, true)

	repairCommon := (&integrityCmd{}).command("repair-common-metadata",
		"Add missing common metadata to data objects",
		`Add missing common metadata to data objects.

Reads the paths of data objects and adds whichever of the creation, checksum
and type metadata they lack. Existing values are never changed.`,
		"repaired", func(ctx context.Context, obj *irods.Item) (bool, error) {
			return integrity.EnsureCommonMetadata(ctx, obj, creator)
		}, false)

	for _, cmd := range []*cobra.Command{checkReplicas, repairReplicas} {
		cmd.Flags().IntVar(&numReplicas, "num-replicas", defaultNumReplicas, "number of valid replicas expected")
	}

	repairCommon.Flags().StringVar(&creator, "creator", "", "creator to record (default the institute)")

	RootCmd.AddCommand(checkChecksums, repairChecksums, checkReplicas, repairReplicas, checkCommon, repairCommon)
}
