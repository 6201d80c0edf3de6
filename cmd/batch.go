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
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/wtsi-npg/npg-irods/batch"
	"github.com/wtsi-npg/npg-irods/irods"
)

// batchOptions are the flags shared by subcommands that process a list of
// paths.
type batchOptions struct {
	input     string
	output    string
	threads   int
	printPass bool
	printFail bool
}

func (o *batchOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.input, "input", "i", "-", "file of paths, one per line; - for STDIN, .gz is decompressed")
	cmd.Flags().StringVarP(&o.output, "output", "o", "-", "file to print paths to; - for STDOUT")
	cmd.Flags().IntVar(&o.threads, "threads", defaultThreads, "number of items to process at once")
	cmd.Flags().BoolVar(&o.printPass, "print-pass", false, "print the paths of items that pass")
	cmd.Flags().BoolVar(&o.printFail, "print-fail", false, "print the paths of items that fail or error")
}

// signalContext returns a context that is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// run applies op to every input path and logs a summary naming the passing
// items as passed.
func (o *batchOptions) run(op batch.Operation, passed string) batch.Counts {
	in, err := batch.OpenInput(o.input)
	if err != nil {
		die("failed to open input: %s", err)
	}

	defer in.Close()

	out, err := batch.OpenOutput(o.output)
	if err != nil {
		die("failed to open output: %s", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	d := &batch.Driver{
		Workers:   o.threads,
		PrintPass: o.printPass,
		PrintFail: o.printFail,
		Out:       out,
		Logger:    appLogger,
	}

	counts, err := d.Run(ctx, in, op)

	if errc := out.Close(); errc != nil && err == nil {
		err = errc
	}

	if err != nil {
		die("%s; %s", err, counts.Summary(passed))
	}

	info(counts.Summary(passed))

	return counts
}

// exitOnErrors exits 1 if any item could not be processed. Call it once
// the store and warehouse are closed.
func exitOnErrors(counts batch.Counts) {
	if code := counts.ExitCode(); code != 0 {
		os.Exit(code)
	}
}

// itemOperation makes an operation that opens the item at each path in the
// store before passing it to fn.
func itemOperation(store irods.Store, fn func(context.Context, *irods.Item) (bool, error)) batch.Operation {
	return func(ctx context.Context, path string) (bool, error) {
		item, err := irods.Open(ctx, store, path)
		if err != nil {
			return false, err
		}

		return fn(ctx, item)
	}
}
