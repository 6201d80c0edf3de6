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
	"github.com/wtsi-npg/npg-irods/consent"
	"github.com/wtsi-npg/npg-irods/irods"
	"github.com/wtsi-npg/npg-irods/metadata"
)

// consentOptions name the principals that keep access to withdrawn data.
type consentOptions struct {
	identity string
	admins   []string
}

func (o *consentOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.identity, "identity", consent.DefaultIdentity,
		"the user this service acts as, which keeps access to withdrawn data")
	cmd.Flags().StringSliceVar(&o.admins, "admin", []string{metadata.RodsAdmin},
		"administrator users or groups that keep access to withdrawn data")
}

func (o *consentOptions) policy() consent.Policy {
	return consent.Policy{Identity: o.identity, Admins: o.admins}
}

// options for the consent commands.
var (
	consentStore   storeOptions
	consentBatch   batchOptions
	consentPolicy  consentOptions
	consentRecurse bool
)

// checkConsentWithdrawnCmd represents the check-consent-withdrawn command.
var checkConsentWithdrawnCmd = &cobra.Command{
	Use:   "check-consent-withdrawn",
	Short: "Check items are fully withdrawn",
	Long: `Check items are fully withdrawn.

Reads the paths of data objects and collections and checks that each is
marked as consent withdrawn and that no study or public group has access to
it. With --recurse, every item inside a collection must also be withdrawn.

Use --print-fail to list items that still need 'withdraw-consent'.`,
	Run: func(_ *cobra.Command, _ []string) {
		exitOnErrors(checkConsentWithdrawn())
	},
}

func checkConsentWithdrawn() batch.Counts {
	s, store, err := consentStore.open()
	if err != nil {
		die("failed to open store: %s", err)
	}

	defer s.Close()

	op := itemOperation(store, func(ctx context.Context, item *irods.Item) (bool, error) {
		return consent.IsWithdrawn(ctx, item, consentRecurse && item.IsCollection())
	})

	return consentBatch.run(batch.Check(op), "withdrawn")
}

// withdrawConsentCmd represents the withdraw-consent command.
var withdrawConsentCmd = &cobra.Command{
	Use:   "withdraw-consent",
	Short: "Withdraw access to items",
	Long: `Withdraw access to items.

Reads the paths of data objects and collections, marks each as consent
withdrawn and removes every permission except those of --identity and the
--admin principals. With --recurse, everything inside a collection is
withdrawn too.

Items that are already withdrawn are left alone.`,
	Run: func(_ *cobra.Command, _ []string) {
		exitOnErrors(withdrawConsent())
	},
}

func withdrawConsent() batch.Counts {
	s, store, err := consentStore.open()
	if err != nil {
		die("failed to open store: %s", err)
	}

	defer s.Close()

	policy := consentPolicy.policy()

	op := itemOperation(store, func(ctx context.Context, item *irods.Item) (bool, error) {
		return consent.EnsureWithdrawn(ctx, item, consentRecurse && item.IsCollection(), policy)
	})

	return consentBatch.run(op, "withdrawn")
}

func init() {
	for _, cmd := range []*cobra.Command{checkConsentWithdrawnCmd, withdrawConsentCmd} {
		consentStore.addFlags(cmd)
		consentBatch.addFlags(cmd)
		cmd.Flags().BoolVarP(&consentRecurse, "recurse", "r", false, "include the contents of collections")
		RootCmd.AddCommand(cmd)
	}

	consentPolicy.addFlags(withdrawConsentCmd)
}
