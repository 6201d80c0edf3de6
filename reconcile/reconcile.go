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

// Package reconcile brings the metadata and access control lists of items
// into line with a desired state, making the smallest set of changes and
// keeping a history of superseded metadata values.
package reconcile

import (
	"context"
	"slices"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/wtsi-npg/npg-irods/consent"
	"github.com/wtsi-npg/npg-irods/irods"
	"github.com/wtsi-npg/npg-irods/metadata"
)

var now = time.Now //nolint:gochecknoglobals

// UpdateMetadata makes the item's values for each attribute in avus exactly
// those given. Values it removes are recorded in one history AVU per
// attribute. Attributes not in avus are not touched. It returns true if
// anything changed.
func UpdateMetadata(ctx context.Context, item *irods.Item, avus []irods.AVU) (bool, error) {
	desired := irods.UniqueAVUs(avus)
	if len(desired) == 0 {
		return false, nil
	}

	current, err := item.Store().Metadata(ctx, item.Path)
	if err != nil {
		return false, err
	}

	attrs := irods.Collate(desired)
	observed := slices.DeleteFunc(slices.Clone(current), func(a irods.AVU) bool {
		_, ok := attrs[a.Attribute]

		return !ok
	})

	obsolete := irods.Difference(observed, desired)
	missing := irods.Difference(desired, observed)

	if len(obsolete) == 0 && len(missing) == 0 {
		return false, nil
	}

	if _, err = item.RemoveMetadata(ctx, obsolete...); err != nil {
		return false, err
	}

	_, err = item.AddMetadata(ctx, append(missing, historyOf(obsolete, now())...)...)

	return true, err
}

func historyOf(removed []irods.AVU, when time.Time) []irods.AVU {
	var (
		order  []string
		values = make(map[string][]string)
	)

	for _, avu := range removed {
		if _, ok := values[avu.Attribute]; !ok {
			order = append(order, avu.Attribute)
		}

		values[avu.Attribute] = append(values[avu.Attribute], avu.Value)
	}

	history := make([]irods.AVU, 0, len(order))

	for _, attr := range order {
		history = append(history, irods.HistoryAVU(attr, when, values[attr]...))
	}

	return history
}

// SupersedeACL makes the item's ACL exactly the given entries, removing
// obsolete entries before adding missing ones. It returns true if anything
// changed.
func SupersedeACL(ctx context.Context, item *irods.Item, acl []irods.AC) (bool, error) {
	desired := irods.UniqueACL(acl)

	observed, err := item.ACL(ctx)
	if err != nil {
		return false, err
	}

	obsolete := irods.ACLDifference(observed, desired)
	missing := irods.ACLDifference(desired, observed)

	if len(obsolete) == 0 && len(missing) == 0 {
		return false, nil
	}

	if _, err = item.RemovePermissions(ctx, obsolete...); err != nil {
		return false, err
	}

	_, err = item.AddPermissions(ctx, missing...)

	return true, err
}

// DesiredACL resolves a list of wanted entries into one entry per user and
// zone. Where a user is wanted at more than one level the lowest wins. If
// the managed entries are for more than one group, every managed entry is
// demoted to PermNull.
func DesiredACL(acl []irods.AC) []irods.AC {
	lowest := make(map[[2]string]irods.AC)

	for _, ac := range acl {
		key := [2]string{ac.User, ac.Zone}
		if prev, ok := lowest[key]; !ok || ac.Perm < prev.Perm {
			lowest[key] = ac
		}
	}

	out := make([]irods.AC, 0, len(lowest))
	for _, ac := range lowest {
		out = append(out, ac)
	}

	if metadata.HasMixedOwnership(out) {
		for i, ac := range out {
			if metadata.IsManagedAccess(ac) {
				out[i].Perm = irods.PermNull
			}
		}
	}

	return irods.UniqueACL(out)
}

// UpdatePermissions makes the item's managed entries those in acl (resolved by
// DesiredACL), keeping all its other entries. Non-managed entries in acl are
// added. If recurse is true the same is done for every descendant of a
// collection; errors for each item are collected and returned together.
func UpdatePermissions(ctx context.Context, item *irods.Item, acl []irods.AC, recurse bool) (bool, error) {
	items, err := item.Tree(ctx, recurse)
	if err != nil {
		return false, err
	}

	desired := DesiredACL(acl)

	var (
		changed bool
		merr    *multierror.Error
	)

	for _, it := range items {
		c, err := updatePermissions(ctx, it, desired)
		if err != nil {
			merr = multierror.Append(merr, err)
		}

		changed = changed || c
	}

	return changed, merr.ErrorOrNil()
}

func updatePermissions(ctx context.Context, item *irods.Item, desired []irods.AC) (bool, error) {
	current, err := item.ACL(ctx)
	if err != nil {
		return false, err
	}

	keep := slices.DeleteFunc(current, func(ac irods.AC) bool {
		if metadata.IsManagedAccess(ac) {
			return true
		}

		return slices.ContainsFunc(desired, func(d irods.AC) bool {
			return d.User == ac.User && d.Zone == ac.Zone
		})
	})

	return SupersedeACL(ctx, item, append(keep, desired...))
}

// Options control Apply.
type Options struct {
	// Recurse applies permission changes to every descendant of a collection.
	Recurse bool

	// MetadataOnly skips permission changes.
	MetadataOnly bool

	// Consent names the principals that keep access if consent is withdrawn.
	Consent consent.Policy
}

// Apply updates the item's metadata to include avus, then its permissions. If
// the item carries withdrawn consent metadata once its metadata are updated,
// it is withdrawn instead of having acl applied, so access is never granted
// to withdrawn data. It returns true if any step changed anything.
func Apply(ctx context.Context, item *irods.Item, avus []irods.AVU, acl []irods.AC, opts Options) (bool, error) {
	metaChanged, err := UpdateMetadata(ctx, item, avus)
	if err != nil || opts.MetadataOnly {
		return metaChanged, err
	}

	withdrawn, err := consent.HasWithdrawnMetadata(ctx, item, false)
	if err != nil {
		return metaChanged, err
	}

	recurse := opts.Recurse && item.IsCollection()

	var permChanged bool

	if withdrawn {
		permChanged, err = consent.EnsureWithdrawn(ctx, item, recurse, opts.Consent)
	} else {
		permChanged, err = UpdatePermissions(ctx, item, acl, recurse)
	}

	return metaChanged || permChanged, err
}
