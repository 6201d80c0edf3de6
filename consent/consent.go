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

// Package consent implements the withdrawal of sample consent on items: the
// predicate that says whether an item is in the withdrawn state, and the
// transition that puts it there.
//
// An item is withdrawn when it carries withdrawn consent metadata and no study
// groups retain access to it. The transition first adds the metadata, then
// removes every permission except those of the acting identity and privileged
// administrators, so the process doing the withdrawal is never locked out.
// There is no transition back.
package consent

import (
	"context"
	"slices"

	"github.com/hashicorp/go-multierror"
	"github.com/wtsi-npg/npg-irods/irods"
	"github.com/wtsi-npg/npg-irods/metadata"
)

// Error is the custom error type for the consent package.
type Error string

const (
	// ErrRecurseDataObject is returned when asked to recurse into a data
	// object.
	ErrRecurseDataObject = Error("cannot recurse into a data object")
)

func (e Error) Error() string { return string(e) }

// State is the consent state of an item.
type State int

const (
	Consented State = iota
	WithdrawnMetadataOnly
	Withdrawn
)

func (s State) String() string {
	switch s {
	case WithdrawnMetadataOnly:
		return "withdrawn (metadata only)"
	case Withdrawn:
		return "withdrawn"
	default:
		return "consented"
	}
}

// DefaultIdentity is the acting service identity when none is configured.
const DefaultIdentity = "irods"

// Policy names the principals whose permissions survive withdrawal.
type Policy struct {
	// Identity is the user the engine acts as.
	Identity string

	// Admins are privileged administrator users or groups.
	Admins []string
}

// DefaultPolicy returns a Policy for DefaultIdentity with the rodsadmin group
// as administrators.
func DefaultPolicy() Policy {
	return Policy{Identity: DefaultIdentity, Admins: []string{metadata.RodsAdmin}}
}

// Preserves returns true if the entry must not be removed by withdrawal.
func (p Policy) Preserves(ac irods.AC) bool {
	identity := p.Identity
	if identity == "" {
		identity = DefaultIdentity
	}

	return ac.User == identity || slices.Contains(p.Admins, ac.User)
}

func targets(ctx context.Context, item *irods.Item, recurse bool) ([]*irods.Item, error) {
	if recurse && !item.IsCollection() {
		return nil, ErrRecurseDataObject
	}

	return item.Tree(ctx, recurse)
}

func hasWithdrawnMetadata(ctx context.Context, item *irods.Item) (bool, error) {
	avus, err := item.Metadata(ctx)
	if err != nil {
		return false, err
	}

	return metadata.HasWithdrawnMetadata(avus), nil
}

func hasWithdrawnPermissions(ctx context.Context, item *irods.Item) (bool, error) {
	acl, err := item.ACL(ctx)
	if err != nil {
		return false, err
	}

	return !slices.ContainsFunc(acl, metadata.IsManagedAccess), nil
}

func all(ctx context.Context, item *irods.Item, recurse bool,
	pred func(context.Context, *irods.Item) (bool, error),
) (bool, error) {
	items, err := targets(ctx, item, recurse)
	if err != nil {
		return false, err
	}

	for _, it := range items {
		ok, err := pred(ctx, it)
		if err != nil || !ok {
			return false, err
		}
	}

	return true, nil
}

// HasWithdrawnMetadata returns true if the item, and all its descendants if
// recurse is true, carry either encoding of withdrawn consent.
func HasWithdrawnMetadata(ctx context.Context, item *irods.Item, recurse bool) (bool, error) {
	return all(ctx, item, recurse, hasWithdrawnMetadata)
}

// HasWithdrawnPermissions returns true if no study group has an entry in the
// ACL of the item, and of all its descendants if recurse is true.
func HasWithdrawnPermissions(ctx context.Context, item *irods.Item, recurse bool) (bool, error) {
	return all(ctx, item, recurse, hasWithdrawnPermissions)
}

// IsWithdrawn returns true if the item is in the Withdrawn state.
func IsWithdrawn(ctx context.Context, item *irods.Item, recurse bool) (bool, error) {
	state, err := StateOf(ctx, item, recurse)

	return state == Withdrawn, err
}

// StateOf returns the consent state of the item.
func StateOf(ctx context.Context, item *irods.Item, recurse bool) (State, error) {
	meta, err := HasWithdrawnMetadata(ctx, item, recurse)
	if err != nil || !meta {
		return Consented, err
	}

	perms, err := HasWithdrawnPermissions(ctx, item, recurse)
	if err != nil {
		return Consented, err
	}

	if !perms {
		return WithdrawnMetadataOnly, nil
	}

	return Withdrawn, nil
}

// EnsureWithdrawn puts the item, and all its descendants if recurse is true,
// into the Withdrawn state. It returns true if anything changed. Items are
// updated independently; errors for each are collected and returned together.
func EnsureWithdrawn(ctx context.Context, item *irods.Item, recurse bool, policy Policy) (bool, error) {
	if withdrawn, err := IsWithdrawn(ctx, item, recurse); err != nil || withdrawn {
		return false, err
	}

	items, err := targets(ctx, item, recurse)
	if err != nil {
		return false, err
	}

	var (
		changed bool
		merr    *multierror.Error
	)

	for _, it := range items {
		c, err := ensureWithdrawn(ctx, it, policy)
		if err != nil {
			merr = multierror.Append(merr, err)
		}

		changed = changed || c
	}

	return changed, merr.ErrorOrNil()
}

func ensureWithdrawn(ctx context.Context, item *irods.Item, policy Policy) (bool, error) {
	meta, err := hasWithdrawnMetadata(ctx, item)
	if err != nil {
		return false, err
	}

	added := 0

	if !meta {
		if added, err = item.AddMetadata(ctx, metadata.WithdrawnAVU); err != nil {
			return false, err
		}
	}

	acl, err := item.ACL(ctx)
	if err != nil {
		return added > 0, err
	}

	remove := slices.DeleteFunc(acl, policy.Preserves)

	removed, err := item.RemovePermissions(ctx, remove...)

	return added+removed > 0, err
}
