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

// Package integrity checks and repairs invariants that the store does not
// enforce: every valid replica of a data object has a checksum, the
// checksums agree, a single checksum AVU records the same value, and there are
// the expected number of valid replicas.
package integrity

import (
	"context"
	"fmt"
	"slices"

	"github.com/wtsi-npg/npg-irods/irods"
	"github.com/wtsi-npg/npg-irods/metadata"
	"github.com/wtsi-npg/npg-irods/reconcile"
)

// Error is the custom error type for the integrity package.
type Error string

const (
	// ErrChecksum is matched by every ChecksumError.
	ErrChecksum = Error("checksum error")

	// ErrNoChecksum is returned when a checksum is needed but the store has
	// none for the data object.
	ErrNoChecksum = Error("no checksum")
)

func (e Error) Error() string { return string(e) }

// Reason says why a ChecksumError was raised.
type Reason int

const (
	ReasonIncomplete Reason = iota + 1
	ReasonMismatch
)

func (r Reason) String() string {
	switch r {
	case ReasonIncomplete:
		return "incomplete"
	case ReasonMismatch:
		return "mismatched"
	default:
		return fmt.Sprintf("Reason(%d)", int(r))
	}
}

// ChecksumError reports checksums that cannot be repaired automatically
// because deciding which, if any, replica is correct needs a person.
type ChecksumError struct {
	Reason   Reason
	Path     string
	Expected []string
	Observed []string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("%s checksums for %s: expected %v, observed %v",
		e.Reason, e.Path, e.Expected, e.Observed)
}

// Is lets errors.Is(err, ErrChecksum) match any ChecksumError.
func (e *ChecksumError) Is(target error) bool {
	return target == ErrChecksum //nolint:err113,errorlint
}

func replicas(ctx context.Context, obj *irods.Item) ([]irods.Replica, error) {
	reps, err := obj.Replicas(ctx)
	if err != nil {
		return nil, err
	}

	if len(reps) == 0 {
		return nil, &irods.EmptyReplicaSetError{Path: obj.Path}
	}

	return reps, nil
}

func valid(reps []irods.Replica) []irods.Replica {
	return slices.DeleteFunc(slices.Clone(reps), func(r irods.Replica) bool { return !r.Valid })
}

// complete holds when there are no valid replicas.
func complete(reps []irods.Replica) bool {
	return !slices.ContainsFunc(valid(reps), func(r irods.Replica) bool { return r.Checksum == "" })
}

// matching is false when there are no valid replicas, since there is no
// checksum to match.
func matching(reps []irods.Replica) bool {
	v := valid(reps)
	if len(v) == 0 || !complete(reps) {
		return false
	}

	return !slices.ContainsFunc(v, func(r irods.Replica) bool { return r.Checksum != v[0].Checksum })
}

func checksumError(reason Reason, obj *irods.Item, reps []irods.Replica) *ChecksumError {
	v := valid(reps)

	var expected string
	if len(v) > 0 {
		expected = v[0].Checksum
	}

	e := &ChecksumError{Reason: reason, Path: obj.Path}

	for _, r := range v {
		e.Expected = append(e.Expected, expected)
		e.Observed = append(e.Observed, r.Checksum)
	}

	return e
}

// HasCompleteChecksums returns true if every valid replica of the data object
// has a checksum, which includes having no valid replicas. A data object with
// no replicas at all is an error.
func HasCompleteChecksums(ctx context.Context, obj *irods.Item) (bool, error) {
	reps, err := replicas(ctx, obj)
	if err != nil {
		return false, err
	}

	return complete(reps), nil
}

// HasMatchingChecksums returns true if the data object's checksums are
// complete and all valid replicas have the same one.
func HasMatchingChecksums(ctx context.Context, obj *irods.Item) (bool, error) {
	reps, err := replicas(ctx, obj)
	if err != nil {
		return false, err
	}

	return matching(reps), nil
}

// HasChecksumMetadata returns true if the data object has any checksum AVU.
// It does not check the value.
func HasChecksumMetadata(ctx context.Context, obj *irods.Item) (bool, error) {
	avus, err := obj.MetadataWith(ctx, metadata.MD5)

	return len(avus) > 0, err
}

// HasMatchingChecksumMetadata returns true if the data object has matching
// checksums and exactly one checksum AVU, with the same value.
func HasMatchingChecksumMetadata(ctx context.Context, obj *irods.Item) (bool, error) {
	reps, err := replicas(ctx, obj)
	if err != nil || !matching(reps) {
		return false, err
	}

	avus, err := obj.MetadataWith(ctx, metadata.MD5)
	if err != nil || len(avus) != 1 {
		return false, err
	}

	return avus[0].Value == valid(reps)[0].Checksum, nil
}

// EnsureMatchingChecksumMetadata gives a data object with matching checksums
// a single checksum AVU of the same value, superseding any that disagree. It
// returns a *ChecksumError if there are no valid replicas or the checksums are
// incomplete or disagree, and
// true if it made a change.
func EnsureMatchingChecksumMetadata(ctx context.Context, obj *irods.Item) (bool, error) {
	ok, err := HasMatchingChecksumMetadata(ctx, obj)
	if err != nil || ok {
		return false, err
	}

	reps, err := replicas(ctx, obj)
	if err != nil {
		return false, err
	}

	if len(valid(reps)) == 0 || !complete(reps) {
		return false, checksumError(ReasonIncomplete, obj, reps)
	}

	if !matching(reps) {
		return false, checksumError(ReasonMismatch, obj, reps)
	}

	return reconcile.UpdateMetadata(ctx, obj, metadata.MakeChecksumMetadata(valid(reps)[0].Checksum))
}

// HasCompleteReplicas returns true if the data object has at least n valid
// replicas and their checksums match.
func HasCompleteReplicas(ctx context.Context, obj *irods.Item, n int) (bool, error) {
	reps, err := replicas(ctx, obj)
	if err != nil {
		return false, err
	}

	return len(valid(reps)) >= n && matching(reps), nil
}

// TrimmableReplicas returns the valid replicas beyond the first n, by replica
// number, and all the invalid replicas.
func TrimmableReplicas(ctx context.Context, obj *irods.Item, n int) (excess, invalid []irods.Replica, err error) {
	reps, err := replicas(ctx, obj)
	if err != nil {
		return nil, nil, err
	}

	kept := 0

	for _, r := range reps {
		switch {
		case !r.Valid:
			invalid = append(invalid, r)
		case kept < n:
			kept++
		default:
			excess = append(excess, r)
		}
	}

	return excess, invalid, nil
}

// RepairReplicas trims the replicas returned by TrimmableReplicas. It refuses,
// with a *ChecksumError, if there are no valid replicas or their checksums are
// incomplete or disagree. It returns true if anything was trimmed.
func RepairReplicas(ctx context.Context, obj *irods.Item, n int) (bool, error) {
	reps, err := replicas(ctx, obj)
	if err != nil {
		return false, err
	}

	if len(valid(reps)) == 0 || !complete(reps) {
		return false, checksumError(ReasonIncomplete, obj, reps)
	}

	if !matching(reps) {
		return false, checksumError(ReasonMismatch, obj, reps)
	}

	excess, invalid, err := TrimmableReplicas(ctx, obj, n)
	if err != nil {
		return false, err
	}

	numbers := make([]int, 0, len(excess)+len(invalid))
	for _, r := range append(excess, invalid...) {
		numbers = append(numbers, r.Number)
	}

	if len(numbers) == 0 {
		return false, nil
	}

	trimmed, err := obj.TrimReplicas(ctx, numbers...)

	return trimmed > 0, err
}
