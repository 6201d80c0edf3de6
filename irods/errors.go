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

package irods

import "fmt"

// Error is the custom error type for the irods package.
type Error string

const (
	// ErrNotFound is matched by every NotFoundError.
	ErrNotFound = Error("item not found")

	// ErrEmptyReplicaSet is returned when the store reports no replicas at all
	// for a data object, which indicates an inconsistency in the store.
	ErrEmptyReplicaSet = Error("replica set is empty")

	ErrNotDataObject     = Error("not a data object")
	ErrNotCollection     = Error("not a collection")
	ErrInvalidPermission = Error("invalid permission")
	ErrNoSuchAVU         = Error("no AVU with attribute")
	ErrMultipleAVUs      = Error("more than one AVU with attribute")
)

func (e Error) Error() string { return string(e) }

// NotFoundError describes an expected item that does not exist.
type NotFoundError struct {
	Kind Kind
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Path)
}

// Is lets errors.Is(err, ErrNotFound) match any NotFoundError.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound //nolint:err113,errorlint
}

// EmptyReplicaSetError records the path of a data object with no replicas.
type EmptyReplicaSetError struct {
	Path string
}

func (e *EmptyReplicaSetError) Error() string {
	return fmt.Sprintf("%s: %s", ErrEmptyReplicaSet, e.Path)
}

func (e *EmptyReplicaSetError) Unwrap() error {
	return ErrEmptyReplicaSet
}
