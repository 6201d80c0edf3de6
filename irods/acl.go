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

import (
	"fmt"
	"slices"
	"strings"
)

// Permission is an access level. The zero value, PermNull, is a deliberate
// "no access" grant, which is distinct from having no entry at all.
type Permission int

const (
	PermNull Permission = iota
	PermRead
	PermWrite
	PermOwn
)

var permissionNames = [...]string{"null", "read", "write", "own"} //nolint:gochecknoglobals

func (p Permission) String() string {
	if p < PermNull || p > PermOwn {
		return fmt.Sprintf("Permission(%d)", int(p))
	}

	return permissionNames[p]
}

// ParsePermission converts a permission name (as returned by
// Permission.String(), case insensitive) to a Permission.
func ParsePermission(s string) (Permission, error) {
	s = strings.ToLower(strings.TrimSpace(s))

	switch s {
	case "read object", "read_object":
		return PermRead, nil
	case "modify object", "modify_object":
		return PermWrite, nil
	}

	for n, name := range permissionNames {
		if name == s {
			return Permission(n), nil
		}
	}

	return PermNull, fmt.Errorf("%w: %q", ErrInvalidPermission, s)
}

// AC is a single access control entry.
type AC struct {
	User string
	Perm Permission
	Zone string
}

// NewAC returns an access control entry.
func NewAC(user string, perm Permission, zone string) AC {
	return AC{User: user, Perm: perm, Zone: zone}
}

func (ac AC) String() string {
	return fmt.Sprintf("%s#%s:%s", ac.User, ac.Zone, ac.Perm)
}

// CompareACs orders entries by user, zone, then permission.
func CompareACs(a, b AC) int {
	if c := strings.Compare(a.User, b.User); c != 0 {
		return c
	}

	if c := strings.Compare(a.Zone, b.Zone); c != 0 {
		return c
	}

	return int(a.Perm - b.Perm)
}

// UniqueACL returns a sorted copy of the given entries with duplicates removed.
func UniqueACL(acl []AC) []AC {
	out := slices.Clone(acl)
	slices.SortFunc(out, CompareACs)

	return slices.Compact(out)
}

// ACLDifference returns the entries in a that are not in b.
func ACLDifference(a, b []AC) []AC {
	var out []AC

	for _, ac := range a {
		if !slices.Contains(b, ac) {
			out = append(out, ac)
		}
	}

	return out
}
