// Package version provides the three-part protocol version carried in the
// Handshake frame.
//
// Peers must agree on the exact version. There is no compatibility window at
// the transport layer; anything else is a VersionMismatch.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Current is the protocol version implemented by this library.
var Current = Version{Major: 0, Minor: 6, Patch: 0}

// Version is a parsed "major.minor.patch" protocol version.
//
// CBOR encoding: [major, minor, patch]
type Version struct {
	_     struct{} `cbor:",toarray"`
	Major uint32
	Minor uint32
	Patch uint32
}

// New returns the version major.minor.patch.
func New(major, minor, patch uint32) Version {
	return Version{Major: major, Minor: minor, Patch: patch}
}

// Parse parses a "major.minor.patch" version string.
func Parse(s string) (Version, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("invalid version %q: expected major.minor.patch", s)
	}

	var nums [3]uint32
	for i, part := range parts {
		if part == "" {
			return Version{}, fmt.Errorf("invalid version %q: empty component %d", s, i)
		}
		n, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return Version{}, fmt.Errorf("invalid version %q: bad component %d", s, i)
		}
		nums[i] = uint32(n)
	}

	return New(nums[0], nums[1], nums[2]), nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the version as "major.minor.patch".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Equal reports whether both versions are identical.
func (v Version) Equal(other Version) bool {
	return v.Major == other.Major && v.Minor == other.Minor && v.Patch == other.Patch
}

// Less reports whether v orders before other.
func (v Version) Less(other Version) bool {
	if v.Major != other.Major {
		return v.Major < other.Major
	}
	if v.Minor != other.Minor {
		return v.Minor < other.Minor
	}
	return v.Patch < other.Patch
}

// Tuple returns the components in wire order.
func (v Version) Tuple() [3]uint32 {
	return [3]uint32{v.Major, v.Minor, v.Patch}
}
