package blueprint

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a semantic schema version (major.minor.patch)
type Version struct {
	Major int
	Minor int
	Patch int
}

// DefaultSchemaVersions are the schema versions recognized when none are configured
var DefaultSchemaVersions = []Version{{1, 0, 0}, {1, 1, 0}, {2, 0, 0}}

// ParseVersion parses "1", "1.1" or "1.1.0", with an optional leading "v"
func ParseVersion(s string) (Version, error) {
	text := strings.TrimPrefix(strings.TrimSpace(s), "v")
	if text == "" {
		return Version{}, fmt.Errorf("empty version")
	}
	parts := strings.Split(text, ".")
	if len(parts) > 3 {
		return Version{}, fmt.Errorf("version %q has too many components", s)
	}
	nums := [3]int{}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Version{}, fmt.Errorf("version %q: invalid component %q", s, p)
		}
		nums[i] = n
	}
	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// MustParseVersion parses a version or panics; for constants and tests
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Compare returns -1, 0 or 1
func (v Version) Compare(o Version) int {
	switch {
	case v.Major != o.Major:
		return cmpInt(v.Major, o.Major)
	case v.Minor != o.Minor:
		return cmpInt(v.Minor, o.Minor)
	default:
		return cmpInt(v.Patch, o.Patch)
	}
}

func cmpInt(a, b int) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// String implements fmt.Stringer
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// MarshalText implements encoding.TextMarshaler
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (v *Version) UnmarshalText(b []byte) error {
	parsed, err := ParseVersion(string(b))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
