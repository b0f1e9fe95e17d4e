package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// VersionInfo represents parsed version components
type VersionInfo struct {
	Major int
	Minor int
}

func (v VersionInfo) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// ParseVersion parses a GameMaker version string such as "2" or "2.3".
// A missing minor component is zero; anything past major.minor is ignored.
func ParseVersion(version string) (*VersionInfo, error) {
	if version == "" {
		return nil, fmt.Errorf("version string cannot be empty")
	}

	parts := strings.Split(version, ".")
	info := &VersionInfo{}
	var err error

	// Parse major version
	info.Major, err = strconv.Atoi(parts[0])
	if err != nil {
		return nil, fmt.Errorf("invalid major version: %s", parts[0])
	}
	if info.Major < 1 {
		return nil, fmt.Errorf("unsupported major version: %d (must be 1 or later)", info.Major)
	}

	// Parse minor version (optional)
	if len(parts) > 1 && parts[1] != "" {
		info.Minor, err = strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("invalid minor version: %s", parts[1])
		}
	}

	return info, nil
}
