package types

import (
	"fmt"
	"strings"
)

type Platform string

const (
	PlatformTwitter   Platform = "twitter"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformFacebook  Platform = "facebook"
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
)

var AllPlatforms = []Platform{
	PlatformTwitter,
	PlatformLinkedIn,
	PlatformFacebook,
	PlatformInstagram,
	PlatformTikTok,
}

func (p Platform) String() string {
	return string(p)
}

// ParsePlatform matches a platform identifier case-insensitively.
func ParsePlatform(s string) (Platform, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, p := range AllPlatforms {
		if string(p) == name {
			return p, nil
		}
	}
	return "", fmt.Errorf("unsupported platform %q", s)
}

// ParsePlatforms parses and de-duplicates identifiers, keeping first-seen order.
func ParsePlatforms(names []string) ([]Platform, error) {
	out := make([]Platform, 0, len(names))
	seen := make(map[Platform]struct{}, len(names))
	for _, n := range names {
		p, err := ParsePlatform(n)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out, nil
}
