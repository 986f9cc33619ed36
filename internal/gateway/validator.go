package gateway

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/RezaEskandarii/postfire/types"
)

const warnRatio = 0.9

type constraints struct {
	maxText         int
	requiresMedia   bool
	requiresVideo   bool
	imagesSupported bool
	allowImageVideo bool
	maxHashtags     int
	textFirst       bool
}

var platformConstraints = map[types.Platform]constraints{
	types.PlatformTwitter:   {maxText: 280, imagesSupported: true, textFirst: true},
	types.PlatformLinkedIn:  {maxText: 3000, imagesSupported: true, textFirst: true},
	types.PlatformFacebook:  {maxText: 63206, imagesSupported: true, allowImageVideo: true},
	types.PlatformInstagram: {maxText: 2200, requiresMedia: true, imagesSupported: true, maxHashtags: 30},
	types.PlatformTikTok:    {maxText: 2200, requiresMedia: true, requiresVideo: true},
}

// ValidationResult is the outcome of checking content against one platform.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// ValidateContent is pure and safe to call both at schedule time and right before publishing.
func ValidateContent(platform types.Platform, content types.Content) ValidationResult {
	res := ValidationResult{Errors: []string{}, Warnings: []string{}}

	c, ok := platformConstraints[platform]
	if !ok {
		res.Errors = append(res.Errors, fmt.Sprintf("unsupported platform %q", platform))
		return res
	}

	length := utf8.RuneCountInString(content.Text)
	switch {
	case length > c.maxText:
		res.Errors = append(res.Errors, fmt.Sprintf("%s text is %d characters, limit is %d", platform, length, c.maxText))
	case float64(length) > float64(c.maxText)*warnRatio:
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s text is close to the %d character limit", platform, c.maxText))
	}

	if c.requiresVideo && !content.HasVideo() {
		res.Errors = append(res.Errors, fmt.Sprintf("%s requires a video", platform))
	} else if c.requiresMedia && !content.HasMedia() {
		res.Errors = append(res.Errors, fmt.Sprintf("%s requires an image or video", platform))
	}

	if content.HasImage() && !c.imagesSupported {
		res.Errors = append(res.Errors, fmt.Sprintf("%s does not support images", platform))
	}
	if content.HasImage() && content.HasVideo() && !c.allowImageVideo && c.imagesSupported {
		res.Errors = append(res.Errors, fmt.Sprintf("%s does not allow an image and a video in the same post", platform))
	}

	if c.maxHashtags > 0 {
		if n := countHashtags(content.Text); n > c.maxHashtags {
			res.Errors = append(res.Errors, fmt.Sprintf("%s allows at most %d hashtags, got %d", platform, c.maxHashtags, n))
		}
	}

	if c.textFirst && strings.TrimSpace(content.Text) == "" && content.HasMedia() {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s post has media but no text", platform))
	}

	res.Valid = len(res.Errors) == 0
	return res
}

func countHashtags(text string) int {
	n := 0
	for _, f := range strings.Fields(text) {
		if len(f) > 1 && f[0] == '#' {
			n++
		}
	}
	return n
}
