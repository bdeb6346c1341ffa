// Copyright (c) 2025, fl4pj4ck and the jellytrailers contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package ytdlp

import (
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

// allowedOptions is the fixed set of extra yt-dlp option names permitted to
// pass through from configuration. Anything outside this set is dropped:
// options like --exec would otherwise turn a config value into arbitrary
// command execution.
var allowedOptions = map[string]struct{}{
	// network
	"proxy":          {},
	"socket-timeout": {},
	"source-address": {},
	"force-ipv4":     {},
	"force-ipv6":     {},
	"limit-rate":     {},
	"user-agent":     {},
	"referer":        {},
	// format selection
	"format":      {},
	"format-sort": {},
	// retry behaviour
	"retries":              {},
	"fragment-retries":     {},
	"retry-sleep":          {},
	"sleep-interval":       {},
	"max-sleep-interval":   {},
	"concurrent-fragments": {},
	// cookies
	"cookies":              {},
	"cookies-from-browser": {},
}

// buildExtraArgs converts the allowlisted subset of the configured option
// map into command-line flags. Option names are matched case-insensitively;
// disallowed names are skipped. Output order is deterministic.
func buildExtraArgs(opts map[string]string) []string {
	if len(opts) == 0 {
		return nil
	}

	names := make([]string, 0, len(opts))
	for name := range opts {
		names = append(names, name)
	}
	sort.Strings(names)

	var args []string
	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(strings.TrimLeft(name, "-")))
		if _, ok := allowedOptions[key]; !ok {
			log.Debug().Str("option", name).Msg("Skipping disallowed yt-dlp option")
			continue
		}
		args = append(args, "--"+key)
		if value := strings.TrimSpace(opts[name]); value != "" {
			args = append(args, value)
		}
	}
	return args
}

// formatForQuality maps a quality tier to a yt-dlp format selector.
// Unrecognized tiers use the 720p entry.
func formatForQuality(quality string) string {
	switch strings.ToLower(quality) {
	case "best":
		return "best"
	case "1080p":
		return "bestvideo[height<=1080]+bestaudio/best[height<=1080]"
	case "480p":
		return "bestvideo[height<=480]+bestaudio/best[height<=480]"
	default:
		return "bestvideo[height<=720]+bestaudio/best[height<=720]"
	}
}
