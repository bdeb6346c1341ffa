// Copyright (c) 2025, fl4pj4ck and the jellytrailers contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package titleparse derives searchable titles from loosely-structured
// media folder names. All functions are pure and safe for concurrent use.
package titleparse

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Year tokens outside this range are treated as part of the title.
const (
	minYear = 1880
	maxYear = 2030
)

// maxQueryTokens caps how many title tokens survive search-query cleanup.
const maxQueryTokens = 5

// ContentType identifies what a library root or candidate folder holds.
type ContentType string

const (
	ContentMovie  ContentType = "movie"
	ContentTvShow ContentType = "tvshow"
)

var (
	seasonDirPattern   = regexp.MustCompile(`^[Ss](\d+)$`)
	seasonTokenPattern = regexp.MustCompile(`^[Ss](\d{1,3})(?:[Ee]\d{1,3})?$`)
	yearTokenPattern   = regexp.MustCompile(`^\d{4}$`)
	numericPattern     = regexp.MustCompile(`^\d{3,}$`)
	audioCodecPattern  = regexp.MustCompile(`^(?i)DDP?\d`)
	spaceRe            = regexp.MustCompile(`\s+`)
)

// junkTokens is the fixed vocabulary of resolution/source/audio/codec/platform
// tags stripped from titles before building a search query. Lookup is
// lowercase.
var junkTokens = map[string]struct{}{
	// resolution
	"480p": {}, "576p": {}, "720p": {}, "1080p": {}, "1080i": {}, "2160p": {},
	"4k": {}, "uhd": {}, "8bit": {}, "10bit": {}, "hdr": {}, "hdr10": {},
	"dv": {}, "dovi": {}, "sdr": {}, "hdlight": {},
	// source
	"web": {}, "webrip": {}, "webdl": {}, "bluray": {}, "bdrip": {},
	"brrip": {}, "dvdrip": {}, "dvd": {}, "hdtv": {}, "remux": {}, "cam": {},
	"ts": {}, "hdrip": {},
	// codec
	"x264": {}, "x265": {}, "h264": {}, "h265": {}, "hevc": {}, "avc": {},
	"av1": {}, "xvid": {}, "divx": {},
	// audio
	"aac": {}, "ac3": {}, "eac3": {}, "dts": {}, "atmos": {}, "truehd": {},
	"flac": {}, "opus": {}, "mp3": {},
	// platform / release tags
	"nf": {}, "amzn": {}, "dsnp": {}, "atvp": {}, "hmax": {}, "hulu": {},
	"multi": {}, "vff": {}, "vfq": {}, "vostfr": {}, "french": {},
	"proper": {}, "repack": {}, "internal": {}, "limited": {}, "extended": {},
	"unrated": {}, "remastered": {}, "complete": {}, "season": {},
	"trailer": {},
}

// normalize replaces the separators commonly found in release-style folder
// names with spaces and collapses runs of whitespace.
func normalize(name string) string {
	s := strings.NewReplacer(".", " ", "-", " ", "_", " ").Replace(name)
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// tokenize splits a folder name into separator-normalized tokens.
func tokenize(name string) []string {
	norm := normalize(name)
	if norm == "" {
		return nil
	}
	return strings.Split(norm, " ")
}

// parseYearToken returns the year when the token is a plausible 4-digit
// release year.
func parseYearToken(tok string) (int, bool) {
	if !yearTokenPattern.MatchString(tok) {
		return 0, false
	}
	year, err := strconv.Atoi(tok)
	if err != nil || year < minYear || year > maxYear {
		return 0, false
	}
	return year, true
}

// ParseMovie splits a movie folder basename into title and optional year.
// The first token that looks like a 4-digit release year is the boundary:
// everything before it becomes the title. Without a year token the whole
// normalized name is the title.
func ParseMovie(path string) (title string, year int) {
	tokens := tokenize(filepath.Base(path))
	for i, tok := range tokens {
		if y, ok := parseYearToken(tok); ok && i > 0 {
			return strings.Join(tokens[:i], " "), y
		}
	}
	return strings.Join(tokens, " "), 0
}

// ParseTvShow extracts title, season and year from a TV folder path.
//
// Two layouts are recognized. When the basename is exactly "S<digits>" the
// folder is a season directory and the parent supplies the title (layout A).
// Otherwise the basename is treated as a release-style name with an embedded
// season marker, or as a bare title when no marker exists (layout B).
func ParseTvShow(path string) (title string, season int, year int) {
	base := filepath.Base(path)

	if m := seasonDirPattern.FindStringSubmatch(base); m != nil {
		season, _ = strconv.Atoi(m[1])
		title, year = ParseMovie(filepath.Dir(path))
		return title, season, year
	}

	tokens := tokenize(base)
	for i, tok := range tokens {
		m := seasonTokenPattern.FindStringSubmatch(tok)
		if m == nil || i == 0 {
			continue
		}
		season, _ = strconv.Atoi(m[1])
		titleTokens := tokens[:i]
		// A year token before the season marker still splits the title.
		for j, t := range titleTokens {
			if y, ok := parseYearToken(t); ok && j > 0 {
				return strings.Join(titleTokens[:j], " "), season, y
			}
		}
		return strings.Join(titleTokens, " "), season, 0
	}

	return strings.Join(tokens, " "), 0, 0
}

// isReleaseGroupToken reports whether a token looks like a release group
// tag: short, fully uppercase alphanumeric with at least one letter.
func isReleaseGroupToken(tok string) bool {
	if len(tok) < 2 || len(tok) > 8 {
		return false
	}
	hasLetter := false
	for _, r := range tok {
		switch {
		case r >= 'A' && r <= 'Z':
			hasLetter = true
		case r >= '0' && r <= '9', r == '-':
		default:
			return false
		}
	}
	return hasLetter
}

// isJunkToken reports whether a token carries no title information.
func isJunkToken(tok string) bool {
	if len(tok) <= 1 {
		return true
	}
	if _, ok := junkTokens[strings.ToLower(tok)]; ok {
		return true
	}
	if numericPattern.MatchString(tok) {
		return true
	}
	if seasonTokenPattern.MatchString(tok) {
		return true
	}
	if audioCodecPattern.MatchString(tok) {
		return true
	}
	return isReleaseGroupToken(tok)
}

// CleanTitleForSearch strips release junk from a title so it can be used as
// a search query. At most the first five surviving tokens are kept. The
// normalized input is returned unchanged when nothing survives, so the
// result is never empty for a non-empty title.
func CleanTitleForSearch(title string) string {
	tokens := tokenize(title)
	kept := make([]string, 0, maxQueryTokens)
	for _, tok := range tokens {
		if isJunkToken(tok) {
			continue
		}
		kept = append(kept, tok)
		if len(kept) == maxQueryTokens {
			break
		}
	}
	if len(kept) == 0 {
		return normalize(title)
	}
	return strings.Join(kept, " ")
}

// BuildSearchQuery constructs the deterministic trailer search query for a
// candidate folder. The title argument takes precedence over re-parsing the
// path; year and season are included only when positive.
func BuildSearchQuery(contentType ContentType, path, title string, year, season int) string {
	if contentType == ContentTvShow {
		if title == "" {
			title, season, _ = ParseTvShow(path)
		}
		clean := CleanTitleForSearch(title)
		if season > 0 {
			return fmt.Sprintf("%s season %d trailer", clean, season)
		}
		return clean + " trailer"
	}

	if title == "" {
		title, year = ParseMovie(path)
	}
	clean := CleanTitleForSearch(title)
	if year > 0 {
		return fmt.Sprintf("%s %d trailer", clean, year)
	}
	return clean + " trailer"
}
