// Copyright (c) 2025, fl4pj4ck and the jellytrailers contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package titleparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseMovie(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		wantTitle string
		wantYear  int
	}{
		{
			name:      "title_and_year",
			path:      "/movies/Inception.2010",
			wantTitle: "Inception",
			wantYear:  2010,
		},
		{
			name:      "year_with_trailing_tags",
			path:      "/movies/The.Matrix.1999.1080p.BluRay.x264-GROUP",
			wantTitle: "The Matrix",
			wantYear:  1999,
		},
		{
			name:      "no_year",
			path:      "/movies/Some.Great.Film",
			wantTitle: "Some Great Film",
			wantYear:  0,
		},
		{
			name:      "hyphen_separators",
			path:      "/movies/Blade-Runner-1982",
			wantTitle: "Blade Runner",
			wantYear:  1982,
		},
		{
			name:      "year_out_of_range_kept_in_title",
			path:      "/movies/Cyberpunk.2077",
			wantTitle: "Cyberpunk 2077",
			wantYear:  0,
		},
		{
			name:      "first_year_token_wins",
			path:      "/movies/1941.1979",
			wantTitle: "1941",
			wantYear:  1979,
		},
		{
			name:      "bare_year_title",
			path:      "/movies/1917",
			wantTitle: "1917",
			wantYear:  0,
		},
		{
			name:      "spaces_preserved",
			path:      "/movies/In The Mood For Love 2000",
			wantTitle: "In The Mood For Love",
			wantYear:  2000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			title, year := ParseMovie(tt.path)
			assert.Equal(t, tt.wantTitle, title)
			assert.Equal(t, tt.wantYear, year)
		})
	}
}

func TestParseTvShow(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		wantTitle  string
		wantSeason int
		wantYear   int
	}{
		{
			name:       "season_subfolder",
			path:       "/tv/Breaking.Bad.2008/S02",
			wantTitle:  "Breaking Bad",
			wantSeason: 2,
			wantYear:   2008,
		},
		{
			name:       "season_subfolder_lowercase",
			path:       "/tv/The Wire/s1",
			wantTitle:  "The Wire",
			wantSeason: 1,
			wantYear:   0,
		},
		{
			name:       "flat_release_name",
			path:       "/tv/Baby.Bandito.S01.MULTi.1080p.NF.WEB-DL",
			wantTitle:  "Baby Bandito",
			wantSeason: 1,
			wantYear:   0,
		},
		{
			name:       "flat_release_with_year",
			path:       "/tv/Fargo.2014.S03.720p.HDTV",
			wantTitle:  "Fargo",
			wantSeason: 3,
			wantYear:   2014,
		},
		{
			name:       "flat_season_episode_marker",
			path:       "/tv/Severance.S02E01.2160p.WEB-DL",
			wantTitle:  "Severance",
			wantSeason: 2,
			wantYear:   0,
		},
		{
			name:       "bare_title",
			path:       "/tv/The.Leftovers",
			wantTitle:  "The Leftovers",
			wantSeason: 0,
			wantYear:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			title, season, year := ParseTvShow(tt.path)
			assert.Equal(t, tt.wantTitle, title)
			assert.Equal(t, tt.wantSeason, season)
			assert.Equal(t, tt.wantYear, year)
		})
	}
}

func TestCleanTitleForSearch(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{
			name:  "release_tags_stripped",
			title: "Baby.Bandito.MULTi.1080p.NF.WEB-DL",
			want:  "Baby Bandito",
		},
		{
			name:  "plain_title_untouched",
			title: "The Grand Budapest Hotel",
			want:  "The Grand Budapest Hotel",
		},
		{
			name:  "audio_codec_pattern",
			title: "Dune.Part.Two.DDP5.1.Atmos",
			want:  "Dune Part Two",
		},
		{
			name:  "numeric_and_short_tokens",
			title: "Show.Name.264.x265.A",
			want:  "Show Name",
		},
		{
			name:  "capped_at_five_tokens",
			title: "One Two Three Four Five Six Seven",
			want:  "One Two Three Four Five",
		},
		{
			name:  "all_junk_falls_back_to_normalized",
			title: "1080p.WEB-DL.x264",
			want:  "1080p WEB DL x264",
		},
		{
			name:  "season_marker_stripped",
			title: "Slow.Horses.S04",
			want:  "Slow Horses",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanTitleForSearch(tt.title))
		})
	}
}

func TestBuildSearchQuery(t *testing.T) {
	tests := []struct {
		name        string
		contentType ContentType
		path        string
		title       string
		year        int
		season      int
		want        string
	}{
		{
			name:        "movie_with_year",
			contentType: ContentMovie,
			path:        "/x/Inception.2010",
			title:       "Inception",
			year:        2010,
			want:        "Inception 2010 trailer",
		},
		{
			name:        "movie_without_year",
			contentType: ContentMovie,
			path:        "/x/Some.Film",
			title:       "Some Film",
			want:        "Some Film trailer",
		},
		{
			name:        "tv_with_season",
			contentType: ContentTvShow,
			path:        "/x/Show/S02",
			title:       "Show",
			season:      2,
			want:        "Show season 2 trailer",
		},
		{
			name:        "tv_without_season",
			contentType: ContentTvShow,
			path:        "/x/Show",
			title:       "Show",
			want:        "Show trailer",
		},
		{
			name:        "movie_title_derived_from_path",
			contentType: ContentMovie,
			path:        "/x/Heat.1995.1080p.BluRay",
			want:        "Heat 1995 trailer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildSearchQuery(tt.contentType, tt.path, tt.title, tt.year, tt.season)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildSearchQueryDeterministic(t *testing.T) {
	a := BuildSearchQuery(ContentMovie, "/x/Inception.2010", "", 0, 0)
	b := BuildSearchQuery(ContentMovie, "/x/Inception.2010", "", 0, 0)
	assert.Equal(t, a, b)
}
