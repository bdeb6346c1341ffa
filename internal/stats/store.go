// Copyright (c) 2025, fl4pj4ck and the jellytrailers contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package stats persists run statistics for the trailer pipeline in a
// single JSON file. All file access goes through one store-wide lock so a
// scheduled run and interactive API calls cannot interleave load-mutate-save
// cycles.
package stats

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// historyDays is how much run history is retained on every write.
const historyDays = 365

const dateLayout = "2006-01-02"

// RunRecord is one calendar day's download outcome.
type RunRecord struct {
	Date       string `json:"date"`
	Downloaded int    `json:"downloaded"`
	Failed     int    `json:"failed"`
}

// Data is the persisted statistics document. Field names are camelCase on
// disk; decoding is case-insensitive.
type Data struct {
	TotalDownloaded    int         `json:"totalDownloaded"`
	TotalFailed        int         `json:"totalFailed"`
	TotalFolders       int         `json:"totalFolders"`
	FoldersWithTrailer int         `json:"foldersWithTrailer"`
	Runs               []RunRecord `json:"runs"`
}

// Summary is the aggregate view served to callers. TotalDownloaded is a
// display value: it is floored at FoldersWithTrailer to mask drift after a
// stats reset, and can therefore overstate the recorded run history.
type Summary struct {
	TotalDownloaded    int `json:"totalDownloaded"`
	TotalFailed        int `json:"totalFailed"`
	TotalFolders       int `json:"totalFolders"`
	FoldersWithTrailer int `json:"foldersWithTrailer"`
	Last7Days          int `json:"last7Days"`
	Last30Days         int `json:"last30Days"`
	Last365Days        int `json:"last365Days"`
}

// Store reads and writes the stats file under a process-wide lock.
type Store struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
	log  zerolog.Logger
}

// NewStore creates a store backed by the given file path. The file does not
// need to exist; a missing or corrupt file reads as empty data.
func NewStore(path string) *Store {
	return &Store{
		path: path,
		now:  time.Now,
		log:  log.With().Str("component", "stats").Logger(),
	}
}

// load reads the stats file. Missing or unparsable data yields empty stats.
// Callers must hold the lock.
func (s *Store) load() Data {
	var data Data
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.log.Warn().Err(err).Str("path", s.path).Msg("Failed to read stats file, starting empty")
		}
		return data
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		s.log.Warn().Err(err).Str("path", s.path).Msg("Stats file is corrupt, starting empty")
		return Data{}
	}
	return data
}

// save trims history and writes the stats file. Persistence failures are
// logged and swallowed; a stats write must never abort an acquisition run.
// Callers must hold the lock.
func (s *Store) save(data Data) {
	s.trim(&data)

	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to encode stats")
		return
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			s.log.Warn().Err(err).Str("dir", dir).Msg("Failed to create stats directory")
			return
		}
	}
	if err := os.WriteFile(s.path, raw, 0o644); err != nil {
		s.log.Warn().Err(err).Str("path", s.path).Msg("Failed to write stats file")
	}
}

// trim drops run records older than the retained history window and keeps
// the list ordered by date.
func (s *Store) trim(data *Data) {
	cutoff := s.today().AddDate(0, 0, -historyDays)
	kept := data.Runs[:0]
	for _, run := range data.Runs {
		day, err := time.Parse(dateLayout, run.Date)
		if err != nil {
			continue
		}
		if !day.Before(cutoff) {
			kept = append(kept, run)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Date < kept[j].Date })
	data.Runs = kept
}

// today returns the current UTC calendar day. Runs spanning midnight UTC
// attribute their later progress to the new day.
func (s *Store) today() time.Time {
	return s.now().UTC().Truncate(24 * time.Hour)
}

// RecordFolderCounts stores the library-wide folder totals observed at the
// start of a run.
func (s *Store) RecordFolderCounts(total, withTrailer int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.load()
	data.TotalFolders = total
	data.FoldersWithTrailer = withTrailer
	s.save(data)
}

// RecordProgress upserts today's run record with the run's counts so far.
// The previous value of today's record is removed from the totals before the
// new one is added, so repeated calls within a day never double-count.
func (s *Store) RecordProgress(downloaded, failed int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.load()
	s.upsertToday(&data, downloaded, failed)
	s.save(data)
}

// RecordRun finalizes today's run record. Identical semantics to
// RecordProgress; kept separate so call sites read as end-of-run.
func (s *Store) RecordRun(downloaded, failed int) {
	s.RecordProgress(downloaded, failed)
}

func (s *Store) upsertToday(data *Data, downloaded, failed int) {
	today := s.today().Format(dateLayout)

	if n := len(data.Runs); n > 0 && data.Runs[n-1].Date == today {
		prev := data.Runs[n-1]
		data.TotalDownloaded -= prev.Downloaded
		data.TotalFailed -= prev.Failed
		data.Runs[n-1] = RunRecord{Date: today, Downloaded: downloaded, Failed: failed}
	} else {
		data.Runs = append(data.Runs, RunRecord{Date: today, Downloaded: downloaded, Failed: failed})
	}

	data.TotalDownloaded += downloaded
	data.TotalFailed += failed
}

// Reset zeroes all counters and clears the run history.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.save(Data{})
}

// GetStats returns the aggregate view with trailing-window sums.
func (s *Store) GetStats() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.load()
	today := s.today()

	summary := Summary{
		TotalDownloaded:    data.TotalDownloaded,
		TotalFailed:        data.TotalFailed,
		TotalFolders:       data.TotalFolders,
		FoldersWithTrailer: data.FoldersWithTrailer,
	}

	for _, run := range data.Runs {
		day, err := time.Parse(dateLayout, run.Date)
		if err != nil {
			continue
		}
		age := int(today.Sub(day).Hours() / 24)
		if age < 0 || age >= historyDays {
			continue
		}
		summary.Last365Days += run.Downloaded
		if age < 30 {
			summary.Last30Days += run.Downloaded
		}
		if age < 7 {
			summary.Last7Days += run.Downloaded
		}
	}

	// Display heuristic: folders that already have a trailer imply at least
	// that many historical downloads, even right after a reset.
	if summary.FoldersWithTrailer > summary.TotalDownloaded {
		summary.TotalDownloaded = summary.FoldersWithTrailer
	}

	return summary
}
