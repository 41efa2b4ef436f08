package branchmodel

import (
	"slices"

	"github.com/gobwas/glob"

	"github.com/meridian-labs/meridian/internal/config"
)

// BranchKind is the classification of a single branch name.
type BranchKind int

const (
	KindOther BranchKind = iota
	KindMain
	KindDev
	KindRelease
	KindFeature
	KindHotfix
	KindLegacy
)

// String returns a human-readable name for a branch kind.
func (k BranchKind) String() string {
	switch k {
	case KindMain:
		return "main"
	case KindDev:
		return "dev"
	case KindRelease:
		return "release"
	case KindFeature:
		return "feature"
	case KindHotfix:
		return "hotfix"
	case KindLegacy:
		return "legacy"
	default:
		return "other"
	}
}

// patternEntry pairs a compiled glob with the kind it classifies.
type patternEntry struct {
	pattern glob.Glob
	kind    BranchKind
}

// PatternTable classifies branch names against the convention patterns in
// priority order: main and dev exact names first, then the hierarchical
// prefixes, then the legacy worktree prefixes. The ordering is what makes
// "hierarchical markers outrank legacy markers" hold everywhere
// classification happens.
type PatternTable struct {
	mainCandidates []string
	devBranch      string
	entries        []patternEntry
}

// NewPatternTable builds a classification table from the branch
// configuration.
func NewPatternTable(cfg config.BranchConfig) *PatternTable {
	entries := []patternEntry{
		{glob.MustCompile("release/*"), KindRelease},
		{glob.MustCompile("feature/*"), KindFeature},
		{glob.MustCompile("hotfix/*"), KindHotfix},
	}
	for _, prefix := range cfg.LegacyPrefixes {
		entries = append(entries, patternEntry{glob.MustCompile(prefix + "*"), KindLegacy})
	}
	return &PatternTable{
		mainCandidates: cfg.MainCandidates,
		devBranch:      cfg.DevBranch,
		entries:        entries,
	}
}

// Classify returns the kind of a single branch name.
func (t *PatternTable) Classify(name string) BranchKind {
	if slices.Contains(t.mainCandidates, name) {
		return KindMain
	}
	if name == t.devBranch {
		return KindDev
	}
	for _, entry := range t.entries {
		if entry.pattern.Match(name) {
			return entry.kind
		}
	}
	return KindOther
}

// DevBranch returns the configured integration branch name.
func (t *PatternTable) DevBranch() string {
	return t.devBranch
}

// MainBranch returns the first configured main candidate present in the
// branch list, or "" when none is.
func (t *PatternTable) MainBranch(branches []string) string {
	for _, candidate := range t.mainCandidates {
		if slices.Contains(branches, candidate) {
			return candidate
		}
	}
	return ""
}
