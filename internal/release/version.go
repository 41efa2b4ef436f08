package release

import (
	"github.com/Masterminds/semver/v3"

	"github.com/meridian-labs/meridian/internal/task"
)

// ComputeNextVersion applies semver bump rules to a set of done tasks:
// any breaking change bumps major, else any feature bumps minor, else
// patch. Deterministic for the same (current, tasks) input.
func ComputeNextVersion(current *semver.Version, tasks []*task.Task) *VersionInfo {
	info := &VersionInfo{
		Current:         current.String(),
		BreakingChanges: []string{},
		Features:        []string{},
		Fixes:           []string{},
	}

	for _, t := range tasks {
		switch t.Classify() {
		case task.ChangeBreaking:
			info.BreakingChanges = append(info.BreakingChanges, t.Title)
		case task.ChangeFeature:
			info.Features = append(info.Features, t.Title)
		case task.ChangeFix:
			info.Fixes = append(info.Fixes, t.Title)
		}
	}

	var next semver.Version
	switch {
	case len(info.BreakingChanges) > 0:
		info.BumpType = BumpMajor
		next = current.IncMajor()
	case len(info.Features) > 0:
		info.BumpType = BumpMinor
		next = current.IncMinor()
	default:
		info.BumpType = BumpPatch
		next = current.IncPatch()
	}
	info.Next = next.String()

	return info
}
