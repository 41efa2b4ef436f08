package release

import (
	"testing"

	"github.com/Masterminds/semver/v3"

	"github.com/meridian-labs/meridian/internal/task"
)

func TestComputeNextVersion_BumpRules(t *testing.T) {
	tests := []struct {
		name     string
		current  string
		tasks    []*task.Task
		wantNext string
		wantBump BumpType
	}{
		{
			name:     "breaking change bumps major",
			current:  "1.2.3",
			tasks:    []*task.Task{{Title: "feat!: drop v1 api"}, {Title: "feat: new thing"}, {Title: "fix: bug"}},
			wantNext: "2.0.0",
			wantBump: BumpMajor,
		},
		{
			name:     "feature bumps minor",
			current:  "1.2.3",
			tasks:    []*task.Task{{Title: "feat: new thing"}, {Title: "fix: bug"}},
			wantNext: "1.3.0",
			wantBump: BumpMinor,
		},
		{
			name:     "fix bumps patch",
			current:  "1.2.3",
			tasks:    []*task.Task{{Title: "fix: bug"}},
			wantNext: "1.2.4",
			wantBump: BumpPatch,
		},
		{
			name:     "chores still bump patch",
			current:  "1.2.3",
			tasks:    []*task.Task{{Title: "chore: bump deps"}},
			wantNext: "1.2.4",
			wantBump: BumpPatch,
		},
		{
			name:     "explicit change type outranks title",
			current:  "1.2.3",
			tasks:    []*task.Task{{Title: "chore: innocuous looking", ChangeType: task.ChangeBreaking}},
			wantNext: "2.0.0",
			wantBump: BumpMajor,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			current := semver.MustParse(tt.current)
			info := ComputeNextVersion(current, tt.tasks)
			if info.Next != tt.wantNext {
				t.Errorf("Next = %q, want %q", info.Next, tt.wantNext)
			}
			if info.BumpType != tt.wantBump {
				t.Errorf("BumpType = %q, want %q", info.BumpType, tt.wantBump)
			}
		})
	}
}

func TestComputeNextVersion_StrictlyGreater(t *testing.T) {
	current := semver.MustParse("3.7.9")
	taskSets := [][]*task.Task{
		{{Title: "feat!: break"}},
		{{Title: "feat: add"}},
		{{Title: "fix: patch"}},
		{},
	}

	for _, tasks := range taskSets {
		info := ComputeNextVersion(current, tasks)
		next := semver.MustParse(info.Next)
		if !next.GreaterThan(current) {
			t.Errorf("Next %s is not greater than current %s", info.Next, current)
		}
	}
}

func TestComputeNextVersion_Deterministic(t *testing.T) {
	current := semver.MustParse("1.0.0")
	tasks := []*task.Task{{Title: "feat: a"}, {Title: "fix: b"}}

	first := ComputeNextVersion(current, tasks)
	second := ComputeNextVersion(current, tasks)
	if first.Next != second.Next || first.BumpType != second.BumpType {
		t.Errorf("ComputeNextVersion is not deterministic: %+v vs %+v", first, second)
	}
}

func TestComputeNextVersion_Buckets(t *testing.T) {
	info := ComputeNextVersion(semver.MustParse("1.0.0"), []*task.Task{
		{Title: "feat!: break"},
		{Title: "feat: add"},
		{Title: "fix: patch"},
		{Title: "docs: ignore"},
	})
	if len(info.BreakingChanges) != 1 || len(info.Features) != 1 || len(info.Fixes) != 1 {
		t.Errorf("unexpected buckets: breaking=%v features=%v fixes=%v",
			info.BreakingChanges, info.Features, info.Fixes)
	}
}
