package server

import (
	"context"
	"encoding/json"

	"github.com/meridian-labs/meridian/internal/branchmodel"
	"github.com/meridian-labs/meridian/internal/errors"
	"github.com/meridian-labs/meridian/internal/event"
	"github.com/meridian-labs/meridian/internal/merge"
)

// commandTable maps command names to handlers. The whole command surface
// lives here so it can be audited in one place.
func (s *Server) commandTable() map[string]handler {
	return map[string]handler{
		"branchModel.detect":         s.handleDetect,
		"branchModel.status":         s.handleModelStatus,
		"branchModel.migratePreview": s.handleMigratePreview,
		"branchModel.migrate":        s.handleMigrate,
		"branchModel.validate":       s.handleValidate,
		"branchModel.createFeature":  s.handleCreateFeature,
		"branchModel.createRelease":  s.handleCreateReleaseBranch,
		"branchModel.createHotfix":   s.handleCreateHotfix,

		"workspace.getStatus":    s.handleMergeStatus,
		"workspace.getDiff":      s.handleGetDiff,
		"workspace.mergePreview": s.handleMergePreview,
		"workspace.merge":        s.handleMerge,
		"workspace.discard":      s.handleDiscard,
		"workspace.ensureDev":    s.handleEnsureDev,

		"release.list":        s.handleReleaseList,
		"release.create":      s.handleReleaseCreate,
		"release.promote":     s.handleReleasePromote,
		"release.abandon":     s.handleReleaseAbandon,
		"release.nextVersion": s.handleNextVersion,
		"release.changelog":   s.handleChangelog,

		"project.add":    s.handleProjectAdd,
		"project.list":   s.handleProjectList,
		"project.remove": s.handleProjectRemove,
	}
}

// -----------------------------------------------------------------------------
// branchModel.*
// -----------------------------------------------------------------------------

func (s *Server) handleDetect(ctx context.Context, payload json.RawMessage) (any, error) {
	var p projectPayload
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	sc, err := s.scopeFor(ctx, p.ProjectID)
	if err != nil {
		return nil, err
	}
	return sc.detector.Detect(ctx)
}

func (s *Server) handleModelStatus(ctx context.Context, payload json.RawMessage) (any, error) {
	var p projectPayload
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	sc, err := s.scopeFor(ctx, p.ProjectID)
	if err != nil {
		return nil, err
	}
	return sc.detector.Status(ctx)
}

func (s *Server) handleMigratePreview(ctx context.Context, payload json.RawMessage) (any, error) {
	var p projectPayload
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	sc, err := s.scopeFor(ctx, p.ProjectID)
	if err != nil {
		return nil, err
	}
	return sc.migrator.Preview(ctx)
}

func (s *Server) handleMigrate(ctx context.Context, payload json.RawMessage) (any, error) {
	var p projectPayload
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	sc, err := s.scopeFor(ctx, p.ProjectID)
	if err != nil {
		return nil, err
	}

	unlock := s.lockRepo(p.ProjectID, "branchModel.migrate")
	defer unlock()

	before, err := sc.detector.Detect(ctx)
	if err != nil {
		return nil, err
	}

	result, err := sc.migrator.Migrate(ctx)
	if err != nil {
		return nil, err
	}

	if len(result.BranchesCreated) > 0 || len(result.BranchesRenamed) > 0 {
		s.bus.Publish(event.NewModelMigratedEvent(
			p.ProjectID, string(before.Model),
			len(result.BranchesRenamed), len(result.Warnings)))
	}
	return result, nil
}

func (s *Server) handleValidate(ctx context.Context, payload json.RawMessage) (any, error) {
	var p validatePayload
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	// Validation is pure, but the project must still resolve so a stale
	// projectId fails loudly instead of validating against nothing.
	if _, err := s.scopeFor(ctx, p.ProjectID); err != nil {
		return nil, err
	}
	return branchmodel.ValidateBranchName(p.BranchName), nil
}

func (s *Server) handleCreateFeature(ctx context.Context, payload json.RawMessage) (any, error) {
	var p createFeaturePayload
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	sc, err := s.scopeFor(ctx, p.ProjectID)
	if err != nil {
		return nil, err
	}

	unlock := s.lockRepo(p.ProjectID, "branchModel.createFeature")
	defer unlock()

	branch, err := sc.branches.CreateFeatureBranch(ctx, p.TaskID, p.BaseBranch)
	if err != nil {
		return nil, err
	}

	base := p.BaseBranch
	if base == "" {
		base = s.cfg.Branch.DevBranch
	}
	s.bus.Publish(event.NewBranchCreatedEvent(p.ProjectID, branch, base))
	return branchNameResult{BranchName: branch}, nil
}

func (s *Server) handleCreateReleaseBranch(ctx context.Context, payload json.RawMessage) (any, error) {
	var p createReleasePayload
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	sc, err := s.scopeFor(ctx, p.ProjectID)
	if err != nil {
		return nil, err
	}

	unlock := s.lockRepo(p.ProjectID, "branchModel.createRelease")
	defer unlock()

	branch, err := sc.branches.CreateReleaseBranch(ctx, p.Version, p.BaseBranch)
	if err != nil {
		return nil, err
	}

	base := p.BaseBranch
	if base == "" {
		base = s.cfg.Branch.DevBranch
	}
	s.bus.Publish(event.NewBranchCreatedEvent(p.ProjectID, branch, base))
	return branchNameResult{BranchName: branch}, nil
}

func (s *Server) handleCreateHotfix(ctx context.Context, payload json.RawMessage) (any, error) {
	var p createHotfixPayload
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	sc, err := s.scopeFor(ctx, p.ProjectID)
	if err != nil {
		return nil, err
	}

	unlock := s.lockRepo(p.ProjectID, "branchModel.createHotfix")
	defer unlock()

	branch, err := sc.branches.CreateHotfixBranch(ctx, p.Name, p.Tag)
	if err != nil {
		return nil, err
	}

	s.bus.Publish(event.NewBranchCreatedEvent(p.ProjectID, branch, p.Tag))
	return branchNameResult{BranchName: branch}, nil
}

// -----------------------------------------------------------------------------
// workspace.*
// -----------------------------------------------------------------------------

func (s *Server) handleMergeStatus(ctx context.Context, payload json.RawMessage) (any, error) {
	var p taskPayload
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	sc, err := s.scopeFor(ctx, p.ProjectID)
	if err != nil {
		return nil, err
	}
	return sc.merges.Status(ctx, p.TaskID)
}

func (s *Server) handleGetDiff(ctx context.Context, payload json.RawMessage) (any, error) {
	var p taskPayload
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	sc, err := s.scopeFor(ctx, p.ProjectID)
	if err != nil {
		return nil, err
	}

	branch := merge.BranchForTask(p.TaskID)
	if !sc.repo.BranchExists(branch) {
		return nil, errors.NewMergeError("diff", errors.ErrBranchNotFound).
			WithTaskID(p.TaskID).
			WithSource(branch)
	}

	dev := s.cfg.Branch.DevBranch
	diff, err := sc.repo.DiffUnified(dev, branch)
	if err != nil {
		return nil, err
	}
	return diffResult{
		TaskID:       p.TaskID,
		SourceBranch: branch,
		TargetBranch: dev,
		Diff:         diff,
	}, nil
}

func (s *Server) handleMergePreview(ctx context.Context, payload json.RawMessage) (any, error) {
	var p taskPayload
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	sc, err := s.scopeFor(ctx, p.ProjectID)
	if err != nil {
		return nil, err
	}
	return sc.merges.Preview(ctx, p.TaskID)
}

func (s *Server) handleMerge(ctx context.Context, payload json.RawMessage) (any, error) {
	var p mergePayload
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	sc, err := s.scopeFor(ctx, p.ProjectID)
	if err != nil {
		return nil, err
	}

	unlock := s.lockRepo(p.ProjectID, "workspace.merge")
	defer unlock()

	result, err := sc.merges.Merge(ctx, p.TaskID, merge.Options{NoCommit: p.NoCommit})
	if err != nil {
		return nil, err
	}

	s.bus.Publish(event.NewMergeCompletedEvent(
		p.ProjectID, result.TaskID, result.SourceBranch, result.TargetBranch,
		result.CommitsMerged, result.Staged))
	return result, nil
}

func (s *Server) handleDiscard(ctx context.Context, payload json.RawMessage) (any, error) {
	var p discardPayload
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	if !p.Confirm {
		return nil, errors.NewValidationError("discard requires confirm").WithField("confirm")
	}
	sc, err := s.scopeFor(ctx, p.ProjectID)
	if err != nil {
		return nil, err
	}

	unlock := s.lockRepo(p.ProjectID, "workspace.discard")
	defer unlock()

	branch := merge.BranchForTask(p.TaskID)
	current, err := sc.repo.CurrentBranch()
	if err != nil {
		return nil, err
	}
	if current != branch {
		return nil, errors.NewValidationError("feature branch is not checked out").
			WithField("taskId").
			WithValue(p.TaskID)
	}

	if err := sc.repo.ResetHard(); err != nil {
		return nil, err
	}
	return discardResult{Discarded: true}, nil
}

func (s *Server) handleEnsureDev(ctx context.Context, payload json.RawMessage) (any, error) {
	var p ensureDevPayload
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	sc, err := s.scopeFor(ctx, p.ProjectID)
	if err != nil {
		return nil, err
	}

	unlock := s.lockRepo(p.ProjectID, "workspace.ensureDev")
	defer unlock()

	dev := s.cfg.Branch.DevBranch
	existed := sc.repo.BranchExists(dev)

	if _, err := sc.merges.EnsureDevBranch(ctx, p.BaseBranch); err != nil {
		return nil, err
	}

	if !existed {
		base := p.BaseBranch
		if base == "" {
			base = s.cfg.Branch.MainCandidates[0]
		}
		s.bus.Publish(event.NewBranchCreatedEvent(p.ProjectID, dev, base))
	}
	return ensureDevResult{DevBranch: dev, Created: !existed}, nil
}

// -----------------------------------------------------------------------------
// release.*
// -----------------------------------------------------------------------------

func (s *Server) handleReleaseList(ctx context.Context, payload json.RawMessage) (any, error) {
	var p projectPayload
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	sc, err := s.scopeFor(ctx, p.ProjectID)
	if err != nil {
		return nil, err
	}
	return sc.releases.List(ctx, p.ProjectID)
}

func (s *Server) handleReleaseCreate(ctx context.Context, payload json.RawMessage) (any, error) {
	var p releaseCreatePayload
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	sc, err := s.scopeFor(ctx, p.ProjectID)
	if err != nil {
		return nil, err
	}

	unlock := s.lockRepo(p.ProjectID, "release.create")
	defer unlock()

	rel, err := sc.releases.Create(ctx, p.ProjectID, p.Version, p.ReleaseNotes, p.TaskIDs)
	if err != nil {
		return nil, err
	}

	s.bus.Publish(event.NewReleaseCreatedEvent(p.ProjectID, rel.Version, rel.Branch))
	return rel, nil
}

func (s *Server) handleReleasePromote(ctx context.Context, payload json.RawMessage) (any, error) {
	var p releaseVersionPayload
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	sc, err := s.scopeFor(ctx, p.ProjectID)
	if err != nil {
		return nil, err
	}

	unlock := s.lockRepo(p.ProjectID, "release.promote")
	defer unlock()

	result, err := sc.releases.Promote(ctx, p.ProjectID, p.Version)
	if err != nil {
		return nil, err
	}

	s.bus.Publish(event.NewReleasePromotedEvent(p.ProjectID, result.Version, result.Tag, result.Warnings))
	return result, nil
}

func (s *Server) handleReleaseAbandon(ctx context.Context, payload json.RawMessage) (any, error) {
	var p releaseVersionPayload
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	sc, err := s.scopeFor(ctx, p.ProjectID)
	if err != nil {
		return nil, err
	}

	unlock := s.lockRepo(p.ProjectID, "release.abandon")
	defer unlock()

	rel, err := sc.releases.Abandon(ctx, p.ProjectID, p.Version)
	if err != nil {
		return nil, err
	}

	s.bus.Publish(event.NewReleaseAbandonedEvent(p.ProjectID, rel.Version, false))
	return rel, nil
}

func (s *Server) handleNextVersion(ctx context.Context, payload json.RawMessage) (any, error) {
	var p nextVersionPayload
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	sc, err := s.scopeFor(ctx, p.ProjectID)
	if err != nil {
		return nil, err
	}
	return sc.releases.NextVersion(ctx, p.ProjectID, p.DoneTaskIDs)
}

func (s *Server) handleChangelog(ctx context.Context, payload json.RawMessage) (any, error) {
	var p changelogPayload
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	sc, err := s.scopeFor(ctx, p.ProjectID)
	if err != nil {
		return nil, err
	}
	changelog, err := sc.releases.GenerateChangelog(ctx, p.ProjectID, p.Version, p.TaskIDs)
	if err != nil {
		return nil, err
	}
	return map[string]string{"changelog": changelog}, nil
}

// -----------------------------------------------------------------------------
// project.*
// -----------------------------------------------------------------------------

func (s *Server) handleProjectAdd(ctx context.Context, payload json.RawMessage) (any, error) {
	var p projectAddPayload
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	added, err := s.registry.Add(ctx, p.Path, p.Name)
	if err != nil {
		return nil, err
	}
	s.bus.Publish(event.NewProjectAddedEvent(added.ID, added.Path))
	return added, nil
}

func (s *Server) handleProjectList(ctx context.Context, _ json.RawMessage) (any, error) {
	return s.registry.List(ctx)
}

func (s *Server) handleProjectRemove(ctx context.Context, payload json.RawMessage) (any, error) {
	var p projectPayload
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	if err := s.registry.Remove(ctx, p.ProjectID); err != nil {
		return nil, err
	}
	s.bus.Publish(event.NewProjectRemovedEvent(p.ProjectID))
	return map[string]bool{"removed": true}, nil
}
