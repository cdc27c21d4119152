package usecases

import (
	"context"
	"fmt"

	"kyc-wallet.backend/internal/domain/entities"
	domainerrors "kyc-wallet.backend/internal/domain/errors"
)

// CaptureSequence is an ordered set of stages sharing one camera lease,
// e.g. document front then back.
type CaptureSequence struct {
	stages []*CaptureStage
}

// NewCaptureSequence creates a sequence over stages in capture order
func NewCaptureSequence(stages ...*CaptureStage) *CaptureSequence {
	return &CaptureSequence{stages: stages}
}

// Stages returns the stages in order
func (q *CaptureSequence) Stages() []*CaptureStage {
	out := make([]*CaptureStage, len(q.stages))
	copy(out, q.stages)
	return out
}

// Stage returns the stage filling slot
func (q *CaptureSequence) Stage(slot entities.CaptureSlot) (*CaptureStage, bool) {
	_, stage := q.find(slot)
	return stage, stage != nil
}

func (q *CaptureSequence) find(slot entities.CaptureSlot) (int, *CaptureStage) {
	for i, stage := range q.stages {
		if stage.Slot() == slot {
			return i, stage
		}
	}
	return -1, nil
}

// Commit commits the stage for slot and passes its lease to the following
// stage when that stage captures with the same facing; otherwise the lease
// is released.
func (q *CaptureSequence) Commit(ctx context.Context, slot entities.CaptureSlot) (*entities.Artifact, error) {
	i, stage := q.find(slot)
	if stage == nil {
		return nil, fmt.Errorf("slot %q not in sequence: %w", slot, domainerrors.ErrInvalidInput)
	}

	artifact, h, err := stage.commit(ctx)
	if err != nil {
		return nil, err
	}
	if h != nil {
		if i+1 >= len(q.stages) || !q.stages[i+1].adopt(h) {
			h.Release()
		}
	}
	return artifact, nil
}

// Cancel cancels every stage in the sequence.
func (q *CaptureSequence) Cancel() {
	for _, stage := range q.stages {
		stage.Cancel()
	}
}

func (q *CaptureSequence) contains(slot entities.CaptureSlot) bool {
	_, stage := q.find(slot)
	return stage != nil
}
