package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-attempt/internal/model"
)

// AttemptLister lists the attempts of an exam.
type AttemptLister interface {
	ListByExam(ctx context.Context, examID uuid.UUID) ([]model.AttemptSummary, error)
}

// MonitorService builds the live attempt view teachers watch.
type MonitorService struct {
	attemptRepo AttemptLister
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(attemptRepo AttemptLister) *MonitorService {
	return &MonitorService{attemptRepo: attemptRepo}
}

// MonitorSnapshot is the initial state sent to a monitor client.
type MonitorSnapshot struct {
	Type       string                 `json:"type"`
	ExamID     string                 `json:"exam_id"`
	InProgress int                    `json:"in_progress"`
	Completed  int                    `json:"completed"`
	Attempts   []model.AttemptSummary `json:"attempts"`
}

// Snapshot returns every attempt of the exam with status totals.
func (s *MonitorService) Snapshot(ctx context.Context, examID uuid.UUID) (*MonitorSnapshot, error) {
	attempts, err := s.attemptRepo.ListByExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	snap := &MonitorSnapshot{
		Type:     "snapshot",
		ExamID:   examID.String(),
		Attempts: attempts,
	}
	for _, a := range attempts {
		if a.Status == model.AttemptStatusCompleted {
			snap.Completed++
		} else {
			snap.InProgress++
		}
	}
	return snap, nil
}
