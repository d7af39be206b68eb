package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/eastress/ea-stress-lab/domain"
)

func TestMemStoreSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	state := domain.NewWorkflowState("wf-1", "EA.mq4", "EURUSD", "H1", "handle", time.Now())
	state.Status = domain.StatusRunning
	state = state.WithStageResult(domain.StageResult{StageName: domain.StageLoadEA, Success: true})

	if err := s.Save(ctx, state); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := s.Load(ctx, "wf-1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Status != domain.StatusRunning {
		t.Fatalf("expected status running, got %v", loaded.Status)
	}
	if !loaded.HasStage(domain.StageLoadEA) {
		t.Fatal("expected load-ea stage result to survive round-trip")
	}
}

func TestMemStoreLoadUnknownReturnsNotFound(t *testing.T) {
	s := NewMemStore()
	_, err := s.Load(context.Background(), "does-not-exist")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemStoreSaveIsolatesCallerMutation(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	state := domain.NewWorkflowState("wf-2", "EA.mq4", "EURUSD", "H1", "handle", time.Now())
	if err := s.Save(ctx, state); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	state.Status = domain.StatusFailed // mutate caller's copy after saving

	loaded, err := s.Load(ctx, "wf-2")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Status != domain.StatusPending {
		t.Fatalf("expected persisted copy to retain original status, got %v", loaded.Status)
	}
}

func TestMemStoreList(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	_ = s.Save(ctx, domain.NewWorkflowState("wf-a", "EA.mq4", "EURUSD", "H1", "h", time.Now()))
	_ = s.Save(ctx, domain.NewWorkflowState("wf-b", "EA.mq4", "GBPUSD", "H1", "h", time.Now()))

	ids, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 workflow ids, got %v", ids)
	}
}
