package core

import (
	"errors"
	"testing"
	"time"
)

func TestValidTaskStatus(t *testing.T) {
	for _, s := range []TaskStatus{
		TaskStatusInbox, TaskStatusAssigned, TaskStatusInProgress,
		TaskStatusReview, TaskStatusDone, TaskStatusBlocked,
	} {
		if !ValidTaskStatus(s) {
			t.Errorf("expected %q to be valid", s)
		}
	}
	for _, s := range []TaskStatus{"", "archived", "INBOX", "pending"} {
		if ValidTaskStatus(s) {
			t.Errorf("expected %q to be invalid", s)
		}
	}
}

func TestValidAgentStatus(t *testing.T) {
	for _, s := range []AgentStatus{AgentStatusIdle, AgentStatusActive, AgentStatusOffline} {
		if !ValidAgentStatus(s) {
			t.Errorf("expected %q to be valid", s)
		}
	}
	// "blocked" is a task status, never an agent status.
	if ValidAgentStatus("blocked") {
		t.Error("expected agent status 'blocked' to be invalid")
	}
}

func TestPriorityRank(t *testing.T) {
	order := []Priority{PriorityUrgent, PriorityHigh, PriorityMedium, PriorityLow}
	for i := 1; i < len(order); i++ {
		if PriorityRank(order[i-1]) >= PriorityRank(order[i]) {
			t.Errorf("expected %q to rank before %q", order[i-1], order[i])
		}
	}
}

func TestTaskPatchValidate(t *testing.T) {
	bad := TaskStatus("shipped")
	patch := TaskPatch{Status: &bad}
	if err := patch.Validate(); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}

	empty := ""
	patch = TaskPatch{Title: &empty}
	if err := patch.Validate(); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for empty title, got %v", err)
	}

	status := TaskStatusDone
	due := time.Now()
	patch = TaskPatch{Status: &status, DueDate: &due}
	if err := patch.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTaskPatchEmpty(t *testing.T) {
	if !(TaskPatch{}).Empty() {
		t.Error("zero patch should be empty")
	}
	title := "x"
	if (TaskPatch{Title: &title}).Empty() {
		t.Error("patch with title should not be empty")
	}
	if (TaskPatch{ClearDueDate: true}).Empty() {
		t.Error("patch clearing due date should not be empty")
	}
}
