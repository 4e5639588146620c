package client

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBoard() *Board {
	due := time.Now().Add(-24 * time.Hour)
	return &Board{Tasks: []Task{
		{ID: "t1", Title: "Fix login flow", Status: TaskStatusInbox, Priority: PriorityHigh},
		{ID: "t2", Title: "Ship billing", Description: "stripe webhooks", Status: TaskStatusAssigned, Priority: PriorityUrgent},
		{ID: "t3", Title: "Refactor sweeper", Status: TaskStatusInProgress, Priority: PriorityMedium, DueDate: &due},
		{ID: "t4", Title: "Review PR 42", Status: TaskStatusReview, Priority: PriorityLow},
		{ID: "t5", Title: "Blocked on infra", Status: TaskStatusBlocked, Priority: PriorityUrgent},
		{ID: "t6", Title: "Old release notes", Status: TaskStatusDone, Priority: PriorityLow, DueDate: &due},
	}}
}

func TestColumnsShareInboxLane(t *testing.T) {
	b := sampleBoard()

	inbox := b.Column(ColumnInbox)
	require.Len(t, inbox, 2)
	assert.Equal(t, "t1", inbox[0].ID)
	assert.Equal(t, "t2", inbox[1].ID)

	byCol := b.ByColumn()
	assert.Len(t, byCol[ColumnInProgress], 1)
	assert.Len(t, byCol[ColumnReview], 1)
	assert.Len(t, byCol[ColumnBlocked], 1)
	assert.Len(t, byCol[ColumnDone], 1)
}

func TestSearchAndPriorityFilter(t *testing.T) {
	b := sampleBoard()

	b.Search = "BILLING"
	inbox := b.Column(ColumnInbox)
	require.Len(t, inbox, 1)
	assert.Equal(t, "t2", inbox[0].ID)

	// Description matches count too.
	b.Search = "stripe"
	assert.Len(t, b.Column(ColumnInbox), 1)

	b.Search = ""
	b.Priority = "urgent"
	assert.Len(t, b.Column(ColumnInbox), 1)
	assert.Len(t, b.Column(ColumnBlocked), 1)
	assert.Empty(t, b.Column(ColumnReview))

	b.Priority = "all"
	assert.Len(t, b.Column(ColumnInbox), 2)
}

func TestStats(t *testing.T) {
	b := sampleBoard()
	s := b.Stats(time.Now())

	assert.Equal(t, 6, s.Total)
	assert.Equal(t, 1, s.Done)
	assert.Equal(t, 1, s.Blocked)
	assert.Equal(t, 2, s.Urgent)
	// t3 is overdue; t6 is past due but done.
	assert.Equal(t, 1, s.Overdue)
}

func TestResolveDrop(t *testing.T) {
	b := sampleBoard()

	status, ok := b.ResolveDrop("t1", DropTarget{Column: ColumnInProgress})
	require.True(t, ok)
	assert.Equal(t, TaskStatusInProgress, status)

	// Dropping onto a card resolves via that card's lane.
	status, ok = b.ResolveDrop("t1", DropTarget{TaskID: "t4"})
	require.True(t, ok)
	assert.Equal(t, TaskStatusReview, status)

	// Same lane is a no-op, including assigned dropped back on inbox.
	_, ok = b.ResolveDrop("t2", DropTarget{Column: ColumnInbox})
	assert.False(t, ok)

	_, ok = b.ResolveDrop("missing", DropTarget{Column: ColumnDone})
	assert.False(t, ok)
	_, ok = b.ResolveDrop("t1", DropTarget{TaskID: "missing"})
	assert.False(t, ok)
}

type fakeUpdater struct {
	calls []TaskUpdate
	fail  error
	reply Task
}

func (f *fakeUpdater) UpdateTask(_ context.Context, id string, upd TaskUpdate) (Task, error) {
	f.calls = append(f.calls, upd)
	if f.fail != nil {
		return Task{}, f.fail
	}
	reply := f.reply
	reply.ID = id
	return reply, nil
}

func TestDragEndIssuesOneUpdate(t *testing.T) {
	b := sampleBoard()
	api := &fakeUpdater{reply: Task{Title: "Fix login flow", Status: TaskStatusDone, Priority: PriorityHigh}}

	err := b.DragEnd(context.Background(), api, "t1", DropTarget{Column: ColumnDone})
	require.NoError(t, err)
	require.Len(t, api.calls, 1)
	require.NotNil(t, api.calls[0].Status)
	assert.Equal(t, TaskStatusDone, *api.calls[0].Status)

	got, ok := b.find("t1")
	require.True(t, ok)
	assert.Equal(t, TaskStatusDone, got.Status)
}

func TestDragEndNoChangeNoCall(t *testing.T) {
	b := sampleBoard()
	api := &fakeUpdater{}

	err := b.DragEnd(context.Background(), api, "t2", DropTarget{Column: ColumnInbox})
	require.NoError(t, err)
	assert.Empty(t, api.calls)

	got, _ := b.find("t2")
	assert.Equal(t, TaskStatusAssigned, got.Status)
}

func TestDragEndRollsBackOnError(t *testing.T) {
	b := sampleBoard()
	api := &fakeUpdater{fail: assert.AnError}

	err := b.DragEnd(context.Background(), api, "t1", DropTarget{Column: ColumnDone})
	require.Error(t, err)

	got, _ := b.find("t1")
	assert.Equal(t, TaskStatusInbox, got.Status)
}
