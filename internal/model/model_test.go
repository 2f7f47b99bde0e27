package model

import "testing"

func TestExamSnapshotQuestions(t *testing.T) {
	exam := &ExamSnapshot{
		ExamID:          "e42",
		DurationMinutes: 1,
		Questions: []Question{
			{ID: "q1", Type: QuestionTypeTrueFalse},
			{ID: "q2", Type: QuestionTypeShortAnswer},
		},
	}

	ids := exam.QuestionIDs()
	if len(ids) != 2 || ids[0] != "q1" || ids[1] != "q2" {
		t.Fatalf("QuestionIDs = %v", ids)
	}
	if !exam.HasQuestion("q2") || exam.HasQuestion("q3") {
		t.Fatal("HasQuestion mismatch")
	}
}

func TestSessionStatusPendingSubmit(t *testing.T) {
	tests := []struct {
		status SessionStatus
		want   bool
	}{
		{SessionActive, false},
		{SessionRefreshPendingSubmit, true},
		{SessionSubmitting, true},
	}
	for _, tt := range tests {
		if got := tt.status.PendingSubmit(); got != tt.want {
			t.Errorf("%s.PendingSubmit() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestSessionSnapshotBelongsTo(t *testing.T) {
	snap := &SessionSnapshot{UserID: "u7", ExamID: "e42"}
	if !snap.BelongsTo("u7", "e42") {
		t.Fatal("expected snapshot to belong to u7/e42")
	}
	if snap.BelongsTo("u7", "e43") || snap.BelongsTo("u8", "e42") {
		t.Fatal("snapshot matched a different pair")
	}
}
