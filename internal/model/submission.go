package model

// SubmitResult is what the exam service returns for a graded submission.
type SubmitResult struct {
	AchievedPoints float64 `json:"achieved_points"`
	PossiblePoints float64 `json:"possible_points"`
}

// SubmitRequest is the body posted to the exam service.
type SubmitRequest struct {
	Answers map[string]string `json:"answers"`
}
