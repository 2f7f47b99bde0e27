package repository

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/stemsi/solvex/internal/model"
)

// SubmissionRepository posts finished attempts to the exam service for grading.
type SubmissionRepository struct {
	client *Client
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(client *Client) *SubmissionRepository {
	return &SubmissionRepository{client: client}
}

// Submit sends the answer map for grading on behalf of the token holder.
func (r *SubmissionRepository) Submit(ctx context.Context, token, examID string, answers map[string]string) (*model.SubmitResult, error) {
	if answers == nil {
		answers = map[string]string{}
	}
	result := &model.SubmitResult{}
	path := "/student/exams/" + url.PathEscape(examID) + "/submit"
	if err := r.client.do(ctx, http.MethodPost, path, token, model.SubmitRequest{Answers: answers}, result); err != nil {
		return nil, fmt.Errorf("submit exam %s: %w", examID, err)
	}
	return result, nil
}
