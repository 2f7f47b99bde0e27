package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/stemsi/solvex/internal/model"
	"github.com/stemsi/solvex/internal/response"
)

var (
	ErrExamNotFound = errors.New("exam not found")
	ErrExamNotOpen  = errors.New("exam is not open")
	ErrNoQuestions  = errors.New("exam has no questions")
)

// ExamRepository fetches exam papers from the exam service.
type ExamRepository struct {
	client *Client
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(client *Client) *ExamRepository {
	return &ExamRepository{client: client}
}

// FetchSnapshot loads the paper for examID as seen by the student holding token.
// The snapshot is returned as received; shape validation happens on mount.
func (r *ExamRepository) FetchSnapshot(ctx context.Context, examID, token string) (*model.ExamSnapshot, error) {
	exam := &model.ExamSnapshot{}
	path := "/student/exams/" + url.PathEscape(examID) + "/paper"
	if err := r.client.do(ctx, http.MethodGet, path, token, nil, exam); err != nil {
		return nil, fmt.Errorf("fetch exam %s: %w", examID, mapExamError(err))
	}
	if exam.ExamID == "" {
		exam.ExamID = examID
	}
	return exam, nil
}

func mapExamError(err error) error {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.Code {
	case response.ErrNotFound:
		return fmt.Errorf("%w: %w", ErrExamNotFound, err)
	case response.ErrExamNotAvailable, response.ErrExamNotPublished:
		return fmt.Errorf("%w: %w", ErrExamNotOpen, err)
	case response.ErrNoQuestions:
		return fmt.Errorf("%w: %w", ErrNoQuestions, err)
	}
	if apiErr.Status == http.StatusNotFound {
		return fmt.Errorf("%w: %w", ErrExamNotFound, err)
	}
	return err
}
