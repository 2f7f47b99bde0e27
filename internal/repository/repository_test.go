package repository

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/solvex/internal/model"
	"github.com/stemsi/solvex/internal/response"
)

// fakeExamService mimics the exam service's student routes.
func fakeExamService(t *testing.T, handlers map[string]gin.HandlerFunc) *Client {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	for route, h := range handlers {
		method, path, _ := strings.Cut(route, " ")
		r.Handle(method, path, h)
	}
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/api/v1", 2*time.Second)
}

func TestFetchSnapshot(t *testing.T) {
	var gotAuth string
	client := fakeExamService(t, map[string]gin.HandlerFunc{
		"GET /api/v1/student/exams/:id/paper": func(c *gin.Context) {
			gotAuth = c.GetHeader("Authorization")
			response.Success(c, http.StatusOK, gin.H{
				"exam_id":          c.Param("id"),
				"title":            "Algebra",
				"duration_minutes": 45,
				"questions": []gin.H{
					{"id": "q1", "question_type": "MULTIPLE_CHOICE", "question_text": "2+2", "options": []string{"3", "4"}, "points": 5},
				},
			})
		},
	})

	exam, err := NewExamRepository(client).FetchSnapshot(context.Background(), "e42", "tok")
	if err != nil {
		t.Fatalf("FetchSnapshot: %v", err)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if exam.ExamID != "e42" || exam.Title != "Algebra" || exam.DurationMinutes != 45 {
		t.Errorf("exam = %+v", exam)
	}
	if len(exam.Questions) != 1 || exam.Questions[0].Prompt != "2+2" || exam.Questions[0].Points != 5 {
		t.Errorf("questions = %+v", exam.Questions)
	}
}

func TestFetchSnapshotErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		code   response.ErrCode
		want   error
	}{
		{"not found", http.StatusNotFound, response.ErrNotFound, ErrExamNotFound},
		{"not available", http.StatusForbidden, response.ErrExamNotAvailable, ErrExamNotOpen},
		{"not published", http.StatusForbidden, response.ErrExamNotPublished, ErrExamNotOpen},
		{"no questions", http.StatusUnprocessableEntity, response.ErrNoQuestions, ErrNoQuestions},
		{"unauthorized", http.StatusUnauthorized, response.ErrTokenInvalid, ErrUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := fakeExamService(t, map[string]gin.HandlerFunc{
				"GET /api/v1/student/exams/:id/paper": func(c *gin.Context) {
					response.Fail(c, tt.status, tt.code)
				},
			})
			_, err := NewExamRepository(client).FetchSnapshot(context.Background(), "e1", "tok")
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			var apiErr *APIError
			if !errors.As(err, &apiErr) || apiErr.Code != tt.code {
				t.Errorf("api error = %+v", apiErr)
			}
		})
	}
}

func TestFetchSnapshotUpstreamDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	}))

	_, err := NewExamRepository(NewClient(srv.URL, time.Second)).FetchSnapshot(context.Background(), "e1", "tok")
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("err = %v, want ErrUpstream", err)
	}

	srv.Close()
	_, err = NewExamRepository(NewClient(srv.URL, time.Second)).FetchSnapshot(context.Background(), "e1", "tok")
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("closed server err = %v, want ErrUpstream", err)
	}
}

func TestSubmit(t *testing.T) {
	var got model.SubmitRequest
	client := fakeExamService(t, map[string]gin.HandlerFunc{
		"POST /api/v1/student/exams/:id/submit": func(c *gin.Context) {
			if err := c.ShouldBindJSON(&got); err != nil {
				response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
				return
			}
			response.Success(c, http.StatusOK, model.SubmitResult{AchievedPoints: 7, PossiblePoints: 10})
		},
	})

	repo := NewSubmissionRepository(client)
	res, err := repo.Submit(context.Background(), "tok", "e42", map[string]string{"q1": "B"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.AchievedPoints != 7 || res.PossiblePoints != 10 {
		t.Errorf("result = %+v", res)
	}
	if got.Answers["q1"] != "B" {
		t.Errorf("posted answers = %v", got.Answers)
	}

	if _, err := repo.Submit(context.Background(), "tok", "e42", nil); err != nil {
		t.Fatalf("Submit with nil answers: %v", err)
	}
	if got.Answers == nil || len(got.Answers) != 0 {
		t.Errorf("nil answers should post an empty object, got %v", got.Answers)
	}
}

func TestSubmitRejected(t *testing.T) {
	client := fakeExamService(t, map[string]gin.HandlerFunc{
		"POST /api/v1/student/exams/:id/submit": func(c *gin.Context) {
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		},
	})

	_, err := NewSubmissionRepository(client).Submit(context.Background(), "tok", "e42", map[string]string{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != response.ErrInternal {
		t.Fatalf("err = %v", err)
	}
}
