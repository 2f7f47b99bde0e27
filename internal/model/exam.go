package model

// ExamSnapshot is the exam content handed to an attempt: identifiers, duration and
// the ordered question list. It is fetched from the exam service before mount and
// treated as immutable afterwards.
type ExamSnapshot struct {
	ExamID          string     `json:"exam_id" validate:"required"`
	Title           string     `json:"title"`
	DurationMinutes int        `json:"duration_minutes" validate:"gt=0"`
	Questions       []Question `json:"questions" validate:"required,min=1,unique=ID,dive"`
}

// QuestionIDs returns the question ids in exam order.
func (e *ExamSnapshot) QuestionIDs() []string {
	ids := make([]string, 0, len(e.Questions))
	for _, q := range e.Questions {
		ids = append(ids, q.ID)
	}
	return ids
}

// HasQuestion reports whether id belongs to this exam.
func (e *ExamSnapshot) HasQuestion(id string) bool {
	for _, q := range e.Questions {
		if q.ID == id {
			return true
		}
	}
	return false
}
