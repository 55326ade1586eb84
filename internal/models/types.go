package models

import "time"

// QuestionType enumerates the kinds of questions a survey may contain.
type QuestionType string

const (
	QuestionText           QuestionType = "text"
	QuestionMultipleChoice QuestionType = "multipleChoice"
	QuestionScale          QuestionType = "scale"
)

// Valid reports whether t is one of the supported question types.
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionText, QuestionMultipleChoice, QuestionScale:
		return true
	}
	return false
}

// Scale answers are bounded to this inclusive range.
const (
	ScaleMin = 1
	ScaleMax = 10
)

type Question struct {
	ID            string       `json:"id" bson:"id"`
	Text          string       `json:"text" bson:"text"`
	Type          QuestionType `json:"type" bson:"type"`
	Options       []string     `json:"options,omitempty" bson:"options,omitempty"`
	Required      bool         `json:"required" bson:"required"`
	ReverseScored bool         `json:"reverseScored,omitempty" bson:"reverseScored,omitempty"`
}

// Survey is the persisted survey document. PasswordHash never leaves the
// persistence and password-guard boundary: it is omitted from JSON and
// stripped by Sanitized.
type Survey struct {
	ID           string     `json:"id" bson:"_id"`
	Title        string     `json:"title" bson:"title"`
	Description  string     `json:"description" bson:"description"`
	Questions    []Question `json:"questions" bson:"questions"`
	IsActive     bool       `json:"isActive" bson:"isActive"`
	PasswordHash string     `json:"-" bson:"passwordHash"`
	CreatedAt    time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt" bson:"updatedAt"`
}

// Question returns the question with the given id.
func (s *Survey) Question(id string) (Question, bool) {
	for _, q := range s.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// Sanitized returns a deep copy without the password hash.
func (s *Survey) Sanitized() *Survey {
	if s == nil {
		return nil
	}
	out := s.Clone()
	out.PasswordHash = ""
	return out
}

// Clone returns a deep copy of the survey.
func (s *Survey) Clone() *Survey {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Questions = make([]Question, len(s.Questions))
	for i, q := range s.Questions {
		q.Options = append([]string(nil), q.Options...)
		cp.Questions[i] = q
	}
	return &cp
}

// Response is one respondent's submission. Responses are immutable once stored.
type Response struct {
	ID             string            `json:"id" bson:"_id"`
	SurveyID       string            `json:"surveyId" bson:"surveyId"`
	RespondentInfo map[string]string `json:"respondentInfo,omitempty" bson:"respondentInfo,omitempty"`
	Answers        []Answer          `json:"answers" bson:"answers"`
	CreatedAt      time.Time         `json:"createdAt" bson:"createdAt"`
}

// Clone returns a deep copy of the response.
func (r *Response) Clone() *Response {
	if r == nil {
		return nil
	}
	cp := *r
	if r.RespondentInfo != nil {
		cp.RespondentInfo = make(map[string]string, len(r.RespondentInfo))
		for k, v := range r.RespondentInfo {
			cp.RespondentInfo[k] = v
		}
	}
	cp.Answers = make([]Answer, len(r.Answers))
	for i, a := range r.Answers {
		a.Value.Choices = append([]string(nil), a.Value.Choices...)
		cp.Answers[i] = a
	}
	return &cp
}
