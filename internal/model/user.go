package model

// User identifies the student taking an attempt. Token is the bearer token
// forwarded to the exam service on their behalf.
type User struct {
	ID    string `json:"id"`
	Token string `json:"-"`
}
