package interview

// Turn is one question and answer exchange. A session's transcript is an
// ordered []Turn that only grows; committed turns are never edited.
type Turn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}
