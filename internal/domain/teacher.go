package domain

import "strings"

// NoTeacher fills professor columns for courses without an enrolled teacher.
const NoTeacher = "SIN PROFESOR"

// Teacher is an enrolled user with the editing-teacher role.
type Teacher struct {
	FullName string `json:"fullName"`
	Username string `json:"username"` // national id at UMET
}

// FirstTeacher returns the first roster entry, or a NoTeacher placeholder.
func FirstTeacher(ts []Teacher) (Teacher, bool) {
	if len(ts) == 0 {
		return Teacher{FullName: NoTeacher, Username: NoTeacher}, false
	}
	t := ts[0]
	if strings.TrimSpace(t.FullName) == "" {
		t.FullName = NoTeacher
	}
	if strings.TrimSpace(t.Username) == "" {
		t.Username = NoTeacher
	}
	return t, true
}
