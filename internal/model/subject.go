package model

// SubjectRef is the subject summary embedded in exam descriptors.
type SubjectRef struct {
	Name string `json:"name"`
}

// TeacherRef is the teacher summary embedded in exam descriptors.
type TeacherRef struct {
	Name string `json:"name"`
}
