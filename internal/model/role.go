package model

// Role discriminates the three kinds of signed-in identity.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleStudent:
		return true
	}
	return false
}

// Identity is the signed-in user together with the bearer credential.
// Role-specific fields live in the matching profile pointer.
type Identity struct {
	Role    Role            `json:"role" binding:"required,oneof=admin teacher student"`
	ID      int             `json:"id" binding:"required,min=1"`
	Name    string          `json:"name"`
	Email   string          `json:"email" binding:"omitempty,email"`
	Token   string          `json:"token" binding:"required"`
	Student *StudentProfile `json:"student,omitempty"`
	Teacher *TeacherProfile `json:"teacher,omitempty"`
	Admin   *AdminProfile   `json:"admin,omitempty"`
}
