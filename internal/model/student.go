package model

// StudentProfile holds the student-only identity fields.
type StudentProfile struct {
	RollNumber    string `json:"roll_number"`
	DepartmentID  int    `json:"department_id"`
	Semester      int    `json:"semester"`
	AdmissionYear int    `json:"admission_year"`
	CurrentYear   int    `json:"current_year"`
	ActiveStatus  bool   `json:"active_status"`
}

// TeacherProfile holds the teacher-only identity fields.
type TeacherProfile struct {
	DepartmentID int `json:"department_id"`
}

// AdminProfile holds the admin-only identity fields.
type AdminProfile struct {
	Permissions []string `json:"permissions,omitempty"`
}

// LoginRequest is the payload for signing in under any role.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}

// LoginResponse is returned after a successful sign-in.
type LoginResponse struct {
	Token   string          `json:"token"`
	User    Account         `json:"user"`
	Student *StudentProfile `json:"student,omitempty"`
	Teacher *TeacherProfile `json:"teacher,omitempty"`
	Admin   *AdminProfile   `json:"admin,omitempty"`
}

// Account is the role-independent part of a sign-in response.
type Account struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Identity builds the session identity carried by a login response.
func (r *LoginResponse) Identity() *Identity {
	return &Identity{
		Role:    r.User.Role,
		ID:      r.User.ID,
		Name:    r.User.Name,
		Email:   r.User.Email,
		Token:   r.Token,
		Student: r.Student,
		Teacher: r.Teacher,
		Admin:   r.Admin,
	}
}
