package model

const (
	VerificationPurposeRegister      = "register"
	VerificationPurposeResetPassword = "reset_password"
)

// EmailVerificationCode stores the bcrypt hash of an emailed one-time code, never the code.
type EmailVerificationCode struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Purpose   string `json:"purpose"`
	CodeHash  string `json:"-"`
	Used      int    `json:"used"`
	Attempts  int    `json:"attempts"`
	Ctime     int64  `json:"ctime"`
	ExpiresAt int64  `json:"expires_at"`
}
