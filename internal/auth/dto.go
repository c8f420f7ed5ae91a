package auth

// LoginDTO accepts a password login. Identifier may be a username, email
// address or employee id.
type LoginDTO struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// OTPLoginDTO accepts an OTP login keyed by mobile number.
type OTPLoginDTO struct {
	Mobile string `json:"mobile"`
	Code   string `json:"code"`
}

// RequestOTPDTO asks for a fresh OTP to be delivered.
type RequestOTPDTO struct {
	Mobile string `json:"mobile"`
}

// RefreshTokenDTO for refresh token requests
type RefreshTokenDTO struct {
	RefreshToken string `json:"refresh_token"`
}

// ValidationError represents a simple validation error from DTO validation.
type ValidationError struct {
	Msg string
}

func (v ValidationError) Error() string { return v.Msg }

func (d LoginDTO) Validate() error {
	if d.Identifier == "" {
		return ValidationError{Msg: "identifier is required"}
	}
	if d.Password == "" {
		return ValidationError{Msg: "password is required"}
	}
	return nil
}

func (d OTPLoginDTO) Validate() error {
	if d.Mobile == "" {
		return ValidationError{Msg: "mobile is required"}
	}
	if d.Code == "" {
		return ValidationError{Msg: "code is required"}
	}
	return nil
}

func (d RequestOTPDTO) Validate() error {
	if d.Mobile == "" {
		return ValidationError{Msg: "mobile is required"}
	}
	return nil
}

func (d RefreshTokenDTO) Validate() error {
	if d.RefreshToken == "" {
		return ValidationError{Msg: "refresh_token is required"}
	}
	return nil
}
