package service

import (
	"fmt"

	"phonehub/internal/domain/user/model"
	"phonehub/internal/pkg/notify"
)

func welcomeEmail(u *model.User) *notify.Message {
	return notify.NewEmail("welcome", u.Email,
		"Welcome to PhoneHub!",
		fmt.Sprintf("Hi %s, welcome to PhoneHub! Thank you for signing up.", u.Name),
		fmt.Sprintf("<h1>Welcome to PhoneHub!</h1><p>Hi %s,</p><p>Thank you for signing up. We're excited to have you on board!</p>", u.Name),
	)
}

func loginEmail(u *model.User) *notify.Message {
	return notify.NewEmail("login", u.Email,
		"New Login to Your PhoneHub Account",
		fmt.Sprintf("Hi %s, we detected a new login to your account. If this wasn't you, please contact support immediately.", u.Name),
		fmt.Sprintf("<h1>New Login Detected</h1><p>Hi %s,</p><p>We detected a new login to your account. If this wasn't you, please contact support immediately.</p>", u.Name),
	)
}

func resetEmail(u *model.User, resetURL string) *notify.Message {
	return notify.NewEmail("password_reset", u.Email,
		"Reset Your PhoneHub Password",
		fmt.Sprintf("Hi %s, please use the following link to reset your password: %s. This link will expire in 1 hour.", u.Name, resetURL),
		fmt.Sprintf(`<h1>Reset Your Password</h1><p>Hi %s,</p><p>Please use the following link to reset your password:</p><p><a href="%s">Reset Password</a></p><p>This link will expire in 1 hour.</p>`, u.Name, resetURL),
	)
}
