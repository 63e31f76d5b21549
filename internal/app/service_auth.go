package app

import (
	"context"
	"log"
	"net/http"

	"conveyo/api/internal/authpw"
)

// SignUpResult carries the created account plus the verification token so the
// handler can expose it when no mailer is configured (dev bypass).
type SignUpResult struct {
	UserID            int64
	Email             string
	VerificationToken string
}

func (s *Service) SignUp(ctx context.Context, req authpw.SignUpRequest) (SignUpResult, error) {
	resp, err := s.passwords.SignUp(ctx, req)
	if err != nil {
		if err.Error() == "email already registered" {
			return SignUpResult{}, domainError(http.StatusConflict, "EMAIL_EXISTS", "Email already registered", nil)
		}
		return SignUpResult{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
	}

	if s.SMTPConfigured() {
		verifyURL := s.cfg.AppBaseURL + "/verify-email?token=" + resp.VerificationToken
		if err := s.mailer.SendVerificationEmail(resp.User.Email, displayName(resp.User), verifyURL); err != nil {
			log.Printf("signup: verification email to %s failed: %v", resp.User.Email, err)
		}
	}

	return SignUpResult{
		UserID:            resp.User.ID,
		Email:             resp.User.Email,
		VerificationToken: resp.VerificationToken,
	}, nil
}

// SignIn authenticates and, when the account is verified, issues a session.
// An unverified account yields requiresVerify=true with an empty session.
func (s *Service) SignIn(ctx context.Context, emailAddr, password string) (Session, bool, error) {
	resp, err := s.passwords.SignIn(ctx, authpw.SignInRequest{Email: emailAddr, Password: password})
	if err != nil {
		return Session{}, false, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Invalid email or password", nil)
	}
	if resp.RequiresVerify {
		return Session{}, true, nil
	}
	session, err := s.issueSession(ctx, resp.User)
	if err != nil {
		return Session{}, false, err
	}
	return session, false, nil
}

// VerifyEmail consumes a verification token and signs the user straight in.
func (s *Service) VerifyEmail(ctx context.Context, token string) (Session, error) {
	user, err := s.passwords.VerifyEmail(ctx, token)
	if err != nil {
		return Session{}, domainError(http.StatusBadRequest, "INVALID_STATE", "Invalid or expired verification token", nil)
	}
	return s.issueSession(ctx, user)
}

// RequestPasswordReset always reports success so callers cannot probe which
// addresses have accounts.
func (s *Service) RequestPasswordReset(ctx context.Context, emailAddr string) error {
	token, user, err := s.passwords.RequestPasswordReset(ctx, emailAddr)
	if err != nil {
		return err
	}
	if token == "" {
		return nil
	}

	if s.SMTPConfigured() {
		resetURL := s.cfg.AppBaseURL + "/reset-password?token=" + token
		if err := s.mailer.SendPasswordResetEmail(user.Email, displayName(user), resetURL); err != nil {
			log.Printf("password reset email to %s failed: %v", user.Email, err)
		}
	}
	return nil
}

func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := s.passwords.ResetPassword(ctx, authpw.ResetPasswordRequest{Token: token, NewPassword: newPassword}); err != nil {
		return domainError(http.StatusBadRequest, "INVALID_STATE", err.Error(), nil)
	}
	return nil
}
