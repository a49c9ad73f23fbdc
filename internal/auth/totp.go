package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/relayonprem/control-plane/internal/audit"
	"github.com/relayonprem/control-plane/internal/crypto"
	"github.com/relayonprem/control-plane/internal/notify"
	"github.com/relayonprem/control-plane/internal/store"
)

const (
	backupCodeCount  = 10
	backupCodeLength = 8
	// No 0/O/1/I to keep codes unambiguous when read aloud or retyped.
	backupCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// TOTPSetup is returned by BeginTOTPEnrollment for the client to render a QR
// code and store the backup codes. The secret is not yet active.
type TOTPSetup struct {
	Secret      string
	OTPAuthURL  string
	BackupCodes []string
}

// BeginTOTPEnrollment generates a TOTP secret and backup codes, persisted
// with the factor still disabled. The plaintext backup codes are shown only
// here; the factor activates when ConfirmTOTPEnrollment proves the
// authenticator has the secret.
func (s *Service) BeginTOTPEnrollment(ctx context.Context, user *store.User) (*TOTPSetup, error) {
	if user.TOTPEnabled {
		return nil, ErrTOTPAlreadyOn
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.config.TOTPIssuer,
		AccountName: user.Email,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate totp secret: %w", err)
	}

	plaintext, hashed, err := generateBackupCodes()
	if err != nil {
		return nil, err
	}

	// Re-enrolling overwrites any prior pending secret and codes.
	if err := s.store.SetUserTOTP(ctx, user.ID, key.Secret(), false, hashed); err != nil {
		return nil, fmt.Errorf("failed to store totp secret: %w", err)
	}

	return &TOTPSetup{
		Secret:      key.Secret(),
		OTPAuthURL:  key.URL(),
		BackupCodes: plaintext,
	}, nil
}

// ConfirmTOTPEnrollment verifies a code against the pending secret and
// enables the second factor.
func (s *Service) ConfirmTOTPEnrollment(ctx context.Context, user *store.User, code string, meta RequestMeta) error {
	if user.TOTPEnabled {
		return ErrTOTPAlreadyOn
	}
	if user.TOTPSecret == "" {
		return ErrTOTPNotEnabled
	}

	if !validateTOTPCode(user.TOTPSecret, code) {
		return ErrInvalidCode
	}

	if err := s.store.SetUserTOTP(ctx, user.ID, user.TOTPSecret, true, user.BackupCodes); err != nil {
		return fmt.Errorf("failed to enable totp: %w", err)
	}

	s.audit.Log(ctx, audit.Entry{
		Action:      audit.ActionTOTPEnabled,
		ActorUserID: &user.ID,
		IPAddress:   meta.IPAddress,
		UserAgent:   meta.UserAgent,
	})
	s.dispatch.Dispatch(ctx, notify.Event{
		Type:  notify.EventTOTPEnabled,
		Actor: user,
		Meta:  notify.Meta{IPAddress: meta.IPAddress, UserAgent: meta.UserAgent},
	})

	return nil
}

// DisableTOTP turns the second factor off. The caller must present a valid
// TOTP code or an unused backup code. All three TOTP fields are cleared in
// one write.
func (s *Service) DisableTOTP(ctx context.Context, user *store.User, code string, meta RequestMeta) error {
	if !user.TOTPEnabled {
		return ErrTOTPNotEnabled
	}

	if err := s.checkSecondFactor(ctx, user, code); err != nil {
		return err
	}

	if err := s.store.SetUserTOTP(ctx, user.ID, "", false, nil); err != nil {
		return fmt.Errorf("failed to disable totp: %w", err)
	}

	s.audit.Log(ctx, audit.Entry{
		Action:      audit.ActionTOTPDisabled,
		ActorUserID: &user.ID,
		IPAddress:   meta.IPAddress,
		UserAgent:   meta.UserAgent,
	})
	s.dispatch.Dispatch(ctx, notify.Event{
		Type:  notify.EventTOTPDisabled,
		Actor: user,
		Meta:  notify.Meta{IPAddress: meta.IPAddress, UserAgent: meta.UserAgent},
	})
	return nil
}

// checkSecondFactor accepts either a current TOTP code or an unused backup
// code. A matched backup code is marked used immediately.
func (s *Service) checkSecondFactor(ctx context.Context, user *store.User, code string) error {
	if validateTOTPCode(user.TOTPSecret, code) {
		return nil
	}

	normalized := strings.ToUpper(strings.ReplaceAll(code, "-", ""))
	hash := crypto.HashToken(normalized)
	for i := range user.BackupCodes {
		bc := &user.BackupCodes[i]
		if bc.Used {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(bc.Hash), []byte(hash)) == 1 {
			bc.Used = true
			if err := s.store.SetUserTOTP(ctx, user.ID, user.TOTPSecret, true, user.BackupCodes); err != nil {
				return fmt.Errorf("failed to consume backup code: %w", err)
			}
			return nil
		}
	}
	return ErrInvalidCode
}

// validateTOTPCode checks a code with one period of clock skew either way.
func validateTOTPCode(secret, code string) bool {
	if secret == "" || code == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, time.Now(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

// generateBackupCodes returns the plaintext codes and their stored form.
func generateBackupCodes() ([]string, []store.BackupCode, error) {
	plaintext := make([]string, backupCodeCount)
	hashed := make([]store.BackupCode, backupCodeCount)
	for i := 0; i < backupCodeCount; i++ {
		code, err := randomBackupCode()
		if err != nil {
			return nil, nil, err
		}
		plaintext[i] = code
		hashed[i] = store.BackupCode{Hash: crypto.HashToken(code)}
	}
	return plaintext, hashed, nil
}

func randomBackupCode() (string, error) {
	buf := make([]byte, backupCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate backup code: %w", err)
	}
	out := make([]byte, backupCodeLength)
	for i, b := range buf {
		out[i] = backupCodeAlphabet[int(b)%len(backupCodeAlphabet)]
	}
	return string(out), nil
}
