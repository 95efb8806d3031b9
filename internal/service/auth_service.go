package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/aspireabroad/visa-portal-api/internal/credential"
	"github.com/aspireabroad/visa-portal-api/internal/dto"
	"github.com/aspireabroad/visa-portal-api/internal/models"
	"github.com/aspireabroad/visa-portal-api/internal/notify"
	"github.com/aspireabroad/visa-portal-api/internal/observability"
	"github.com/aspireabroad/visa-portal-api/internal/ratelimit"
	"github.com/aspireabroad/visa-portal-api/internal/repository"
	"github.com/aspireabroad/visa-portal-api/internal/session"
)

// Auth flow errors surfaced to handlers.
var (
	ErrInvalidCredentials      = errors.New("invalid username or password")
	ErrTempPasswordExpired     = errors.New("temporary password has expired, request a new reset")
	ErrEmailTaken              = errors.New("an account with this email already exists")
	ErrUsernameTaken           = errors.New("this username is already taken")
	ErrEmailNotVerified        = errors.New("email address has not been verified")
	ErrOTPInvalid              = errors.New("invalid or unknown verification code")
	ErrOTPExpired              = errors.New("verification code has expired")
	ErrOTPDeliveryFailed       = errors.New("failed to send verification code")
	ErrWeakPassword            = errors.New("password does not meet the strength requirements")
	ErrPasswordChangeLocked    = errors.New("too many failed attempts, try again later")
	ErrForcedChangeNotRequired = errors.New("no forced password change is pending")
)

// ResetOutcome mirrors the audited result of a forgot-password request. The
// HTTP response stays generic regardless of the value.
const forgotPasswordGenericMessage = "If an account exists, instructions have been sent."

// GenericResetMessage is the uniform forgot-password response body.
func GenericResetMessage() string { return forgotPasswordGenericMessage }

// TokenIssuer mints a signed token for a server-side session.
type TokenIssuer func(sess session.Session) (string, error)

// RequestMeta carries per-request attribution recorded in the audit log.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// AuthConfig bounds the credential lifecycle flows.
type AuthConfig struct {
	AppName                string
	TempPasswordValidity   time.Duration
	ResetMaxPerUserPerDay  int
	ResetMaxPerIPPerHour   int
	PasswordChangeMaxFails int
	PasswordChangeLockout  time.Duration
}

func (c *AuthConfig) applyDefaults() {
	if c.AppName == "" {
		c.AppName = "Visa Portal"
	}
	if c.TempPasswordValidity <= 0 {
		c.TempPasswordValidity = 15 * time.Minute
	}
	if c.ResetMaxPerUserPerDay <= 0 {
		c.ResetMaxPerUserPerDay = 2
	}
	if c.ResetMaxPerIPPerHour <= 0 {
		c.ResetMaxPerIPPerHour = 10
	}
	if c.PasswordChangeMaxFails <= 0 {
		c.PasswordChangeMaxFails = 5
	}
	if c.PasswordChangeLockout <= 0 {
		c.PasswordChangeLockout = 15 * time.Minute
	}
}

// AuthService orchestrates registration, login, the temporary-credential
// lifecycle and password changes.
type AuthService interface {
	SendRegistrationOTP(ctx context.Context, email string) error
	VerifyRegistrationOTP(ctx context.Context, email, otp string) error
	Register(ctx context.Context, req dto.RegisterRequest) error
	Login(ctx context.Context, req dto.LoginRequest) (dto.LoginResponse, error)
	Logout(ctx context.Context, sessionID string) error
	ForgotPassword(ctx context.Context, identifier string, meta RequestMeta) error
	ForceChangePassword(ctx context.Context, userID uint, sessionID string, req dto.ForceChangePasswordRequest) error
	ChangePassword(ctx context.Context, userID uint, sessionID string, req dto.ChangePasswordRequest) (dto.ChangePasswordResponse, error)
}

type authService struct {
	users      repository.UserRepository
	audit      repository.ResetAuditRepository
	limiter    *ratelimit.Limiter
	sessions   *session.Store
	dispatcher *notify.Dispatcher
	issueToken TokenIssuer
	validator  *validator.Validate
	cfg        AuthConfig
	logger     zerolog.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// NewAuthService constructs the auth service.
func NewAuthService(
	users repository.UserRepository,
	audit repository.ResetAuditRepository,
	limiter *ratelimit.Limiter,
	sessions *session.Store,
	dispatcher *notify.Dispatcher,
	issueToken TokenIssuer,
	validate *validator.Validate,
	cfg AuthConfig,
	logger zerolog.Logger,
) AuthService {
	cfg.applyDefaults()

	return &authService{
		users:      users,
		audit:      audit,
		limiter:    limiter,
		sessions:   sessions,
		dispatcher: dispatcher,
		issueToken: issueToken,
		validator:  validate,
		cfg:        cfg,
		logger:     logger.With().Str("component", "auth_service").Logger(),
		tracer:     otel.Tracer("github.com/aspireabroad/visa-portal-api/internal/service/auth"),
		now:        time.Now,
	}
}

func (s *authService) SendRegistrationOTP(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := s.validator.Var(email, "required,email"); err != nil {
		return err
	}

	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return err
	}
	if exists {
		return ErrEmailTaken
	}

	code, err := credential.GenerateOTP()
	if err != nil {
		return err
	}

	state := session.OTPState{
		Code:      code,
		Email:     email,
		ExpiresAt: s.now().Add(session.OTPTTL),
	}
	if err := s.sessions.PutOTP(ctx, state); err != nil {
		return err
	}

	subject := fmt.Sprintf("Verify your email - %s", s.cfg.AppName)
	body := fmt.Sprintf("Your verification code is: %s\n\nThis code will expire in 5 minutes.", code)

	report := s.dispatcher.Dispatch(ctx, email, "", subject, body)
	if !report.EmailSuccess {
		return ErrOTPDeliveryFailed
	}
	return nil
}

func (s *authService) VerifyRegistrationOTP(ctx context.Context, email, otp string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	otp = strings.TrimSpace(otp)

	state, err := s.sessions.GetOTP(ctx, email)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return ErrOTPInvalid
		}
		return err
	}

	// Redundant with the Redis TTL, but the stored timestamp is authoritative.
	if s.now().After(state.ExpiresAt) {
		return ErrOTPExpired
	}
	if state.Email != email || state.Code != otp {
		return ErrOTPInvalid
	}

	if err := s.sessions.MarkEmailVerified(ctx, email); err != nil {
		return err
	}
	return s.sessions.DeleteOTP(ctx, email)
}

func (s *authService) Register(ctx context.Context, req dto.RegisterRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return err
	}
	if err := validatePasswordStrength(req.Password); err != nil {
		return err
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	username := strings.TrimSpace(req.Username)

	verified, err := s.sessions.IsEmailVerified(ctx, email)
	if err != nil {
		return err
	}
	if !verified {
		return ErrEmailNotVerified
	}

	if taken, err := s.users.ExistsByUsername(ctx, username); err != nil {
		return err
	} else if taken {
		return ErrUsernameTaken
	}
	if taken, err := s.users.ExistsByEmail(ctx, email); err != nil {
		return err
	} else if taken {
		return ErrEmailTaken
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return err
	}

	user := models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleStudent,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Phone:        strings.TrimSpace(req.Phone),
	}
	if err := s.users.Create(ctx, &user); err != nil {
		return err
	}

	if err := s.sessions.ClearEmailVerified(ctx, email); err != nil {
		s.logger.Warn().Err(err).Msg("failed to clear email verification marker")
	}

	s.logger.Info().Uint("user_id", user.ID).Msg("student registered")
	return nil
}

func (s *authService) Login(ctx context.Context, req dto.LoginRequest) (dto.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.LoginResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "auth.login")
	defer span.End()

	user, err := s.users.FindByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.Logins().WithLabelValues("invalid").Inc()
			return dto.LoginResponse{}, ErrInvalidCredentials
		}
		return dto.LoginResponse{}, err
	}

	if !checkPassword(user.PasswordHash, req.Password) {
		observability.Logins().WithLabelValues("invalid").Inc()
		return dto.LoginResponse{}, ErrInvalidCredentials
	}

	now := s.now()

	// Business rule, not a hash failure: a matching but elapsed temporary
	// credential is rejected with an explicit message.
	if user.HasExpiredTempPassword(now) {
		observability.Logins().WithLabelValues("temp_expired").Inc()
		span.SetAttributes(attribute.Bool("auth.temp_expired", true))
		return dto.LoginResponse{}, ErrTempPasswordExpired
	}

	if user.HasActiveTempPassword(now) {
		sess, err := s.sessions.Create(ctx, user.ID, user.Role, true)
		if err != nil {
			return dto.LoginResponse{}, err
		}

		// Burn the one-time credential before responding so it can never
		// authenticate again, even if this session is abandoned.
		burned, err := randomUnguessableHash()
		if err != nil {
			return dto.LoginResponse{}, err
		}
		if err := s.users.UpdateCredential(ctx, user.ID, burned, nil); err != nil {
			return dto.LoginResponse{}, err
		}

		token, err := s.issueToken(sess)
		if err != nil {
			return dto.LoginResponse{}, err
		}

		observability.Logins().WithLabelValues("temp_password").Inc()
		s.logger.Info().Uint("user_id", user.ID).Msg("temporary password consumed, forced change pending")

		return dto.LoginResponse{Token: token, Role: string(user.Role), MustChangePassword: true}, nil
	}

	sess, err := s.sessions.Create(ctx, user.ID, user.Role, false)
	if err != nil {
		return dto.LoginResponse{}, err
	}
	token, err := s.issueToken(sess)
	if err != nil {
		return dto.LoginResponse{}, err
	}

	observability.Logins().WithLabelValues("success").Inc()
	return dto.LoginResponse{Token: token, Role: string(user.Role)}, nil
}

func (s *authService) Logout(ctx context.Context, sessionID string) error {
	return s.sessions.Delete(ctx, sessionID)
}

// ForgotPassword never reveals whether the identifier matched an account.
// The returned error is only ever an internal failure; every business
// outcome is recorded in the audit log and answered generically.
func (s *authService) ForgotPassword(ctx context.Context, identifier string, meta RequestMeta) error {
	ctx, span := s.tracer.Start(ctx, "auth.forgot_password")
	defer span.End()

	identifier = strings.TrimSpace(identifier)

	if meta.IPAddress != "" {
		allowed, err := s.limiter.Allow(ctx, "pwreset:ip:"+meta.IPAddress, s.cfg.ResetMaxPerIPPerHour, time.Hour)
		if err != nil {
			return err
		}
		if !allowed {
			s.writeAudit(ctx, nil, notify.ChannelReport{}, meta, models.ResetResultRateLimitIP)
			return nil
		}
	}

	user, err := s.users.FindStudentByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.writeAudit(ctx, nil, notify.ChannelReport{}, meta, models.ResetResultNoMatch)
			return nil
		}
		return err
	}

	allowed, err := s.limiter.Allow(ctx, fmt.Sprintf("pwreset:user:%d", user.ID), s.cfg.ResetMaxPerUserPerDay, 24*time.Hour)
	if err != nil {
		return err
	}
	if !allowed {
		s.writeAudit(ctx, &user.ID, notify.ChannelReport{}, meta, models.ResetResultRateLimitUser)
		return nil
	}

	tempPassword, err := credential.GenerateTempPassword()
	if err != nil {
		return err
	}
	hash, err := hashPassword(tempPassword)
	if err != nil {
		return err
	}

	expiresAt := s.now().Add(s.cfg.TempPasswordValidity)
	if err := s.users.UpdateCredential(ctx, user.ID, hash, &expiresAt); err != nil {
		return err
	}

	validMinutes := int(s.cfg.TempPasswordValidity / time.Minute)
	subject := fmt.Sprintf("Password Reset - %s", s.cfg.AppName)
	body := fmt.Sprintf(
		"Hello %s,\n\nWe received a request to reset your password.\nYour temporary password is: %s\n\nThis password is valid for %d minutes.\nPlease login using this temporary password and set a new password immediately.",
		user.Username, tempPassword, validMinutes,
	)

	report := s.dispatcher.Dispatch(ctx, user.Email, user.Phone, subject, body)
	s.writeAudit(ctx, &user.ID, report, meta, models.ResetResultSent)

	span.SetAttributes(attribute.Bool("reset.issued", true))
	return nil
}

func (s *authService) ForceChangePassword(ctx context.Context, userID uint, sessionID string, req dto.ForceChangePasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return err
	}
	if err := validatePasswordStrength(req.NewPassword); err != nil {
		return err
	}

	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if !sess.MustChangePassword {
		return ErrForcedChangeNotRequired
	}

	hash, err := hashPassword(req.NewPassword)
	if err != nil {
		return err
	}

	// Also clears any residual temporary-credential expiry.
	if err := s.users.UpdateCredential(ctx, userID, hash, nil); err != nil {
		return err
	}

	if err := s.sessions.SetMustChangePassword(ctx, sessionID, false); err != nil {
		return err
	}

	s.logger.Info().Uint("user_id", userID).Msg("forced password change completed")
	return nil
}

func (s *authService) ChangePassword(ctx context.Context, userID uint, sessionID string, req dto.ChangePasswordRequest) (dto.ChangePasswordResponse, error) {
	failKey := fmt.Sprintf("pwdchange:%d", userID)

	count, err := s.limiter.Count(ctx, failKey)
	if err != nil {
		return dto.ChangePasswordResponse{}, err
	}
	if count >= int64(s.cfg.PasswordChangeMaxFails) {
		return dto.ChangePasswordResponse{}, ErrPasswordChangeLocked
	}

	fail := func() {
		if _, err := s.limiter.Allow(ctx, failKey, s.cfg.PasswordChangeMaxFails, s.cfg.PasswordChangeLockout); err != nil {
			s.logger.Warn().Err(err).Msg("failed to record password change failure")
		}
	}

	if err := s.validator.Struct(req); err != nil {
		fail()
		return dto.ChangePasswordResponse{}, err
	}
	if err := validatePasswordStrength(req.NewPassword); err != nil {
		fail()
		return dto.ChangePasswordResponse{}, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return dto.ChangePasswordResponse{}, err
	}
	if !checkPassword(user.PasswordHash, req.CurrentPassword) {
		fail()
		return dto.ChangePasswordResponse{}, ErrInvalidCredentials
	}

	hash, err := hashPassword(req.NewPassword)
	if err != nil {
		return dto.ChangePasswordResponse{}, err
	}
	if err := s.users.UpdateCredential(ctx, userID, hash, nil); err != nil {
		return dto.ChangePasswordResponse{}, err
	}

	// Rotating the session id invalidates any token bound to the old one.
	rotated, err := s.sessions.Rotate(ctx, sessionID)
	if err != nil {
		return dto.ChangePasswordResponse{}, err
	}
	token, err := s.issueToken(rotated)
	if err != nil {
		return dto.ChangePasswordResponse{}, err
	}

	if err := s.limiter.Reset(ctx, failKey); err != nil {
		s.logger.Warn().Err(err).Msg("failed to reset password change failure counter")
	}

	s.logger.Info().Uint("user_id", userID).Msg("password changed")
	return dto.ChangePasswordResponse{Token: token}, nil
}

func (s *authService) writeAudit(ctx context.Context, userID *uint, report notify.ChannelReport, meta RequestMeta, result string) {
	entry := models.PasswordResetAuditLog{
		UserID:         userID,
		EmailAttempted: report.EmailAttempted,
		EmailSuccess:   report.EmailSuccess,
		SMSAttempted:   report.SMSAttempted,
		SMSSuccess:     report.SMSSuccess,
		IPAddress:      meta.IPAddress,
		UserAgent:      truncate(meta.UserAgent, 500),
		Result:         result,
	}
	if err := s.audit.Create(ctx, &entry); err != nil {
		s.logger.Error().Err(err).Str("result", result).Msg("failed to write reset audit row")
	}
	observability.PasswordResets().WithLabelValues(result).Inc()
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// randomUnguessableHash returns the hash of a random value nobody knows,
// making the stored credential unusable.
func randomUnguessableHash() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to draw random credential: %w", err)
	}
	return hashPassword(hex.EncodeToString(raw))
}

// validatePasswordStrength applies the registration-time rules: minimum
// length and not entirely numeric.
func validatePasswordStrength(password string) error {
	if len(password) < 8 {
		return ErrWeakPassword
	}
	allDigits := true
	for _, r := range password {
		if r < '0' || r > '9' {
			allDigits = false
			break
		}
	}
	if allDigits {
		return ErrWeakPassword
	}
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
