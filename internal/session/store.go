package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/aspireabroad/visa-portal-api/internal/models"
)

// ErrNotFound indicates the requested session or transient entry is missing
// or has expired.
var ErrNotFound = errors.New("session entry not found")

// Default TTLs for transient entries.
const (
	OTPTTL           = 5 * time.Minute
	EmailVerifiedTTL = 30 * time.Minute
	PendingTTL       = 10 * time.Minute
)

// Session is the server-side state behind an issued token. It replaces the
// loose per-request flag bag of a framework session with named fields.
type Session struct {
	ID                 string      `json:"id"`
	UserID             uint        `json:"user_id"`
	Role               models.Role `json:"role"`
	MustChangePassword bool        `json:"must_change_password"`
}

// OTPState binds a registration verification code to the email it was sent
// to. Expiry is enforced both by the stored timestamp and the Redis TTL.
type OTPState struct {
	Code      string    `json:"code"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PendingEdit is an admin's staged change to a student record, held until an
// explicit confirmation or cancellation.
type PendingEdit struct {
	StudentID      uint    `json:"student_id"`
	AdminID        uint    `json:"admin_id"`
	FirstName      *string `json:"first_name,omitempty"`
	LastName       *string `json:"last_name,omitempty"`
	Email          *string `json:"email,omitempty"`
	Phone          *string `json:"phone,omitempty"`
	PassportNumber *string `json:"passport_number,omitempty"`
	Address        *string `json:"address,omitempty"`
}

// Store keeps sessions and short-lived workflow state in Redis with explicit
// per-entry TTLs.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore constructs a session store. ttl bounds the lifetime of login
// sessions.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{client: client, ttl: ttl}
}

// Create persists a new session for the user and returns it with a fresh id.
func (s *Store) Create(ctx context.Context, userID uint, role models.Role, mustChangePassword bool) (Session, error) {
	sess := Session{
		ID:                 uuid.NewString(),
		UserID:             userID,
		Role:               role,
		MustChangePassword: mustChangePassword,
	}
	if err := s.put(ctx, sessionKey(sess.ID), sess, s.ttl); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Get loads a session by id.
func (s *Store) Get(ctx context.Context, id string) (Session, error) {
	var sess Session
	if err := s.get(ctx, sessionKey(id), &sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Delete removes a session, ending it server-side.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, sessionKey(id)).Err()
}

// SetMustChangePassword flips the forced-change flag on an existing session.
func (s *Store) SetMustChangePassword(ctx context.Context, id string, value bool) error {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	sess.MustChangePassword = value
	return s.put(ctx, sessionKey(id), sess, s.ttl)
}

// Rotate replaces the session id, invalidating the old one. Used after a
// password change to defeat session fixation.
func (s *Store) Rotate(ctx context.Context, id string) (Session, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if err := s.Delete(ctx, id); err != nil {
		return Session{}, err
	}
	sess.ID = uuid.NewString()
	if err := s.put(ctx, sessionKey(sess.ID), sess, s.ttl); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// PutOTP stores the in-flight registration code for an email address.
func (s *Store) PutOTP(ctx context.Context, state OTPState) error {
	return s.put(ctx, otpKey(state.Email), state, OTPTTL)
}

// GetOTP loads the in-flight registration code bound to an email address.
func (s *Store) GetOTP(ctx context.Context, email string) (OTPState, error) {
	var state OTPState
	if err := s.get(ctx, otpKey(email), &state); err != nil {
		return OTPState{}, err
	}
	return state, nil
}

// DeleteOTP discards the in-flight registration code for an email address.
func (s *Store) DeleteOTP(ctx context.Context, email string) error {
	return s.client.Del(ctx, otpKey(email)).Err()
}

// MarkEmailVerified records that the address passed OTP verification so the
// subsequent registration submit can be accepted.
func (s *Store) MarkEmailVerified(ctx context.Context, email string) error {
	return s.client.Set(ctx, verifiedKey(email), "1", EmailVerifiedTTL).Err()
}

// IsEmailVerified reports whether the address passed OTP verification
// recently.
func (s *Store) IsEmailVerified(ctx context.Context, email string) (bool, error) {
	err := s.client.Get(ctx, verifiedKey(email)).Err()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read verification marker: %w", err)
	}
	return true, nil
}

// ClearEmailVerified removes the verification marker after registration.
func (s *Store) ClearEmailVerified(ctx context.Context, email string) error {
	return s.client.Del(ctx, verifiedKey(email)).Err()
}

// PutPendingEdit stages an admin edit of a student record.
func (s *Store) PutPendingEdit(ctx context.Context, edit PendingEdit) error {
	return s.put(ctx, pendingEditKey(edit.StudentID), edit, PendingTTL)
}

// GetPendingEdit loads a staged edit for the student, if any.
func (s *Store) GetPendingEdit(ctx context.Context, studentID uint) (PendingEdit, error) {
	var edit PendingEdit
	if err := s.get(ctx, pendingEditKey(studentID), &edit); err != nil {
		return PendingEdit{}, err
	}
	return edit, nil
}

// DeletePendingEdit discards a staged edit.
func (s *Store) DeletePendingEdit(ctx context.Context, studentID uint) error {
	return s.client.Del(ctx, pendingEditKey(studentID)).Err()
}

// MarkPendingDelete stages an admin deletion of a student record.
func (s *Store) MarkPendingDelete(ctx context.Context, studentID uint) error {
	return s.client.Set(ctx, pendingDeleteKey(studentID), "1", PendingTTL).Err()
}

// HasPendingDelete reports whether a deletion is staged for the student.
func (s *Store) HasPendingDelete(ctx context.Context, studentID uint) (bool, error) {
	err := s.client.Get(ctx, pendingDeleteKey(studentID)).Err()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read pending delete marker: %w", err)
	}
	return true, nil
}

// ClearPendingDelete discards a staged deletion.
func (s *Store) ClearPendingDelete(ctx context.Context, studentID uint) error {
	return s.client.Del(ctx, pendingDeleteKey(studentID)).Err()
}

func (s *Store) put(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode session entry: %w", err)
	}
	if err := s.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session entry: %w", err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, key string, out interface{}) error {
	payload, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load session entry: %w", err)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("failed to decode session entry: %w", err)
	}
	return nil
}

func sessionKey(id string) string {
	return "session:" + id
}

func otpKey(email string) string {
	return "session:otp:" + email
}

func verifiedKey(email string) string {
	return "session:verified:" + email
}

func pendingEditKey(studentID uint) string {
	return fmt.Sprintf("session:pending_edit:%d", studentID)
}

func pendingDeleteKey(studentID uint) string {
	return fmt.Sprintf("session:pending_delete:%d", studentID)
}
