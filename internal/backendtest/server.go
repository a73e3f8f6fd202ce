// Package backendtest runs an in-process identity backend implementing the
// wire contract the gateway client depends on. Tests seed accounts and flip
// failure knobs to drive specific responses.
package backendtest

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Account is a seeded backend user.
type Account struct {
	ID              string
	Name            string
	Email           string
	Roles           []string
	EmailVerifiedAt string
	passwordHash    string
}

type pendingRegistration struct {
	name         string
	email        string
	passwordHash string
	otp          string
	roles        []string
}

// Server is the fake backend.
type Server struct {
	app *fiber.App
	ln  net.Listener
	URL string

	mu                sync.Mutex
	secret            []byte
	tokenTTLMinutes   int
	accountsByEmail   map[string]*Account
	accountsByID      map[string]*Account
	pending           map[string]*pendingRegistration
	forceWhoAmIStatus int
	failLoginMessage  string
}

// NewServer starts the fake backend on a loopback port.
func NewServer() (*Server, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	s := &Server{
		ln:              ln,
		URL:             "http://" + ln.Addr().String(),
		secret:          []byte("backendtest-secret"),
		tokenTTLMinutes: 480,
		accountsByEmail: make(map[string]*Account),
		accountsByID:    make(map[string]*Account),
		pending:         make(map[string]*pendingRegistration),
	}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	auth := app.Group("/auth")
	auth.Post("/login", s.handleLogin)
	auth.Post("/register", s.handleRegister)
	auth.Post("/verify-otp", s.handleVerifyOTP)
	auth.Post("/resend-otp", s.handleResendOTP)
	auth.Post("/forgot-password", s.handleForgotPassword)
	auth.Post("/logout", s.handleLogout)
	auth.Get("/me", s.handleWhoAmI)
	s.app = app

	go func() {
		_ = app.Listener(ln)
	}()
	return s, nil
}

// Close shuts the backend down.
func (s *Server) Close() {
	_ = s.app.Shutdown()
	_ = s.ln.Close()
}

// AddAccount seeds a verified account and returns it.
func (s *Server) AddAccount(name, email, password string, roles []string) *Account {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	account := &Account{
		ID:              uuid.NewString(),
		Name:            name,
		Email:           email,
		Roles:           roles,
		EmailVerifiedAt: time.Now().UTC().Format(time.RFC3339),
		passwordHash:    string(hash),
	}
	s.mu.Lock()
	s.accountsByEmail[email] = account
	s.accountsByID[account.ID] = account
	s.mu.Unlock()
	return account
}

// SetTokenTTLMinutes overrides the issued token lifetime.
func (s *Server) SetTokenTTLMinutes(minutes int) {
	s.mu.Lock()
	s.tokenTTLMinutes = minutes
	s.mu.Unlock()
}

// ForceWhoAmIStatus makes /auth/me answer with the given HTTP status
// regardless of the token; zero restores normal behavior.
func (s *Server) ForceWhoAmIStatus(status int) {
	s.mu.Lock()
	s.forceWhoAmIStatus = status
	s.mu.Unlock()
}

// FailLogin makes login answer success:false with the given message; empty
// restores normal behavior.
func (s *Server) FailLogin(message string) {
	s.mu.Lock()
	s.failLoginMessage = message
	s.mu.Unlock()
}

// OTPFor returns the pending verification code for an email.
func (s *Server) OTPFor(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if reg, ok := s.pending[email]; ok {
		return reg.otp
	}
	return ""
}

func (s *Server) handleLogin(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return reject(c, http.StatusBadRequest, "invalid payload")
	}

	s.mu.Lock()
	forced := s.failLoginMessage
	account := s.accountsByEmail[req.Email]
	s.mu.Unlock()

	if forced != "" {
		return reject(c, http.StatusOK, forced)
	}
	if account == nil || bcrypt.CompareHashAndPassword([]byte(account.passwordHash), []byte(req.Password)) != nil {
		return reject(c, http.StatusOK, "Invalid credentials")
	}

	token, ttl, err := s.issueToken(account.ID)
	if err != nil {
		return reject(c, http.StatusInternalServerError, "token issuance failed")
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "login successful",
		"data": fiber.Map{
			"accessToken":      token,
			"expiresInMinutes": ttl,
			"user":             userPayload(account),
		},
	})
}

func (s *Server) handleRegister(c *fiber.Ctx) error {
	var req struct {
		Name                 string `json:"name"`
		Email                string `json:"email"`
		Password             string `json:"password"`
		PasswordConfirmation string `json:"passwordConfirmation"`
		TNCAccepted          bool   `json:"tncAccepted"`
	}
	if err := c.BodyParser(&req); err != nil {
		return reject(c, http.StatusBadRequest, "invalid payload")
	}
	if req.Email == "" || req.Password == "" {
		return reject(c, http.StatusOK, "email and password required")
	}
	if req.Password != req.PasswordConfirmation {
		return reject(c, http.StatusOK, "password confirmation mismatch")
	}
	if !req.TNCAccepted {
		return reject(c, http.StatusOK, "terms must be accepted")
	}

	s.mu.Lock()
	if _, exists := s.accountsByEmail[req.Email]; exists {
		s.mu.Unlock()
		return reject(c, http.StatusOK, "email already registered")
	}
	hash, _ := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.MinCost)
	otp := uuid.NewString()
	s.pending[req.Email] = &pendingRegistration{
		name:         req.Name,
		email:        req.Email,
		passwordHash: string(hash),
		otp:          otp,
		roles:        []string{"customer"},
	}
	s.mu.Unlock()

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "verification code sent",
		"data": fiber.Map{
			"user":              fiber.Map{"email": req.Email},
			"otpCodeForTesting": otp,
		},
	})
}

func (s *Server) handleVerifyOTP(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := c.BodyParser(&req); err != nil {
		return reject(c, http.StatusBadRequest, "invalid payload")
	}

	s.mu.Lock()
	reg, ok := s.pending[req.Email]
	if !ok || reg.otp != req.Code {
		s.mu.Unlock()
		return reject(c, http.StatusOK, "Invalid OTP code")
	}
	delete(s.pending, req.Email)
	account := &Account{
		ID:              uuid.NewString(),
		Name:            reg.name,
		Email:           reg.email,
		Roles:           reg.roles,
		EmailVerifiedAt: time.Now().UTC().Format(time.RFC3339),
		passwordHash:    reg.passwordHash,
	}
	s.accountsByEmail[account.Email] = account
	s.accountsByID[account.ID] = account
	s.mu.Unlock()

	token, _, err := s.issueToken(account.ID)
	if err != nil {
		return reject(c, http.StatusInternalServerError, "token issuance failed")
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "email verified",
		"data": fiber.Map{
			"accessToken": token,
			"user":        userPayload(account),
		},
	})
}

func (s *Server) handleResendOTP(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"success": true, "message": "verification code re-sent"})
}

func (s *Server) handleForgotPassword(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"success": true, "message": "recovery code sent"})
}

func (s *Server) handleLogout(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"success": true, "message": "logged out"})
}

func (s *Server) handleWhoAmI(c *fiber.Ctx) error {
	s.mu.Lock()
	forced := s.forceWhoAmIStatus
	s.mu.Unlock()
	if forced != 0 {
		return reject(c, forced, http.StatusText(forced))
	}

	account, err := s.accountFromBearer(c.Get("Authorization"))
	if err != nil {
		return reject(c, http.StatusUnauthorized, "invalid token")
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{"user": userPayload(account)},
	})
}

func (s *Server) issueToken(accountID string) (string, int, error) {
	s.mu.Lock()
	ttl := s.tokenTTLMinutes
	secret := s.secret
	s.mu.Unlock()

	claims := jwt.RegisteredClaims{
		Subject:   accountID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Duration(ttl) * time.Minute)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", 0, err
	}
	return token, ttl, nil
}

func (s *Server) accountFromBearer(header string) (*Account, error) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return nil, errors.New("missing bearer token")
	}

	parsed, err := jwt.ParseWithClaims(header[len(prefix):], &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	claims := parsed.Claims.(*jwt.RegisteredClaims)

	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accountsByID[claims.Subject]
	if !ok {
		return nil, errors.New("unknown subject")
	}
	return account, nil
}

func userPayload(account *Account) fiber.Map {
	return fiber.Map{
		"id":              account.ID,
		"name":            account.Name,
		"email":           account.Email,
		"roles":           account.Roles,
		"emailVerifiedAt": account.EmailVerifiedAt,
		"createdAt":       account.EmailVerifiedAt,
		"updatedAt":       account.EmailVerifiedAt,
	}
}

func reject(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"success": false, "message": message})
}
