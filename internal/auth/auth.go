package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tickertap/tickertap-api/internal/audit"
	"github.com/tickertap/tickertap-api/internal/ledger"
	"github.com/tickertap/tickertap-api/internal/types"
	"github.com/tickertap/tickertap-api/pkg/response"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserInactive       = errors.New("user account is deactivated")
	ErrTokenGeneration    = errors.New("failed to generate token")
)

const tokenTTL = 24 * time.Hour

// Claims represents the JWT claims structure
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// TokenResponse represents the JWT token response
type TokenResponse struct {
	Token      string      `json:"access_token"`
	Expiration time.Time   `json:"expiration"`
	User       *types.User `json:"user"`
}

// Service handles user registration, login, and token issuance
type Service struct {
	db        *Database
	jwtSecret []byte
}

// NewService creates a new authentication service with the given JWT secret
func NewService(gormDB *gorm.DB, jwtSecret string) *Service {
	return &Service{
		db:        NewDatabase(gormDB),
		jwtSecret: []byte(jwtSecret),
	}
}

// Register creates a new user with a bcrypt password hash and writes the
// audit row in the same transaction. Duplicate emails surface as
// gorm.ErrDuplicatedKey.
func (s *Service) Register(email, password, firstName, lastName string, meta audit.Meta) (*types.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &types.User{
		UserID:       "USR_" + uuid.New().String(),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: string(hash),
		FirstName:    firstName,
		LastName:     lastName,
		KYCStatus:    "pending",
		IsActive:     true,
	}

	err = ledger.RunInTransaction(s.db.DB(), func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		return audit.Record(tx, audit.Entry{
			UserID:    user.UserID,
			Action:    "user_register",
			TableName: "users",
			RecordID:  user.UserID,
			NewValues: map[string]any{"email": user.Email},
			Meta:      meta,
		})
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("user_id", user.UserID).Msg("user registered")
	return user, nil
}

// Login verifies credentials and issues a signed access token.
func (s *Service) Login(email, password string) (*TokenResponse, error) {
	user, err := s.db.GetUserByEmail(strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	expiration := time.Now().Add(tokenTTL)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiration),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
		UserID: user.UserID,
		Email:  user.Email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, ErrTokenGeneration
	}

	return &TokenResponse{
		Token:      tokenString,
		Expiration: expiration,
		User:       user,
	}, nil
}

// ValidateToken validates a JWT token and returns the claims
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}

// GetUser retrieves a user by ID.
func (s *Service) GetUser(userID string) (*types.User, error) {
	return s.db.GetUserByID(userID)
}

// ResolvePrincipal implements middleware.PrincipalResolver.
func (s *Service) ResolvePrincipal(userID string) (string, bool, error) {
	user, err := s.db.GetUserByID(userID)
	if err != nil {
		return "", false, err
	}
	return user.Email, user.IsActive, nil
}

// GinHandlers contains HTTP handlers for authentication endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for authentication endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// RegisterRequest is the payload for user registration.
type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// LoginRequest is the payload for credential login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterHandler handles POST requests to create a new user
func (h *GinHandlers) RegisterHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		meta := audit.Meta{IPAddress: c.ClientIP(), UserAgent: c.Request.UserAgent()}
		user, err := h.service.Register(req.Email, req.Password, req.FirstName, req.LastName, meta)
		response.Handle(c, user, err)
	}
}

// LoginHandler handles POST requests to exchange credentials for a token
func (h *GinHandlers) LoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		token, err := h.service.Login(req.Email, req.Password)
		if errors.Is(err, ErrInvalidCredentials) {
			response.Unauthorized(c, err.Error())
			return
		}
		if errors.Is(err, ErrUserInactive) {
			response.Forbidden(c, err.Error())
			return
		}
		response.HandleOK(c, token, err)
	}
}

// MeHandler handles GET requests for the authenticated user's profile
func (h *GinHandlers) MeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := h.service.GetUser(c.GetString("userID"))
		response.Handle(c, user, err)
	}
}
