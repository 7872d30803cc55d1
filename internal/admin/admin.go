package admin

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/tickertap/tickertap-api/internal/audit"
	"github.com/tickertap/tickertap-api/internal/ledger"
	"github.com/tickertap/tickertap-api/internal/types"
	"github.com/tickertap/tickertap-api/pkg/response"
	"gorm.io/gorm"
)

// Policy is the injected authorization capability for admin operations: a
// fixed allowlist of admin emails resolved from configuration at startup,
// never read from the environment at call time.
type Policy struct {
	allowed map[string]bool
}

func NewPolicy(adminEmails []string) *Policy {
	allowed := make(map[string]bool, len(adminEmails))
	for _, email := range adminEmails {
		allowed[strings.ToLower(email)] = true
	}
	return &Policy{allowed: allowed}
}

// IsAdmin reports whether the email belongs to the admin allowlist.
func (p *Policy) IsAdmin(email string) bool {
	return p.allowed[strings.ToLower(email)]
}

// Service handles admin lock toggles and audit review.
type Service struct {
	db *Database
}

func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

// SetUserActive locks or unlocks a user. Lock and unlock share this one
// select-for-update -> mutate -> audit path.
func (s *Service) SetUserActive(adminUserID, targetUserID string, active bool, meta audit.Meta) (*types.User, error) {
	action := "user_lock"
	if active {
		action = "user_unlock"
	}

	var user *types.User
	err := ledger.RunInTransaction(s.db.DB(), func(tx *gorm.DB) error {
		target, err := s.db.lockUser(tx, targetUserID)
		if err != nil {
			return err
		}

		oldActive := target.IsActive
		target.IsActive = active
		if err := tx.Save(target).Error; err != nil {
			return err
		}

		user = target
		return audit.Record(tx, audit.Entry{
			UserID:    adminUserID,
			Action:    action,
			TableName: "users",
			RecordID:  target.UserID,
			OldValues: map[string]any{"is_active": oldActive},
			NewValues: map[string]any{"is_active": active},
			Meta:      meta,
		})
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("admin_user_id", adminUserID).
		Str("target_user_id", targetUserID).
		Str("action", action).
		Msg("user status toggled")

	return user, nil
}

// SetAccountStatus locks or unlocks an account.
func (s *Service) SetAccountStatus(adminUserID, accountID, status string, meta audit.Meta) (*types.Account, error) {
	action := "account_lock"
	if status == types.AccountActive {
		action = "account_unlock"
	}

	var account *types.Account
	err := ledger.RunInTransaction(s.db.DB(), func(tx *gorm.DB) error {
		target, err := s.db.lockAccount(tx, accountID)
		if err != nil {
			return err
		}

		oldStatus := target.Status
		target.Status = status
		if err := tx.Save(target).Error; err != nil {
			return err
		}

		account = target
		return audit.Record(tx, audit.Entry{
			UserID:    adminUserID,
			Action:    action,
			TableName: "accounts",
			RecordID:  target.AccountID,
			OldValues: map[string]any{"status": oldStatus},
			NewValues: map[string]any{"status": status},
			Meta:      meta,
		})
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("admin_user_id", adminUserID).
		Str("account_id", accountID).
		Str("action", action).
		Msg("account status toggled")

	return account, nil
}

// ListUsers returns registered users newest-first. Password hashes never
// serialize (json:"-" on the model).
func (s *Service) ListUsers(limit, offset int) ([]types.User, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	return s.db.GetUsers(limit, offset)
}

// ListAuditLogs returns the audit trail newest-first.
func (s *Service) ListAuditLogs(limit, offset int) ([]types.AuditLog, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	return s.db.GetAuditLogs(limit, offset)
}

// GinHandlers contains HTTP handlers for admin endpoints, gated by the
// injected policy.
type GinHandlers struct {
	service *Service
	policy  *Policy
}

func NewGinHandlers(service *Service, policy *Policy) *GinHandlers {
	return &GinHandlers{
		service: service,
		policy:  policy,
	}
}

// RequireAdmin rejects requests whose authenticated email is not on the
// admin allowlist.
func (h *GinHandlers) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !h.policy.IsAdmin(c.GetString("userEmail")) {
			response.Forbidden(c, "admin access required")
			c.Abort()
			return
		}
		c.Next()
	}
}

func requestMeta(c *gin.Context) audit.Meta {
	return audit.Meta{IPAddress: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}

// LockUserHandler handles POST requests to deactivate a user
func (h *GinHandlers) LockUserHandler() gin.HandlerFunc {
	return h.toggleUserHandler(false)
}

// UnlockUserHandler handles POST requests to reactivate a user
func (h *GinHandlers) UnlockUserHandler() gin.HandlerFunc {
	return h.toggleUserHandler(true)
}

func (h *GinHandlers) toggleUserHandler(active bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := h.service.SetUserActive(
			c.GetString("userID"), c.Param("user_id"), active, requestMeta(c))
		response.HandleOK(c, user, err)
	}
}

// LockAccountHandler handles POST requests to lock an account
func (h *GinHandlers) LockAccountHandler() gin.HandlerFunc {
	return h.toggleAccountHandler(types.AccountLocked)
}

// UnlockAccountHandler handles POST requests to reactivate an account
func (h *GinHandlers) UnlockAccountHandler() gin.HandlerFunc {
	return h.toggleAccountHandler(types.AccountActive)
}

func (h *GinHandlers) toggleAccountHandler(status string) gin.HandlerFunc {
	return func(c *gin.Context) {
		account, err := h.service.SetAccountStatus(
			c.GetString("userID"), c.Param("account_id"), status, requestMeta(c))
		response.HandleOK(c, account, err)
	}
}

// ListUsersHandler handles GET requests for the registered user list
// Optional query parameters: limit, offset
func (h *GinHandlers) ListUsersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

		users, err := h.service.ListUsers(limit, offset)
		response.Handle(c, users, err)
	}
}

// ListAuditLogsHandler handles GET requests for the audit trail
// Optional query parameters: limit, offset
func (h *GinHandlers) ListAuditLogsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

		logs, err := h.service.ListAuditLogs(limit, offset)
		response.Handle(c, logs, err)
	}
}
