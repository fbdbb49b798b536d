package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrUnknownDriver is returned by Open for drivers other than mysql and sqlite.
var ErrUnknownDriver = errors.New("unknown database driver")

// Store implements goGuard.TokenStore and goGuard.TokenRevoker.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

var (
	_ goGuard.TokenStore   = (*Store)(nil)
	_ goGuard.TokenRevoker = (*Store)(nil)
)

// New wraps an open gorm handle.
func New(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Open connects with driver "mysql" or "sqlite". gorm's own logging is
// silenced; callers log query failures through the Guard.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(driver) {
	case "mysql":
		dialector = mysql.Open(dsn)
	case "sqlite", "sqlite3":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	return db, nil
}

// AutoMigrate creates or updates the users and user_tokens tables.
func (s *Store) AutoMigrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&User{}, &UserToken{})
}

type ownerRow struct {
	ID       uint
	Name     string
	LastName string
	Email    string
	RoleID   *uint
}

// FindActiveTokenOwner returns the owner of a non-revoked token, or
// goGuard.ErrTokenNotFound.
func (s *Store) FindActiveTokenOwner(ctx context.Context, tokenHash string) (*goGuard.Identity, error) {
	var row ownerRow
	err := s.db.WithContext(ctx).
		Table("user_tokens").
		Select("users.id, users.name, users.last_name, users.email, users.role_id").
		Joins("JOIN users ON users.id = user_tokens.user_id").
		Where("user_tokens.token_hash = ? AND user_tokens.revoked = ? AND users.status = ?", tokenHash, false, StatusActive).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, goGuard.ErrTokenNotFound
		}
		return nil, err
	}

	identity := &goGuard.Identity{
		ID:    strconv.FormatUint(uint64(row.ID), 10),
		Name:  strings.TrimSpace(row.Name + " " + row.LastName),
		Email: row.Email,
	}
	if row.RoleID != nil {
		identity.Role = strconv.FormatUint(uint64(*row.RoleID), 10)
	}
	return identity, nil
}

// Register stores tokenHash for userID. Issuing the token itself is the
// caller's job.
func (s *Store) Register(ctx context.Context, userID uint, tokenHash string) error {
	return s.db.WithContext(ctx).Create(&UserToken{
		UserID:       userID,
		TokenHash:    tokenHash,
		CreationDate: s.now().UTC(),
	}).Error
}

// RevokeToken marks tokenHash revoked. It reports false without error when the
// token was already revoked and returns goGuard.ErrTokenNotFound when no row
// matches.
func (s *Store) RevokeToken(ctx context.Context, tokenHash string) (bool, error) {
	now := s.now().UTC()
	res := s.db.WithContext(ctx).
		Model(&UserToken{}).
		Where("token_hash = ? AND revoked = ?", tokenHash, false).
		Updates(map[string]any{"revoked": true, "revoked_at": now})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&UserToken{}).Where("token_hash = ?", tokenHash).Count(&count).Error; err != nil {
		return false, err
	}
	if count == 0 {
		return false, goGuard.ErrTokenNotFound
	}
	return false, nil
}
