package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/go-authgate/usergate/internal/config"
	"github.com/go-authgate/usergate/internal/models"
	"github.com/go-authgate/usergate/internal/password"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Store struct {
	db *gorm.DB
}

func New(ctx context.Context, driver, dsn string, cfg *config.Config) (*Store, error) {
	dialector, err := GetDialector(driver, dsn)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	// SQLite :memory: databases live per connection
	if driver == "sqlite" && strings.Contains(dsn, ":memory:") {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}

	if err := db.WithContext(ctx).AutoMigrate(
		&models.User{},
		&models.Role{},
		&models.OAuthAccount{},
		&models.AuditLog{},
	); err != nil {
		return nil, err
	}

	store := &Store{db: db}

	if err := store.seedData(ctx, cfg); err != nil {
		log.Printf("Warning: failed to seed data: %v", err)
	}

	return store, nil
}

// seedData creates the administrator role and, on an empty database, an admin user
func (s *Store) seedData(ctx context.Context, cfg *config.Config) error {
	if cfg == nil {
		return nil
	}

	var adminRole *models.Role
	if cfg.RolesEnabled && cfg.DefaultAdminRole != "" {
		role, err := s.GetRoleByName(ctx, cfg.DefaultAdminRole)
		switch {
		case errors.Is(err, ErrRecordNotFound):
			role = &models.Role{
				ID:          uuid.New().String(),
				Name:        cfg.DefaultAdminRole,
				Description: "Full access to user and role management",
			}
			if err := s.CreateRole(ctx, role); err != nil {
				return err
			}
			log.Printf("Created default role: %s", role.Name)
		case err != nil:
			return err
		}
		adminRole = role
	}

	count, err := s.CountUsers(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	schemes := cfg.HashSchemes
	if len(schemes) == 0 {
		schemes = []string{config.HashSchemeBcrypt}
	}
	hasher, err := password.NewManager(schemes, 0)
	if err != nil {
		return err
	}

	pw := cfg.DefaultAdminPassword
	generated := pw == ""
	if generated {
		if pw, err = hasher.Generate(); err != nil {
			return err
		}
	}
	hash, err := hasher.Hash(pw)
	if err != nil {
		return err
	}

	username := "admin"
	user := &models.User{
		ID:           uuid.New().String(),
		Email:        cfg.DefaultAdminEmail,
		Username:     &username,
		PasswordHash: hash,
		IsActive:     true,
		IsVerified:   true,
	}
	if err := s.CreateUser(ctx, user); err != nil {
		return err
	}
	if adminRole != nil {
		if err := s.AssignRole(ctx, user.ID, adminRole.ID); err != nil {
			return err
		}
	}

	if generated {
		log.Printf("Created default user: %s / %s", user.Email, pw)
	} else {
		log.Printf("Created default user: %s (password from DEFAULT_ADMIN_PASSWORD)", user.Email)
	}
	return nil
}

// Health checks the database connection
func (s *Store) Health() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Close closes the underlying database connection
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// DB returns the underlying GORM database connection (for transactions)
func (s *Store) DB() *gorm.DB {
	return s.db
}

// notFound maps GORM's not found error to ErrRecordNotFound
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrRecordNotFound
	}
	return err
}

// conflict maps a duplicate key error to the given sentinel
func conflict(err error, sentinel error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", sentinel, err)
	}
	return err
}
