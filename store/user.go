package store

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/legit-games/user-registry/errors"
	"github.com/legit-games/user-registry/models"
	"gorm.io/gorm"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 200
	// MaxPage keeps the row offset within a 32-bit integer.
	MaxPage = math.MaxInt32 / MaxPageSize
)

// ListOptions selects, orders and pages a user listing. Fields and Sort use the public
// names in models.UserFields; a sort field prefixed with "-" sorts descending.
type ListOptions struct {
	Fields []string
	Sort   []string
	Limit  int
	Page   int
}

// Normalize clamps the paging values.
func (o *ListOptions) Normalize() {
	if o.Limit <= 0 {
		o.Limit = DefaultPageSize
	}
	if o.Limit > MaxPageSize {
		o.Limit = MaxPageSize
	}
	if o.Page <= 0 {
		o.Page = 1
	}
	if o.Page > MaxPage {
		o.Page = MaxPage
	}
}

// UserStore provides operations for users.
type UserStore struct {
	DB *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore { return &UserStore{DB: db} }

// Create inserts u, assigning an ID when empty. Username and email are unique.
func (s *UserStore) Create(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = models.NewID()
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	return mapErr("user", s.DB.WithContext(ctx).Create(u).Error)
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.first(ctx, "id = ?", id)
}

func (s *UserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.first(ctx, "username = ?", strings.TrimSpace(username))
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.first(ctx, "LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email)))
}

func (s *UserStore) first(ctx context.Context, query string, arg any) (*models.User, error) {
	var u models.User
	if err := s.DB.WithContext(ctx).Where(query, arg).First(&u).Error; err != nil {
		return nil, mapErr("user", err)
	}
	return &u, nil
}

// List returns one page of users and the total count.
func (s *UserStore) List(ctx context.Context, opts ListOptions) ([]models.User, int64, error) {
	opts.Normalize()
	columns, err := projection(opts.Fields)
	if err != nil {
		return nil, 0, err
	}
	order, err := ordering(opts.Sort)
	if err != nil {
		return nil, 0, err
	}

	var total int64
	if err := s.DB.WithContext(ctx).Model(&models.User{}).Count(&total).Error; err != nil {
		return nil, 0, mapErr("count users", err)
	}

	q := s.DB.WithContext(ctx).Model(&models.User{})
	if len(columns) > 0 {
		q = q.Select(columns)
	}
	var users []models.User
	err = q.Order(order).Limit(opts.Limit).Offset((opts.Page - 1) * opts.Limit).Find(&users).Error
	if err != nil {
		return nil, 0, mapErr("list users", err)
	}
	return users, total, nil
}

func projection(fields []string) ([]string, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	columns := []string{"id"}
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" || f == "id" {
			continue
		}
		col, ok := models.UserFields[f]
		if !ok {
			return nil, fmt.Errorf("unknown field %q: %w", f, errors.ErrValidation)
		}
		for _, c := range strings.Split(col, ",") {
			columns = append(columns, strings.TrimSpace(c))
		}
	}
	return columns, nil
}

func ordering(sort []string) (string, error) {
	var parts []string
	for _, f := range sort {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		dir := "ASC"
		if strings.HasPrefix(f, "-") {
			dir, f = "DESC", f[1:]
		}
		col, ok := models.UserFields[f]
		if !ok {
			return "", fmt.Errorf("unknown sort field %q: %w", f, errors.ErrValidation)
		}
		for _, c := range strings.Split(col, ",") {
			parts = append(parts, strings.TrimSpace(c)+" "+dir)
		}
	}
	if len(parts) == 0 {
		return "created_at ASC, id ASC", nil
	}
	return strings.Join(parts, ", "), nil
}

// UpdateName replaces the name of user id.
func (s *UserStore) UpdateName(ctx context.Context, id string, name models.Name) (*models.User, error) {
	res := s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"first_name":  strings.TrimSpace(name.First),
		"middle_name": strings.TrimSpace(name.Middle),
		"last_name":   strings.TrimSpace(name.Last),
		"updated_at":  time.Now().UTC(),
	})
	if err := s.checkAffected("update user", res); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// UpdatePassword stores a new password hash for user id.
func (s *UserStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	res := s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"password_hash": passwordHash,
		"updated_at":    time.Now().UTC(),
	})
	return s.checkAffected("update password", res)
}

// SetVerified marks user id as having confirmed its email address.
func (s *UserStore) SetVerified(ctx context.Context, id string) error {
	now := time.Now().UTC()
	res := s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"verified":    true,
		"verified_at": now,
		"updated_at":  now,
	})
	return s.checkAffected("verify user", res)
}

func (s *UserStore) Delete(ctx context.Context, id string) error {
	res := s.DB.WithContext(ctx).Where("id = ?", id).Delete(&models.User{})
	return s.checkAffected("delete user", res)
}

func (s *UserStore) checkAffected(op string, res *gorm.DB) error {
	if res.Error != nil {
		return mapErr(op, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user not found: %w", errors.ErrNotFound)
	}
	return nil
}
