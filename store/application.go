package store

import (
	"context"
	"fmt"
	"time"

	"github.com/legit-games/user-registry/errors"
	"github.com/legit-games/user-registry/models"
	"gorm.io/gorm"
)

// ApplicationStore persists registered applications.
type ApplicationStore struct {
	DB *gorm.DB
}

func NewApplicationStore(db *gorm.DB) *ApplicationStore { return &ApplicationStore{DB: db} }

func (s *ApplicationStore) Create(ctx context.Context, app *models.Application) error {
	if app.ID == "" {
		app.ID = models.NewID()
	}
	now := time.Now().UTC()
	app.CreatedAt, app.UpdatedAt = now, now
	rec, err := app.ToRecord()
	if err != nil {
		return err
	}
	return mapErr("application", s.DB.WithContext(ctx).Create(&rec).Error)
}

// Update overwrites every mutable column of app.
func (s *ApplicationStore) Update(ctx context.Context, app *models.Application) error {
	app.UpdatedAt = time.Now().UTC()
	rec, err := app.ToRecord()
	if err != nil {
		return err
	}
	res := s.DB.WithContext(ctx).Model(&models.ApplicationRecord{}).Where("id = ?", app.ID).Updates(map[string]interface{}{
		"name":             rec.Name,
		"prefix":           rec.Prefix,
		"host":             rec.Host,
		"roles":            rec.Roles,
		"anonymous_routes": rec.AnonymousRoutes,
		"auto_roles":       rec.AutoRoles,
		"updated_at":       rec.UpdatedAt,
	})
	if res.Error != nil {
		return mapErr("application", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("application not found: %w", errors.ErrNotFound)
	}
	return nil
}

func (s *ApplicationStore) Get(ctx context.Context, id string) (*models.Application, error) {
	return s.first(ctx, "id = ?", id)
}

func (s *ApplicationStore) GetByName(ctx context.Context, name string) (*models.Application, error) {
	return s.first(ctx, "name = ?", name)
}

func (s *ApplicationStore) GetByPrefix(ctx context.Context, prefix string) (*models.Application, error) {
	return s.first(ctx, "prefix = ?", prefix)
}

func (s *ApplicationStore) first(ctx context.Context, query string, arg any) (*models.Application, error) {
	var rec models.ApplicationRecord
	if err := s.DB.WithContext(ctx).Where(query, arg).First(&rec).Error; err != nil {
		return nil, mapErr("application", err)
	}
	app, err := rec.Application()
	if err != nil {
		return nil, err
	}
	return &app, nil
}

func (s *ApplicationStore) List(ctx context.Context) ([]models.Application, error) {
	var recs []models.ApplicationRecord
	if err := s.DB.WithContext(ctx).Order("name ASC").Find(&recs).Error; err != nil {
		return nil, mapErr("list applications", err)
	}
	apps := make([]models.Application, 0, len(recs))
	for _, r := range recs {
		app, err := r.Application()
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, nil
}

func (s *ApplicationStore) Delete(ctx context.Context, id string) error {
	res := s.DB.WithContext(ctx).Where("id = ?", id).Delete(&models.ApplicationRecord{})
	if res.Error != nil {
		return mapErr("delete application", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("application not found: %w", errors.ErrNotFound)
	}
	return nil
}
