package models

import (
	"encoding/json"
	"time"
)

// Application is a registered tenant service. Its roles are installed into the ACL on
// registration; anonymous routes bypass authentication at the gateway; auto roles are
// assigned to every new user.
type Application struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	Prefix          string       `json:"prefix"`
	Host            string       `json:"host"`
	Roles           []RoleAllows `json:"roles"`
	AnonymousRoutes []string     `json:"anonymousRoutes"`
	AutoRoles       []string     `json:"autoRoles"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}

// ApplicationRecord is the persisted form of an Application; list-valued fields are JSON columns.
type ApplicationRecord struct {
	ID              string    `gorm:"column:id;primaryKey"`
	Name            string    `gorm:"column:name;uniqueIndex"`
	Prefix          string    `gorm:"column:prefix;uniqueIndex"`
	Host            string    `gorm:"column:host"`
	Roles           string    `gorm:"column:roles"`
	AnonymousRoutes string    `gorm:"column:anonymous_routes"`
	AutoRoles       string    `gorm:"column:auto_roles"`
	CreatedAt       time.Time `gorm:"column:created_at"`
	UpdatedAt       time.Time `gorm:"column:updated_at"`
}

func (ApplicationRecord) TableName() string { return "applications" }

// ToRecord encodes the application for storage.
func (a Application) ToRecord() (ApplicationRecord, error) {
	roles, err := json.Marshal(nonNil(a.Roles))
	if err != nil {
		return ApplicationRecord{}, err
	}
	anon, err := json.Marshal(nonNil(a.AnonymousRoutes))
	if err != nil {
		return ApplicationRecord{}, err
	}
	auto, err := json.Marshal(nonNil(a.AutoRoles))
	if err != nil {
		return ApplicationRecord{}, err
	}
	return ApplicationRecord{
		ID:              a.ID,
		Name:            a.Name,
		Prefix:          a.Prefix,
		Host:            a.Host,
		Roles:           string(roles),
		AnonymousRoutes: string(anon),
		AutoRoles:       string(auto),
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}, nil
}

// Application decodes a stored record.
func (r ApplicationRecord) Application() (Application, error) {
	app := Application{
		ID:        r.ID,
		Name:      r.Name,
		Prefix:    r.Prefix,
		Host:      r.Host,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if len(r.Roles) > 0 {
		if err := json.Unmarshal([]byte(r.Roles), &app.Roles); err != nil {
			return Application{}, err
		}
	}
	if len(r.AnonymousRoutes) > 0 {
		if err := json.Unmarshal([]byte(r.AnonymousRoutes), &app.AnonymousRoutes); err != nil {
			return Application{}, err
		}
	}
	if len(r.AutoRoles) > 0 {
		if err := json.Unmarshal([]byte(r.AutoRoles), &app.AutoRoles); err != nil {
			return Application{}, err
		}
	}
	return app, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
