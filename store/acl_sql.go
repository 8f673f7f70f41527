package store

import (
	"context"

	"github.com/legit-games/user-registry/acl"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ACLEntry is one member of an ACL set.
type ACLEntry struct {
	Bucket string `gorm:"column:bucket;primaryKey"`
	Key    string `gorm:"column:key;primaryKey"`
	Value  string `gorm:"column:value;primaryKey"`
}

func (ACLEntry) TableName() string { return "acl_entries" }

// SQLACLBackend keeps ACL sets in the acl_entries table.
type SQLACLBackend struct {
	DB *gorm.DB
}

func NewSQLACLBackend(db *gorm.DB) *SQLACLBackend { return &SQLACLBackend{DB: db} }

func (b *SQLACLBackend) Get(ctx context.Context, bucket, key string) ([]string, error) {
	var values []string
	err := b.DB.WithContext(ctx).Model(&ACLEntry{}).
		Where("bucket = ? AND key = ?", bucket, key).
		Order("value ASC").
		Pluck("value", &values).Error
	return values, err
}

func (b *SQLACLBackend) Add(ctx context.Context, bucket, key string, values ...string) error {
	if len(values) == 0 {
		return nil
	}
	rows := make([]ACLEntry, 0, len(values))
	for _, v := range values {
		rows = append(rows, ACLEntry{Bucket: bucket, Key: key, Value: v})
	}
	return b.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

func (b *SQLACLBackend) Remove(ctx context.Context, bucket, key string, values ...string) error {
	if len(values) == 0 {
		return nil
	}
	return b.DB.WithContext(ctx).
		Where("bucket = ? AND key = ? AND value IN ?", bucket, key, values).
		Delete(&ACLEntry{}).Error
}

func (b *SQLACLBackend) Del(ctx context.Context, bucket string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return b.DB.WithContext(ctx).
		Where("bucket = ? AND key IN ?", bucket, keys).
		Delete(&ACLEntry{}).Error
}

// Atomic runs fn inside one database transaction.
func (b *SQLACLBackend) Atomic(ctx context.Context, fn func(acl.Backend) error) error {
	return b.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&SQLACLBackend{DB: tx})
	})
}
