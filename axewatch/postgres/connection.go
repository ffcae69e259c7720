// File: connection.go
package postgres

import (
	"fmt"
	"strings"
	"sync"

	"github.com/AxeWatch/go-api/axewatch/postgres/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var (
	db *gorm.DB
	mu sync.Mutex
)

// Connect opens the durable-log database and migrates the schema. DSNs
// starting with postgres:// or host= use the postgres driver; anything else
// is treated as a sqlite file path (used for local development and tests).
func Connect(dsn string) (*gorm.DB, error) {
	mu.Lock()
	defer mu.Unlock()

	var (
		conn *gorm.DB
		err  error
	)
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "host=") {
		conn, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	} else {
		conn, err = gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	}
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := conn.AutoMigrate(&models.ViolationEvent{}); err != nil {
		return nil, fmt.Errorf("migrate database schema: %w", err)
	}

	db = conn
	return db, nil
}

// GetDB returns the shared connection established by Connect, or nil when
// Connect has not been called.
func GetDB() *gorm.DB {
	mu.Lock()
	defer mu.Unlock()
	return db
}
