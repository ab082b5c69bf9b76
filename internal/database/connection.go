package database

import (
	"fmt"
	"log"
	"strings"
	"time"

	"reconciliation-lifecycle/internal/config"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

func NewConnection(cfg *config.Config) (*sqlx.DB, error) {
	if cfg.Database.Driver == "sqlite3" {
		return newSQLiteConnection(cfg)
	}

	db, err := sqlx.Open("mysql", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("error opening database: %v", err)
	}

	err = db.Ping()
	if err != nil {
		if strings.Contains(err.Error(), "Unknown database") {
			log.Printf("Database '%s' does not exist, attempting to create it...", cfg.Database.Name)

			db.Close()

			rootDB, err := sqlx.Open("mysql", getRootDSN(cfg))
			if err != nil {
				return nil, fmt.Errorf("error connecting to MySQL root: %v", err)
			}
			defer rootDB.Close()
			_, err = rootDB.Exec(fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s` CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci", cfg.Database.Name))
			if err != nil {
				return nil, fmt.Errorf("error creating database: %v", err)
			}

			log.Printf("Successfully created database '%s'", cfg.Database.Name)

			db, err = sqlx.Open("mysql", cfg.GetDSN())
			if err != nil {
				return nil, fmt.Errorf("error connecting to new database: %v", err)
			}

			if err = db.Ping(); err != nil {
				return nil, fmt.Errorf("error verifying connection to new database: %v", err)
			}
		} else {
			return nil, fmt.Errorf("error pinging database: %v", err)
		}
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	log.Println("Successfully connected to MySQL database")
	return db, nil
}

func newSQLiteConnection(cfg *config.Config) (*sqlx.DB, error) {
	path := cfg.Database.Path
	if path == "" {
		path = "reconciliation.db"
	}
	db, err := sqlx.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("error opening sqlite database: %v", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error pinging sqlite database: %v", err)
	}
	if err := ApplySchema(db); err != nil {
		return nil, fmt.Errorf("error applying schema: %v", err)
	}
	log.Println("Successfully connected to SQLite database")
	return db, nil
}

func getRootDSN(cfg *config.Config) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/?parseTime=true",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
	)
}
