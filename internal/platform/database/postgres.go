package database

import (
	"database/sql"
	"log"
	"time"

	"quizclash/internal/platform/config"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
)

var DB *sql.DB

func Connect() {
	var err error
	DB, err = sql.Open("pgx", config.AppConfig.DBConnStr)
	if err != nil {
		log.Fatalf("Error opening database: %v", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	if err = DB.Ping(); err != nil {
		log.Fatalf("Error connecting to database: %v", err)
	}
}

func Close() {
	if DB != nil {
		DB.Close()
	}
}
