package main

import (
	"database/sql"
	"fmt"
	"log"

	"relayer-backend/internal/config"

	_ "github.com/lib/pq"
)

func main() {
	fmt.Println("🔍 Verifying database connection and schema...")

	if err := config.LoadConfig(""); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	sqlDB, err := sql.Open("postgres", config.AppConfig.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	var dbName string
	if err := sqlDB.QueryRow("SELECT current_database()").Scan(&dbName); err != nil {
		log.Fatalf("Failed to get database name: %v", err)
	}
	fmt.Printf("📋 Connected to database: %s\n", dbName)

	// The order id column must hold a 0x-prefixed keccak hash (66 chars)
	var size sql.NullInt64
	err = sqlDB.QueryRow(`
		SELECT character_maximum_length
		FROM information_schema.columns
		WHERE table_schema = 'public'
		AND table_name = 'orders'
		AND column_name = 'id'
	`).Scan(&size)
	if err != nil {
		log.Fatalf("Failed to query column size: %v", err)
	}

	if !size.Valid {
		fmt.Println("❌ orders.id column does not exist! Run the relayer once to migrate.")
		return
	}

	fmt.Printf("📋 orders.id column size: VARCHAR(%d)\n", size.Int64)
	if size.Int64 < 66 {
		fmt.Printf("❌ Column size is too small! Need VARCHAR(66), but got VARCHAR(%d)\n", size.Int64)
		fmt.Println("\n🔧 Fixing column size...")

		if _, err := sqlDB.Exec(`ALTER TABLE orders ALTER COLUMN id TYPE VARCHAR(66)`); err != nil {
			log.Fatalf("Failed to fix column size: %v", err)
		}
		fmt.Println("✅ Column size fixed to VARCHAR(66)")
	} else {
		fmt.Printf("✅ Column size is correct: VARCHAR(%d)\n", size.Int64)
	}

	// Count rows per table for a quick sanity report
	for _, table := range []string{"orders", "commitments", "escrow_records", "secret_records", "penalty_records"} {
		var count int64
		if err := sqlDB.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count); err != nil {
			fmt.Printf("⚠️ Table %s not found: %v\n", table, err)
			continue
		}
		fmt.Printf("📊 %s: %d rows\n", table, count)
	}

	fmt.Println("\n✅ Database verification complete")
}
