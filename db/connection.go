package db

import (
	"database/sql"
	"fmt"
	"log"

	"enrollment-module/config"

	_ "github.com/lib/pq"
)

var DB *sql.DB

func InitDB() error {
	var err error
	connStr := config.GetDBConnString()

	DB, err = sql.Open("postgres", connStr)
	if err != nil {
		return fmt.Errorf("error opening database: %w", err)
	}

	// Test the connection
	err = DB.Ping()
	if err != nil {
		return fmt.Errorf("error connecting to database: %w", err)
	}

	// Create tables
	if err := createTables(); err != nil {
		return fmt.Errorf("error creating tables: %w", err)
	}

	return nil
}

func createTables() error {
	studentTable := `
	CREATE TABLE IF NOT EXISTS students (
		id SERIAL PRIMARY KEY,
		name TEXT,
		email TEXT,
		phone TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`

	courseTable := `
	CREATE TABLE IF NOT EXISTS courses (
		id SERIAL PRIMARY KEY,
		name TEXT DEFAULT '',
		language TEXT NOT NULL,
		level TEXT NOT NULL,
		month INTEGER NOT NULL,
		year INTEGER NOT NULL,
		total_capacity INTEGER NOT NULL,
		batch_size_limit INTEGER NOT NULL,
		status TEXT DEFAULT 'draft',
		regular_enabled BOOLEAN DEFAULT TRUE,
		regular_base_price REAL DEFAULT 0,
		regular_material_cost REAL DEFAULT 0,
		revision_enabled BOOLEAN DEFAULT FALSE,
		revision_base_price REAL DEFAULT 0,
		revision_material_cost REAL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`

	batchTable := `
	CREATE TABLE IF NOT EXISTS batches (
		id SERIAL PRIMARY KEY,
		course_id INTEGER NOT NULL,
		batch_type TEXT NOT NULL,
		batch_number INTEGER NOT NULL,
		max_students INTEGER NOT NULL,
		current_students INTEGER DEFAULT 0,
		status TEXT DEFAULT 'scheduled',
		start_date TIMESTAMP,
		end_date TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,

		CONSTRAINT fk_batch_course
			FOREIGN KEY (course_id)
			REFERENCES courses(id)
			ON DELETE CASCADE,
		CONSTRAINT chk_batch_capacity
			CHECK (current_students >= 0 AND current_students <= max_students)
	);`

	enrollmentTable := `
	CREATE TABLE IF NOT EXISTS enrollments (
		id SERIAL PRIMARY KEY,
		student_id INTEGER NOT NULL,
		course_id INTEGER NOT NULL,
		batch_id INTEGER,
		batch_type TEXT NOT NULL,
		offline_materials BOOLEAN DEFAULT FALSE,
		status TEXT DEFAULT 'pending',
		payment_amount REAL DEFAULT 0,
		payment_status TEXT DEFAULT 'pending',
		payment_transaction_id TEXT DEFAULT '',
		payment_paid_at TIMESTAMP,
		enrolled_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,

		CONSTRAINT fk_enrollment_student
			FOREIGN KEY (student_id)
			REFERENCES students(id)
			ON DELETE CASCADE,
		CONSTRAINT fk_enrollment_course
			FOREIGN KEY (course_id)
			REFERENCES courses(id)
			ON DELETE CASCADE,
		CONSTRAINT fk_enrollment_batch
			FOREIGN KEY (batch_id)
			REFERENCES batches(id)
			ON DELETE SET NULL
	);`

	paymentTable := `
	CREATE TABLE IF NOT EXISTS payments (
		id SERIAL PRIMARY KEY,
		student_id INTEGER NOT NULL,
		course_id INTEGER NOT NULL,
		enrollment_id INTEGER NOT NULL,
		amount REAL NOT NULL,
		currency TEXT DEFAULT 'INR',
		status TEXT DEFAULT 'pending',
		order_id TEXT UNIQUE,
		payment_id TEXT DEFAULT '',
		signature TEXT DEFAULT '',
		receipt TEXT DEFAULT '',
		refund_owed BOOLEAN DEFAULT FALSE,
		failure_reason TEXT DEFAULT '',
		paid_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,

		CONSTRAINT fk_payment_enrollment
			FOREIGN KEY (enrollment_id)
			REFERENCES enrollments(id)
			ON DELETE CASCADE
	);`

	webhookTable := `
	CREATE TABLE IF NOT EXISTS gateway_webhooks (
		id SERIAL PRIMARY KEY,
		webhook_id TEXT UNIQUE,
		event_type TEXT,
		payload TEXT,
		signature_valid BOOLEAN DEFAULT FALSE,
		status TEXT DEFAULT 'RECEIVED',
		retry_count INTEGER DEFAULT 0,
		error_message TEXT DEFAULT '',
		processed_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`

	tables := []struct {
		name string
		ddl  string
	}{
		{"students", studentTable},
		{"courses", courseTable},
		{"batches", batchTable},
		{"enrollments", enrollmentTable},
		{"payments", paymentTable},
		{"gateway_webhooks", webhookTable},
	}

	for _, t := range tables {
		if _, err := DB.Exec(t.ddl); err != nil {
			return fmt.Errorf("error creating %s table: %w", t.name, err)
		}
	}

	// Index pending enrollments for the reconciliation sweep
	if _, err := DB.Exec(`CREATE INDEX IF NOT EXISTS idx_enrollments_status_created ON enrollments (status, created_at)`); err != nil {
		log.Println("Warning: Error creating enrollment status index:", err)
	}
	if _, err := DB.Exec(`CREATE INDEX IF NOT EXISTS idx_batches_course_type ON batches (course_id, batch_type, status)`); err != nil {
		log.Println("Warning: Error creating batch index:", err)
	}

	return nil
}
