package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied in order; every statement is idempotent.
//
// bookings.active_member_id is member_id while the booking is confirmed
// or waitlisted and NULL once cancelled.  MySQL unique keys ignore NULLs,
// so uq_bookings_active allows any number of cancelled bookings but at
// most one active booking per member and class.
//
// class_schedules.trainer_id references the trainer's users row.  The
// optional profile in trainers hangs off the same user id.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		email         VARCHAR(255)    NOT NULL,
		password_hash VARCHAR(255)    NOT NULL,
		full_name     VARCHAR(255)    NOT NULL DEFAULT '',
		role          ENUM('admin','member','trainer') NOT NULL DEFAULT 'member',
		created_at    DATETIME(6)     NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		UNIQUE KEY uq_users_email (email)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS class_schedules (
		id          BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		title       VARCHAR(255)    NOT NULL,
		description TEXT            NULL,
		trainer_id  BIGINT UNSIGNED NOT NULL,
		room        VARCHAR(100)    NULL,
		capacity    INT UNSIGNED    NOT NULL,
		start_time  DATETIME(6)     NOT NULL,
		end_time    DATETIME(6)     NOT NULL,
		created_at  DATETIME(6)     NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		KEY idx_class_start (start_time, id),
		CONSTRAINT fk_class_trainer FOREIGN KEY (trainer_id) REFERENCES users (id) ON DELETE CASCADE,
		CONSTRAINT chk_class_capacity CHECK (capacity > 0),
		CONSTRAINT chk_class_times CHECK (end_time > start_time)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS bookings (
		id               BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		member_id        BIGINT UNSIGNED NOT NULL,
		class_id         BIGINT UNSIGNED NOT NULL,
		status           ENUM('confirmed','waitlisted','cancelled') NOT NULL,
		created_at       DATETIME(6)     NOT NULL,
		active_member_id BIGINT UNSIGNED AS (IF(status = 'cancelled', NULL, member_id)) VIRTUAL,
		UNIQUE KEY uq_bookings_active (class_id, active_member_id),
		KEY idx_bookings_class_status (class_id, status, created_at, id),
		KEY idx_bookings_member (member_id, created_at, id),
		CONSTRAINT fk_booking_member FOREIGN KEY (member_id) REFERENCES users (id) ON DELETE CASCADE,
		CONSTRAINT fk_booking_class FOREIGN KEY (class_id) REFERENCES class_schedules (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS attendance (
		id         BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		booking_id BIGINT UNSIGNED NOT NULL,
		attended   BOOLEAN         NOT NULL,
		notes      TEXT            NULL,
		created_at DATETIME(6)     NOT NULL,
		UNIQUE KEY uq_attendance_booking (booking_id),
		CONSTRAINT fk_attendance_booking FOREIGN KEY (booking_id) REFERENCES bookings (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS membership_plans (
		id            BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		name          VARCHAR(255)    NOT NULL,
		description   TEXT            NULL,
		duration_days INT UNSIGNED    NOT NULL,
		price         INT UNSIGNED    NOT NULL,
		features      TEXT            NULL,
		created_at    DATETIME(6)     NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		UNIQUE KEY uq_plan_name (name),
		CONSTRAINT chk_plan_duration CHECK (duration_days > 0)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS memberships (
		id         BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		member_id  BIGINT UNSIGNED NOT NULL,
		plan_id    BIGINT UNSIGNED NOT NULL,
		start_date DATETIME(6)     NOT NULL,
		end_date   DATETIME(6)     NOT NULL,
		status     ENUM('active','expired','cancelled') NOT NULL DEFAULT 'active',
		created_at DATETIME(6)     NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		KEY idx_memberships_member (member_id, status),
		CONSTRAINT fk_membership_member FOREIGN KEY (member_id) REFERENCES users (id) ON DELETE CASCADE,
		CONSTRAINT fk_membership_plan FOREIGN KEY (plan_id) REFERENCES membership_plans (id) ON DELETE RESTRICT
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS trainers (
		id             BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		user_id        BIGINT UNSIGNED NOT NULL,
		bio            TEXT            NULL,
		specialties    TEXT            NULL,
		certifications TEXT            NULL,
		created_at     DATETIME(6)     NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		UNIQUE KEY uq_trainer_user (user_id),
		CONSTRAINT fk_trainer_user FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates any missing tables.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
