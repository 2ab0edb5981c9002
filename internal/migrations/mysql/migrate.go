package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"minidoodle/pkg/logger"
)

type table struct {
	Name string
	DDL  string
}

// Tables are created in dependency order. Every statement is safe to rerun.
var Tables = []table{
	{
		Name: "users",
		DDL: `CREATE TABLE IF NOT EXISTS users (
	id         CHAR(36)     NOT NULL,
	email      VARCHAR(255) NOT NULL,
	name       VARCHAR(255) NOT NULL,
	created_at DATETIME(3)  NOT NULL,
	updated_at DATETIME(3)  NOT NULL,
	PRIMARY KEY (id),
	UNIQUE KEY uq_users_email (email)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	},
	{
		Name: "calendars",
		DDL: `CREATE TABLE IF NOT EXISTS calendars (
	id         CHAR(36)    NOT NULL,
	user_id    CHAR(36)    NOT NULL,
	timezone   VARCHAR(64) NOT NULL,
	created_at DATETIME(3) NOT NULL,
	PRIMARY KEY (id),
	UNIQUE KEY uq_calendars_user (user_id),
	CONSTRAINT fk_calendars_user FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	},
	{
		Name: "time_slots",
		DDL: `CREATE TABLE IF NOT EXISTS time_slots (
	id          CHAR(36)                       NOT NULL,
	calendar_id CHAR(36)                       NOT NULL,
	start_time  DATETIME(3)                    NOT NULL,
	end_time    DATETIME(3)                    NOT NULL,
	status      ENUM('FREE', 'BUSY', 'BOOKED') NOT NULL,
	version     BIGINT                         NOT NULL DEFAULT 1,
	created_at  DATETIME(3)                    NOT NULL,
	updated_at  DATETIME(3)                    NOT NULL,
	PRIMARY KEY (id),
	KEY idx_time_slots_window (calendar_id, start_time, end_time),
	CONSTRAINT fk_time_slots_calendar FOREIGN KEY (calendar_id) REFERENCES calendars (id) ON DELETE CASCADE,
	CONSTRAINT chk_time_slots_interval CHECK (start_time < end_time)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	},
	{
		Name: "meetings",
		DDL: `CREATE TABLE IF NOT EXISTS meetings (
	id          CHAR(36)      NOT NULL,
	slot_id     CHAR(36)      NOT NULL,
	calendar_id CHAR(36)      NOT NULL,
	owner_id    CHAR(36)      NOT NULL,
	title       VARCHAR(255)  NOT NULL,
	description VARCHAR(1000) NULL,
	start_time  DATETIME(3)   NOT NULL,
	end_time    DATETIME(3)   NOT NULL,
	created_at  DATETIME(3)   NOT NULL,
	updated_at  DATETIME(3)   NOT NULL,
	PRIMARY KEY (id),
	UNIQUE KEY uq_meetings_slot (slot_id),
	KEY idx_meetings_owner (owner_id, start_time),
	CONSTRAINT fk_meetings_slot FOREIGN KEY (slot_id) REFERENCES time_slots (id) ON DELETE RESTRICT,
	CONSTRAINT fk_meetings_owner FOREIGN KEY (owner_id) REFERENCES users (id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	},
	{
		Name: "meeting_participants",
		DDL: `CREATE TABLE IF NOT EXISTS meeting_participants (
	meeting_id CHAR(36) NOT NULL,
	user_id    CHAR(36) NOT NULL,
	PRIMARY KEY (meeting_id, user_id),
	KEY idx_meeting_participants_user (user_id),
	CONSTRAINT fk_participants_meeting FOREIGN KEY (meeting_id) REFERENCES meetings (id) ON DELETE CASCADE,
	CONSTRAINT fk_participants_user FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	},
}

func RunMigration(ctx context.Context, db *sql.DB, log *logger.Logger) error {
	log.Info("Running MySQL migrations", "tables", len(Tables))

	for _, t := range Tables {
		if _, err := db.ExecContext(ctx, t.DDL); err != nil {
			return fmt.Errorf("failed to create table %s: %w", t.Name, err)
		}
		log.Info("Ensured table", "table", t.Name)
	}

	log.Info("All MySQL migrations applied successfully")
	return nil
}
