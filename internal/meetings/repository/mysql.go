package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	meetingserrors "minidoodle/internal/meetings/errors"
	"minidoodle/pkg/db"
	mysqldb "minidoodle/pkg/db/mysql"
	"minidoodle/pkg/model"

	"github.com/google/uuid"
)

const meetingColumns = "id, slot_id, calendar_id, owner_id, title, description, start_time, end_time, created_at, updated_at"

// mysqlMeetingRepository keeps participants in the meeting_participants join
// table. Every write spanning both tables runs in a transaction.
type mysqlMeetingRepository struct {
	db *mysqldb.DB
}

func NewMySQLMeetingRepository(store *mysqldb.DB) MeetingRepository {
	return &mysqlMeetingRepository{db: store}
}

func (r *mysqlMeetingRepository) Create(ctx context.Context, meeting *model.Meeting) error {
	if meeting.ID == "" {
		meeting.ID = uuid.NewString()
	}
	if meeting.ParticipantIDs == nil {
		meeting.ParticipantIDs = []string{}
	}
	meeting.CreatedAt = now()
	meeting.UpdatedAt = meeting.CreatedAt

	return r.db.ExecuteTransaction(ctx, func(ctx context.Context) error {
		_, err := r.db.Conn(ctx).ExecContext(ctx,
			"INSERT INTO meetings ("+meetingColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
			meeting.ID, meeting.SlotID, meeting.CalendarID, meeting.OwnerID, meeting.Title, meeting.Description,
			meeting.StartTime, meeting.EndTime, meeting.CreatedAt, meeting.UpdatedAt,
		)
		if err != nil {
			if mysqldb.IsDuplicateKey(err) {
				return meetingserrors.ErrSlotAlreadyBooked
			}
			return fmt.Errorf("failed to create meeting: %w", err)
		}
		return r.insertParticipants(ctx, meeting.ID, meeting.ParticipantIDs)
	})
}

func (r *mysqlMeetingRepository) FindByID(ctx context.Context, id string) (*model.Meeting, error) {
	return r.findOne(ctx, "SELECT "+meetingColumns+" FROM meetings WHERE id = ?", id)
}

func (r *mysqlMeetingRepository) FindBySlotID(ctx context.Context, slotID string) (*model.Meeting, error) {
	return r.findOne(ctx, "SELECT "+meetingColumns+" FROM meetings WHERE slot_id = ?", slotID)
}

func (r *mysqlMeetingRepository) ListByParticipant(ctx context.Context, userID string, from, to time.Time) ([]*model.Meeting, error) {
	return r.list(ctx,
		`SELECT `+prefixed("m", meetingColumns)+` FROM meetings m
		JOIN meeting_participants p ON p.meeting_id = m.id
		WHERE p.user_id = ? AND m.start_time >= ? AND m.end_time <= ?
		ORDER BY m.start_time, m.id`,
		userID, from, to,
	)
}

func (r *mysqlMeetingRepository) ListByOwner(ctx context.Context, ownerID string, from, to time.Time) ([]*model.Meeting, error) {
	return r.list(ctx,
		`SELECT `+meetingColumns+` FROM meetings
		WHERE owner_id = ? AND start_time >= ? AND end_time <= ?
		ORDER BY start_time, id`,
		ownerID, from, to,
	)
}

func (r *mysqlMeetingRepository) Update(ctx context.Context, meeting *model.Meeting) error {
	return r.db.ExecuteTransaction(ctx, func(ctx context.Context) error {
		current, err := r.FindByID(ctx, meeting.ID)
		if err != nil {
			return err
		}

		updatedAt := now()
		if _, err := r.db.Conn(ctx).ExecContext(ctx,
			"UPDATE meetings SET title = ?, description = ?, updated_at = ? WHERE id = ?",
			meeting.Title, meeting.Description, updatedAt, meeting.ID,
		); err != nil {
			return fmt.Errorf("failed to update meeting: %w", err)
		}
		if _, err := r.db.Conn(ctx).ExecContext(ctx,
			"DELETE FROM meeting_participants WHERE meeting_id = ?", meeting.ID,
		); err != nil {
			return fmt.Errorf("failed to clear participants: %w", err)
		}
		if err := r.insertParticipants(ctx, meeting.ID, meeting.ParticipantIDs); err != nil {
			return err
		}

		current.Title = meeting.Title
		current.Description = meeting.Description
		current.ParticipantIDs = meeting.ParticipantIDs
		current.UpdatedAt = updatedAt
		*meeting = *current
		return nil
	})
}

// Delete removes participant rows through ON DELETE CASCADE.
func (r *mysqlMeetingRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Conn(ctx).ExecContext(ctx, "DELETE FROM meetings WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete meeting: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("failed to delete meeting: %w", err)
	} else if n == 0 {
		return meetingserrors.ErrMeetingNotFound
	}
	return nil
}

func (r *mysqlMeetingRepository) ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) error {
	return r.db.ExecuteTransaction(ctx, fn)
}

func (r *mysqlMeetingRepository) findOne(ctx context.Context, query, arg string) (*model.Meeting, error) {
	meeting, err := scanMeeting(r.db.Conn(ctx).QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, meetingserrors.ErrMeetingNotFound
		}
		return nil, fmt.Errorf("failed to find meeting: %w", err)
	}
	if err := r.loadParticipants(ctx, []*model.Meeting{meeting}); err != nil {
		return nil, err
	}
	return meeting, nil
}

func (r *mysqlMeetingRepository) list(ctx context.Context, query string, args ...any) ([]*model.Meeting, error) {
	rows, err := r.db.Conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find meetings: %w", err)
	}
	defer rows.Close()

	meetings := []*model.Meeting{}
	for rows.Next() {
		meeting, err := scanMeeting(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to decode meetings: %w", err)
		}
		meetings = append(meetings, meeting)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate meetings: %w", err)
	}

	if err := r.loadParticipants(ctx, meetings); err != nil {
		return nil, err
	}
	return meetings, nil
}

func (r *mysqlMeetingRepository) insertParticipants(ctx context.Context, meetingID string, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}

	args := make([]any, 0, len(userIDs)*2)
	for _, id := range userIDs {
		args = append(args, meetingID, id)
	}
	query := "INSERT INTO meeting_participants (meeting_id, user_id) VALUES (?, ?)" +
		strings.Repeat(", (?, ?)", len(userIDs)-1)
	if _, err := r.db.Conn(ctx).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert participants: %w", err)
	}
	return nil
}

// loadParticipants fills ParticipantIDs for all meetings with one query.
func (r *mysqlMeetingRepository) loadParticipants(ctx context.Context, meetings []*model.Meeting) error {
	if len(meetings) == 0 {
		return nil
	}

	byID := make(map[string]*model.Meeting, len(meetings))
	args := make([]any, 0, len(meetings))
	for _, m := range meetings {
		m.ParticipantIDs = []string{}
		byID[m.ID] = m
		args = append(args, m.ID)
	}

	rows, err := r.db.Conn(ctx).QueryContext(ctx,
		"SELECT meeting_id, user_id FROM meeting_participants WHERE meeting_id IN (?"+
			strings.Repeat(", ?", len(args)-1)+") ORDER BY meeting_id, user_id",
		args...,
	)
	if err != nil {
		return fmt.Errorf("failed to load participants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var meetingID, userID string
		if err := rows.Scan(&meetingID, &userID); err != nil {
			return fmt.Errorf("failed to decode participants: %w", err)
		}
		if m, ok := byID[meetingID]; ok {
			m.ParticipantIDs = append(m.ParticipantIDs, userID)
		}
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMeeting(row rowScanner) (*model.Meeting, error) {
	var (
		meeting     model.Meeting
		description sql.NullString
	)
	err := row.Scan(&meeting.ID, &meeting.SlotID, &meeting.CalendarID, &meeting.OwnerID, &meeting.Title,
		&description, &meeting.StartTime, &meeting.EndTime, &meeting.CreatedAt, &meeting.UpdatedAt)
	if err != nil {
		return nil, err
	}
	meeting.Description = description.String
	meeting.StartTime = meeting.StartTime.UTC()
	meeting.EndTime = meeting.EndTime.UTC()
	meeting.CreatedAt = meeting.CreatedAt.UTC()
	meeting.UpdatedAt = meeting.UpdatedAt.UTC()
	return &meeting, nil
}

func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ", ")
	for i, p := range parts {
		parts[i] = alias + "." + p
	}
	return strings.Join(parts, ", ")
}
