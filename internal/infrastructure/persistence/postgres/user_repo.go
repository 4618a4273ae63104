package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/wakeup-hub/wakeup-hub/internal/domain/alarm"
	"github.com/wakeup-hub/wakeup-hub/internal/domain/challenge"
	"github.com/wakeup-hub/wakeup-hub/internal/domain/shared"
	"github.com/wakeup-hub/wakeup-hub/internal/domain/sleep"
	"github.com/wakeup-hub/wakeup-hub/internal/domain/user"
	"github.com/wakeup-hub/wakeup-hub/pkg/circuitbreaker"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// DefaultQueryTimeout bounds each repository call.
const DefaultQueryTimeout = 3 * time.Second

// UserRepository implements user.Repository for PostgreSQL.
type UserRepository struct {
	conn    *Connection
	breaker *circuitbreaker.CircuitBreaker
	timeout time.Duration
}

// NewUserRepository creates a new UserRepository. A nil breaker gets the
// default database breaker; a zero timeout gets DefaultQueryTimeout.
func NewUserRepository(conn *Connection, breaker *circuitbreaker.CircuitBreaker, timeout time.Duration) *UserRepository {
	if breaker == nil {
		breaker = circuitbreaker.DatabaseBreaker(IsInfrastructureError, nil)
	}
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	return &UserRepository{conn: conn, breaker: breaker, timeout: timeout}
}

// IsInfrastructureError reports errors that should trip the breaker: anything
// that is not a business outcome such as "not found" or "version conflict".
func IsInfrastructureError(err error) bool {
	var de *shared.DomainError
	return err != nil && !errors.As(err, &de)
}

// document is the JSONB body of a user row.
type document struct {
	DisplayName string         `json:"display_name"`
	Timezone    string         `json:"timezone"`
	Alarms      []alarm.Alarm  `json:"alarms"`
	Sessions    sleep.History  `json:"sleep_sessions"`
	WakeUps     []sleep.WakeUp `json:"wakeups"`
	Challenges  challenge.Set  `json:"challenges"`
}

const selectUser = `
	SELECT id, email, username, password_hash, xp, document,
		   friends, outgoing_requests, incoming_requests,
		   version, created_at, updated_at
	FROM users
`

var (
	fieldColumns = map[user.Field]string{
		user.FieldEmail:    "email",
		user.FieldUsername: "username",
	}
	setColumns = map[user.SetName]string{
		user.SetFriends:  "friends",
		user.SetOutgoing: "outgoing_requests",
		user.SetIncoming: "incoming_requests",
	}
)

// call runs fn under the query timeout and the breaker and reports every
// non-business failure as transient.
func (r *UserRepository) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	err := r.breaker.Execute(ctx, fn)
	if err == nil {
		return nil
	}
	if IsInfrastructureError(err) {
		return shared.Transient("user", op, err)
	}
	return err
}

// ─────────────────────────────────────────────────────────────────────────────
// CRUD Operations
// ─────────────────────────────────────────────────────────────────────────────

// Create inserts a new user with version 1.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	doc, err := marshalDocument(u)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO users (
			id, email, username, password_hash, xp, document,
			friends, outgoing_requests, incoming_requests,
			version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1, $10, $11)
	`

	err = r.call(ctx, "Create", func(ctx context.Context) error {
		_, err := r.conn.Exec(ctx, query,
			u.ID,
			u.Email,
			u.Username,
			u.PasswordHash,
			u.XP,
			doc,
			nonNil(u.Friends),
			nonNil(u.OutgoingRequests),
			nonNil(u.IncomingRequests),
			u.CreatedAt,
			u.UpdatedAt,
		)
		if IsUniqueViolation(err) {
			return shared.ErrUserAlreadyExists
		}
		return err
	})
	if err != nil {
		return err
	}

	u.Version = 1
	return nil
}

// FindByID returns a user by id.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*user.User, error) {
	var u *user.User
	err := r.call(ctx, "FindByID", func(ctx context.Context) error {
		var err error
		u, err = scanUser(r.conn.QueryRow(ctx, selectUser+" WHERE id = $1", id))
		return err
	})
	return u, err
}

// FindByField returns a user by a unique field.
func (r *UserRepository) FindByField(ctx context.Context, field user.Field, value string) (*user.User, error) {
	col, ok := fieldColumns[field]
	if !ok {
		return nil, shared.NewDomainError("user", "FindByField", shared.ErrValidation, fmt.Sprintf("unsupported field %q", field))
	}
	if field == user.FieldEmail {
		value = user.NormalizeEmail(value)
	}

	var u *user.User
	err := r.call(ctx, "FindByField", func(ctx context.Context) error {
		var err error
		u, err = scanUser(r.conn.QueryRow(ctx, selectUser+" WHERE "+col+" = $1", value))
		return err
	})
	return u, err
}

// Save writes the aggregate body if nobody saved since u was loaded.
func (r *UserRepository) Save(ctx context.Context, u *user.User) error {
	doc, err := marshalDocument(u)
	if err != nil {
		return err
	}

	query := `
		UPDATE users SET
			password_hash = $1,
			xp = $2,
			document = $3,
			updated_at = $4,
			version = version + 1
		WHERE id = $5 AND version = $6
	`

	err = r.call(ctx, "Save", func(ctx context.Context) error {
		tag, err := r.conn.Exec(ctx, query, u.PasswordHash, u.XP, doc, u.UpdatedAt, u.ID, u.Version)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 1 {
			return nil
		}
		return r.missingOrConflict(ctx, u.ID)
	})
	if err != nil {
		return err
	}

	u.Version++
	return nil
}

// AddToSet appends member to the set column unless it is already present.
func (r *UserRepository) AddToSet(ctx context.Context, id string, set user.SetName, member string) error {
	col, ok := setColumns[set]
	if !ok {
		return shared.NewDomainError("user", "AddToSet", shared.ErrValidation, fmt.Sprintf("unknown set %q", set))
	}

	query := fmt.Sprintf(`
		UPDATE users SET
			%[1]s = CASE WHEN $2 = ANY(%[1]s) THEN %[1]s ELSE array_append(%[1]s, $2) END,
			updated_at = NOW()
		WHERE id = $1
	`, col)

	return r.call(ctx, "AddToSet", func(ctx context.Context) error {
		tag, err := r.conn.Exec(ctx, query, id, member)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrUserNotFound
		}
		return nil
	})
}

// RemoveFromSet removes every occurrence of member from the set column.
func (r *UserRepository) RemoveFromSet(ctx context.Context, id string, set user.SetName, member string) error {
	col, ok := setColumns[set]
	if !ok {
		return shared.NewDomainError("user", "RemoveFromSet", shared.ErrValidation, fmt.Sprintf("unknown set %q", set))
	}

	query := fmt.Sprintf(`
		UPDATE users SET %[1]s = array_remove(%[1]s, $2), updated_at = NOW()
		WHERE id = $1
	`, col)

	return r.call(ctx, "RemoveFromSet", func(ctx context.Context) error {
		tag, err := r.conn.Exec(ctx, query, id, member)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrUserNotFound
		}
		return nil
	})
}

// ListIDs returns all user ids, oldest first.
func (r *UserRepository) ListIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.call(ctx, "ListIDs", func(ctx context.Context) error {
		rows, err := r.conn.Query(ctx, `SELECT id FROM users ORDER BY created_at, id`)
		if err != nil {
			return err
		}
		ids, err = pgx.CollectRows(rows, pgx.RowTo[string])
		return err
	})
	return ids, err
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func (r *UserRepository) missingOrConflict(ctx context.Context, id string) error {
	var exists bool
	err := r.conn.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return shared.ErrUserNotFound
	}
	return shared.ErrVersionConflict
}

func marshalDocument(u *user.User) ([]byte, error) {
	doc, err := json.Marshal(document{
		DisplayName: u.DisplayName,
		Timezone:    u.Timezone,
		Alarms:      u.Alarms,
		Sessions:    u.Sessions,
		WakeUps:     u.WakeUps,
		Challenges:  u.Challenges,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal user document: %w", err)
	}
	return doc, nil
}

func scanUser(row pgx.Row) (*user.User, error) {
	var (
		u   user.User
		raw []byte
	)
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Username,
		&u.PasswordHash,
		&u.XP,
		&raw,
		&u.Friends,
		&u.OutgoingRequests,
		&u.IncomingRequests,
		&u.Version,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user document: %w", err)
	}
	u.DisplayName = doc.DisplayName
	u.Timezone = doc.Timezone
	u.Alarms = doc.Alarms
	u.Sessions = doc.Sessions
	u.WakeUps = doc.WakeUps
	u.Challenges = doc.Challenges
	u.Normalize()

	return &u, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
