package rules

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // postgres driver

	"authgate/internal/domain"
	id "authgate/pkg/domain"
)

// PostgresStore reads personalized rules from PostgreSQL. The table is
// owned and written by the rule management service; this store only
// selects from it.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed rule store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Open connects to postgres with the given DSN and verifies the
// connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

func (s *PostgresStore) ListForUserAction(ctx context.Context, userID id.UserID, action string) ([]domain.PersonalizedRule, error) {
	query := `
		SELECT id, user_id, tenant_id, action, resource, granted,
		       valid_from, valid_until, created_at
		FROM personalized_rules
		WHERE user_id = $1 AND action = $2
		ORDER BY created_at
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(userID), action)
	if err != nil {
		return nil, fmt.Errorf("list personalized rules: %w", err)
	}
	defer rows.Close()

	var out []domain.PersonalizedRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan personalized rule: %w", err)
		}
		out = append(out, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate personalized rules: %w", err)
	}
	return out, nil
}

func scanRule(rows *sql.Rows) (domain.PersonalizedRule, error) {
	var (
		rule       domain.PersonalizedRule
		ruleID     uuid.UUID
		userID     uuid.UUID
		tenantID   uuid.NullUUID
		resource   sql.NullString
		validFrom  sql.NullTime
		validUntil sql.NullTime
	)
	err := rows.Scan(&ruleID, &userID, &tenantID, &rule.Action, &resource,
		&rule.Granted, &validFrom, &validUntil, &rule.CreatedAt)
	if err != nil {
		return domain.PersonalizedRule{}, err
	}

	rule.ID = id.RuleID(ruleID)
	rule.UserID = id.UserID(userID)
	if tenantID.Valid {
		tid := id.TenantID(tenantID.UUID)
		rule.TenantID = &tid
	}
	if resource.Valid {
		rule.Resource = resource.String
	}
	if validFrom.Valid {
		t := validFrom.Time
		rule.ValidFrom = &t
	}
	if validUntil.Valid {
		t := validUntil.Time
		rule.ValidUntil = &t
	}
	return rule, nil
}
