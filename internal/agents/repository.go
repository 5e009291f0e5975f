// Package agents provides the agent roster: the master agent plus any
// specialized agents a company has configured.
package agents

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/wolfman30/voiceline-ai/pkg/logging"
)

// ErrNotFound is returned when no agent matches the lookup.
var ErrNotFound = errors.New("agents: not found")

// Agent is one configured voice agent.
type Agent struct {
	ID            string
	CompanyID     string
	Name          string
	Description   string
	PersonaPrompt string
	Greeting      string
	Fallbacks     []string // canned lines spoken when providers degrade
}

// DB is the subset of pgxpool.Pool the repository needs.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository loads agents from Postgres. The pipeline reads the roster once
// per call at call start; there is no internal caching beyond that.
type Repository struct {
	db     DB
	logger *logging.Logger
}

// NewRepository creates a repository over the pool.
func NewRepository(db DB, logger *logging.Logger) *Repository {
	if db == nil {
		panic("agents: db cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Repository{db: db, logger: logger}
}

const agentColumns = `id, company_id, name, description, persona_prompt, greeting, fallbacks`

// AgentByID loads one agent.
func (r *Repository) AgentByID(ctx context.Context, id string) (*Agent, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE id = $1`, id)

	var a Agent
	err := row.Scan(&a.ID, &a.CompanyID, &a.Name, &a.Description, &a.PersonaPrompt, &a.Greeting, &a.Fallbacks)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("agents: load %s: %w", id, err)
	}
	return &a, nil
}

// RosterByCompany returns the company's specialized agents, ordered by name.
// The master agent is not part of the roster; it is the default.
func (r *Repository) RosterByCompany(ctx context.Context, companyID string) ([]Agent, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE company_id = $1 AND master = FALSE ORDER BY name`, companyID)
	if err != nil {
		return nil, fmt.Errorf("agents: roster for %s: %w", companyID, err)
	}
	defer rows.Close()

	var roster []Agent
	for rows.Next() {
		var a Agent
		if err := rows.Scan(&a.ID, &a.CompanyID, &a.Name, &a.Description, &a.PersonaPrompt, &a.Greeting, &a.Fallbacks); err != nil {
			return nil, fmt.Errorf("agents: scan roster row: %w", err)
		}
		roster = append(roster, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("agents: roster rows: %w", err)
	}
	return roster, nil
}

// MasterByCompany loads the company's master agent.
func (r *Repository) MasterByCompany(ctx context.Context, companyID string) (*Agent, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE company_id = $1 AND master = TRUE`, companyID)

	var a Agent
	err := row.Scan(&a.ID, &a.CompanyID, &a.Name, &a.Description, &a.PersonaPrompt, &a.Greeting, &a.Fallbacks)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("agents: master for %s: %w", companyID, err)
	}
	return &a, nil
}
