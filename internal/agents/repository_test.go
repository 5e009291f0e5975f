package agents

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cols = []string{"id", "company_id", "name", "description", "persona_prompt", "greeting", "fallbacks"}

func TestAgentByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT .+ FROM agents WHERE id = \$1`).
		WithArgs("agent-1").
		WillReturnRows(pgxmock.NewRows(cols).AddRow(
			"agent-1", "co-1", "Booking", "schedules appointments",
			"You are the booking specialist.", "Hi, I can help you book.",
			[]string{"One moment please."},
		))

	repo := NewRepository(mock, nil)
	agent, err := repo.AgentByID(context.Background(), "agent-1")
	require.NoError(t, err)
	assert.Equal(t, "Booking", agent.Name)
	assert.Equal(t, []string{"One moment please."}, agent.Fallbacks)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAgentByIDNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT .+ FROM agents WHERE id = \$1`).
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows(cols))

	repo := NewRepository(mock, nil)
	_, err = repo.AgentByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRosterByCompany(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT .+ FROM agents WHERE company_id = \$1 AND master = FALSE`).
		WithArgs("co-1").
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow("agent-1", "co-1", "Billing", "invoices", "", "", []string(nil)).
			AddRow("agent-2", "co-1", "Booking", "appointments", "", "", []string(nil)))

	repo := NewRepository(mock, nil)
	roster, err := repo.RosterByCompany(context.Background(), "co-1")
	require.NoError(t, err)
	require.Len(t, roster, 2)
	assert.Equal(t, "Billing", roster[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRosterByCompanyEmpty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT .+ FROM agents WHERE company_id = \$1 AND master = FALSE`).
		WithArgs("co-2").
		WillReturnRows(pgxmock.NewRows(cols))

	repo := NewRepository(mock, nil)
	roster, err := repo.RosterByCompany(context.Background(), "co-2")
	require.NoError(t, err)
	assert.Empty(t, roster)
}

func TestMasterByCompany(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT .+ FROM agents WHERE company_id = \$1 AND master = TRUE`).
		WithArgs("co-1").
		WillReturnRows(pgxmock.NewRows(cols).AddRow(
			"master-1", "co-1", "Reception", "general assistant",
			"You are the receptionist.", "Thanks for calling!", []string(nil),
		))

	repo := NewRepository(mock, nil)
	master, err := repo.MasterByCompany(context.Background(), "co-1")
	require.NoError(t, err)
	assert.Equal(t, "Reception", master.Name)
}
