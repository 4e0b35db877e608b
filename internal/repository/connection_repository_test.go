package repository

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"erp-connector-service/internal/models"
)

func newMockConnectionRepository(t *testing.T) (*ConnectionRepository, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	return NewConnectionRepository(gormDB), mock, mockDB
}

func TestGetByProviderMissingProfileIsNilNotError(t *testing.T) {
	repo, mock, mockDB := newMockConnectionRepository(t)
	defer mockDB.Close()

	mock.ExpectQuery(`SELECT \* FROM "erp_connections" WHERE provider_type = \$1`).
		WithArgs(models.ProviderDynamics, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "provider_type"}))

	connection, err := repo.GetByProvider(context.Background(), models.ProviderDynamics)
	require.NoError(t, err)
	assert.Nil(t, connection)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByProviderReturnsProfile(t *testing.T) {
	repo, mock, mockDB := newMockConnectionRepository(t)
	defer mockDB.Close()

	id := uuid.New()
	rows := sqlmock.NewRows([]string{"id", "provider_type", "display_name", "status", "is_enabled"}).
		AddRow(id, string(models.ProviderOracle), "ORACLE", string(models.ConnectionPending), true)

	mock.ExpectQuery(`SELECT \* FROM "erp_connections" WHERE provider_type = \$1`).
		WithArgs(models.ProviderOracle, 1).
		WillReturnRows(rows)

	connection, err := repo.GetByProvider(context.Background(), models.ProviderOracle)
	require.NoError(t, err)
	require.NotNil(t, connection)
	assert.Equal(t, id, connection.ID)
	assert.Equal(t, models.ProviderOracle, connection.ProviderType)
	assert.True(t, connection.IsEnabled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByIDMissingProfileIsNilNotError(t *testing.T) {
	repo, mock, mockDB := newMockConnectionRepository(t)
	defer mockDB.Close()

	id := uuid.New()
	mock.ExpectQuery(`SELECT \* FROM "erp_connections" WHERE id = \$1`).
		WithArgs(id, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	connection, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, connection)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByProviderSurfacesDatabaseErrors(t *testing.T) {
	repo, mock, mockDB := newMockConnectionRepository(t)
	defer mockDB.Close()

	mock.ExpectQuery(`SELECT \* FROM "erp_connections" WHERE provider_type = \$1`).
		WithArgs(models.ProviderDynamics, 1).
		WillReturnError(sql.ErrConnDone)

	connection, err := repo.GetByProvider(context.Background(), models.ProviderDynamics)
	assert.Error(t, err)
	assert.Nil(t, connection)
}
