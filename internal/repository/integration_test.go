//go:build integration

package repository_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/hitoshi/maintlog/internal/database"
	"github.com/hitoshi/maintlog/internal/model"
	"github.com/hitoshi/maintlog/internal/repository"
)

var dsn string

func TestMain(m *testing.M) {
	ctx := context.Background()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "postgres:15-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "postgres",
				"POSTGRES_PASSWORD": "password",
				"POSTGRES_DB":       "maintlog_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		panic(err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		panic(err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		panic(err)
	}
	dsn = fmt.Sprintf("postgres://postgres:password@%s:%s/maintlog_test?sslmode=disable", host, port.Port())

	if err := database.RunMigrations(dsn); err != nil {
		panic(err)
	}

	code := m.Run()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func TestRepositories_CRUD(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(dsn, 5)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	t.Run("user_repository", func(t *testing.T) {
		users := repository.NewPostgresUserRepo(db)
		hash := "$2a$10$hash"

		admin := &model.User{Email: "admin@admin.com", Name: "Administrator", PasswordHash: &hash, Role: model.RoleAdmin}
		created, err := users.CreateIfEmailAbsent(ctx, admin)
		require.NoError(t, err)
		require.True(t, created)

		again := &model.User{Email: "admin@admin.com", Name: "Administrator", PasswordHash: &hash, Role: model.RoleAdmin}
		created, err = users.CreateIfEmailAbsent(ctx, again)
		require.NoError(t, err)
		assert.False(t, created)

		byEmail, err := users.FindByEmail(ctx, "admin@admin.com")
		require.NoError(t, err)
		require.NotNil(t, byEmail)
		assert.Equal(t, admin.ID, byEmail.ID)
		assert.Equal(t, model.RoleAdmin, byEmail.Role)

		require.NoError(t, users.AttachGoogleID(ctx, admin.ID, "google-admin"))
		byGoogle, err := users.FindByEmailOrGoogleID(ctx, "other@example.com", "google-admin")
		require.NoError(t, err)
		require.NotNil(t, byGoogle)
		assert.Equal(t, admin.ID, byGoogle.ID)

		missing, err := users.FindByID(ctx, 999999)
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("maintenance_log_repository", func(t *testing.T) {
		logs := repository.NewPostgresMaintenanceLogRepo(db)
		mileage := int64(50000)
		cost := 45.99

		older := &model.MaintenanceLog{
			CarMake: "Toyota", CarModel: "Camry", ServiceType: "Oil Change",
			ServiceDate: model.NewDate(2024, time.January, 15), Mileage: &mileage, Cost: &cost,
		}
		olderID, err := logs.Create(ctx, older)
		require.NoError(t, err)

		newer := &model.MaintenanceLog{
			CarMake: "Honda", CarModel: "Civic", ServiceType: "Tire Rotation",
			ServiceDate: model.NewDate(2024, time.February, 1),
		}
		newerID, err := logs.Create(ctx, newer)
		require.NoError(t, err)

		got, err := logs.FindByID(ctx, olderID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "2024-01-15", got.ServiceDate.String())
		require.NotNil(t, got.Cost)
		assert.InDelta(t, 45.99, *got.Cost, 0.0001)
		assert.Nil(t, got.Notes)

		list, err := logs.List(ctx)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(list), 2)
		assert.Equal(t, newerID, list[0].ID)

		got.Mileage = nil
		got.Cost = nil
		rows, err := logs.Update(ctx, got)
		require.NoError(t, err)
		assert.Equal(t, int64(1), rows)

		updated, err := logs.FindByID(ctx, olderID)
		require.NoError(t, err)
		assert.Nil(t, updated.Mileage)
		assert.Nil(t, updated.Cost)

		rows, err = logs.Delete(ctx, olderID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), rows)

		rows, err = logs.Delete(ctx, olderID)
		require.NoError(t, err)
		assert.Zero(t, rows)

		deleted, err := logs.FindByID(ctx, olderID)
		require.NoError(t, err)
		assert.Nil(t, deleted)
	})
}
