package main

import (
	"bytes"
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"etalase/internal/app"
	"etalase/internal/config"
	"etalase/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func setEnv(t *testing.T) string {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "etalase.db")
	t.Setenv("DB_DRIVER", config.DriverSQLite)
	t.Setenv("DATABASE_DSN", dsn)
	t.Setenv("JWT_SECRET", "test_jwt_secret")
	t.Setenv("CURRENCY_SYMBOL", "₹")
	return dsn
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestAdminCreateCommand(t *testing.T) {
	setEnv(t)

	out, err := run(t, "admin", "create", "--email", "Owner@Example.com", "--password", "secret")
	require.NoError(t, err)
	assert.Contains(t, out, "Admin owner@example.com created")

	_, err = run(t, "admin", "create", "--email", "owner@example.com", "--password", "other")
	assert.ErrorIs(t, err, models.ErrEmailTaken)

	_, err = run(t, "admin", "create", "--email", "x@example.com")
	assert.Error(t, err)
}

func TestProductsListCommand(t *testing.T) {
	setEnv(t)

	cfg, err := config.Load()
	require.NoError(t, err)
	repos, err := app.OpenRepositories(cfg)
	require.NoError(t, err)
	for _, name := range []string{"Desk Fan", "Lamp"} {
		require.NoError(t, repos.Products.Create(context.Background(), &models.Product{
			Name: name, Description: "d", Price: decimal.RequireFromString("12.5"), InStock: name == "Lamp",
		}))
	}
	require.NoError(t, repos.Close())

	out, err := run(t, "products", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "IN STOCK")
	assert.Contains(t, out, "Desk Fan")
	assert.Contains(t, out, "Lamp")
	assert.Contains(t, out, "₹12.50")

	out, err = run(t, "products", "list", "-q", "fan")
	require.NoError(t, err)
	assert.Contains(t, out, "Desk Fan")
	assert.NotContains(t, out, "Lamp")
}
