package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDriverFor(t *testing.T) {
	tests := []struct {
		url    string
		driver string
		dsn    string
	}{
		{"postgres://u:p@localhost/db", DriverPostgres, "postgres://u:p@localhost/db"},
		{"postgresql://u:p@localhost/db", DriverPostgres, "postgresql://u:p@localhost/db"},
		{"mysql://u:p@tcp(localhost:3306)/db", DriverMySQL, "u:p@tcp(localhost:3306)/db?parseTime=true"},
		{"mysql://u:p@tcp(localhost:3306)/db?charset=utf8mb4", DriverMySQL, "u:p@tcp(localhost:3306)/db?charset=utf8mb4&parseTime=true"},
		{"sqlite://./blast.db", DriverSQLite, "./blast.db"},
		{"file::memory:?cache=shared", DriverSQLite, "file::memory:?cache=shared"},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			driver, dsn, err := DriverFor(tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.driver, driver)
			assert.Equal(t, tt.dsn, dsn)
		})
	}

	_, _, err := DriverFor("redis://localhost")
	assert.Error(t, err)
}

func TestSQLPlaceholders(t *testing.T) {
	q := "UPDATE t SET a = $1, b = $2 WHERE id = $10 AND c = '$x'"
	assert.Equal(t, q, SQLPlaceholders(DriverPostgres, q))
	assert.Equal(t, "UPDATE t SET a = ?, b = ? WHERE id = ? AND c = '$x'", SQLPlaceholders(DriverSQLite, q))
	assert.Equal(t, "UPDATE t SET a = ?, b = ? WHERE id = ? AND c = '$x'", SQLPlaceholders(DriverMySQL, q))
}

func TestInitAppDBWithSQLite(t *testing.T) {
	url := "sqlite://" + filepath.Join(t.TempDir(), "blast.db")
	require.NoError(t, InitAppDB(context.Background(), url, zerolog.Nop()))
	t.Cleanup(func() { _ = AppDB.Close() })

	assert.Equal(t, DriverSQLite, AppDriver)
	require.NoError(t, AppDB.Ping())
}
