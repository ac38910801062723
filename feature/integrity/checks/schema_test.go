package checks

import (
	"regexp"
	"testing"

	"datakit/core/database"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

type item struct {
	ID   int64  `gorm:"column:id;primaryKey"`
	Name string `gorm:"column:name"`
	Size int    `gorm:"column:size"`
}

func (item) TableName() string { return "items" }

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to open mock sql db: %v", err)
	}

	dialector := mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to open gorm db: %v", err)
	}

	return gormDB, mock
}

func showColumns(mock sqlmock.Sqlmock) *sqlmock.ExpectedQuery {
	return mock.ExpectQuery(regexp.QuoteMeta("SHOW COLUMNS FROM `items`"))
}

func TestCheckSchema_NilDB(t *testing.T) {
	report, err := CheckSchema(nil, &item{})
	assert.Error(t, err)
	assert.Nil(t, report)
}

func TestCheckSchema_MySQL(t *testing.T) {
	t.Run("Matched", func(t *testing.T) {
		db, mock := setupMockDB(t)
		rows := sqlmock.NewRows([]string{"Field", "Type", "Null", "Key", "Default", "Extra"}).
			AddRow("id", "bigint", "NO", "PRI", nil, "auto_increment").
			AddRow("name", "longtext", "YES", "", nil, "").
			AddRow("size", "bigint", "YES", "", "0", "")
		showColumns(mock).WillReturnRows(rows)

		report, err := CheckSchema(db, &item{})
		require.NoError(t, err)
		assert.True(t, report.Matched)
		assert.Equal(t, "mysql", report.Driver)
		assert.Equal(t, "ok", report.Tables["items"].Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Missing Column And Key", func(t *testing.T) {
		db, mock := setupMockDB(t)
		rows := sqlmock.NewRows([]string{"Field", "Type", "Null", "Key", "Default", "Extra"}).
			AddRow("ID", "BIGINT", "NO", "", nil, "").
			AddRow("name", "longtext", "YES", "", nil, "")
		showColumns(mock).WillReturnRows(rows)

		report, err := CheckSchema(db, &item{})
		require.NoError(t, err)
		assert.False(t, report.Matched)

		tbl := report.Tables["items"]
		assert.Equal(t, "error", tbl.Status)
		assert.Equal(t, []string{"size"}, tbl.MissingColumns)
		require.Len(t, tbl.KeyMismatches, 1)
		assert.Contains(t, tbl.KeyMismatches[0], "id: expected primary key")
	})

	t.Run("Inspect Failure", func(t *testing.T) {
		db, mock := setupMockDB(t)
		showColumns(mock).WillReturnError(assert.AnError)

		report, err := CheckSchema(db, &item{})
		require.NoError(t, err)
		assert.False(t, report.Matched)
		require.Len(t, report.Errors, 1)
		assert.Contains(t, report.Errors[0], "items")
	})
}

func TestCheckSchema_SQLite(t *testing.T) {
	db, err := database.Connect(database.Config{Driver: database.DriverSQLite, Name: ":memory:"})
	require.NoError(t, err)

	report, err := CheckSchema(db, &item{})
	require.NoError(t, err)
	assert.False(t, report.Matched)
	assert.Equal(t, "missing", report.Tables["items"].Status)
	assert.ElementsMatch(t, []string{"id", "name", "size"}, report.Tables["items"].MissingColumns)

	require.NoError(t, db.AutoMigrate(&item{}))
	report, err = CheckSchema(db, &item{})
	require.NoError(t, err)
	assert.True(t, report.Matched)
	assert.Equal(t, "ok", report.Tables["items"].Status)
}
