package models

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestColumnMismatchReport(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:column_report?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&News{}))
	require.NoError(t, db.Exec("ALTER TABLE news ADD COLUMN legacy_url TEXT").Error)

	report, err := ColumnMismatchReport(db)
	require.NoError(t, err)
	require.Len(t, report, len(All()))

	byTable := make(map[string]TableMismatch)
	for _, table := range report {
		byTable[table.Table] = table
	}
	assert.Equal(t, []string{"legacy_url"}, byTable["news"].Columns)
	assert.True(t, byTable["dataset"].Missing)

	var out bytes.Buffer
	PrintColumnMismatchReport(&out, report)
	assert.Contains(t, out.String(), "  - legacy_url")
	assert.Contains(t, out.String(), "Total mismatched columns across all tables: 1")
}

func TestGetModelFields(t *testing.T) {
	fields := getModelFields(reflect.TypeOf(&Dataset{}))
	assert.Contains(t, fields, "identifier")
	assert.Contains(t, fields, "ai_asset_identifier")
	assert.Contains(t, fields, "license_identifier")
	assert.Contains(t, fields, "distribution")
}
