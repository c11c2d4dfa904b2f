package dbtypes

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestUUIDArrayValueAndScan(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	value, err := UUIDArray{a, b}.Value()
	require.NoError(t, err)
	require.Equal(t, "{"+a.String()+","+b.String()+"}", value)

	var scanned UUIDArray
	require.NoError(t, scanned.Scan([]byte(value.(string))))
	require.Equal(t, UUIDArray{a, b}, scanned)
}

func TestUUIDArrayEmpty(t *testing.T) {
	value, err := UUIDArray(nil).Value()
	require.NoError(t, err)
	require.Equal(t, "{}", value)

	var scanned UUIDArray
	require.NoError(t, scanned.Scan("{}"))
	require.Empty(t, scanned)
	require.NoError(t, scanned.Scan(nil))
	require.Empty(t, scanned)
}

func TestUUIDArrayRejectsGarbage(t *testing.T) {
	var scanned UUIDArray
	require.Error(t, scanned.Scan("{not-a-uuid}"))
	require.Error(t, scanned.Scan(42))
}

func TestUUIDArrayColumnTypePerDialect(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:dbtypes_"+uuid.NewString()+"?mode=memory"), &gorm.Config{})
	require.NoError(t, err)
	require.Equal(t, "text", UUIDArray{}.GormDBDataType(conn, nil))
}
