package database

import (
	"path/filepath"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestConnectSQLiteFromDSN(t *testing.T) {
	path := filepath.Join(t.TempDir(), "enrollments.db")

	db, err := Connect("sqlite://" + path)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Ping())
	require.NoError(t, sqlDB.Close())
}

func TestConnectRejectsEmptyDSN(t *testing.T) {
	_, err := Connect("  ")
	require.Error(t, err)

	_, err = Connect("sqlite://")
	require.Error(t, err)
}

func TestConnectRedis(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	client, err := ConnectRedis("redis://"+server.Addr(), "GEMA Activities API")
	require.NoError(t, err)
	require.Equal(t, "gema-activities-api", client.Options().ClientName)
	require.NoError(t, client.Close())

	_, err = ConnectRedis("", "gema-activities")
	require.Error(t, err)

	_, err = ConnectRedis("://bad", "gema-activities")
	require.Error(t, err)
}

func TestConnectRedisFailsWhenServerIsGone(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	addr := server.Addr()
	server.Close()

	start := time.Now()
	_, err = ConnectRedis("redis://"+addr, "gema-activities")
	require.Error(t, err)
	require.Less(t, time.Since(start), redisPingTimeout+time.Second)
}

func TestConnectNATSRequiresURL(t *testing.T) {
	_, err := ConnectNATS("", "test")
	require.Error(t, err)
}
