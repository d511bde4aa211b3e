package database

import (
	"testing"

	"github.com/synaptica-ai/healthrisk/pkg/common/config"
)

func TestPostgresDSN(t *testing.T) {
	cfg := &config.Config{
		PostgresHost:     "db",
		PostgresPort:     "5432",
		PostgresUser:     "healthrisk",
		PostgresPassword: "secret",
		PostgresDB:       "releases",
		PostgresSSLMode:  "disable",
	}
	want := "host=db user=healthrisk password=secret dbname=releases port=5432 sslmode=disable"
	if got := PostgresDSN(cfg); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
