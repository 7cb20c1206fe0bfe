package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Port != "8083" || c.GRPCPort != "9083" {
		t.Fatalf("unexpected ports %q %q", c.Port, c.GRPCPort)
	}
	if !c.InMemory() {
		t.Fatal("expected in-memory store without DATABASE_URL")
	}
	if c.SweepAfter != 15*time.Minute || c.SweepLockKey != 4242101 {
		t.Fatalf("unexpected reconcile defaults: %+v", c)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://homebook@localhost/booking")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")
	t.Setenv("RECONCILE_INTERVAL", "30s")

	c, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.InMemory() {
		t.Fatal("expected postgres store")
	}
	if got := c.Brokers(); len(got) != 2 || got[1] != "kafka-2:9092" {
		t.Fatalf("unexpected brokers %v", got)
	}
	if c.SweepInterval != 30*time.Second {
		t.Fatalf("expected 30s interval, got %s", c.SweepInterval)
	}
}

func TestLoadRejectsBadPort(t *testing.T) {
	t.Setenv("GRPC_PORT", "70000")
	if _, err := Load(""); err == nil {
		t.Fatal("expected invalid GRPC_PORT to fail")
	}
}
