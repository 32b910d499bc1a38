package config

import (
	"testing"
	"time"
)

func validConfig() *Config {
	c := Load()
	return c
}

func TestLoadDefaults(t *testing.T) {
	c := Load()

	if c.Port != "8080" {
		t.Errorf("Port = %q, want 8080", c.Port)
	}
	if c.StoreType != "memory" {
		t.Errorf("StoreType = %q, want memory", c.StoreType)
	}
	if c.QueueType != "local" {
		t.Errorf("QueueType = %q, want local", c.QueueType)
	}
	if c.DeliveryChannel != "log" {
		t.Errorf("DeliveryChannel = %q, want log", c.DeliveryChannel)
	}
	if c.SweepSchedule != "* * * * *" {
		t.Errorf("SweepSchedule = %q, want every minute", c.SweepSchedule)
	}
	if c.EntityCacheTTL != time.Minute {
		t.Errorf("EntityCacheTTL = %v, want 1m", c.EntityCacheTTL)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_TYPE", "postgres")
	t.Setenv("POSTGRES_URL", "postgres://localhost/triggers")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("ENTITY_CACHE_TTL", "30s")

	c := Load()
	if c.Port != "9090" {
		t.Errorf("Port = %q, want 9090", c.Port)
	}
	if c.StoreType != "postgres" {
		t.Errorf("StoreType = %q, want postgres", c.StoreType)
	}
	if c.RedisDB != 3 {
		t.Errorf("RedisDB = %d, want 3", c.RedisDB)
	}
	if c.EntityCacheTTL != 30*time.Second {
		t.Errorf("EntityCacheTTL = %v, want 30s", c.EntityCacheTTL)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Port = "not-a-port" }},
		{"unknown store type", func(c *Config) { c.StoreType = "mysql" }},
		{"postgres without url", func(c *Config) { c.StoreType = "postgres" }},
		{"unknown queue type", func(c *Config) { c.QueueType = "kafka" }},
		{"redis db out of range", func(c *Config) { c.QueueType = "redis"; c.RedisDB = 16 }},
		{"unknown delivery channel", func(c *Config) { c.DeliveryChannel = "sms" }},
		{"webhook without url", func(c *Config) { c.DeliveryChannel = "webhook" }},
		{"amqp without url", func(c *Config) { c.DeliveryChannel = "amqp" }},
		{"negative cache ttl", func(c *Config) { c.EntityCacheTTL = -time.Second }},
		{"zero poll interval", func(c *Config) { c.QueuePollInterval = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			if err := c.Validate(); err == nil {
				t.Error("Validate() expected error, got none")
			}
		})
	}
}

func TestValidateDefaultsPass(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}
