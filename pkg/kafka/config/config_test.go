package kafka_config

import (
	"strings"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Brokers) != 1 || cfg.Brokers[0] != "localhost:9092" {
		t.Errorf("Brokers = %v", cfg.Brokers)
	}
	if cfg.ProducerRequireAcks != -1 {
		t.Errorf("ProducerRequireAcks = %d, want -1", cfg.ProducerRequireAcks)
	}
}

func TestLoad_TrimsBrokers(t *testing.T) {
	t.Setenv(EnvKafkaBrokers, "kafka-1:9092, kafka-2:9092")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Brokers) != 2 || cfg.Brokers[1] != "kafka-2:9092" {
		t.Errorf("Brokers = %v", cfg.Brokers)
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		Brokers:              []string{""},
		ProducerMaxAttempts:  0,
		ProducerBatchTimeout: 0,
		ProducerRequireAcks:  2,
		ProducerCompression:  "brotli",
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"Broker 0", "ProducerMaxAttempts", "ProducerBatchTimeout", "ProducerCompression", "ProducerRequireAcks"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q: %v", want, err)
		}
	}
}
