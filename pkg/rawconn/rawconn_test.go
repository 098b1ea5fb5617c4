package rawconn

import (
	"crypto/tls"
	"testing"
	"time"
)

func TestConfigureSNIDefaultsToHost(t *testing.T) {
	conf := &tls.Config{}
	configureSNI(conf, "", false, "example.com")
	if conf.ServerName != "example.com" {
		t.Errorf("ServerName = %q, want %q", conf.ServerName, "example.com")
	}
}

func TestConfigureSNICustomWins(t *testing.T) {
	conf := &tls.Config{}
	configureSNI(conf, "override.example.com", false, "example.com")
	if conf.ServerName != "override.example.com" {
		t.Errorf("ServerName = %q, want custom SNI", conf.ServerName)
	}
}

func TestConfigureSNIDisabled(t *testing.T) {
	conf := &tls.Config{}
	configureSNI(conf, "", true, "example.com")
	if conf.ServerName != "" {
		t.Errorf("expected empty ServerName when disabled, got %q", conf.ServerName)
	}
}

func TestConfigureSNIExistingServerNamePreserved(t *testing.T) {
	conf := &tls.Config{ServerName: "preset.example.com"}
	configureSNI(conf, "ignored.example.com", false, "example.com")
	if conf.ServerName != "preset.example.com" {
		t.Errorf("expected preset ServerName to win, got %q", conf.ServerName)
	}
}

func TestIsIdleExpired(t *testing.T) {
	c := &Conn{}
	now := time.Now()
	c.LastUsed = now.Add(-100 * time.Second)
	if !c.IsIdleExpired(now, time.Second) {
		t.Error("expected idle connection to be reported expired")
	}
	c.LastUsed = now
	if c.IsIdleExpired(now, time.Second) {
		t.Error("expected fresh connection to not be reported expired")
	}
}
