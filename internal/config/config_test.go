package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Recognizer.Dim != 128 {
		t.Errorf("expected default dim 128, got %d", cfg.Recognizer.Dim)
	}
	if cfg.Attendance.LateThresholdMinutes != 15 {
		t.Errorf("expected default late threshold 15, got %d", cfg.Attendance.LateThresholdMinutes)
	}
	if cfg.Attendance.UTCOffsetHours != -5 {
		t.Errorf("expected default UTC offset -5, got %d", cfg.Attendance.UTCOffsetHours)
	}
	if cfg.Attendance.MatchThreshold != 0.6 {
		t.Errorf("expected default match threshold 0.6, got %f", cfg.Attendance.MatchThreshold)
	}
	if cfg.Database.MaxOpenConns != 25 {
		t.Errorf("expected default max open conns 25, got %d", cfg.Database.MaxOpenConns)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("LATE_THRESHOLD_MINUTES", "10")
	t.Setenv("CIVIL_UTC_OFFSET_HOURS", "2")
	t.Setenv("MATCH_THRESHOLD", "0.45")
	t.Setenv("RECOGNIZER_TIMEOUT_SECONDS", "5")

	cfg := Load()

	if cfg.Attendance.LateThresholdMinutes != 10 {
		t.Errorf("expected late threshold 10, got %d", cfg.Attendance.LateThresholdMinutes)
	}
	if cfg.Attendance.UTCOffsetHours != 2 {
		t.Errorf("expected UTC offset 2, got %d", cfg.Attendance.UTCOffsetHours)
	}
	if cfg.Attendance.MatchThreshold != 0.45 {
		t.Errorf("expected match threshold 0.45, got %f", cfg.Attendance.MatchThreshold)
	}
	if cfg.Recognizer.Timeout != 5*time.Second {
		t.Errorf("expected timeout 5s, got %s", cfg.Recognizer.Timeout)
	}
}

func TestLoadInvalidEnvFallsBack(t *testing.T) {
	t.Setenv("LATE_THRESHOLD_MINUTES", "not-a-number")
	t.Setenv("MATCH_THRESHOLD", "-1")

	cfg := Load()

	if cfg.Attendance.LateThresholdMinutes != 15 {
		t.Errorf("expected fallback late threshold 15, got %d", cfg.Attendance.LateThresholdMinutes)
	}
	if cfg.Attendance.MatchThreshold != 0.6 {
		t.Errorf("expected fallback match threshold 0.6, got %f", cfg.Attendance.MatchThreshold)
	}
}

func TestEngagementSetsEmbedded(t *testing.T) {
	cfg := Load()

	if len(cfg.Engagement.Positive) == 0 {
		t.Fatal("expected embedded positive emotion set")
	}
	if len(cfg.Engagement.Negative) == 0 {
		t.Fatal("expected embedded negative emotion set")
	}

	positive := make(map[string]bool)
	for _, e := range cfg.Engagement.Positive {
		positive[e] = true
	}
	for _, e := range cfg.Engagement.Negative {
		if positive[e] {
			t.Errorf("emotion %q appears in both positive and negative sets", e)
		}
	}
	if !positive["happy"] {
		t.Error("expected happy in the positive set")
	}
}

func TestLocation(t *testing.T) {
	cfg := AttendanceConfig{UTCOffsetHours: -5}
	loc := cfg.Location()

	ref := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	local := ref.In(loc)
	if local.Hour() != 7 {
		t.Errorf("expected 12:00 UTC to be 07:00 at UTC-5, got %02d:00", local.Hour())
	}
}
