package config

import (
	_ "embed"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed engagement.yaml
var engagementYAML []byte

type Config struct {
	Recognizer RecognizerConfig
	Database   DatabaseConfig
	Attendance AttendanceConfig
	Engagement EngagementConfig
}

type RecognizerConfig struct {
	URL     string        // embedding server base URL (defaults to http://localhost:8000)
	Dim     int           // embedding dimension (defaults to 128)
	Timeout time.Duration // per-request timeout for embed/analyze calls
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL (pgvector extension required)
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
	HNSWEnabled  bool   // Build an in-memory HNSW index over student embeddings on startup
}

type AttendanceConfig struct {
	// MatchThreshold is the maximum embedding distance for a candidate to
	// count as a match. Candidates at exactly the threshold are excluded.
	MatchThreshold float64
	// MaxCandidates is the number of ranked candidates requested per query.
	MaxCandidates int
	// LateThresholdMinutes is the grace period after the scheduled start.
	// Arriving at exactly the threshold still counts as present.
	LateThresholdMinutes int
	// UTCOffsetHours is the fixed civil time zone of the deployment.
	// Naive session timestamps are interpreted in this zone.
	UTCOffsetHours int
}

type EngagementConfig struct {
	Positive []string `yaml:"positive"`
	Negative []string `yaml:"negative"`
}

// Location returns the fixed civil time zone for the deployment.
func (c *AttendanceConfig) Location() *time.Location {
	name := "UTC"
	if c.UTCOffsetHours > 0 {
		name = "UTC+" + strconv.Itoa(c.UTCOffsetHours)
	} else if c.UTCOffsetHours < 0 {
		name = "UTC" + strconv.Itoa(c.UTCOffsetHours)
	}
	return time.FixedZone(name, c.UTCOffsetHours*3600)
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envSignedInt is like envInt but accepts negative values (UTC offsets).
func envSignedInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func Load() *Config {
	var engagement EngagementConfig
	if err := yaml.Unmarshal(engagementYAML, &engagement); err != nil {
		// This is an embedded file so this error should never happen in practice.
		panic("failed to unmarshal embedded engagement.yaml: " + err.Error())
	}

	return &Config{
		Recognizer: RecognizerConfig{
			URL:     os.Getenv("RECOGNIZER_URL"),
			Dim:     envInt("RECOGNIZER_DIM", 128),
			Timeout: time.Duration(envInt("RECOGNIZER_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
			HNSWEnabled:  os.Getenv("HNSW_DISABLED") == "",
		},
		Attendance: AttendanceConfig{
			MatchThreshold:       envFloat("MATCH_THRESHOLD", 0.6),
			MaxCandidates:        envInt("MATCH_MAX_CANDIDATES", 5),
			LateThresholdMinutes: envInt("LATE_THRESHOLD_MINUTES", 15),
			UTCOffsetHours:       envSignedInt("CIVIL_UTC_OFFSET_HOURS", -5),
		},
		Engagement: engagement,
	}
}
