// Package config reads the portal's runtime settings from the environment.
// Settings are resolved once at start-up; missing values fall back to
// defaults suitable for local development.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Option is one named client configuration binding.
type Option struct {
	Name  string
	Value string
}

type Config struct {
	Port        string
	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// ServiceAccount holds the raw FIREBASE_SERVICE_ACCOUNT value: either
	// a JSON document or a path to one.
	ServiceAccount string
	ProjectID      string
	ClientOptions  []Option

	PrivilegedEmails    []string
	IdentityTokenSecret string
	IdentityPublicKey   string
	IdentityIssuer      string
	IdentityAudience    string

	SessionSecret string
	SessionTTL    time.Duration
	AdminAPIAuth  bool

	TemplatesDir       string
	AdminDestination   string
	TeacherDestination string
	StudentDestination string

	TelegramBotToken    string
	TelegramAdminChatID int64
}

func Load() Config {
	cfg := Config{
		Port:                getenv("PORT", DefaultServicePort),
		DatabaseURL:         getenv("DATABASE_URL", "host=localhost user=user password=password dbname=proctordb port=5432 sslmode=disable"),
		RedisAddr:           getenv("REDIS_ADDR", ""),
		RedisPassword:       getenv("REDIS_PASSWORD", ""),
		RedisDB:             getenvInt("REDIS_DB", 0),
		ServiceAccount:      getenv("FIREBASE_SERVICE_ACCOUNT", ""),
		ProjectID:           getenv("FIREBASE_PROJECT_ID", ""),
		PrivilegedEmails:    getenvList("PRIVILEGED_EMAILS"),
		IdentityTokenSecret: getenv("IDENTITY_TOKEN_SECRET", ""),
		IdentityPublicKey:   getenvKey("IDENTITY_PUBLIC_KEY", ""),
		IdentityIssuer:      getenv("IDENTITY_ISSUER", ""),
		IdentityAudience:    getenv("IDENTITY_AUDIENCE", ""),
		SessionSecret:       getenv("SESSION_SECRET", ""),
		SessionTTL:          getenvDuration("SESSION_TTL", DefaultSessionTTL),
		AdminAPIAuth:        getenvBool("ADMIN_API_AUTH", true),
		TemplatesDir:        getenv("TEMPLATES_DIR", "templates"),
		AdminDestination:    getenv("ADMIN_DESTINATION", DefaultAdminDestination),
		TeacherDestination:  getenv("TEACHER_DESTINATION", DefaultTeacherDestination),
		StudentDestination:  getenv("STUDENT_DESTINATION", DefaultStudentDestination),
		TelegramBotToken:    getenv("TELEGRAM_BOT_TOKEN", ""),
		TelegramAdminChatID: int64(getenvInt("TELEGRAM_ADMIN_CHAT_ID", 0)),
	}

	for _, kv := range ClientOptionKeys {
		cfg.ClientOptions = append(cfg.ClientOptions, Option{Name: kv[0], Value: os.Getenv(kv[1])})
	}
	return cfg
}

// ResolveIdentity fills the identity issuer and audience from the project
// id when they are not set explicitly.
func (c *Config) ResolveIdentity(projectID string) {
	if c.ProjectID == "" {
		c.ProjectID = projectID
	}
	if c.IdentityAudience == "" {
		c.IdentityAudience = c.ProjectID
	}
	if c.IdentityIssuer == "" && c.ProjectID != "" {
		c.IdentityIssuer = "https://securetoken.google.com/" + c.ProjectID
	}
}

// ServiceAccountKey is the subset of a service-account credential the
// portal reads.
type ServiceAccountKey struct {
	Type        string `json:"type"`
	ProjectID   string `json:"project_id"`
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
}

// DefaultServiceAccountPath is read when FIREBASE_SERVICE_ACCOUNT is unset.
const DefaultServiceAccountPath = "serviceAccountKey.json"

// LoadServiceAccount parses raw as an inline JSON credential, or reads it
// as a file path. An empty raw value falls back to DefaultServiceAccountPath.
func LoadServiceAccount(raw string) (*ServiceAccountKey, error) {
	raw = strings.TrimSpace(raw)
	var data []byte
	switch {
	case strings.HasPrefix(raw, "{"):
		data = []byte(raw)
	case raw != "":
		b, err := os.ReadFile(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to read service account file %s: %w", raw, err)
		}
		data = b
	default:
		b, err := os.ReadFile(DefaultServiceAccountPath)
		if errors.Is(err, os.ErrNotExist) {
			return nil, errors.New("FIREBASE_SERVICE_ACCOUNT env var is missing and serviceAccountKey.json was not found locally")
		}
		if err != nil {
			return nil, err
		}
		data = b
	}

	var key ServiceAccountKey
	if err := json.Unmarshal(data, &key); err != nil {
		return nil, fmt.Errorf("failed to parse service account: %w", err)
	}
	if key.ProjectID == "" {
		return nil, errors.New("service account has no project_id")
	}
	return &key, nil
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	if val := os.Getenv(key + "_SECONDS"); val != "" {
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

func getenvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getenvKey(key, fallback string) string {
	if file := os.Getenv(key + "_FILE"); file != "" {
		if data, err := os.ReadFile(file); err == nil {
			return normalizePEM(string(data))
		}
	}
	if val := os.Getenv(key); val != "" {
		return normalizePEM(val)
	}
	return fallback
}

func normalizePEM(value string) string {
	value = strings.TrimSpace(value)
	if strings.Contains(value, "\\n") && !strings.Contains(value, "\n") {
		value = strings.ReplaceAll(value, "\\n", "\n")
	}
	return value
}
