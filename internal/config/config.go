package config // package config loads application configuration from environment variables

import (
	"log" // log is used to report configuration errors and halt execution
	"os"  // os provides access to environment variables
	"strings"
	"time"
)

// Config holds the runtime configuration of the appointment service.  Each
// field corresponds to an environment variable.  Collaborator base URLs
// include the API prefix (for example http://127.0.0.1:8001/api/v1).
type Config struct {
	Env             string        // application environment (e.g. "dev", "prod")
	Port            string        // HTTP port to listen on
	DBUser          string        // database username
	DBPass          string        // database password (optional)
	DBHost          string        // database host address
	DBPort          string        // database port number
	DBName          string        // database name
	JWTSecret       string        // secret shared with the users service for verifying JWTs
	DirectoryURL    string        // specialists service base URL
	ScheduleURL     string        // schedule owner base URL; defaults to DirectoryURL
	PaymentURL      string        // payment service base URL
	UpstreamTimeout time.Duration // bound on every collaborator call
	LogLevel        string        // debug | info | warn | error
	MigrateOnStart  bool          // apply embedded migrations before serving
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	dir := strings.TrimRight(must("DIRECTORY_URL"), "/")
	return Config{
		Env:             must("APP_ENV"),
		Port:            must("APP_PORT"),
		DBUser:          must("DB_USER"),
		DBPass:          os.Getenv("DB_PASS"), // empty allowed
		DBHost:          must("DB_HOST"),
		DBPort:          must("DB_PORT"),
		DBName:          must("DB_NAME"),
		JWTSecret:       must("JWT_SECRET"),
		DirectoryURL:    dir,
		ScheduleURL:     strings.TrimRight(envStr("SCHEDULE_URL", dir), "/"),
		PaymentURL:      strings.TrimRight(must("PAYMENT_URL"), "/"),
		UpstreamTimeout: envDur("UPSTREAM_TIMEOUT", 5*time.Second),
		LogLevel:        envStr("LOG_LEVEL", "info"),
		MigrateOnStart:  envBool("DB_MIGRATE", true),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}
