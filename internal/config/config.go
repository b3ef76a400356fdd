package config

import (
	"log"
	"os"
	"strconv"
)

// Config holds all runtime configuration, one field per environment
// variable.  Durations are kept as plain ints in the unit the variable
// name states and converted at the point of use.
type Config struct {
	Env            string // application environment (dev/test/prod)
	Port           string // HTTP port to listen on
	DBUser         string // database username
	DBPass         string // database password (optional)
	DBHost         string // database host address
	DBPort         string // database port number
	DBName         string // database name
	JWTSecret      string // secret used to sign JWTs
	AccessTTLMin   int    // access token time-to-live in minutes
	RefreshTTLDays int    // refresh token time-to-live in days
	BcryptCost     int    // bcrypt cost for password hashing
	LogLevel       string // zap level: debug, info, warn, error

	// Booking policy knobs.  The defaults implement the studio's
	// standing rules; they are configurable mostly for tests and
	// staging environments.
	CancelWindowHours int // minimum hours before start to cancel with refund
	WaitlistMax       int // maximum WAITING entries per session
	AcceptWindowMin   int // minutes a notified client has to accept
	SweepIntervalSec  int // seconds between waitlist expiry sweeps
}

// Load reads the configuration from the environment.  Required
// variables are enforced by must(); policy knobs fall back to the
// studio defaults when unset.
func Load() Config {
	return Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"),
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     mustInt("BCRYPT_COST"),
		LogLevel:       envDefault("LOG_LEVEL", "info"),

		CancelWindowHours: intDefault("CANCEL_WINDOW_HOURS", 12),
		WaitlistMax:       intDefault("WAITLIST_MAX", 3),
		AcceptWindowMin:   intDefault("WAITLIST_ACCEPT_WINDOW_MIN", 10),
		SweepIntervalSec:  intDefault("WAITLIST_SWEEP_INTERVAL_SEC", 60),
	}
}

// must retrieves a required environment variable or exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the value to an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, v)
	}
	return n
}
