package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types

	"github.com/proyecto-sophia/cra-backend/internal/lending"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Connectivity values are required; the lending
// parameters default to the school's standing rules when unset.
type Config struct {
	Env            string // application environment (e.g. "dev", "prod")
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

	BookLoanDays       int    // business days a book loan runs for
	ResourceCutoffHour int    // hour of day resource loans are due back
	ReservationDays    int    // business days before a pending reservation expires
	MaxActiveItems     int    // active-item limit for non-profesores
	SweepInterval      string // reservation/overdue sweep period (time.Duration string)
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"), // empty allowed
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     mustInt("BCRYPT_COST"),

		BookLoanDays:       intOr("LOAN_BOOK_DAYS", 10),
		ResourceCutoffHour: intOr("LOAN_RESOURCE_CUTOFF_HOUR", 17),
		ReservationDays:    intOr("RESERVATION_EXPIRY_DAYS", 2),
		MaxActiveItems:     intOr("LOAN_MAX_ACTIVE", 1),
		SweepInterval:      getenv("RESERVATION_SWEEP_INTERVAL", "5m"),
	}
}

// Rules builds the lending rule set from the loaded configuration.
func (c Config) Rules() lending.Rules {
	r := lending.DefaultRules()
	r.BookLoanDays = c.BookLoanDays
	r.ResourceCutoffHour = c.ResourceCutoffHour
	r.ReservationDays = c.ReservationDays
	r.MaxActiveItems = c.MaxActiveItems
	return r
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

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

// intOr reads an optional integer environment variable with a default.
func intOr(key string, def int) int {
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
