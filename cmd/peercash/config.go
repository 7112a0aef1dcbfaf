package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/peercash/internal/logger"
	"github.com/nkiryanov/peercash/internal/scheduler"
	"github.com/nkiryanov/peercash/internal/service/deposit"
	"github.com/nkiryanov/peercash/internal/service/sweeper"
)

const (
	defaultListenAddr   = "localhost:8000"
	defaultLoggingLevel = logger.LevelInfo
	defaultEnvironment  = logger.EnvProduction
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the peercash service will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Secret key
	// Access tokens are signed with it, so it has to be the same the token issuer uses
	SecretKey string

	// Environment
	Environment string

	// Redis address to hold scheduler locks. Without it every replica runs every job
	RedisAddr string

	// RabbitMQ URL to publish domain events. Without it events are only logged
	AMQPURL string

	// How long a claimant holds a withdraw request before it is released
	ReservationTTL time.Duration

	// Schedules of background jobs in robfig/cron format
	SweepSchedule          string
	ReviewReminderSchedule string

	// Deposits in review longer than that are reported
	ReviewOverdueAfter time.Duration
}

func NewConfig() *Config {
	return &Config{
		LogLevel:               defaultLoggingLevel,
		ListenAddr:             defaultListenAddr,
		Environment:            defaultEnvironment,
		ReservationTTL:         deposit.DefaultReservationTTL,
		SweepSchedule:          scheduler.DefaultSweepSchedule,
		ReviewReminderSchedule: scheduler.DefaultReminderSchedule,
		ReviewOverdueAfter:     sweeper.DefaultOverdueAfter,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		return c.LoadEnv(func(key string) string {
			return envMap[key]
		})
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) error {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = value
			}
			return nil
		}
	}
	setDuration := func(o *time.Duration) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			*o = d
			return nil
		}
	}

	envMap := map[string]func(string) error{
		"RUN_ADDRESS":              setString(&c.ListenAddr),
		"DATABASE_URI":             setString(&c.DatabaseDSN),
		"SECRET_KEY":               setString(&c.SecretKey),
		"LOG_LEVEL":                setString(&c.LogLevel),
		"ENVIRONMENT":              setString(&c.Environment),
		"REDIS_ADDRESS":            setString(&c.RedisAddr),
		"AMQP_URL":                 setString(&c.AMQPURL),
		"RESERVATION_TTL":          setDuration(&c.ReservationTTL),
		"SWEEP_SCHEDULE":           setString(&c.SweepSchedule),
		"REVIEW_REMINDER_SCHEDULE": setString(&c.ReviewReminderSchedule),
		"REVIEW_OVERDUE_AFTER":     setDuration(&c.ReviewOverdueAfter),
	}

	var errs []error
	for key, parseFn := range envMap {
		if err := parseFn(getenv(key)); err != nil {
			errs = append(errs, fmt.Errorf("env %s: %w", key, err))
		}
	}

	return errors.Join(errs...)
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("peercash", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")
	fs.StringVarP(&c.RedisAddr, "redis", "r", c.RedisAddr, "Redis address for scheduler locks")
	fs.StringVarP(&c.AMQPURL, "amqp", "q", c.AMQPURL, "RabbitMQ URL for domain events")
	fs.DurationVar(&c.ReservationTTL, "reservation-ttl", c.ReservationTTL, "Reservation time box")
	fs.StringVar(&c.SweepSchedule, "sweep-schedule", c.SweepSchedule, "Schedule of expired reservations release")
	fs.StringVar(&c.ReviewReminderSchedule, "reminder-schedule", c.ReviewReminderSchedule, "Schedule of overdue review reminders")
	fs.DurationVar(&c.ReviewOverdueAfter, "review-overdue-after", c.ReviewOverdueAfter, "Review age reported as overdue")

	return fs.Parse(args)
}

// Check options without sane defaults
func (c *Config) Validate() error {
	var errs []error

	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New("database DSN is required"))
	}
	if c.SecretKey == "" {
		errs = append(errs, errors.New("secret key is required"))
	}
	if c.ReservationTTL <= 0 {
		errs = append(errs, errors.New("reservation TTL must be positive"))
	}
	if c.ReviewOverdueAfter <= 0 {
		errs = append(errs, errors.New("review overdue threshold must be positive"))
	}

	return errors.Join(errs...)
}
