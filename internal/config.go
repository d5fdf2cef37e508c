package internal

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

var c *config

const (
	RunAddress        = "RUN_ADDRESS"
	DatabaseURI       = "DATABASE_URI"
	MetricsAddress    = "METRICS_ADDRESS"
	GaMeasurementID   = "GA_MEASUREMENT_ID"
	GaAPISecret       = "GA_API_SECRET"
	MetaPixelID       = "META_PIXEL_ID"
	MetaAccessToken   = "META_ACCESS_TOKEN"
	SchedulerInterval = "SCHEDULER_INTERVAL"
	DefaultAdminID    = "DEFAULT_ADMIN_ID"
	JWTSecret         = "JWT_SECRET"
)

const (
	defaultRunAddress        = "localhost:8080"
	defaultMetricsAddress    = "localhost:9090"
	defaultSchedulerInterval = time.Hour
	defaultAdminID           = 1
	defaultJWTSecret         = "secret"
)

const (
	host     = "localhost"
	port     = 5432
	user     = "postgres"
	password = "12345"
)

type config struct {
	RunAddress        string
	DatabaseURI       string
	MetricsAddress    string
	GaMeasurementID   string
	GaAPISecret       string
	MetaPixelID       string
	MetaAccessToken   string
	SchedulerInterval time.Duration
	DefaultAdminID    int
	JWTSecret         string
}

func NewConfig() *config {
	c = new(config)

	defaultConn := fmt.Sprintf("host=%s port=%d user=%s "+
		"password=%s sslmode=disable",
		host, port, user, password)

	flag.StringVar(&c.RunAddress, "a", setEnvOrDefault(RunAddress, defaultRunAddress), "host to listen on")
	flag.StringVar(&c.DatabaseURI, "d", setEnvOrDefault(DatabaseURI, defaultConn), "postgres connection path")
	flag.StringVar(&c.MetricsAddress, "m", setEnvOrDefault(MetricsAddress, defaultMetricsAddress), "prometheus metrics address")
	flag.DurationVar(&c.SchedulerInterval, "i", envDurationOrDefault(SchedulerInterval, defaultSchedulerInterval), "auto-order scheduler interval")
	flag.IntVar(&c.DefaultAdminID, "o", envIntOrDefault(DefaultAdminID, defaultAdminID), "admin owning scheduler-generated orders")

	c.GaMeasurementID = os.Getenv(GaMeasurementID)
	c.GaAPISecret = os.Getenv(GaAPISecret)
	c.MetaPixelID = os.Getenv(MetaPixelID)
	c.MetaAccessToken = os.Getenv(MetaAccessToken)
	c.JWTSecret = setEnvOrDefault(JWTSecret, defaultJWTSecret)

	flag.Parse()
	return c
}

func setEnvOrDefault(env, def string) string {
	res, e := os.LookupEnv(env)
	if !e {
		res = def
	}
	return res
}

func envDurationOrDefault(env string, def time.Duration) time.Duration {
	res, e := os.LookupEnv(env)
	if !e {
		return def
	}
	d, err := time.ParseDuration(res)
	if err != nil {
		return def
	}
	return d
}

func envIntOrDefault(env string, def int) int {
	res, e := os.LookupEnv(env)
	if !e {
		return def
	}
	n, err := strconv.Atoi(res)
	if err != nil {
		return def
	}
	return n
}
