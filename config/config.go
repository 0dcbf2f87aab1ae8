// Package config resolves the runtime settings the metriq binaries need,
// following the teacher's flag-plus-environment-variable convention
// (cmd/daql's -db flag falling back to DAQL_DB).
package config

import (
	"flag"
	"os"
	"strconv"

	"github.com/daqhub/metriq/entry"
)

// Config holds the settings a metriq process needs to open its store and
// bus, and the default widget-loader period when a caller doesn't specify
// one.
type Config struct {
	// DB is the postgres connection string for persist/pgxstore. Empty
	// means run against the in-memory store only.
	DB string

	// BusAddr is the listen address for the websocket bus server.
	BusAddr string

	// DefaultPeriod is the widget-loader period used when a request omits
	// one.
	DefaultPeriod entry.Period
}

var (
	dbFlag      = flag.String("db", "", "postgres connection string; falls back to METRIQ_DB")
	busAddrFlag = flag.String("bus-addr", "", "bus websocket listen address; falls back to METRIQ_BUS_ADDR")
	periodFlag  = flag.String("period", "", "default widget period (day|week|month|year); falls back to METRIQ_PERIOD")
)

// FromFlags parses the process's flags and environment, in the teacher's
// flag-overrides-env order (cmd/daql db()).
func FromFlags() Config {
	if !flag.Parsed() {
		flag.Parse()
	}
	db := *dbFlag
	if db == "" {
		db = os.Getenv("METRIQ_DB")
	}
	busAddr := *busAddrFlag
	if busAddr == "" {
		busAddr = os.Getenv("METRIQ_BUS_ADDR")
	}
	if busAddr == "" {
		busAddr = ":8088"
	}
	period := *periodFlag
	if period == "" {
		period = os.Getenv("METRIQ_PERIOD")
	}
	return Config{DB: db, BusAddr: busAddr, DefaultPeriod: parsePeriod(period)}
}

func parsePeriod(s string) entry.Period {
	switch s {
	case "week":
		return entry.PeriodWeek
	case "month":
		return entry.PeriodMonth
	case "year":
		return entry.PeriodYear
	default:
		return entry.PeriodDay
	}
}

// EnvInt reads an integer environment variable, returning def if unset or
// unparsable.
func EnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
