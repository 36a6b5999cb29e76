package plugins

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/conductor/pkg/registry"
)

const dateLayout = "2006-01-02"

type zoneArgs struct {
	Timezone string `arg:"timezone"`
}

type addDaysArgs struct {
	Date string `arg:"date"`
	Days int    `arg:"days"`
}

type betweenArgs struct {
	From string `arg:"from"`
	To   string `arg:"to"`
}

// Clock returns the current time.
type Clock func() time.Time

// Time returns date and time capabilities. A nil clock uses time.Now.
func Time(clock Clock) []registry.Capability {
	if clock == nil {
		clock = time.Now
	}
	zone := optional("timezone", "string", "IANA time zone, e.g. Europe/Lisbon", "UTC")

	now := func(layout string) registry.Handler {
		return func(_ context.Context, args map[string]any) (any, error) {
			in, err := decode[zoneArgs](args)
			if err != nil {
				return nil, err
			}
			loc, err := time.LoadLocation(in.Timezone)
			if err != nil {
				return nil, fmt.Errorf("unknown timezone %q: %w", in.Timezone, err)
			}
			return clock().In(loc).Format(layout), nil
		}
	}

	return []registry.Capability{
		withOutput(registry.New("now", "Returns the current date and time", now(time.RFC3339), zone), "RFC 3339 timestamp"),
		withOutput(registry.New("today", "Returns the current date", now(dateLayout), zone), "date as YYYY-MM-DD"),
		withOutput(registry.New("add_days", "Adds a number of days (may be negative) to a date", func(_ context.Context, args map[string]any) (any, error) {
			in, err := decode[addDaysArgs](args)
			if err != nil {
				return nil, err
			}
			d, err := time.Parse(dateLayout, in.Date)
			if err != nil {
				return nil, fmt.Errorf("date must be YYYY-MM-DD: %w", err)
			}
			return d.AddDate(0, 0, in.Days).Format(dateLayout), nil
		}, param("date", "string", "Date as YYYY-MM-DD"), param("days", "int", "Days to add")), "date as YYYY-MM-DD"),
		withOutput(registry.New("days_between", "Counts the days from one date to another", func(_ context.Context, args map[string]any) (any, error) {
			in, err := decode[betweenArgs](args)
			if err != nil {
				return nil, err
			}
			from, err := time.Parse(dateLayout, in.From)
			if err != nil {
				return nil, fmt.Errorf("from must be YYYY-MM-DD: %w", err)
			}
			to, err := time.Parse(dateLayout, in.To)
			if err != nil {
				return nil, fmt.Errorf("to must be YYYY-MM-DD: %w", err)
			}
			return int(to.Sub(from).Hours() / 24), nil
		}, param("from", "string", "Start date as YYYY-MM-DD"), param("to", "string", "End date as YYYY-MM-DD")), "int"),
	}
}
