package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"repairdesk/backend/internal/cache"
	"repairdesk/backend/internal/domain"
	"repairdesk/backend/internal/logger"
	"repairdesk/backend/internal/recordstore"
	"repairdesk/backend/internal/report"
	"repairdesk/backend/internal/service"
	"repairdesk/backend/internal/store"
	"repairdesk/backend/internal/store/memory"
	pgstore "repairdesk/backend/internal/store/postgres"
)

type serviceKey struct{}

type closerKey struct{}

func newDBURLFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "db-url",
		Usage:   "PostgreSQL connection string",
		EnvVars: []string{"DATABASE_URL"},
	}
}

func sourceFlags() []cli.Flag {
	return []cli.Flag{
		newDBURLFlag(),
		&cli.BoolFlag{
			Name:  "demo",
			Usage: "Use the seeded in-memory store instead of PostgreSQL",
		},
		&cli.StringFlag{
			Name:    "shop",
			Usage:   "Shop identifier",
			Value:   "main-shop",
			EnvVars: []string{"DEFAULT_SHOP_ID"},
		},
		&cli.StringFlag{
			Name:    "currency",
			Usage:   "Currency code printed next to amounts",
			Value:   "UGX",
			EnvVars: []string{"CURRENCY"},
		},
		&cli.StringFlag{
			Name:    "timezone",
			Usage:   "IANA time zone that defines the local day",
			Value:   "Local",
			EnvVars: []string{"TIMEZONE"},
		},
	}
}

func openService(c *cli.Context) error {
	loc := time.Local
	if tz := c.String("timezone"); tz != "" && !strings.EqualFold(tz, "local") {
		loaded, err := time.LoadLocation(tz)
		if err != nil {
			return fmt.Errorf("invalid timezone %q: %w", tz, err)
		}
		loc = loaded
	}

	var repo store.Repository
	closeFn := func() error { return nil }
	switch {
	case c.Bool("demo"):
		repo = memory.NewSeeded()
	case c.String("db-url") != "":
		pg, err := pgstore.New(c.Context, c.String("db-url"))
		if err != nil {
			return err
		}
		repo = pg
		closeFn = pg.Close
	default:
		return errors.New("either --db-url (or DATABASE_URL) or --demo is required")
	}

	records := recordstore.New(repo)
	if _, err := records.Load(c.Context); err != nil {
		_ = closeFn()
		return err
	}

	svc := service.New(records, repo, cache.NoopReportCache{}, nil, service.Options{
		DefaultShopID: c.String("shop"),
		Currency:      c.String("currency"),
		Location:      loc,
	})
	c.Context = context.WithValue(c.Context, serviceKey{}, svc)
	c.Context = context.WithValue(c.Context, closerKey{}, closeFn)
	return nil
}

func closeService(c *cli.Context) error {
	if closeFn, ok := c.Context.Value(closerKey{}).(func() error); ok && closeFn != nil {
		return closeFn()
	}
	return nil
}

func serviceFrom(c *cli.Context) (*service.Service, error) {
	svc, ok := c.Context.Value(serviceKey{}).(*service.Service)
	if !ok || svc == nil {
		return nil, errors.New("service not initialised")
	}
	return svc, nil
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "reportctl",
		Usage: "Print shop reports from the record store",
		Commands: []*cli.Command{
			{
				Name:  "daily",
				Usage: "Print the report for one or more days",
				Flags: append(sourceFlags(),
					&cli.StringSliceFlag{
						Name:  "date",
						Usage: "Day to include (YYYY-MM-DD); repeat for several days. Defaults to today",
					},
					&cli.StringFlag{
						Name:  "format",
						Usage: "Output format: text, csv or json",
						Value: "text",
					},
					&cli.BoolFlag{
						Name:  "bold",
						Usage: "Wrap headings in emphasis markers",
					},
				),
				Before: openService,
				After:  closeService,
				Action: runDaily,
			},
			{
				Name:  "summary",
				Usage: "Print sales and repair totals for a rolling period",
				Flags: append(sourceFlags(),
					&cli.StringFlag{
						Name:  "period",
						Usage: "daily, weekly or monthly",
						Value: string(domain.Daily),
					},
				),
				Before: openService,
				After:  closeService,
				Action: runSummary,
			},
			{
				Name:  "trend",
				Usage: "Print the revenue trend buckets ending today",
				Flags: append(sourceFlags(),
					&cli.StringFlag{
						Name:  "period",
						Usage: "daily, weekly or monthly",
						Value: string(domain.Daily),
					},
					&cli.IntFlag{
						Name:  "buckets",
						Usage: "Number of buckets",
						Value: service.DefaultTrendBuckets,
					},
				),
				Before: openService,
				After:  closeService,
				Action: runTrend,
			},
		},
	}
}

func runDaily(c *cli.Context) error {
	svc, err := serviceFrom(c)
	if err != nil {
		return err
	}

	raw := c.StringSlice("date")
	if len(raw) == 0 {
		raw = []string{""}
	}
	dates := make([]time.Time, 0, len(raw))
	for _, value := range raw {
		day, err := svc.ParseDay(value)
		if err != nil {
			return err
		}
		dates = append(dates, day)
	}

	doc, err := svc.Report(c.Context, c.String("shop"), dates...)
	if err != nil {
		return err
	}

	switch strings.ToLower(c.String("format")) {
	case "csv":
		body, err := report.CSV(doc)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(c.App.Writer, body)
		return err
	case "json":
		return writeJSON(c, doc)
	case "text", "":
		_, err = fmt.Fprint(c.App.Writer, report.Render(doc, c.Bool("bold")))
		return err
	default:
		return fmt.Errorf("unsupported format %q", c.String("format"))
	}
}

func runSummary(c *cli.Context) error {
	svc, err := serviceFrom(c)
	if err != nil {
		return err
	}
	summary, err := svc.PeriodSummary(c.Context, c.String("shop"), time.Time{}, domain.Granularity(c.String("period")))
	if err != nil {
		return err
	}
	return writeJSON(c, summary)
}

func runTrend(c *cli.Context) error {
	svc, err := serviceFrom(c)
	if err != nil {
		return err
	}
	points, err := svc.Trend(c.Context, c.String("shop"), domain.Granularity(c.String("period")), c.Int("buckets"))
	if err != nil {
		return err
	}
	for _, point := range points {
		if _, err := fmt.Fprintf(c.App.Writer, "%-8s %s %s (%d)\n", point.Label, point.Start.Format("2006-01-02"), svc.Currency()+" "+point.Revenue.StringFixed(0), point.Count); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(c *cli.Context, payload any) error {
	encoder := json.NewEncoder(c.App.Writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(payload)
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		logger.Log.Debug().Err(err).Msg("no .env file loaded")
	}
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "warn"
	}
	logger.SetupWriter(os.Stderr, level, "console")

	if err := newApp().Run(os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("reportctl failed")
	}
}
