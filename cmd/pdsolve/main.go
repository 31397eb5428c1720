// Command pdsolve solves a pickup-and-delivery problem file offline and prints
// the schedule.
//
//	pdsolve -problem orders.yaml [-seeds 1,2,3] [-json]
//	pdsolve -problem orders.yaml -check rows.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"pdroute/internal/model"
	"pdroute/internal/opt"
	"pdroute/internal/problem"
)

func main() {
	problemPath := flag.String("problem", "", "YAML or JSON problem file (orders, vehicles, matrix, config)")
	seedList := flag.String("seeds", "", "comma-separated random seeds; empty uses the configured seed")
	asJSON := flag.Bool("json", false, "print the run as JSON")
	check := flag.String("check", "", "verify a JSON array of schedule rows against the problem instead of solving")
	iterations := flag.Int("iterations", -1, "override maxIterations")
	runTime := flag.Duration("time", -1, "override maxRunTime")
	verbose := flag.Bool("v", false, "debug logging to stderr")
	flag.Parse()

	if *problemPath == "" {
		flag.Usage()
		os.Exit(2)
	}
	logger := zap.NewNop()
	if *verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			log.Fatal(err)
		}
		logger = l
	}
	defer func() { _ = logger.Sync() }()

	req, err := readProblem(*problemPath)
	if err != nil {
		log.Fatal(err)
	}
	cfg := opt.DefaultConfig()
	if err := cfg.Override(req.Config); err != nil {
		log.Fatal(err)
	}
	if *iterations >= 0 {
		cfg.MaxIterations = *iterations
	}
	if *runTime >= 0 {
		cfg.MaxRunTime = *runTime
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	seeds, err := parseSeeds(*seedList)
	if err != nil {
		log.Fatal(err)
	}
	if len(seeds) == 0 {
		seeds = req.Seeds
	}

	p, repaired, err := req.Problem()
	if err != nil {
		log.Fatal(err)
	}
	if repaired {
		logger.Info("matrix repaired to satisfy the triangle inequality")
	}

	if *check != "" {
		if err := checkRows(p, cfg, *check); err != nil {
			log.Fatal(err)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	best, all, err := opt.SolveParallel(ctx, p, cfg, seeds, opt.WithLogger(logger))
	if err != nil {
		log.Fatal(err)
	}
	now := time.Now().UTC()
	run := model.Run{Status: model.RunDone, CreatedAt: now, FinishedAt: &now, Orders: len(req.Orders), Vehicles: len(req.Vehicles)}
	run.Apply(best, all)

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(run); err != nil {
			log.Fatal(err)
		}
		return
	}
	printRun(os.Stdout, run)
}

func readProblem(path string) (model.SolveRequest, error) {
	var req model.SolveRequest
	b, err := os.ReadFile(path)
	if err != nil {
		return req, err
	}
	// YAML is a superset of JSON and the yaml tags match the JSON names.
	if err := yaml.Unmarshal(b, &req); err != nil {
		return req, fmt.Errorf("parse %s: %w", path, err)
	}
	return req, nil
}

func parseSeeds(s string) ([]int64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []int64
	for _, f := range strings.Split(s, ",") {
		n, err := strconv.ParseInt(strings.TrimSpace(f), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("seed %q: %w", f, err)
		}
		out = append(out, n)
	}
	return out, nil
}

// checkRows re-parses a schedule and reports its cost, failing when a route
// breaks capacity, precedence or time windows.
func checkRows(p *problem.Problem, cfg opt.Config, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var rows []opt.ScheduleRow
	if err := json.Unmarshal(b, &rows); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	sol, err := opt.FromRows(p, rows, cfg.UnassignedPenalty)
	if err != nil {
		return err
	}
	if err := sol.Verify(); err != nil {
		return err
	}
	fmt.Printf("ok: cost %g, %d routes, %d unassigned\n", sol.Cost(), sol.UsedRoutes(), sol.UnassignedCount())
	return nil
}

func printRun(w io.Writer, run model.Run) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "veh_seq\tvehicle\tstop_seq\torder\tstop\ttype\tcargo\ttravel\tarrival\twait\tstart\tservice\tdeparture\t")
	for _, r := range run.Rows {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%s\t%g\t%g\t%g\t%g\t%g\t%g\t%g\t\n",
			r.VehicleSeq, r.VehicleID, r.StopSeq, r.OrderID, r.StopID, r.StopType,
			r.Cargo, r.Travel, r.Arrival, r.Wait, r.Operation, r.Service, r.Departure)
	}
	_ = tw.Flush()
	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "vehicle\torders\ttravel\twait\tservice\tduration\tcost\t")
	for _, s := range run.Summaries {
		fmt.Fprintf(tw, "%d\t%d\t%g\t%g\t%g\t%g\t%g\t\n", s.VehicleID, s.Orders, s.Travel, s.Wait, s.Service, s.Duration, s.Cost)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "\ncost %g  seed %d  iterations %d  reason %s  elapsed %dms\n",
		run.Cost, run.Seed, run.Iterations, run.Reason, run.ElapsedMs)
	if len(run.Unassigned) > 0 {
		fmt.Fprintf(w, "unassigned %v (infeasible %v)\n", run.Unassigned, run.Infeasible)
	}
}
