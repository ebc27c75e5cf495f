package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/spf13/pflag"
	"github.com/tidwall/jsonc"

	"github.com/wondertwin-ai/rewardcatalog/internal/backend"
	"github.com/wondertwin-ai/rewardcatalog/internal/catalog"
	"github.com/wondertwin-ai/rewardcatalog/internal/client"
	"github.com/wondertwin-ai/rewardcatalog/internal/config"
	"github.com/wondertwin-ai/rewardcatalog/internal/reward"
	"github.com/wondertwin-ai/rewardcatalog/internal/search"
	"github.com/wondertwin-ai/rewardcatalog/internal/tui"
	"github.com/wondertwin-ai/rewardcatalog/internal/workflow"
	"github.com/wondertwin-ai/rewardcatalog/pkg/twincore"
)

// ---------------------------------------------------------------------------
// rewardctl tui
// ---------------------------------------------------------------------------

func (a *app) cmdTUI(ctx context.Context) error {
	return tui.Run(ctx, a.repository(), a.logger)
}

// ---------------------------------------------------------------------------
// rewardctl list
// ---------------------------------------------------------------------------

// listOutput is the --json form of one page.
type listOutput struct {
	Items     []reward.Reward `json:"items"`
	Page      int             `json:"page"`
	PageCount int             `json:"pageCount"`
	Matched   int             `json:"matched"`
	Total     int             `json:"total"`
}

func (a *app) cmdList(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("list", pflag.ContinueOnError)
	fs.SetOutput(a.stderr)
	term := fs.String("search", "", "Only rewards whose name or description contains this")
	page := fs.Int("page", 1, "Page to show")
	asJSON := fs.Bool("json", false, "Print JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	repo := a.repository()
	if err := repo.List(ctx); err != nil {
		return err
	}
	if err := repo.LoadStores(ctx); err != nil {
		a.logger.Warn("stores unavailable", "err", err)
	}

	result := search.Run(repo.Rewards(), search.Query{Term: *term, Page: *page})
	if *asJSON {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(listOutput(result))
	}

	if result.Matched == 0 {
		fmt.Fprintln(a.stdout, "No rewards found.")
		return nil
	}
	w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTORE\tPOINTS\tQUOTA\tVALIDITY\tEXPIRES")
	for _, r := range result.Items {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%s\t%s\n",
			r.ID,
			ansi.Truncate(r.Name, 32, "…"),
			ansi.Truncate(repo.StoreName(r.StoreID), 24, "…"),
			r.Points,
			r.QuotaLabel(),
			r.Validity,
			r.Expiration(),
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "\npage %d of %d (%d of %d rewards)\n", result.Page, result.PageCount, result.Matched, result.Total)
	return nil
}

// ---------------------------------------------------------------------------
// rewardctl show
// ---------------------------------------------------------------------------

func (a *app) cmdShow(ctx context.Context, args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}
	repo, r, err := a.loadReward(ctx, id)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	for _, row := range tui.PreviewLines(r, repo.StoreName) {
		fmt.Fprintf(w, "%s:\t%s\n", row[0], row[1])
	}
	return w.Flush()
}

// ---------------------------------------------------------------------------
// rewardctl stores
// ---------------------------------------------------------------------------

func (a *app) cmdStores(ctx context.Context) error {
	repo := a.repository()
	if err := repo.LoadStores(ctx); err != nil {
		return err
	}
	w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME")
	for _, s := range repo.Stores() {
		fmt.Fprintf(w, "%d\t%s\n", s.ID, s.Name)
	}
	return w.Flush()
}

// ---------------------------------------------------------------------------
// rewardctl create / update
// ---------------------------------------------------------------------------

func (a *app) cmdSubmit(ctx context.Context, args []string, update bool) error {
	name := "create"
	if update {
		name = "update"
	}
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(a.stderr)
	file := fs.StringP("file", "f", "", "Reward JSON file (comments allowed); - reads stdin")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return fmt.Errorf("usage: rewardctl %s -f <file>", name)
	}

	input, err := a.readReward(*file)
	if err != nil {
		return err
	}

	repo := a.repository()
	if err := repo.LoadStores(ctx); err != nil {
		return err
	}
	ctrl := a.controller(repo, false)

	if update {
		if input.IsDraft() {
			return errors.New("update needs a reward with an id")
		}
		if err := repo.List(ctx); err != nil {
			return err
		}
		existing, ok := repo.Get(input.ID)
		if !ok {
			return fmt.Errorf("reward %d not found", input.ID)
		}
		if err := ctrl.Edit(existing); err != nil {
			return err
		}
	} else {
		if !input.IsDraft() {
			return errors.New("create needs a reward without an id; use update")
		}
		if err := ctrl.AddNew(); err != nil {
			return err
		}
	}
	if err := ctrl.Change(patchesFor(input)...); err != nil {
		return err
	}
	return a.submit(ctx, ctrl, repo)
}

// readReward decodes a reward from path, or stdin for "-".
func (a *app) readReward(path string) (reward.Reward, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(a.stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return reward.Reward{}, fmt.Errorf("reading reward: %w", err)
	}

	r := reward.Blank()
	if err := json.Unmarshal(jsonc.ToJSON(data), &r); err != nil {
		return reward.Reward{}, fmt.Errorf("parsing reward %s: %w", path, err)
	}
	return r, nil
}

// patchesFor sets every editable field of the draft to r's values.
func patchesFor(r reward.Reward) []reward.Patch {
	return []reward.Patch{
		reward.SetName(r.Name),
		reward.SetDescription(r.Description),
		reward.SetPoints(r.Points),
		reward.SetQuota(r.Quota),
		reward.SetValidity(r.Validity),
		reward.SetNeverExpire(r.NeverExpire),
		reward.SetExpirationDate(r.ExpirationDate),
		reward.SetStore(r.StoreID),
	}
}

// ---------------------------------------------------------------------------
// rewardctl duplicate
// ---------------------------------------------------------------------------

func (a *app) cmdDuplicate(ctx context.Context, args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}
	repo, r, err := a.loadReward(ctx, id)
	if err != nil {
		return err
	}
	ctrl := a.controller(repo, false)
	if err := ctrl.Duplicate(r); err != nil {
		return err
	}
	return a.submit(ctx, ctrl, repo)
}

// ---------------------------------------------------------------------------
// rewardctl delete
// ---------------------------------------------------------------------------

func (a *app) cmdDelete(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("delete", pflag.ContinueOnError)
	fs.SetOutput(a.stderr)
	yes := fs.BoolP("yes", "y", false, "Do not ask for confirmation")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := parseID(fs.Args())
	if err != nil {
		return err
	}
	repo, r, err := a.loadReward(ctx, id)
	if err != nil {
		return err
	}

	deleted, err := a.controller(repo, *yes).Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		fmt.Fprintln(a.stdout, "Cancelled.")
		return nil
	}
	fmt.Fprintf(a.stdout, "Deleted reward %d (%s).\n", r.ID, r.Name)
	return nil
}

// ---------------------------------------------------------------------------
// rewardctl config
// ---------------------------------------------------------------------------

func (a *app) cmdConfig(args []string) error {
	fs := pflag.NewFlagSet("config", pflag.ContinueOnError)
	fs.SetOutput(a.stderr)
	save := fs.Bool("save", false, "Write the effective config to the config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	nonce := "(none)"
	if a.cfg.Nonce != "" {
		nonce = "(set)"
	}
	fmt.Fprintf(a.stdout, "config:   %s\nbase_url: %s\nnonce:    %s\ntimeout:  %s\n",
		a.configPath, a.cfg.BaseURL, nonce, a.cfg.Timeout)

	if *save {
		if err := config.Save(a.cfg, a.configPath); err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "Saved %s\n", a.configPath)
	}
	return nil
}

// ---------------------------------------------------------------------------
// rewardctl twin
// ---------------------------------------------------------------------------

func (a *app) cmdTwin(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: rewardctl twin <health|reset|seed|faults|fault|clear-fault|requests>")
	}
	c := client.New(a.cfg.BaseURL)
	sub, rest := args[0], args[1:]

	switch sub {
	case "health":
		ok, body := c.Health(ctx)
		if !ok {
			return fmt.Errorf("twin unhealthy: %s", body)
		}
		fmt.Fprintln(a.stdout, body)
		return nil

	case "reset":
		body, err := c.Reset(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, body)
		return nil

	case "seed":
		if len(rest) != 1 {
			return errors.New("usage: rewardctl twin seed <file>")
		}
		body, err := c.Seed(ctx, rest[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, body)
		return nil

	case "faults":
		faults, err := c.Faults(ctx)
		if err != nil {
			return err
		}
		if len(faults) == 0 {
			fmt.Fprintln(a.stdout, "No faults injected.")
			return nil
		}
		paths := make([]string, 0, len(faults))
		for p := range faults {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "PATH\tMETHOD\tSTATUS\tRATE\tDELAY")
		for _, p := range paths {
			f := faults[p]
			method := f.Method
			if method == "" {
				method = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%.2f\t%s\n", p, method, f.StatusCode, f.Rate, f.Delay)
		}
		return w.Flush()

	case "fault":
		fs := pflag.NewFlagSet("twin fault", pflag.ContinueOnError)
		fs.SetOutput(a.stderr)
		status := fs.Int("status", 500, "HTTP status the faulted route answers with")
		rate := fs.Float64("rate", 1, "Probability the fault fires (0-1)")
		delay := fs.Duration("delay", 0, "Delay before answering")
		body := fs.String("body", "", "Raw JSON response body")
		method := fs.String("method", "", "Only fault requests with this HTTP method")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if fs.NArg() != 1 {
			return errors.New("usage: rewardctl twin fault <path> [--status n] [--rate r] [--delay d] [--body json] [--method m]")
		}
		path := faultTarget(fs.Arg(0))
		fault := twincore.FaultConfig{StatusCode: *status, Rate: *rate, Delay: *delay, Body: *body, Method: *method}
		if err := c.InjectFault(ctx, path, fault); err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "Injected %d on %s.\n", *status, path)
		return nil

	case "clear-fault":
		if len(rest) != 1 {
			return errors.New("usage: rewardctl twin clear-fault <path>")
		}
		path := faultTarget(rest[0])
		if err := c.ClearFault(ctx, path); err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "Cleared fault on %s.\n", path)
		return nil

	case "requests":
		entries, err := c.Requests(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tMETHOD\tPATH\tSTATUS\tDURATION")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
				e.Timestamp.Format("15:04:05"), e.Method, e.Path, e.StatusCode, e.Duration.Round(time.Microsecond))
		}
		return w.Flush()

	default:
		return fmt.Errorf("unknown twin command %q", sub)
	}
}

// faultTarget expands a short route like "rewards" to its full REST path.
func faultTarget(path string) string {
	if strings.HasPrefix(path, "/") {
		return path
	}
	return backend.Namespace + "/" + path
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// controller wires a Controller whose notices go to stderr and whose
// delete confirmation asks on stdin unless assumeYes.
func (a *app) controller(repo *catalog.Repository, assumeYes bool) *workflow.Controller {
	notifier := workflow.NotifierFunc(func(message string) {
		fmt.Fprintln(a.stderr, message)
	})
	confirmer := workflow.ConfirmerFunc(func(_ context.Context, prompt string) bool {
		if assumeYes {
			return true
		}
		fmt.Fprintf(a.stdout, "%s [y/N] ", prompt)
		line, _ := bufio.NewReader(a.stdin).ReadString('\n')
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes"
	})
	return workflow.New(repo, notifier, confirmer, a.logger)
}

// submit runs the controller's Submit and reports the outcome. Validation
// failures are printed one field per line.
func (a *app) submit(ctx context.Context, ctrl *workflow.Controller, repo *catalog.Repository) error {
	saved, err := ctrl.Submit(ctx)
	var validation *workflow.ValidationError
	if errors.As(err, &validation) {
		for _, field := range validation.Fields.Fields() {
			fmt.Fprintf(a.stderr, "  %s: %s\n", field, validation.Fields[field])
		}
		return errors.New("reward not saved: validation failed")
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Saved reward %d (%s) at %s.\n", saved.ID, saved.Name, repo.StoreName(saved.StoreID))
	return nil
}

// loadReward lists the catalog and returns the reward with id.
func (a *app) loadReward(ctx context.Context, id int) (*catalog.Repository, reward.Reward, error) {
	repo := a.repository()
	if err := repo.List(ctx); err != nil {
		return nil, reward.Reward{}, err
	}
	if err := repo.LoadStores(ctx); err != nil {
		a.logger.Warn("stores unavailable", "err", err)
	}
	r, ok := repo.Get(id)
	if !ok {
		return nil, reward.Reward{}, fmt.Errorf("reward %d not found", id)
	}
	return repo, r, nil
}

func parseID(args []string) (int, error) {
	if len(args) != 1 {
		return 0, errors.New("expected exactly one reward id")
	}
	id, err := strconv.Atoi(args[0])
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid reward id %q", args[0])
	}
	return id, nil
}
