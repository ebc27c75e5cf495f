package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wondertwin-ai/rewardcatalog/internal/twin/api"
	"github.com/wondertwin-ai/rewardcatalog/internal/twin/store"
	"github.com/wondertwin-ai/rewardcatalog/pkg/admin"
	"github.com/wondertwin-ai/rewardcatalog/pkg/twincore"
)

const testNonce = "cli-nonce"

// startTwin serves a seeded twin and isolates the CLI from the real
// home directory and environment.
func startTwin(t *testing.T) (*httptest.Server, *store.MemoryStore) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("REWARDS_BASE_URL", "")
	t.Setenv("REWARDS_NONCE", "")
	t.Setenv("REWARDS_TIMEOUT", "")

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	memStore := store.New()
	memStore.SeedDefaults()
	twin := twincore.New(&twincore.Config{Name: "twin-rewards-cli-test", Nonce: testNonce}, quiet)
	api.NewHandler(memStore, twin.Middleware(), twin, twin.Metrics, quiet).Routes(twin.Router)
	admin.NewHandler(memStore, twin.Middleware(), twin).Routes(twin.Router)
	srv := httptest.NewServer(twin.Router)
	t.Cleanup(srv.Close)
	return srv, memStore
}

// rewardctl runs the CLI against srv and returns stdout and stderr.
func rewardctl(t *testing.T, srv *httptest.Server, stdin string, args ...string) (string, string, error) {
	t.Helper()
	full := append([]string{
		"--base-url", srv.URL,
		"--nonce", testNonce,
		"--env-file", filepath.Join(t.TempDir(), "none.env"),
	}, args...)
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), full, strings.NewReader(stdin), &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestVersion(t *testing.T) {
	var stdout bytes.Buffer
	if err := run(context.Background(), []string{"version"}, nil, &stdout, io.Discard); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout.String(), "rewardctl version dev") {
		t.Errorf("unexpected output %q", stdout.String())
	}
}

func TestUnknownCommand(t *testing.T) {
	srv, _ := startTwin(t)
	_, _, err := rewardctl(t, srv, "", "frobnicate")
	if err == nil || !strings.Contains(err.Error(), "frobnicate") {
		t.Errorf("expected unknown command error, got %v", err)
	}
}

func TestList(t *testing.T) {
	srv, _ := startTwin(t)
	out, _, err := rewardctl(t, srv, "", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, want := range []string{"Free Slice", "Uptown Pizza Palace", "Never expires", "2026-12-31", "page 1 of 1 (3 of 3 rewards)"} {
		if !strings.Contains(out, want) {
			t.Errorf("list output missing %q:\n%s", want, out)
		}
	}
}

func TestListJSONWithSearch(t *testing.T) {
	srv, _ := startTwin(t)
	out, _, err := rewardctl(t, srv, "", "list", "--search", "garlic", "--page", "7", "--json")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var got listOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decoding %q: %v", out, err)
	}
	if got.Matched != 1 || got.Page != 1 || got.PageCount != 1 || got.Items[0].Name != "Garlic Knots" {
		t.Errorf("unexpected page: %+v", got)
	}
}

func TestShow(t *testing.T) {
	srv, _ := startTwin(t)
	out, _, err := rewardctl(t, srv, "", "show", "2")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	for _, want := range []string{"Free Large Pizza", "Uptown Pizza Palace", "limited", "50"} {
		if !strings.Contains(out, want) {
			t.Errorf("show output missing %q:\n%s", want, out)
		}
	}

	if _, _, err := rewardctl(t, srv, "", "show", "99"); err == nil {
		t.Error("expected error for unknown reward")
	}
}

func TestStores(t *testing.T) {
	srv, _ := startTwin(t)
	out, _, err := rewardctl(t, srv, "", "stores")
	if err != nil {
		t.Fatalf("stores: %v", err)
	}
	if !strings.Contains(out, "Suburban Slice Haven") {
		t.Errorf("unexpected stores output:\n%s", out)
	}
}

func TestCreateFromFile(t *testing.T) {
	srv, memStore := startTwin(t)
	path := filepath.Join(t.TempDir(), "reward.jsonc")
	content := `{
		// a new dessert reward
		"name": "Cannoli",
		"description": "Two cannoli",
		"points": 150,
		"storeId": 3,
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	out, _, err := rewardctl(t, srv, "", "create", "-f", path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.Contains(out, "Saved reward 4 (Cannoli) at Suburban Slice Haven") {
		t.Errorf("unexpected output %q", out)
	}
	created, ok := memStore.Rewards.Get(4)
	if !ok || !created.NeverExpire || created.Validity != "instant" {
		t.Errorf("expected blank-draft defaults applied, got %+v", created)
	}
}

func TestCreateValidationErrors(t *testing.T) {
	srv, memStore := startTwin(t)
	_, stderr, err := rewardctl(t, srv, `{"name": "", "points": 0, "storeId": 42}`, "create", "-f", "-")
	if err == nil {
		t.Fatal("expected validation failure")
	}
	for _, want := range []string{"name: Reward name is required", "points: Points must be greater than 0", "storeId: Selected store is not available"} {
		if !strings.Contains(stderr, want) {
			t.Errorf("stderr missing %q:\n%s", want, stderr)
		}
	}
	if memStore.Rewards.Len() != 3 {
		t.Error("invalid reward reached the backend")
	}
}

func TestUpdateFromStdin(t *testing.T) {
	srv, memStore := startTwin(t)
	input := `{"id": 1, "name": "Free Slice", "description": "Any slice", "points": 90, "validity": "instant", "neverExpire": true, "storeId": 1}`
	if _, _, err := rewardctl(t, srv, input, "update", "-f", "-"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if r, _ := memStore.Rewards.Get(1); r.Points != 90 || r.Description != "Any slice" {
		t.Errorf("update not applied: %+v", r)
	}
}

func TestDuplicate(t *testing.T) {
	srv, memStore := startTwin(t)
	out, _, err := rewardctl(t, srv, "", "duplicate", "3")
	if err != nil {
		t.Fatalf("duplicate: %v", err)
	}
	if !strings.Contains(out, "Copy of Garlic Knots") {
		t.Errorf("unexpected output %q", out)
	}
	if memStore.Rewards.Len() != 4 {
		t.Errorf("expected 4 rewards, got %d", memStore.Rewards.Len())
	}
}

func TestDeletePromptsOnStdin(t *testing.T) {
	srv, memStore := startTwin(t)

	out, _, err := rewardctl(t, srv, "n\n", "delete", "1")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !strings.Contains(out, "Are you sure you want to delete this reward? [y/N]") || !strings.Contains(out, "Cancelled.") {
		t.Errorf("unexpected output %q", out)
	}
	if !memStore.Rewards.Has(1) {
		t.Fatal("declined delete removed the reward")
	}

	if _, _, err := rewardctl(t, srv, "yes\n", "delete", "1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if memStore.Rewards.Has(1) {
		t.Error("confirmed delete kept the reward")
	}
}

func TestDeleteYesFlag(t *testing.T) {
	srv, memStore := startTwin(t)
	out, _, err := rewardctl(t, srv, "", "delete", "--yes", "2")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !strings.Contains(out, "Deleted reward 2 (Free Large Pizza).") || memStore.Rewards.Has(2) {
		t.Errorf("unexpected result %q", out)
	}
}

func TestWrongNonceFails(t *testing.T) {
	srv, _ := startTwin(t)
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{
		"--base-url", srv.URL, "--nonce", "stale", "--env-file", filepath.Join(t.TempDir(), "none.env"), "list",
	}, nil, &stdout, &stderr)
	if err == nil {
		t.Fatal("expected auth failure")
	}
}

func TestConfigSaveAndReload(t *testing.T) {
	srv, _ := startTwin(t)
	path := filepath.Join(t.TempDir(), "rewardctl.yaml")
	if err := os.WriteFile(path, []byte("timeout: 2s\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	out, _, err := rewardctl(t, srv, "", "--config", path, "config", "--save")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if !strings.Contains(out, "timeout:  2s") || !strings.Contains(out, "nonce:    (set)") {
		t.Errorf("unexpected config output:\n%s", out)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), srv.URL) || !strings.Contains(string(data), testNonce) {
		t.Errorf("saved config missing values:\n%s", data)
	}
}

func TestMissingExplicitConfig(t *testing.T) {
	srv, _ := startTwin(t)
	_, _, err := rewardctl(t, srv, "", "--config", filepath.Join(t.TempDir(), "nope.yaml"), "list")
	if err == nil {
		t.Fatal("expected error for missing --config file")
	}
}

func TestTwinFaultSurfacesInList(t *testing.T) {
	srv, _ := startTwin(t)

	out, _, err := rewardctl(t, srv, "", "twin", "fault", "rewards", "--status", "503")
	if err != nil {
		t.Fatalf("twin fault: %v", err)
	}
	if !strings.Contains(out, "/wp-json/pizza-rewards/v1/rewards") {
		t.Errorf("unexpected output %q", out)
	}

	out, _, err = rewardctl(t, srv, "", "twin", "faults")
	if err != nil || !strings.Contains(out, "503") {
		t.Fatalf("twin faults = %q, %v", out, err)
	}

	if _, _, err := rewardctl(t, srv, "", "list"); err == nil {
		t.Error("expected list to fail while the fault is injected")
	}

	if _, _, err := rewardctl(t, srv, "", "twin", "clear-fault", "rewards"); err != nil {
		t.Fatalf("twin clear-fault: %v", err)
	}
	if _, _, err := rewardctl(t, srv, "", "list"); err != nil {
		t.Errorf("list after clearing fault: %v", err)
	}
}

func TestTwinFaultScopedToMethod(t *testing.T) {
	srv, _ := startTwin(t)

	if _, _, err := rewardctl(t, srv, "", "twin", "fault", "rewards", "--status", "503", "--method", "post"); err != nil {
		t.Fatalf("twin fault: %v", err)
	}
	out, _, err := rewardctl(t, srv, "", "twin", "faults")
	if err != nil || !strings.Contains(out, "POST") {
		t.Fatalf("twin faults = %q, %v", out, err)
	}
	if _, _, err := rewardctl(t, srv, "", "list"); err != nil {
		t.Errorf("list should pass a POST-only fault: %v", err)
	}
}

func TestTwinResetAndRequests(t *testing.T) {
	srv, memStore := startTwin(t)
	if _, _, err := rewardctl(t, srv, "", "delete", "--yes", "1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	out, _, err := rewardctl(t, srv, "", "twin", "requests")
	if err != nil {
		t.Fatalf("twin requests: %v", err)
	}
	if !strings.Contains(out, "DELETE") {
		t.Errorf("request log missing the delete:\n%s", out)
	}

	if _, _, err := rewardctl(t, srv, "", "twin", "reset"); err != nil {
		t.Fatalf("twin reset: %v", err)
	}
	if !memStore.Rewards.Has(1) {
		t.Error("reset did not restore the seed catalog")
	}

	out, _, err = rewardctl(t, srv, "", "twin", "health")
	if err != nil || !strings.Contains(out, "ok") {
		t.Errorf("twin health = %q, %v", out, err)
	}
}

func TestTwinUnknownSubcommand(t *testing.T) {
	srv, _ := startTwin(t)
	if _, _, err := rewardctl(t, srv, "", "twin", "explode"); err == nil {
		t.Error("expected error for unknown twin subcommand")
	}
}
