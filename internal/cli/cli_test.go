package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okian/libero/internal/adapters/eventfile"
	"github.com/okian/libero/internal/config"
	"github.com/okian/libero/internal/domain/model"
	"github.com/okian/libero/pkg/logger"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func simulated(t *testing.T, seed string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "match-"+seed+".jsonl")
	_, err := run(t, "simulate", "--seed", seed, "--out", path)
	require.NoError(t, err)
	return path
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "libero", cmd.Use)

	for _, name := range []string{"serve", "simulate", "replay", "report", "create", "import", "export", "list"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
	assert.Equal(t, "v", cmd.PersistentFlags().Lookup("verbose").Shorthand)
}

func TestInvalidFormat(t *testing.T) {
	_, err := run(t, "--format", "xml", "simulate")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestExitCodes(t *testing.T) {
	assert.Equal(t, ExitSuccess, 0)
	assert.Equal(t, ExitFailure, GetExitCode(assert.AnError))
	wrapped := WrapExitError(ExitCommandError, "open", assert.AnError)
	assert.Equal(t, ExitCommandError, GetExitCode(wrapped))
	assert.ErrorIs(t, wrapped, assert.AnError)
	assert.Equal(t, "open: "+assert.AnError.Error(), wrapped.Error())
}

func TestSimulate(t *testing.T) {
	t.Run("stdout is an event file", func(t *testing.T) {
		out, err := run(t, "simulate", "--seed", "5")
		require.NoError(t, err)
		f, err := eventfile.Read(strings.NewReader(out))
		require.NoError(t, err)
		assert.NotEmpty(t, f.Events)
	})

	t.Run("same seed gives the same bytes", func(t *testing.T) {
		a, err := os.ReadFile(simulated(t, "9"))
		require.NoError(t, err)
		b, err := os.ReadFile(simulated(t, "9"))
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("custom rules are written to the header", func(t *testing.T) {
		out, err := run(t, "simulate", "--seed", "2", "--set-target", "15", "--sets-to-win", "2")
		require.NoError(t, err)
		f, err := eventfile.Read(strings.NewReader(out))
		require.NoError(t, err)
		assert.Equal(t, 15, f.Rules.SetTarget)
		assert.Equal(t, 2, f.Rules.SetsToWin)
	})

	t.Run("invalid rules", func(t *testing.T) {
		_, err := run(t, "simulate", "--set-target", "0")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})
}

func TestReplay(t *testing.T) {
	path := simulated(t, "3")

	t.Run("text", func(t *testing.T) {
		out, err := run(t, "replay", "--in", path)
		require.NoError(t, err)
		assert.Contains(t, out, "OK: replay is deterministic")
		assert.Contains(t, out, "1st set")
	})

	t.Run("json", func(t *testing.T) {
		out, err := run(t, "replay", "--in", path, "--format", "json")
		require.NoError(t, err)
		var res ReplayResult
		require.NoError(t, json.Unmarshal([]byte(out), &res))
		assert.True(t, res.Deterministic)
		assert.Positive(t, res.Events)
		assert.Equal(t, uint64(res.Events), res.LastSeq)
		assert.True(t, res.Summary.Winner.Valid())
	})

	t.Run("missing flag", func(t *testing.T) {
		_, err := run(t, "replay")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "required flag")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := run(t, "replay", "--in", filepath.Join(t.TempDir(), "nope.jsonl"))
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})

	t.Run("corrupt ledger", func(t *testing.T) {
		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
		lines = slices.Insert(lines, 3, lines[2])
		bad := filepath.Join(t.TempDir(), "bad.jsonl")
		require.NoError(t, os.WriteFile(bad, []byte(strings.Join(lines, "\n")), 0o600))

		_, err = run(t, "replay", "--in", bad)
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Contains(t, err.Error(), "ledger rejected")
	})

	t.Run("not an event file", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.jsonl")
		require.NoError(t, os.WriteFile(bad, []byte("hello"), 0o600))
		_, err := run(t, "replay", "--in", bad)
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
	})
}

func TestReport(t *testing.T) {
	path := simulated(t, "4")
	f, err := eventfile.ReadFile(path)
	require.NoError(t, err)

	t.Run("text", func(t *testing.T) {
		out, err := run(t, "report", "--in", path)
		require.NoError(t, err)
		assert.Contains(t, out, "PLAYER")
		assert.Contains(t, out, f.Match.Teams[0].Name)
		assert.Contains(t, out, "SIDE-OUT")
		assert.NotContains(t, out, "SEQ")
	})

	t.Run("text with events", func(t *testing.T) {
		out, err := run(t, "report", "--in", path, "--set", "1", "--type", "set-start", "--events")
		require.NoError(t, err)
		assert.Contains(t, out, "SEQ")
		assert.Contains(t, out, "1 of ")
	})

	t.Run("json filtered", func(t *testing.T) {
		out, err := run(t, "report", "--in", path, "--set", "1,2", "--type", "point", "--format", "json")
		require.NoError(t, err)
		var res struct {
			MatchID string        `json:"match_id"`
			Events  []model.Event `json:"events"`
			Stats   struct {
				Events int `json:"events"`
			} `json:"stats"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &res))
		assert.Equal(t, f.Match.ID, res.MatchID)
		require.NotEmpty(t, res.Events)
		assert.Len(t, res.Events, res.Stats.Events)
		for _, e := range res.Events {
			assert.Equal(t, model.EventPoint, e.Type)
			assert.Contains(t, []int{1, 2}, e.Set)
		}
	})

	t.Run("json by skill", func(t *testing.T) {
		out, err := run(t, "report", "--in", path, "--skill", "serve", "--format", "json")
		require.NoError(t, err)
		var res struct {
			Events []model.Event `json:"events"`
			Stats  struct {
				Skills map[string]map[string]json.RawMessage `json:"skills"`
			} `json:"stats"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &res))
		require.NotEmpty(t, res.Events)
		for _, e := range res.Events {
			assert.Equal(t, model.SkillServe, e.Skill)
		}
		for _, skills := range res.Stats.Skills {
			assert.Len(t, skills, 1)
			assert.Contains(t, skills, "serve")
		}
	})

	t.Run("invalid skill", func(t *testing.T) {
		_, err := run(t, "report", "--in", path, "--skill", "spike")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})

	t.Run("invalid filter", func(t *testing.T) {
		_, err := run(t, "report", "--in", path, "--rotation", "9")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})
}

const roster = `
id: cup-final
name: Cup final
played_at: 2026-03-14T19:30:00Z
teams:
  - name: Blue
    players: [{id: b1}, {id: b2}, {id: b3}, {id: b4}, {id: b5}, {id: b6}]
  - name: Red
    players: [{id: r1}, {id: r2}, {id: r3}, {id: r4}, {id: r5}, {id: r6}]
`

func TestDatabaseCommands(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "libero.db")
	path := simulated(t, "6")
	src, err := eventfile.ReadFile(path)
	require.NoError(t, err)

	t.Run("create from roster", func(t *testing.T) {
		rosterPath := filepath.Join(dir, "roster.yaml")
		require.NoError(t, os.WriteFile(rosterPath, []byte(roster), 0o600))

		out, err := run(t, "create", "--db", db, "--roster", rosterPath)
		require.NoError(t, err)
		assert.Contains(t, out, "saved match cup-final with 0 events")

		_, err = run(t, "create", "--db", db, "--roster", rosterPath)
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})

	t.Run("import", func(t *testing.T) {
		out, err := run(t, "import", "--db", db, "--in", path, "--format", "json")
		require.NoError(t, err)
		var res map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &res))
		assert.Equal(t, src.Match.ID, res["match_id"])
		assert.EqualValues(t, len(src.Events), res["events"])
	})

	t.Run("list", func(t *testing.T) {
		out, err := run(t, "list", "--db", db)
		require.NoError(t, err)
		assert.Contains(t, out, "cup-final")
		assert.Contains(t, out, src.Match.ID)
		assert.Contains(t, out, "Blue v Red")
	})

	t.Run("export round trip", func(t *testing.T) {
		outPath := filepath.Join(dir, "export.jsonl")
		_, err := run(t, "export", "--db", db, "--match", src.Match.ID, "--out", outPath)
		require.NoError(t, err)

		got, err := eventfile.ReadFile(outPath)
		require.NoError(t, err)
		assert.Equal(t, src.Match, got.Match)
		assert.Equal(t, src.Rules, got.Rules)
		assert.Equal(t, src.Events, got.Events)
	})

	t.Run("export unknown match", func(t *testing.T) {
		_, err := run(t, "export", "--db", db, "--match", "missing")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})

	t.Run("import twice", func(t *testing.T) {
		_, err := run(t, "import", "--db", db, "--in", path)
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})
}

func TestServe(t *testing.T) {
	require.NoError(t, logger.Init(logger.WithWriter(io.Discard)))

	cfg := config.New(context.Background())
	cfg.WorkerCount = 2
	cfg.ShutdownTimeout = 5 * time.Second

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	base := "http://" + ln.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, cfg, ln) }()

	client := &http.Client{Timeout: 5 * time.Second}
	for _, path := range []string{"/healthz", "/matches", "/api-docs", "/openapi.yaml"} {
		resp, err := client.Get(base + path)
		require.NoError(t, err, path)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServeInvalidRules(t *testing.T) {
	require.NoError(t, logger.Init(logger.WithWriter(io.Discard)))
	cfg := config.New(context.Background())
	cfg.MinMargin = 0

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	err = Serve(context.Background(), cfg, ln)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
