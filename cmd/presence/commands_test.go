package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/profilecard/presence/internal/doctor"
	clierrors "github.com/profilecard/presence/internal/errors"
	"github.com/profilecard/presence/internal/relay"
	"github.com/profilecard/presence/internal/testutil"
)

func lanyardAPI(t *testing.T, body string) {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/v1/users/") {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	t.Setenv("HOME", t.TempDir())
	t.Setenv("PRESENCE_PROFILE_DIR", t.TempDir())
	t.Setenv("PRESENCE_LANYARD_API_URL", server.URL)
}

func TestLookup_JSON(t *testing.T) {
	lanyardAPI(t, `{"success":true,"data":{
		"discord_user":{"id":"94490510688792576","username":"phineas","global_name":"Phineas"},
		"discord_status":"dnd"}}`)

	got, err := runJSON(t, newLookupCmd(), "94490510688792576")
	require.NoError(t, err)

	assert.Contains(t, got, `"user_id": "94490510688792576"`)
	assert.Contains(t, got, `"status": "dnd"`)
}

func TestLookup_Card(t *testing.T) {
	lanyardAPI(t, `{"success":true,"data":{
		"discord_user":{"id":"94490510688792576","username":"phineas","global_name":"Phineas"},
		"discord_status":"online"}}`)

	got, err := runCmd(t, newLookupCmd(), "94490510688792576")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(got, "Looking up 94490510688792576... done\n"), "output: %q", got)
	assert.Contains(t, got, "Phineas")
	assert.Contains(t, got, "Online")
}

func TestLookup_NotTracked(t *testing.T) {
	lanyardAPI(t, `{"success":false,"error":{"code":"user_not_monitored","message":"User is not being monitored by Lanyard"}}`)

	_, err := runCmd(t, newLookupCmd(), "94490510688792576")

	var cliErr *clierrors.CLIError
	require.True(t, clierrors.As(err, &cliErr), "want CLIError, got %v", err)
	assert.Equal(t, clierrors.ExitNotFound, cliErr.Code)
	assert.Contains(t, cliErr.Hint, "discord.com/invite/lanyard")
}

func TestLookup_RequiresID(t *testing.T) {
	lanyardAPI(t, `{}`)
	t.Setenv("PRESENCE_PRESENCE_DISCORD_ID", "")

	_, err := runCmd(t, newLookupCmd())

	var cliErr *clierrors.CLIError
	require.True(t, clierrors.As(err, &cliErr), "want CLIError, got %v", err)
	assert.Equal(t, clierrors.ExitUsage, cliErr.Code)
}

func TestTailEnvelopes(t *testing.T) {
	snap := testSnapshot()
	envelopes := make(chan *relay.Envelope, 2)
	envelopes <- &relay.Envelope{InstanceID: "3f2b1c9e-0000-4000-8000-000000000000", Snapshot: snap}
	envelopes <- &relay.Envelope{InstanceID: "abc", Snapshot: snap}
	close(envelopes)

	out, buf := testWriter()
	require.NoError(t, tailEnvelopes(make(chan struct{}), out, envelopes))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "14:03:00  Phineas · Idle  (from 3f2b1c9e)", lines[0])
	assert.Equal(t, "14:03:00  Phineas · Idle  (from abc)", lines[1])
}

func TestTailEnvelopes_StopsOnDone(t *testing.T) {
	done := make(chan struct{})
	close(done)

	out, buf := testWriter()

	finished := make(chan error, 1)
	go func() { finished <- tailEnvelopes(done, out, make(chan *relay.Envelope)) }()

	select {
	case err := <-finished:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("tailEnvelopes did not return after done closed")
	}

	assert.Empty(t, buf.String())
}

func TestDoctorOptions(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("PRESENCE_PRESENCE_DISCORD_ID", "42")
	t.Setenv("PRESENCE_RELAY_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("PRESENCE_PRESENCE_HEARTBEAT_FALLBACK", "45s")

	opts := doctorOptions(loadConfig(t))

	assert.Equal(t, "42", opts.DiscordID)
	assert.Equal(t, "redis://localhost:6379/0", opts.RedisURL)
	assert.Equal(t, 45*time.Second, opts.HeartbeatFallback)
	assert.Equal(t, "https://api.lanyard.rest", opts.APIURL)
}

func TestDoctorReport_Golden(t *testing.T) {
	results := []doctor.Result{
		{Name: "Configuration", Status: doctor.StatusPass, Message: "Watching 42"},
		{Name: "Lanyard API", Status: doctor.StatusPass, Message: "https://api.lanyard.rest (12ms)"},
		{Name: "Steam Key", Status: doctor.StatusWarn, Message: "Not configured", Detail: "Run 'presence steam key set'"},
		{Name: "Relay", Status: doctor.StatusFail, Message: "Redis unreachable"},
	}

	out, buf := testWriter()
	passed, failed, warnings := doctor.Summary(results)
	printDoctorReport(out, results, passed, failed, warnings)

	testutil.AssertGolden(t, buf.String(), "doctor_report.golden")
}

func TestVersion_Golden(t *testing.T) {
	got, err := runCmd(t, newVersionCmd())
	require.NoError(t, err)

	testutil.AssertGolden(t, got, "version.golden")
}

func TestVersion_JSON(t *testing.T) {
	got, err := runJSON(t, newVersionCmd())
	require.NoError(t, err)

	testutil.AssertGoldenJSON(t, got, "version_json.golden")
}
