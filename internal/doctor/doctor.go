// Package doctor provides diagnostic checks for presence.
//
// The default checks validate:
//   - configuration of the watched Discord user
//   - Lanyard REST reachability and whether the user is tracked
//   - the gateway hello handshake
//   - the Steam Web API key
//   - the Redis relay, when configured
//   - the build version
package doctor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/profilecard/presence/internal/auth"
	"github.com/profilecard/presence/internal/buildinfo"
	"github.com/profilecard/presence/internal/lanyard"
	"github.com/profilecard/presence/internal/presence"
	"github.com/profilecard/presence/internal/relay"
	"github.com/profilecard/presence/internal/steam"
)

// DefaultTimeout bounds each network check.
const DefaultTimeout = 5 * time.Second

// Status represents the result of a diagnostic check.
type Status int

const (
	// StatusPass indicates the check passed.
	StatusPass Status = iota
	// StatusWarn indicates a non-critical issue.
	StatusWarn
	// StatusFail indicates a critical failure.
	StatusFail
)

// String returns the lowercase status name used in JSON output.
func (s Status) String() string {
	switch s {
	case StatusPass:
		return "pass"
	case StatusWarn:
		return "warn"
	case StatusFail:
		return "fail"
	default:
		return "unknown"
	}
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Result holds the outcome of a single check.
type Result struct {
	Name    string `json:"name"`
	Status  Status `json:"status"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// Check is a diagnostic check function.
type Check func(ctx context.Context) Result

// Options configures the default checks.
type Options struct {
	DiscordID         string
	APIURL            string
	GatewayURL        string
	HeartbeatFallback time.Duration
	SteamAPIURL       string
	SteamID           string
	RedisURL          string
	ChannelPrefix     string

	// Timeout bounds each network check. Zero means DefaultTimeout.
	Timeout time.Duration
	// Dialer opens the gateway connection. Nil means a websocket dialer.
	Dialer presence.Dialer
	// SteamKey resolves the stored Steam key. Nil means auth.SteamKey.
	SteamKey func() (auth.CredentialSource, string)
	// Version overrides buildinfo.Version.
	Version string
}

// Runner executes diagnostic checks.
type Runner struct {
	opts   Options
	checks []namedCheck

	looked    bool
	lookup    *lanyard.LookupResult
	lookupErr error
}

type namedCheck struct {
	name  string
	check Check
}

// New creates a runner with the default checks registered.
func New(opts Options) *Runner {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	if opts.Dialer == nil {
		opts.Dialer = presence.WebsocketDialer{}
	}

	if opts.SteamKey == nil {
		opts.SteamKey = auth.SteamKey
	}

	if opts.Version == "" {
		opts.Version = buildinfo.Version
	}

	if opts.HeartbeatFallback <= 0 {
		opts.HeartbeatFallback = lanyard.DefaultHeartbeatInterval
	}

	r := &Runner{opts: opts}

	r.AddCheck("Configuration", r.checkConfiguration)
	r.AddCheck("Lanyard API", r.checkLanyardAPI)
	r.AddCheck("Tracking", r.checkTracking)
	r.AddCheck("Gateway", r.checkGateway)
	r.AddCheck("Steam Key", r.checkSteamKey)
	r.AddCheck("Relay", r.checkRelay)
	r.AddCheck("Version", r.checkVersion)

	return r
}

// AddCheck registers a diagnostic check.
func (r *Runner) AddCheck(name string, check Check) {
	r.checks = append(r.checks, namedCheck{name: name, check: check})
}

// Run executes all registered checks and returns the results.
func (r *Runner) Run(ctx context.Context) []Result {
	results := make([]Result, 0, len(r.checks))

	for _, nc := range r.checks {
		result := nc.check(ctx)
		result.Name = nc.name
		results = append(results, result)
	}

	return results
}

// Summary returns counts of passed, failed, and warning checks.
func Summary(results []Result) (passed, failed, warnings int) {
	for _, r := range results {
		switch r.Status {
		case StatusPass:
			passed++
		case StatusFail:
			failed++
		case StatusWarn:
			warnings++
		}
	}

	return passed, failed, warnings
}

func (r *Runner) checkConfiguration(_ context.Context) Result {
	if r.opts.DiscordID == "" {
		return Result{
			Status:  StatusWarn,
			Message: "No Discord id configured",
			Detail:  "Run 'presence config set presence.discord_id <id>'",
		}
	}

	return Result{
		Status:  StatusPass,
		Message: "Watching " + r.opts.DiscordID,
	}
}

// lookupUser performs the REST lookup once; the API and tracking checks share it.
func (r *Runner) lookupUser(ctx context.Context) (*lanyard.LookupResult, time.Duration, error) {
	if r.looked {
		return r.lookup, 0, r.lookupErr
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	start := time.Now()
	r.lookup, r.lookupErr = lanyard.NewClient(r.opts.APIURL).Lookup(ctx, r.opts.DiscordID)
	r.looked = true

	return r.lookup, time.Since(start), r.lookupErr
}

func (r *Runner) checkLanyardAPI(ctx context.Context) Result {
	if r.opts.DiscordID == "" {
		return Result{
			Status:  StatusWarn,
			Message: r.opts.APIURL + " (skipped, no Discord id)",
		}
	}

	_, elapsed, err := r.lookupUser(ctx)
	if err != nil {
		return Result{
			Status:  StatusFail,
			Message: r.opts.APIURL,
			Detail:  err.Error(),
		}
	}

	return Result{
		Status:  StatusPass,
		Message: fmt.Sprintf("%s (%dms)", r.opts.APIURL, elapsed.Milliseconds()),
	}
}

func (r *Runner) checkTracking(ctx context.Context) Result {
	if r.opts.DiscordID == "" {
		return Result{
			Status:  StatusWarn,
			Message: "Skipped (no Discord id)",
		}
	}

	result, _, err := r.lookupUser(ctx)
	if err != nil {
		return Result{
			Status:  StatusWarn,
			Message: "Unknown (lookup failed)",
		}
	}

	if !result.Tracked {
		return Result{
			Status:  StatusWarn,
			Message: "User is not being monitored by Lanyard",
			Detail:  "Join Lanyard: " + lanyard.InviteURL,
		}
	}

	name := r.opts.DiscordID
	if result.Presence != nil {
		name = result.Presence.DisplayName()
	}

	return Result{
		Status:  StatusPass,
		Message: fmt.Sprintf("%s is monitored", name),
	}
}

func (r *Runner) checkGateway(ctx context.Context) Result {
	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	start := time.Now()

	conn, err := r.opts.Dialer.Dial(ctx, r.opts.GatewayURL)
	if err != nil {
		return Result{
			Status:  StatusFail,
			Message: r.opts.GatewayURL,
			Detail:  err.Error(),
		}
	}
	defer conn.Close()

	data, err := conn.Read(ctx)
	if err != nil {
		return Result{
			Status:  StatusFail,
			Message: r.opts.GatewayURL + " (no hello)",
			Detail:  err.Error(),
		}
	}

	frame, err := lanyard.DecodeFrame(data)
	if err == nil && frame.Op != lanyard.OpHello {
		err = fmt.Errorf("expected hello, got %s", frame.Op)
	}

	var hello lanyard.Hello
	if err == nil {
		hello, err = frame.DecodeHello()
	}

	if err != nil {
		return Result{
			Status:  StatusFail,
			Message: r.opts.GatewayURL + " (bad hello)",
			Detail:  err.Error(),
		}
	}

	return Result{
		Status: StatusPass,
		Message: fmt.Sprintf("%s (heartbeat %s, %dms)",
			r.opts.GatewayURL, hello.Interval(r.opts.HeartbeatFallback), time.Since(start).Milliseconds()),
	}
}

func (r *Runner) checkSteamKey(ctx context.Context) Result {
	source, key := r.opts.SteamKey()
	if key == "" {
		return Result{
			Status:  StatusWarn,
			Message: "Not configured",
			Detail:  "Run 'presence steam key set' to enable steam commands",
		}
	}

	if r.opts.SteamID == "" {
		return Result{
			Status:  StatusPass,
			Message: fmt.Sprintf("%s (via %s, not verified without steam.id)", auth.Mask(key), source),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	player, err := steam.NewClient(r.opts.SteamAPIURL, key).PlayerSummary(ctx, r.opts.SteamID)

	switch {
	case errors.Is(err, steam.ErrKeyRejected):
		return Result{
			Status:  StatusFail,
			Message: fmt.Sprintf("Rejected by Steam (via %s)", source),
			Detail:  "Run 'presence steam key set' with a valid key",
		}
	case err != nil:
		return Result{
			Status:  StatusWarn,
			Message: fmt.Sprintf("Could not verify (via %s)", source),
			Detail:  err.Error(),
		}
	}

	return Result{
		Status:  StatusPass,
		Message: fmt.Sprintf("%s (via %s)", player.PersonaName, source),
	}
}

func (r *Runner) checkRelay(ctx context.Context) Result {
	if r.opts.RedisURL == "" {
		return Result{
			Status:  StatusPass,
			Message: "Disabled",
		}
	}

	rl, err := relay.New(r.opts.RedisURL, r.opts.ChannelPrefix, nil)
	if err != nil {
		return Result{
			Status:  StatusFail,
			Message: "Invalid relay.redis_url",
			Detail:  err.Error(),
		}
	}
	defer rl.Close()

	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	if err := rl.Ping(ctx); err != nil {
		return Result{
			Status:  StatusFail,
			Message: "Redis unreachable",
			Detail:  err.Error(),
		}
	}

	return Result{
		Status:  StatusPass,
		Message: "Redis reachable, channel " + rl.Channel(r.opts.DiscordID),
	}
}

func (r *Runner) checkVersion(_ context.Context) Result {
	if r.opts.Version == "dev" {
		return Result{
			Status:  StatusWarn,
			Message: "Development build",
		}
	}

	return Result{
		Status:  StatusPass,
		Message: fmt.Sprintf("v%s (%s)", r.opts.Version, buildinfo.Commit),
	}
}

// RenderResults formats diagnostic results to the given output writer.
func RenderResults(results []Result, printFn, successFn, warningFn, failureFn, mutedFn func(format string, args ...any)) {
	maxNameLen := 0
	for _, r := range results {
		if len(r.Name) > maxNameLen {
			maxNameLen = len(r.Name)
		}
	}

	for _, r := range results {
		width := maxNameLen + 4

		switch r.Status {
		case StatusPass:
			successFn("%-*s%s", width, r.Name, r.Message)
		case StatusWarn:
			warningFn("%-*s%s", width, r.Name, r.Message)
		case StatusFail:
			failureFn("%-*s%s", width, r.Name, r.Message)
		default:
			printFn("%s %-*s%s\n", r.Status.Symbol(), width, r.Name, r.Message)
		}

		if r.Detail != "" {
			mutedFn("    %s", r.Detail)
		}
	}
}

// Symbol returns the status symbol for display.
func (s Status) Symbol() string {
	switch s {
	case StatusPass:
		return checkMark
	case StatusWarn:
		return warningMark
	case StatusFail:
		return xMark
	default:
		return "?"
	}
}

const (
	checkMark   = "\u2713" // ✓
	xMark       = "\u2717" // ✗
	warningMark = "\u26A0" // ⚠
)
