package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/skybridge-obs/skybridge-core/internal/protocol"
)

// Alpaca request bounds. Sync runs on the operation path, not the
// tick, but still must not stall the registry for long.
const (
	defaultAlpacaPoll    = 500 * time.Millisecond
	alpacaSyncTimeout    = 2 * time.Second
	alpacaMaxPollFailure = 3
)

// alpacaEnvelope is the standard Alpaca response wrapper.
type alpacaEnvelope struct {
	Value        json.RawMessage `json:"Value"`
	ErrorNumber  int             `json:"ErrorNumber"`
	ErrorMessage string          `json:"ErrorMessage"`
}

// alpaca drives an ASCOM Alpaca telescope endpoint over HTTP. The tick
// never performs a request itself: it launches bounded background
// requests (one position poll, one command in flight at a time) and
// picks up their results on later ticks.
type alpaca struct {
	cfg    Config
	logger Logger
	client *http.Client
	base   string

	clientID int
	txID     atomic.Uint32

	mu           sync.Mutex
	status       Status
	last         *PositionSample
	pending      *pendingGoto
	polling      bool
	sending      bool
	lastPoll     time.Time
	pollInterval time.Duration
	pollFailures int
	closed       bool
}

func newAlpaca(cfg Config) (*alpaca, error) {
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("%w: invalid base URL %q: %w", ErrConnectFailure, cfg.BaseURL, err)
	}

	interval := cfg.Delay
	if interval <= 0 {
		interval = defaultAlpacaPoll
	}

	a := &alpaca{
		cfg:    cfg,
		logger: cfg.Logger,
		client: &http.Client{Timeout: cfg.ConnectTimeout},
		base:   fmt.Sprintf("%s/api/v1/telescope/%d", base, cfg.APIDevice),

		clientID:     cfg.Slot,
		status:       StatusConnecting,
		pollInterval: interval,
	}

	go a.connect()
	return a, nil
}

// connect asks the Alpaca server to open the device connection.
func (a *alpaca) connect() {
	err := a.put(context.Background(), "connected", url.Values{"Connected": {"True"}})

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	if err != nil {
		a.status = StatusFailed
		a.logger.Warn("alpaca connect failed",
			"slot", a.cfg.Slot,
			"base_url", a.base,
			"error", err,
		)
		return
	}
	a.status = StatusConnected
	a.logger.Info("alpaca connected",
		"slot", a.cfg.Slot,
		"base_url", a.base,
	)
}

func (a *alpaca) Communicate(now time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}
	if a.status != StatusConnected {
		return nil
	}

	if !a.polling && now.Sub(a.lastPoll) >= a.pollInterval {
		a.polling = true
		a.lastPoll = now
		go a.pollPosition()
	}

	if a.pending != nil && !a.sending {
		cmd := *a.pending
		a.pending = nil
		a.sending = true
		go a.sendSlew(cmd)
	}
	return nil
}

// pollPosition fetches RA/Dec and records the sample.
func (a *alpaca) pollPosition() {
	ctx, cancel := context.WithTimeout(context.Background(), a.client.Timeout)
	defer cancel()

	raHours, err := a.getFloat(ctx, "rightascension")
	var decDegrees float64
	if err == nil {
		decDegrees, err = a.getFloat(ctx, "declination")
	}

	now := time.Now()

	a.mu.Lock()
	defer a.mu.Unlock()
	a.polling = false
	if a.closed || a.status != StatusConnected {
		return
	}

	if err != nil {
		a.pollFailures++
		a.logger.Warn("alpaca position poll failed",
			"slot", a.cfg.Slot,
			"consecutive_failures", a.pollFailures,
			"error", err,
		)
		if a.pollFailures >= alpacaMaxPollFailure {
			a.status = StatusFailed
			a.logger.Error("alpaca transport failed",
				"slot", a.cfg.Slot,
				"base_url", a.base,
			)
		}
		return
	}

	a.pollFailures = 0
	a.last = &PositionSample{
		Direction:  protocol.VectorFromRADec(raHours, decDegrees),
		Status:     protocol.StatusOK,
		ObservedAt: now,
		ReceivedAt: now,
	}
}

// sendSlew issues the asynchronous slew command.
func (a *alpaca) sendSlew(cmd pendingGoto) {
	ctx, cancel := context.WithTimeout(context.Background(), a.client.Timeout)
	defer cancel()

	raHours, decDegrees := cmd.target.RADec()
	err := a.put(ctx, "slewtocoordinatesasync", url.Values{
		"RightAscension": {formatAngle(raHours)},
		"Declination":    {formatAngle(decDegrees)},
	})

	a.mu.Lock()
	defer a.mu.Unlock()
	a.sending = false
	if err != nil {
		a.logger.Warn("alpaca slew failed",
			"slot", a.cfg.Slot,
			"error", err,
		)
		return
	}
	a.logger.Debug("goto transmitted", "slot", a.cfg.Slot)
}

func (a *alpaca) SendGoto(target protocol.Vec3, _ time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || a.status == StatusFailed {
		return
	}
	a.pending = &pendingGoto{target: target}
}

// SyncPosition tells the mount its axes currently point at target.
// Bounded and synchronous: the result matters to the caller.
func (a *alpaca) SyncPosition(target protocol.Vec3) bool {
	a.mu.Lock()
	if a.closed || a.status != StatusConnected {
		a.mu.Unlock()
		return false
	}
	a.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), alpacaSyncTimeout)
	defer cancel()

	raHours, decDegrees := target.RADec()
	err := a.put(ctx, "synctocoordinates", url.Values{
		"RightAscension": {formatAngle(raHours)},
		"Declination":    {formatAngle(decDegrees)},
	})
	if err != nil {
		a.logger.Warn("alpaca sync failed",
			"slot", a.cfg.Slot,
			"error", err,
		)
		return false
	}
	return true
}

func (a *alpaca) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

func (a *alpaca) Position() (PositionSample, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.last == nil {
		return PositionSample{}, false
	}
	return *a.last, true
}

// Close disconnects the device, best-effort and bounded.
func (a *alpaca) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	wasConnected := a.status == StatusConnected
	a.closed = true
	a.pending = nil
	a.status = StatusDisconnected
	a.mu.Unlock()

	if wasConnected {
		ctx, cancel := context.WithTimeout(context.Background(), alpacaSyncTimeout)
		defer cancel()
		if err := a.put(ctx, "connected", url.Values{"Connected": {"False"}}); err != nil {
			a.logger.Debug("alpaca disconnect failed",
				"slot", a.cfg.Slot,
				"error", err,
			)
		}
	}
	return nil
}

// getFloat performs an Alpaca GET and decodes the numeric Value.
func (a *alpaca) getFloat(ctx context.Context, method string) (float64, error) {
	q := url.Values{
		"ClientID":            {strconv.Itoa(a.clientID)},
		"ClientTransactionID": {strconv.FormatUint(uint64(a.txID.Add(1)), 10)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.base+"/"+method+"?"+q.Encode(), nil)
	if err != nil {
		return 0, err
	}

	env, err := a.do(req)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", method, err)
	}

	var value float64
	if err := json.Unmarshal(env.Value, &value); err != nil {
		return 0, fmt.Errorf("%s: decoding value: %w", method, err)
	}
	return value, nil
}

// put performs an Alpaca PUT with form-encoded parameters.
func (a *alpaca) put(ctx context.Context, method string, params url.Values) error {
	params.Set("ClientID", strconv.Itoa(a.clientID))
	params.Set("ClientTransactionID", strconv.FormatUint(uint64(a.txID.Add(1)), 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		a.base+"/"+method, strings.NewReader(params.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	if _, err := a.do(req); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	return nil
}

func (a *alpaca) do(req *http.Request) (*alpacaEnvelope, error) {
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var env alpacaEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if env.ErrorNumber != 0 {
		return nil, fmt.Errorf("device error %d: %s", env.ErrorNumber, env.ErrorMessage)
	}
	return &env, nil
}

func formatAngle(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
