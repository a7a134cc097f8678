// Package rpc is the HTTP client for the counter-chain federation endpoint.
package rpc

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/p3root/StratisFullNode/internal/peg"
)

const (
	maturedDepositsPath = "/api/federation/matured-deposits"
	tipPath             = "/api/federation/tip"
)

// Client wraps an http.Client with endpoint failover, a circuit breaker per
// endpoint, and token-bucket rate limiting.
type Client struct {
	endpoints []string
	client    *http.Client

	// token-bucket
	tokens      int64
	maxTokens   int64
	refillEvery time.Duration
	lastRefill  atomic.Value // time.Time

	// circuit-breaker
	mu       sync.Mutex
	failures map[string]int
	opened   map[string]time.Time

	breakerThreshold int
	breakerCooldown  time.Duration
}

// Opts is the set of options for a new Client.
type Opts struct {
	Endpoints       []string
	Timeout         time.Duration
	RPS             int
	Burst           int
	BreakerFailures int
	BreakerCooldown time.Duration
	HTTPClient      *http.Client
}

// NewWithOpts creates a new Client with the given options.
func NewWithOpts(o Opts) *Client {
	if o.RPS <= 0 {
		o.RPS = 20
	}
	if o.Burst <= 0 {
		o.Burst = 40
	}
	if o.Timeout <= 0 {
		o.Timeout = 15 * time.Second
	}
	if o.BreakerFailures <= 0 {
		o.BreakerFailures = 3
	}
	if o.BreakerCooldown <= 0 {
		o.BreakerCooldown = 5 * time.Second
	}

	client := o.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: o.Timeout}
	}

	c := &Client{
		endpoints:        dedup(o.Endpoints),
		client:           client,
		maxTokens:        int64(o.Burst),
		refillEvery:      time.Second / time.Duration(o.RPS),
		failures:         map[string]int{},
		opened:           map[string]time.Time{},
		breakerThreshold: o.BreakerFailures,
		breakerCooldown:  o.BreakerCooldown,
	}
	c.tokens = c.maxTokens
	c.lastRefill.Store(time.Now())
	return c
}

func dedup(ss []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(ss))
	for _, s := range ss {
		if !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	return result
}

func (c *Client) refill() {
	last := c.lastRefill.Load().(time.Time)
	now := time.Now()
	if now.Sub(last) >= c.refillEvery {
		if atomic.LoadInt64(&c.tokens) < c.maxTokens {
			atomic.AddInt64(&c.tokens, 1)
		}
		c.lastRefill.Store(now)
	}
}

func (c *Client) acquire() {
	for {
		c.refill()
		if atomic.LoadInt64(&c.tokens) > 0 {
			atomic.AddInt64(&c.tokens, -1)
			return
		}
		time.Sleep(c.refillEvery / 2)
	}
}

func (c *Client) isOpen(ep string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	until, ok := c.opened[ep]
	if !ok {
		return false
	}
	if time.Now().After(until) {
		delete(c.opened, ep)
		c.failures[ep] = 0
		return false
	}
	return true
}

func (c *Client) noteFailure(ep string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[ep]++
	if c.failures[ep] >= c.breakerThreshold {
		c.opened[ep] = time.Now().Add(c.breakerCooldown)
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload any, out any) error {
	if len(c.endpoints) == 0 {
		return fmt.Errorf("no endpoints configured")
	}

	var lastErr error
	for i := 0; i < len(c.endpoints); i++ {
		ep := c.endpoints[i%len(c.endpoints)]
		if c.isOpen(ep) {
			continue
		}

		c.acquire()

		var body *bytes.Reader
		if payload != nil {
			b, mErr := json.Marshal(payload)
			if mErr != nil {
				return mErr
			}
			body = bytes.NewReader(b)
		} else {
			body = bytes.NewReader(nil)
		}

		req, reqErr := http.NewRequestWithContext(ctx, method, ep+path, body)
		if reqErr != nil {
			return reqErr
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			c.noteFailure(ep)
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server %d", resp.StatusCode)
			c.noteFailure(ep)
			resp.Body.Close()
			continue
		}
		if resp.StatusCode >= 300 {
			lastErr = fmt.Errorf("http %d", resp.StatusCode)
			resp.Body.Close()
			continue
		}

		if out != nil {
			rawBody, err := io.ReadAll(resp.Body)
			if err != nil {
				resp.Body.Close()
				lastErr = err
				continue
			}

			slog.Debug("rpc", "path", path, "len", len(rawBody))

			if err := json.Unmarshal(rawBody, out); err != nil {
				resp.Body.Close()
				lastErr = fmt.Errorf("json unmarshal: %w (body: %s)", err, string(rawBody[:min(200, len(rawBody))]))
				continue
			}
		}

		resp.Body.Close()
		return nil
	}

	if lastErr == nil {
		return fmt.Errorf("all endpoints circuit-broken")
	}
	return lastErr
}

// maturedDepositsRequest is the request for a matured-deposit range fetch.
type maturedDepositsRequest struct {
	FromHeight uint64 `json:"fromHeight"`
}

type blockInfoModel struct {
	Height uint64 `json:"height"`
	Hash   string `json:"hash"`
	Time   int64  `json:"time"`
}

type depositModel struct {
	ID            string `json:"id"`
	Amount        uint64 `json:"amount"`
	TargetAddress string `json:"targetAddress"`
	TargetChain   string `json:"targetChain"`
	RetrievalType string `json:"retrievalType"`
}

type maturedBlockModel struct {
	BlockInfo blockInfoModel `json:"blockInfo"`
	Deposits  []depositModel `json:"deposits"`
}

// Tip returns the counter chain's current height.
func (c *Client) Tip(ctx context.Context) (uint64, error) {
	var resp struct {
		Height uint64 `json:"height"`
	}
	if err := c.doJSON(ctx, http.MethodGet, tipPath, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Height, nil
}

// MaturedDeposits fetches matured block deposits starting at fromHeight.
// Any transport, status, or decode failure is returned as an error and is
// treated as transient by the caller.
func (c *Client) MaturedDeposits(ctx context.Context, fromHeight uint64) ([]peg.MaturedBlockDeposit, error) {
	var models []maturedBlockModel
	if err := c.doJSON(ctx, http.MethodPost, maturedDepositsPath, maturedDepositsRequest{FromHeight: fromHeight}, &models); err != nil {
		return nil, err
	}
	if models == nil {
		return nil, fmt.Errorf("empty matured-deposits payload")
	}

	blocks := make([]peg.MaturedBlockDeposit, 0, len(models))
	for _, m := range models {
		block, err := decodeMaturedBlock(m)
		if err != nil {
			return nil, fmt.Errorf("matured block %d: %w", m.BlockInfo.Height, err)
		}
		blocks = append(blocks, block)
	}
	return blocks, nil
}

func decodeMaturedBlock(m maturedBlockModel) (peg.MaturedBlockDeposit, error) {
	var block peg.MaturedBlockDeposit
	hash, err := decode32(m.BlockInfo.Hash)
	if err != nil {
		return block, fmt.Errorf("block hash: %w", err)
	}
	block.Block = peg.BlockInfo{
		Height: m.BlockInfo.Height,
		Hash:   hash,
		Time:   time.Unix(m.BlockInfo.Time, 0).UTC(),
	}
	block.Deposits = make([]peg.Deposit, 0, len(m.Deposits))
	for _, d := range m.Deposits {
		id, err := decode32(d.ID)
		if err != nil {
			return block, fmt.Errorf("deposit id %q: %w", d.ID, err)
		}
		rt, err := parseRetrievalType(d.RetrievalType)
		if err != nil {
			return block, err
		}
		block.Deposits = append(block.Deposits, peg.Deposit{
			ID:            peg.DepositID(id),
			Amount:        d.Amount,
			TargetAddress: d.TargetAddress,
			TargetChain:   d.TargetChain,
			RetrievalType: rt,
		})
	}
	return block, nil
}

func decode32(s string) ([32]byte, error) {
	var out [32]byte
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, err
	}
	if len(b) != 32 {
		return out, fmt.Errorf("expected 32 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}

func parseRetrievalType(s string) (peg.RetrievalType, error) {
	switch s {
	case "small":
		return peg.RetrievalSmall, nil
	case "normal":
		return peg.RetrievalNormal, nil
	case "large":
		return peg.RetrievalLarge, nil
	case "conversion_small":
		return peg.RetrievalConversionSmall, nil
	case "conversion_normal":
		return peg.RetrievalConversionNormal, nil
	case "conversion_large":
		return peg.RetrievalConversionLarge, nil
	default:
		return 0, fmt.Errorf("unknown retrieval type %q", s)
	}
}
