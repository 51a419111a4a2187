// SPDX-License-Identifier: BSL-1.1
// Copyright (c) 2026 MuVeraAI Corporation

// Package delegator turns signed authorizations into confirmed registry
// transactions through a fee-paying relay.
//
// Every operation follows the same path: registry lookup, message build and
// sign, relay submit, receipt polling, status check. The *Tx variants stop
// after submission and return the transaction hash.
package delegator

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/time/rate"

	"github.com/aumos-ai/did-delegator/identity"
	"github.com/aumos-ai/did-delegator/message"
	"github.com/aumos-ai/did-delegator/types"
)

// Options configures a Client.
type Options struct {
	// DIDPrefix is the network DID prefix, e.g. "did:meta:testnet". Required.
	DIDPrefix string
	// Registry pins the contract addresses and skips get_all_service_addresses.
	Registry *types.RegistryAddress
	// Clock defaults to a LedgerClock over the ledger.
	Clock   message.TimestampSource
	Confirm ConfirmOptions
	// RateLimit caps relay calls per second. Zero disables limiting.
	RateLimit rate.Limit
	Burst     int
	Metrics   *Metrics
	Logger    *slog.Logger
}

// Client talks to one relay and one ledger node.
type Client struct {
	relay     *relayCaller
	ledger    Ledger
	directory *Directory
	clock     message.TimestampSource
	confirm   ConfirmOptions
	prefix    string
	metrics   *Metrics
	logger    *slog.Logger
}

// New constructs a Client over already connected relay and ledger clients.
func New(relay Relay, ledger Ledger, opts Options) (*Client, error) {
	if relay == nil || ledger == nil {
		return nil, types.NewError(types.KindConfig, "delegator", "relay and ledger are required")
	}
	if opts.DIDPrefix == "" {
		return nil, types.NewError(types.KindConfig, "delegator", "DID prefix is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	caller := &relayCaller{relay: relay, metrics: opts.Metrics, logger: logger}
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		caller.limiter = rate.NewLimiter(opts.RateLimit, burst)
	}
	dir, err := newDirectory(caller, opts.Registry)
	if err != nil {
		return nil, err
	}
	clock := opts.Clock
	if clock == nil {
		clock = message.NewLedgerClock(ledger, logger)
	}
	return &Client{
		relay:     caller,
		ledger:    ledger,
		directory: dir,
		clock:     clock,
		confirm:   opts.Confirm.withDefaults(),
		prefix:    opts.DIDPrefix,
		metrics:   opts.Metrics,
		logger:    logger,
	}, nil
}

// Endpoints locates the relay and the ledger node.
type Endpoints struct {
	DelegatorURL string
	NodeURL      string
	APIKey       string
	// HTTPClient is used for both connections. Defaults to a 30s timeout client.
	HTTPClient *http.Client
}

// Dial connects to the relay and the ledger node and constructs a Client.
func Dial(ctx context.Context, ep Endpoints, opts Options) (*Client, error) {
	if ep.DelegatorURL == "" || ep.NodeURL == "" {
		return nil, types.NewError(types.KindConfig, "delegator", "delegator and node URLs are required")
	}
	hc := ep.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	relay, err := DialRelay(ctx, ep.DelegatorURL, ep.APIKey, hc)
	if err != nil {
		return nil, err
	}
	node, err := rpc.DialOptions(ctx, ep.NodeURL, rpc.WithHTTPClient(hc))
	if err != nil {
		relay.Close()
		return nil, types.WrapError(types.KindNetwork, "delegator: dial node", err)
	}
	return New(relay, ethclient.NewClient(node), opts)
}

// Directory returns the client's registry directory.
func (c *Client) Directory() *Directory { return c.directory }

// Metrics returns the collectors passed in Options, possibly nil.
func (c *Client) Metrics() *Metrics { return c.metrics }

// DIDPrefix returns the network DID prefix.
func (c *Client) DIDPrefix() string { return c.prefix }

// EinToDID formats ein under the client's network prefix.
func (c *Client) EinToDID(ein *big.Int) string {
	return identity.EinToDID(c.prefix, ein)
}
