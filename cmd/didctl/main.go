// SPDX-License-Identifier: BSL-1.1
// Copyright (c) 2026 MuVeraAI Corporation

// didctl manages a delegated DID from the command line: it creates the
// identity, rotates or deletes its key, issues credentials signed by the
// wallet key and verifies credentials against the resolver.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	"github.com/aumos-ai/did-delegator/config"
	"github.com/aumos-ai/did-delegator/delegator"
	"github.com/aumos-ai/did-delegator/identity"
	"github.com/aumos-ai/did-delegator/keys"
	"github.com/aumos-ai/did-delegator/types"
	"github.com/aumos-ai/did-delegator/wallet"
)

var globalFlags = []cli.Flag{
	&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML settings file", EnvVars: []string{"DID_CONFIG"}},
	&cli.StringFlag{Name: "network", Usage: "mainnet, testnet or private"},
	&cli.StringFlag{Name: "delegator", Usage: "relay JSON-RPC URL"},
	&cli.StringFlag{Name: "node", Usage: "ledger node JSON-RPC URL"},
	&cli.StringFlag{Name: "resolver", Usage: "DID resolver base URL"},
	&cli.StringFlag{Name: "didprefix", Usage: "DID prefix, e.g. did:meta:testnet"},
	&cli.StringFlag{Name: "api-key", Usage: "relay API key"},
	&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
}

var walletFlag = &cli.StringFlag{
	Name:    "wallet",
	Aliases: []string{"w"},
	Usage:   "wallet file holding the DID and its private key",
	Value:   "wallet.json",
}

func main() {
	app := &cli.App{
		Name:  "didctl",
		Usage: "manage a delegated DID",
		Flags: globalFlags,
		Commands: []*cli.Command{
			{
				Name:   "create",
				Usage:  "create a DID and write its wallet",
				Flags:  []cli.Flag{walletFlag, &cli.StringFlag{Name: "key", Usage: "hex private key to use instead of a new one"}},
				Action: createCmd,
			},
			{
				Name:    "rotate",
				Aliases: []string{"update"},
				Usage:   "replace the wallet key with a new one",
				Flags:   []cli.Flag{walletFlag, &cli.StringFlag{Name: "key", Usage: "hex private key of the new key"}},
				Action:  rotateCmd,
			},
			{
				Name:   "delete",
				Usage:  "unlink the wallet key from its DID",
				Flags:  []cli.Flag{walletFlag},
				Action: deleteCmd,
			},
			{
				Name:  "service-key",
				Usage: "manage service keys",
				Subcommands: []*cli.Command{
					{
						Name:      "add",
						ArgsUsage: "<address> <symbol>",
						Flags:     []cli.Flag{walletFlag},
						Action:    addServiceKeyCmd,
					},
					{
						Name:      "remove",
						ArgsUsage: "<address> | --all",
						Flags:     []cli.Flag{walletFlag, &cli.BoolFlag{Name: "all"}},
						Action:    removeServiceKeyCmd,
					},
				},
			},
			{
				Name:      "issue",
				Usage:     "issue a credential signed by the wallet key",
				ArgsUsage: "<subject-did> [claim=value ...]",
				Flags: []cli.Flag{
					walletFlag,
					&cli.StringSliceFlag{Name: "type", Usage: "credential type", Value: cli.NewStringSlice("NameCredential")},
					&cli.DurationFlag{Name: "ttl", Usage: "validity, zero for none"},
				},
				Action: issueCmd,
			},
			{
				Name:      "verify",
				Usage:     "verify a credential or presentation token",
				ArgsUsage: "<token>",
				Action:    verifyCmd,
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "didctl:", err)
		if hash := types.TxHashOf(err); hash != "" {
			fmt.Fprintln(os.Stderr, "transaction:", hash)
		}
		os.Exit(1)
	}
}

type env struct {
	settings *config.Settings
	logger   *slog.Logger
	metrics  *delegator.Metrics
}

func setup(c *cli.Context) (*env, error) {
	overrides := map[string]string{
		config.EnvNetwork:      c.String("network"),
		config.EnvDelegatorURL: c.String("delegator"),
		config.EnvNodeURL:      c.String("node"),
		config.EnvResolverURL:  c.String("resolver"),
		config.EnvDIDPrefix:    c.String("didprefix"),
		config.EnvAPIKey:       c.String("api-key"),
		config.EnvLogLevel:     c.String("log-level"),
	}
	for k, v := range overrides {
		if v != "" {
			if err := os.Setenv(k, v); err != nil {
				return nil, err
			}
		}
	}
	s, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	logger, err := config.NewLogger(s.Log.Level, s.Log.Format, os.Stderr)
	if err != nil {
		return nil, err
	}
	return &env{settings: s, logger: logger, metrics: delegator.NewMetrics(prometheus.NewRegistry())}, nil
}

func (e *env) dial(ctx context.Context) (*delegator.Client, error) {
	return delegator.Dial(ctx, e.settings.Endpoints(), e.settings.DelegatorOptions(e.logger, e.metrics))
}

func (e *env) walletOptions() wallet.Options {
	return wallet.Options{Logger: e.logger, Rotations: keys.NewRotationLog(), Metrics: e.metrics}
}

func optionalKey(c *cli.Context) (*keys.Key, error) {
	if s := c.String("key"); s != "" {
		return keys.KeyFromHex(s)
	}
	return keys.GenerateKey()
}

func createCmd(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	path := c.String("wallet")
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("wallet %s already exists", path)
	}
	key, err := optionalKey(c)
	if err != nil {
		return err
	}
	client, err := e.dial(c.Context)
	if err != nil {
		return err
	}
	w, err := wallet.CreateDID(c.Context, client, key, e.walletOptions())
	if err != nil {
		if w != nil {
			if serr := w.Save(path); serr == nil {
				fmt.Fprintf(os.Stderr, "%s created without its public key; wallet saved to %s\n", w.DID(), path)
			}
		}
		return err
	}
	if err := w.Save(path); err != nil {
		return err
	}
	fmt.Println(w.DID())
	return nil
}

func rotateCmd(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	path := c.String("wallet")
	w, err := wallet.Load(path, e.walletOptions())
	if err != nil {
		return err
	}
	next, err := optionalKey(c)
	if err != nil {
		return err
	}
	client, err := e.dial(c.Context)
	if err != nil {
		return err
	}
	block, err := w.RotateKey(c.Context, client, next)
	var rerr *types.RotationError
	if errors.As(err, &rerr) && rerr.Inconsistent() {
		e.logger.Error("identity may be partially rotated", "did", w.DID(), "state", rerr.State)
	}
	if err != nil {
		return err
	}
	if err := w.Save(path); err != nil {
		return err
	}
	fmt.Printf("%s rotated to %s at block %d\n", w.DID(), next.Address().Hex(), block)
	return nil
}

func deleteCmd(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	w, err := wallet.Load(c.String("wallet"), e.walletOptions())
	if err != nil {
		return err
	}
	client, err := e.dial(c.Context)
	if err != nil {
		return err
	}
	if err := w.DeleteDID(c.Context, client); err != nil {
		return err
	}
	fmt.Println("deleted", w.DID())
	return nil
}

func addServiceKeyCmd(c *cli.Context) error {
	if c.NArg() != 2 || !common.IsHexAddress(c.Args().Get(0)) {
		return cli.ShowSubcommandHelp(c)
	}
	e, err := setup(c)
	if err != nil {
		return err
	}
	w, err := wallet.Load(c.String("wallet"), e.walletOptions())
	if err != nil {
		return err
	}
	client, err := e.dial(c.Context)
	if err != nil {
		return err
	}
	receipt, err := w.AddServiceKey(c.Context, client, c.Args().Get(1), common.HexToAddress(c.Args().Get(0)))
	if err != nil {
		return err
	}
	fmt.Println(receipt.TxHash.Hex())
	return nil
}

func removeServiceKeyCmd(c *cli.Context) error {
	all := c.Bool("all")
	if all == (c.NArg() == 1) || (!all && !common.IsHexAddress(c.Args().First())) {
		return cli.ShowSubcommandHelp(c)
	}
	e, err := setup(c)
	if err != nil {
		return err
	}
	w, err := wallet.Load(c.String("wallet"), e.walletOptions())
	if err != nil {
		return err
	}
	client, err := e.dial(c.Context)
	if err != nil {
		return err
	}
	var receipt *ethtypes.Receipt
	if all {
		receipt, err = w.RemoveAllServiceKeys(c.Context, client)
	} else {
		receipt, err = w.RemoveServiceKey(c.Context, client, common.HexToAddress(c.Args().First()))
	}
	if err != nil {
		return err
	}
	fmt.Println(receipt.TxHash.Hex())
	return nil
}

func issueCmd(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.ShowSubcommandHelp(c)
	}
	e, err := setup(c)
	if err != nil {
		return err
	}
	w, err := wallet.Load(c.String("wallet"), e.walletOptions())
	if err != nil {
		return err
	}
	claims := make(map[string]interface{}, c.NArg()-1)
	for _, arg := range c.Args().Tail() {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return fmt.Errorf("claim %q is not key=value", arg)
		}
		claims[k] = v
	}
	opts := identity.IssueOptions{
		Types:      c.StringSlice("type"),
		SubjectDID: c.Args().First(),
		Claims:     claims,
		IssuedAt:   time.Now(),
	}
	if ttl := c.Duration("ttl"); ttl > 0 {
		opts.ExpiresAt = opts.IssuedAt.Add(ttl)
	}
	token, err := w.IssueCredential(opts)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func verifyCmd(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.ShowSubcommandHelp(c)
	}
	e, err := setup(c)
	if err != nil {
		return err
	}
	upstream, err := identity.NewHTTPResolver(e.settings.ResolverOptions(e.logger))
	if err != nil {
		return err
	}
	verifier := identity.NewVerifier(identity.NewCachingResolver(upstream, e.logger), e.logger)
	res, err := verifier.Check(c.Context, c.Args().First())
	if err != nil {
		return err
	}
	if !res.Valid {
		return fmt.Errorf("signature of %s does not match %s", res.IssuerDID, res.KeyID)
	}
	fmt.Printf("valid: issuer %s key %s\n", res.IssuerDID, res.KeyID)
	return nil
}
