package app

import (
	"context"
	"fmt"
	"log"
	"math/big"

	"github.com/pvzzle/mintbot/internal/contract"
	"github.com/pvzzle/mintbot/internal/engine"
	"github.com/pvzzle/mintbot/internal/history"
	"github.com/pvzzle/mintbot/internal/history/pg"
	"github.com/pvzzle/mintbot/internal/prefs"
	"github.com/pvzzle/mintbot/internal/tg"
	"github.com/pvzzle/mintbot/internal/wallet"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	tgbot "github.com/go-telegram/bot"
	"github.com/jackc/pgx/v5/pgxpool"
)

func Run(ctx context.Context) error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}

	if !tg.IsEthAddress(cfg.ContractAddress) {
		return fmt.Errorf("CONTRACT_ADDRESS %q is not a valid address", cfg.ContractAddress)
	}
	contractAddr := common.HexToAddress(cfg.ContractAddress)

	mintValue, ok := new(big.Int).SetString(cfg.MintValueWei, 10)
	if !ok {
		return fmt.Errorf("MINT_VALUE_WEI %q is not a decimal integer", cfg.MintValueWei)
	}
	// Fail fast on a bad method name instead of at the first mint.
	if _, err := contract.New(contractAddr, cfg.MintMethod, mintValue); err != nil {
		return fmt.Errorf("mint call config: %w", err)
	}

	store, err := history.Open(cfg.HistoryFile, cfg.HistoryCap)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	log.Printf("[app] history store %s loaded, %d record(s)", cfg.HistoryFile, store.Len())

	var archive history.Archiver
	if cfg.PostgresURL != "" {
		pgPool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return fmt.Errorf("pgxpool new: %w", err)
		}
		defer pgPool.Close()

		a := pg.New(pgPool)
		if err := a.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure archive schema: %w", err)
		}
		archive = a
	}

	ethCl, err := ethclient.DialContext(ctx, cfg.EthRPCURL)
	if err != nil {
		return fmt.Errorf("dial eth rpc: %w", err)
	}
	defer ethCl.Close()

	chainID, err := ethCl.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("chain id: %w", err)
	}

	pool, err := wallet.LoadKeystore(cfg.KeystoreDir, cfg.KeystorePassphrase)
	if err != nil {
		return fmt.Errorf("load keystore: %w", err)
	}
	log.Printf("[app] loaded %d wallet(s), chain %s, contract %s",
		pool.Size(), chainID, contractAddr.Hex())

	client := engine.NewRPCClient(ethCl, cfg.ReceiptPollInterval, cfg.BroadcastRPS)
	alloc := engine.NewNonceAllocator(client)
	sub := engine.NewSubmitter(client, store, archive)
	orch := engine.NewOrchestrator(client, alloc, sub, engine.Config{
		ChainID:       chainID,
		MaxAttempts:   cfg.MaxAttempts,
		BaseDelay:     cfg.BaseDelay,
		SubmitTimeout: cfg.SubmitTimeout,
		GasLimit:      cfg.GasLimit,
	})

	b, err := tgbot.New(cfg.TelegramToken,
		tgbot.WithWorkers(4),
		tgbot.WithNotAsyncHandlers(),
	)
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}

	svc := tg.NewService(b, orch, pool, store, prefs.NewStore(), tg.MintDefaults{
		Contract: contractAddr,
		Method:   cfg.MintMethod,
		ValueWei: cfg.MintValueWei,
	}, cfg.NotifyBuffer)

	go svc.StartNotifyLoop(ctx)

	log.Printf("[app] mintbot up")
	b.Start(ctx)
	return ctx.Err()
}
