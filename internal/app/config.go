package app

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	TelegramToken      string `env:"TELEGRAM_TOKEN,required"`
	EthRPCURL          string `env:"ETH_RPC_URL,required"`
	ContractAddress    string `env:"CONTRACT_ADDRESS,required"`
	KeystoreDir        string `env:"KEYSTORE_DIR,required"`
	KeystorePassphrase string `env:"KEYSTORE_PASSPHRASE,required"`

	PostgresURL string `env:"POSTGRES_URL"` // empty disables the archive

	HistoryFile string `env:"HISTORY_FILE"`
	HistoryCap  int    `env:"HISTORY_CAP"`

	MintMethod   string `env:"MINT_METHOD"`
	MintValueWei string `env:"MINT_VALUE_WEI"`
	GasLimit     uint64 `env:"GAS_LIMIT"`

	MaxAttempts         int           `env:"MAX_ATTEMPTS"`
	BaseDelay           time.Duration `env:"BASE_DELAY"`
	SubmitTimeout       time.Duration `env:"SUBMIT_TIMEOUT"`
	ReceiptPollInterval time.Duration `env:"RECEIPT_POLL_INTERVAL"`
	BroadcastRPS        float64       `env:"BROADCAST_RPS"` // 0 = unlimited

	NotifyBuffer int `env:"NOTIFY_BUFFER"`
}

func LoadConfig() (Config, error) {
	err := godotenv.Load()
	if err != nil {
		fmt.Println("Warning: .env file not found, relying on environment variables")
	}

	config := Config{
		HistoryFile:         "mintbot_history.json",
		HistoryCap:          100,
		MintMethod:          "mint",
		MintValueWei:        "0",
		GasLimit:            200_000,
		MaxAttempts:         3,
		BaseDelay:           2 * time.Second,
		SubmitTimeout:       90 * time.Second,
		ReceiptPollInterval: 2 * time.Second,
		NotifyBuffer:        64,
	}

	if err := env.Parse(&config); err != nil {
		return Config{}, err
	}

	return config, nil
}
