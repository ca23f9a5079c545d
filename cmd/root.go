package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	dotenv "github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "trueth-bridge",
	Short: "Cross-chain USDC bridge initiator and verifier for TruETH investigations",
}

func init() {
	// Tentatively load .env file
	_ = dotenv.Load()

	rootCmd.PersistentFlags().Bool(
		"debug",
		false,
		"Enables debug output.")

	rootCmd.PersistentFlags().Bool(
		"json",
		false,
		"Enables structured logging in JSON format.")

	// Network configuration (Arbitrum Sepolia -> Sui testnet defaults)
	rootCmd.PersistentFlags().String(
		"rpc-url",
		"https://sepolia-rollup.arbitrum.io/rpc",
		"RPC URL for the source EVM chain")

	rootCmd.PersistentFlags().String(
		"core-bridge",
		"0x6b9C8671cdDC8dEab9c719bB87cBd3e782bA6a35",
		"Wormhole core bridge contract address")

	rootCmd.PersistentFlags().String(
		"token-bridge",
		"0xC7A204bDBFe983FCD8d8E61D02b475D4073fF97e",
		"Wormhole token bridge / integration contract address")

	rootCmd.PersistentFlags().String(
		"usdc-contract",
		"0x75faf114eafb1BDbe2F0316DF893fd58CE46AA4d",
		"USDC token contract address")

	rootCmd.PersistentFlags().Uint16(
		"source-chain-id",
		10003,
		"Wormhole chain ID of the source chain (Arbitrum Sepolia)")

	rootCmd.PersistentFlags().Uint16(
		"recipient-chain-id",
		21,
		"Wormhole chain ID of the destination chain (Sui)")

	rootCmd.PersistentFlags().String(
		"guardian-api",
		"https://api.testnet.wormholescan.io",
		"Guardian network REST API base URL")

	// Bind flags to viper for env variable support
	viper.BindPFlag("rpc_url", rootCmd.PersistentFlags().Lookup("rpc-url"))
	viper.BindPFlag("core_bridge", rootCmd.PersistentFlags().Lookup("core-bridge"))
	viper.BindPFlag("token_bridge", rootCmd.PersistentFlags().Lookup("token-bridge"))
	viper.BindPFlag("usdc_contract", rootCmd.PersistentFlags().Lookup("usdc-contract"))
	viper.BindPFlag("source_chain_id", rootCmd.PersistentFlags().Lookup("source-chain-id"))
	viper.BindPFlag("recipient_chain_id", rootCmd.PersistentFlags().Lookup("recipient-chain-id"))
	viper.BindPFlag("guardian_api", rootCmd.PersistentFlags().Lookup("guardian-api"))

	cobra.OnInitialize(initConfig)
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("trueth")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// NetworkConfig collects the per-deployment contract addresses and chain
// IDs. Testnet and mainnet deployments differ in every field.
type NetworkConfig struct {
	RPCURL           string
	CoreBridge       common.Address
	TokenBridge      common.Address
	USDCContract     common.Address
	SourceChainID    uint16
	RecipientChainID uint16
	GuardianAPI      string
}

func loadNetworkConfig() NetworkConfig {
	return NetworkConfig{
		RPCURL:           viper.GetString("rpc_url"),
		CoreBridge:       common.HexToAddress(viper.GetString("core_bridge")),
		TokenBridge:      common.HexToAddress(viper.GetString("token_bridge")),
		USDCContract:     common.HexToAddress(viper.GetString("usdc_contract")),
		SourceChainID:    uint16(viper.GetUint("source_chain_id")),
		RecipientChainID: uint16(viper.GetUint("recipient_chain_id")),
		GuardianAPI:      viper.GetString("guardian_api"),
	}
}

func printBanner() {
	colours := []string{
		"\033[38;5;81m",
		"\033[38;5;75m",
		"\033[38;5;69m",
		"\033[38;5;63m",
		"\033[38;5;57m",
		"\033[38;5;51m",
	}
	banner := `
 _____          _____ _____ _   _   ____       _     _
|_   _| __ _   _| ____|_   _| | | | | __ ) _ __(_) __| | __ _  ___
  | || '__| | | |  _|   | | | |_| | |  _ \| '__| |/ _' |/ _' |/ _ \
  | || |  | |_| | |___  | | |  _  | | |_) | |  | | (_| | (_| |  __/
  |_||_|   \__,_|_____| |_| |_| |_| |____/|_|  |_|\__,_|\__, |\___|
                                                        |___/
`
	lines := strings.Split(banner, "\n")

	// remove empty lines
	for i := 0; i < len(lines); i++ {
		if lines[i] == "" {
			lines = append(lines[:i], lines[i+1:]...)
			i--
		}
	}

	for i, line := range lines {
		fmt.Printf("%s%s\n", colours[i%len(colours)], line)
	}

	fmt.Println("\033[0m") // Reset
}

func configureLogging(cmd *cobra.Command, _ []string) *zap.Logger {
	debug, _ := cmd.Flags().GetBool("debug")
	json, _ := cmd.Flags().GetBool("json")

	var config zap.Config
	if debug {
		config = zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		config.Development = true
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	// Configure JSON output if requested
	if json {
		config.Encoding = "json"
	} else {
		config.Encoding = "console"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	logger, err := config.Build()
	if err != nil {
		// Fallback to a basic logger if config fails
		logger, _ = zap.NewProduction()
	}

	// Replace the global logger
	zap.ReplaceGlobals(logger)

	return logger
}
