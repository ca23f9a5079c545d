package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/trueth-protocol/bridge/internal/bridge"
	"github.com/trueth-protocol/bridge/internal/clients"
)

// bridgeCmd drives the approve -> transfer -> attestation flow and prints
// the resulting bridge transaction record for submission.
var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Bridge USDC from the source EVM chain towards Sui",
	Long: `Executes the on-chain bridge flow: approves the token bridge if needed,
submits the transfer, extracts the published wormhole sequence and
optionally polls the guardian network for the signed attestation.

The resulting bridge transaction record is printed as JSON; submit it with
the investigation payload to the content-submission endpoint.`,
	PreRun: func(cmd *cobra.Command, args []string) {
		printBanner()
		configureLogging(cmd, args)
	},
	RunE: runBridge,
}

func init() {
	rootCmd.AddCommand(bridgeCmd)

	bridgeCmd.Flags().String(
		"amount",
		"",
		"USDC amount to bridge, e.g. 1.5 (required)")

	bridgeCmd.Flags().String(
		"private-key",
		"",
		"Private key for source-chain transactions (required)")

	bridgeCmd.Flags().String(
		"recipient",
		"",
		"Sui recipient address, 0x-prefixed hex of up to 32 bytes (required)")

	bridgeCmd.Flags().Bool(
		"wait-vaa",
		false,
		"Poll the guardian network for the signed VAA before returning")

	bridgeCmd.Flags().Int(
		"vaa-attempts",
		30,
		"Maximum guardian polling attempts")

	bridgeCmd.Flags().Duration(
		"vaa-interval",
		5*time.Second,
		"Delay between guardian polling attempts")

	bridgeCmd.MarkFlagRequired("amount")
	bridgeCmd.MarkFlagRequired("private-key")
	bridgeCmd.MarkFlagRequired("recipient")

	viper.BindPFlag("private_key", bridgeCmd.Flags().Lookup("private-key"))
}

func runBridge(cmd *cobra.Command, args []string) error {
	logger := configureLogging(cmd, args)
	network := loadNetworkConfig()

	// Get flags directly from command (viper bindings conflict across commands)
	amountStr, _ := cmd.Flags().GetString("amount")
	recipient, _ := cmd.Flags().GetString("recipient")
	waitVAA, _ := cmd.Flags().GetBool("wait-vaa")
	vaaAttempts, _ := cmd.Flags().GetInt("vaa-attempts")
	vaaInterval, _ := cmd.Flags().GetDuration("vaa-interval")

	privateKey := viper.GetString("private_key")
	if privateKey == "" {
		return fmt.Errorf("private key is required for bridge transactions")
	}

	amount, err := bridge.ParseUSDC(amountStr)
	if err != nil {
		return fmt.Errorf("invalid amount: %v", err)
	}

	logger.Info("Configuration",
		zap.String("rpcURL", network.RPCURL),
		zap.String("coreBridge", network.CoreBridge.Hex()),
		zap.String("tokenBridge", network.TokenBridge.Hex()),
		zap.String("usdc", network.USDCContract.Hex()),
		zap.Uint16("sourceChainId", network.SourceChainID),
		zap.Uint16("recipientChainId", network.RecipientChainID),
		zap.String("amount", bridge.FormatUSDC(amount)),
		zap.Bool("waitVAA", waitVAA))

	evmClient, err := clients.NewEVMClient(logger, network.RPCURL, privateKey)
	if err != nil {
		return fmt.Errorf("failed to create EVM client: %v", err)
	}
	logger.Info("Connected to source chain",
		zap.String("address", evmClient.SignerAddress().Hex()))

	guardian := clients.NewGuardianClient(logger, network.GuardianAPI, vaaAttempts, vaaInterval)

	initiator := bridge.NewInitiator(logger, bridge.Config{
		Token:          network.USDCContract,
		TokenBridge:    network.TokenBridge,
		CoreBridge:     network.CoreBridge,
		SourceChainID:  network.SourceChainID,
		RecipientChain: network.RecipientChainID,
	}, evmClient, guardian)
	initiator.OnStep = func(step bridge.Step, detail string) {
		if detail != "" {
			logger.Info("Bridge progress", zap.String("step", string(step)), zap.String("detail", detail))
		} else {
			logger.Info("Bridge progress", zap.String("step", string(step)))
		}
	}

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		logger.Info("Received shutdown signal")
		cancel()
	}()

	result := initiator.Bridge(ctx, bridge.BridgeRequest{
		Amount:     amount,
		Recipient:  recipient,
		WaitForVAA: waitVAA,
	})
	if !result.Success {
		return fmt.Errorf("bridge failed: %s", result.Error)
	}

	record := bridge.BridgeTransaction{
		Hash:             result.TxHash,
		Amount:           bridge.FormatUSDC(amount),
		From:             strings.ToLower(evmClient.SignerAddress().Hex()),
		SuiRecipient:     recipient,
		WormholeSequence: result.WormholeSequence,
		Timestamp:        time.Now().UnixMilli(),
	}
	encoded, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode bridge record: %v", err)
	}

	logger.Info("Bridge complete",
		zap.String("txHash", result.TxHash),
		zap.String("sequence", result.WormholeSequence),
		zap.Int("vaaLength", len(result.VAA)))
	fmt.Println(string(encoded))
	return nil
}
