package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/trueth-protocol/bridge/internal/bridge"
	"github.com/trueth-protocol/bridge/internal/clients"
	"github.com/trueth-protocol/bridge/internal/verify"
)

// verifyCmd runs the same verification the submission API performs, as a
// one-shot operator tool.
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify a claimed bridge transaction against the chain",
	Long: `Fetches the transaction receipt for a claimed bridge transaction and
checks that it succeeded, targeted the token bridge, locked at least the
claimed USDC amount and published a message with the claimed sequence.`,
	PreRun: func(cmd *cobra.Command, args []string) {
		configureLogging(cmd, args)
	},
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().String(
		"tx-hash",
		"",
		"Transaction hash of the claimed bridge transfer (required)")

	verifyCmd.Flags().String(
		"amount",
		"",
		"Claimed USDC amount, e.g. 1.5 (required)")

	verifyCmd.Flags().String(
		"sequence",
		"",
		"Claimed wormhole sequence number (required)")

	verifyCmd.MarkFlagRequired("tx-hash")
	verifyCmd.MarkFlagRequired("amount")
	verifyCmd.MarkFlagRequired("sequence")
}

func runVerify(cmd *cobra.Command, args []string) error {
	logger := configureLogging(cmd, args)
	network := loadNetworkConfig()

	txHash, _ := cmd.Flags().GetString("tx-hash")
	amount, _ := cmd.Flags().GetString("amount")
	sequence, _ := cmd.Flags().GetString("sequence")

	// Read-only client: verification needs no signer.
	evmClient, err := clients.NewEVMClient(logger, network.RPCURL, "")
	if err != nil {
		return fmt.Errorf("failed to create EVM client: %v", err)
	}

	verifier := verify.NewVerifier(logger, verify.Config{
		BridgeContract: network.TokenBridge,
		TokenContract:  network.USDCContract,
		CoreBridge:     network.CoreBridge,
	}, evmClient)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	outcome := verifier.VerifyBridgeTransaction(ctx, bridge.BridgeTransaction{
		Hash:             txHash,
		Amount:           amount,
		WormholeSequence: sequence,
		Timestamp:        time.Now().UnixMilli(),
	})

	if !outcome.Verified {
		logger.Warn("Verification failed",
			zap.String("reason", string(outcome.Reason)),
			zap.String("detail", outcome.Detail))
		return fmt.Errorf("bridge transaction not verified: %s", outcome.Reason)
	}

	logger.Info("Bridge transaction verified",
		zap.String("txHash", txHash),
		zap.String("amount", amount),
		zap.String("sequence", sequence))
	return nil
}
