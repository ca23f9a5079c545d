package clients

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/trueth-protocol/bridge/internal/bridge"
)

// ErrNotReady means the guardian network has not produced a signed VAA for
// the requested message yet. Callers retry; it is not a failure.
var ErrNotReady = errors.New("signed VAA not ready")

// ErrAttestationTimeout means the bounded polling attempts were exhausted
// without a signed VAA. Distinct from transaction failure: the on-chain
// transfer may well have succeeded.
var ErrAttestationTimeout = errors.New("attestation polling exhausted")

type signedVAAResponse struct {
	VAABytes string `json:"vaaBytes"`
}

// GuardianClient fetches signed VAAs from the guardian network's public REST
// API.
type GuardianClient struct {
	baseURL    string
	httpClient *http.Client
	attempts   int
	interval   time.Duration
	logger     *zap.Logger
}

// NewGuardianClient creates a client polling at the given interval for at
// most attempts tries per message.
func NewGuardianClient(logger *zap.Logger, baseURL string, attempts int, interval time.Duration) *GuardianClient {
	return &GuardianClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		attempts: attempts,
		interval: interval,
		logger:   logger.With(zap.String("component", "GuardianClient")),
	}
}

// SignedVAA performs a single fetch. Any non-200 response or missing
// vaaBytes field maps to ErrNotReady.
func (c *GuardianClient) SignedVAA(ctx context.Context, chainID uint16, emitter common.Address, sequence string) ([]byte, error) {
	url := fmt.Sprintf("%s/v1/signed_vaa/%d/%s/%s", c.baseURL, chainID, bridge.EmitterHex(emitter), sequence)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create signed VAA request: %v", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query guardian API: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read guardian response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Debug("Signed VAA not available",
			zap.Int("statusCode", resp.StatusCode),
			zap.String("sequence", sequence))
		return nil, ErrNotReady
	}

	var parsed signedVAAResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal guardian response: %v", err)
	}
	if parsed.VAABytes == "" {
		return nil, ErrNotReady
	}

	vaaBytes, err := base64.StdEncoding.DecodeString(parsed.VAABytes)
	if err != nil {
		return nil, fmt.Errorf("failed to decode vaaBytes: %v", err)
	}
	return vaaBytes, nil
}

// AwaitSignedVAA polls until the VAA is ready, the context ends, or the
// attempt budget runs out. Transport errors count as "not ready" and are
// retried; only exhaustion or cancellation is terminal.
func (c *GuardianClient) AwaitSignedVAA(ctx context.Context, chainID uint16, emitter common.Address, sequence string, onAttempt func(attempt, total int)) ([]byte, error) {
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if onAttempt != nil {
			onAttempt(attempt, c.attempts)
		}

		vaaBytes, err := c.SignedVAA(ctx, chainID, emitter, sequence)
		if err == nil {
			c.logger.Info("Signed VAA retrieved",
				zap.String("sequence", sequence),
				zap.Int("attempt", attempt),
				zap.Int("vaaLength", len(vaaBytes)))
			return vaaBytes, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("attestation polling cancelled: %v", ctx.Err())
		}
		if !errors.Is(err, ErrNotReady) {
			c.logger.Warn("Guardian fetch error, retrying",
				zap.Int("attempt", attempt),
				zap.Error(err))
		} else {
			c.logger.Debug("Waiting for signed VAA",
				zap.String("sequence", sequence),
				zap.Int("attempt", attempt),
				zap.Int("maxAttempts", c.attempts))
		}

		if attempt < c.attempts {
			select {
			case <-time.After(c.interval):
			case <-ctx.Done():
				return nil, fmt.Errorf("attestation polling cancelled: %v", ctx.Err())
			}
		}
	}
	return nil, fmt.Errorf("%w: no signed VAA for sequence %s after %d attempts", ErrAttestationTimeout, sequence, c.attempts)
}
