package services

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"bridge-relay/internal/bridge"
	"bridge-relay/internal/config"
	"bridge-relay/internal/models"
)

func TestRequestRecordRoundTrip(t *testing.T) {
	require := require.New(t)

	req := &bridge.BridgeRequest{
		ID:            common.HexToHash("0xabc1"),
		Kind:          bridge.RequestKindLock,
		Asset:         common.HexToAddress("0x01"),
		Sender:        common.HexToAddress("0x02"),
		Recipient:     common.HexToAddress("0x03"),
		Amount:        big.NewInt(990),
		Fee:           big.NewInt(10),
		GrossAmount:   big.NewInt(1000),
		SourceChainID: 1,
		TargetChainID: 56,
		Nonce:         7,
		Processed:     true,
		CreatedAt:     time.Unix(1_700_000_000, 0).UTC(),
		MintableAt:    time.Unix(1_700_000_600, 0).UTC(),
	}

	got, err := requestFromRecord(requestRecord(req))
	require.NoError(err)
	require.Equal(req.ID, got.ID)
	require.Equal(req.Kind, got.Kind)
	require.Equal(req.Sender, got.Sender)
	require.Equal(req.Amount, got.Amount)
	require.Equal(req.Fee, got.Fee)
	require.Equal(req.GrossAmount, got.GrossAmount)
	require.Equal(req.Nonce, got.Nonce)
	require.True(got.Processed)
	require.Equal(req.MintableAt, got.MintableAt)
}

func TestRequestFromRecordRejectsMalformedAmounts(t *testing.T) {
	require := require.New(t)

	rec := requestRecord(&bridge.BridgeRequest{
		ID:          common.HexToHash("0x01"),
		Kind:        bridge.RequestKindBurn,
		Amount:      big.NewInt(1),
		Fee:         big.NewInt(0),
		GrossAmount: big.NewInt(1),
	})
	rec.Amount = "not-a-number"
	_, err := requestFromRecord(rec)
	require.Error(err)
}

func TestTimelockRecordRoundTrip(t *testing.T) {
	require := require.New(t)

	req := &bridge.TimelockRequest{
		ID:        "3f0c8d5e-0000-0000-0000-000000000001",
		Target:    bridge.TargetUpdateFee,
		Value:     big.NewInt(0),
		Payload:   []byte(`{"fee_bps":50}`),
		Delay:     2 * time.Hour,
		CreatedAt: time.Unix(1_700_000_000, 0).UTC(),
	}

	rec := timelockRecord(req, "0x000000000000000000000000000000000000Ad01")
	require.Equal(models.TimelockStatusScheduled, rec.Status)
	require.Equal(int64(7200), rec.DelaySeconds)

	got := timelockFromRecord(rec)
	require.Equal(req.ID, got.ID)
	require.Equal(req.Target, got.Target)
	require.Equal(req.Payload, got.Payload)
	require.Equal(req.Delay, got.Delay)
	require.False(got.Executed)
	require.False(got.Canceled)

	rec.Status = models.TimelockStatusExecuted
	require.True(timelockFromRecord(rec).Executed)
}

func TestEngineConfigDefaultsThreshold(t *testing.T) {
	require := require.New(t)

	b := config.BridgeConfig{
		SourceChainID:        1,
		ProtocolTag:          "XCHAIN_RELAY_V2",
		EscrowAccount:        "0x00000000000000000000000000000000000000E5",
		AdminAddress:         "0x000000000000000000000000000000000000Ad01",
		MinAmount:            "10",
		MaxAmount:            "1000",
		GlobalDailyCap:       "100000",
		UserDailyCap:         "10000",
		WindowHours:          24,
		TimelockDelaySeconds: 3600,
		MinValidators:        3,
	}

	cfg := engineConfig(b)
	require.Equal(2, cfg.Consensus.Threshold)
	require.Equal(24*time.Hour, cfg.WindowPeriod)

	b.Threshold = 3
	require.Equal(3, engineConfig(b).Consensus.Threshold)
}

func TestMarshalSigners(t *testing.T) {
	require := require.New(t)

	out := marshalSigners([]common.Address{
		common.HexToAddress("0x01"),
		common.HexToAddress("0x02"),
	})
	require.JSONEq(`["0x0000000000000000000000000000000000000001","0x0000000000000000000000000000000000000002"]`, out)
	require.Equal("[]", marshalSigners(nil))
}
