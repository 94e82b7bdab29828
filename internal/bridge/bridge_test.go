package bridge

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

var (
	testAsset     = common.HexToAddress("0x00000000000000000000000000000000000a55e7")
	testEscrow    = common.HexToAddress("0x000000000000000000000000000000000e5c0e00")
	testAdmin     = common.HexToAddress("0x0000000000000000000000000000000000ad0001")
	testRelayer   = common.HexToAddress("0x000000000000000000000000000000000e1a0001")
	testUser      = common.HexToAddress("0x00000000000000000000000000000000005e0001")
	testRecipient = common.HexToAddress("0x00000000000000000000000000000000007ec001")
)

// memCustody is an in-memory stand-in for the external asset ledger.
type memCustody struct {
	balances   map[common.Address]*big.Int
	allowances map[common.Address]*big.Int
	failNext   error
	transfers  int
}

func newMemCustody() *memCustody {
	return &memCustody{
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[common.Address]*big.Int),
	}
}

func (m *memCustody) fund(holder common.Address, amount int64) {
	m.balances[holder] = big.NewInt(amount)
	m.allowances[holder] = big.NewInt(amount)
}

func (m *memCustody) bal(holder common.Address) *big.Int {
	if b := m.balances[holder]; b != nil {
		return b
	}
	return new(big.Int)
}

func (m *memCustody) BalanceOf(_ context.Context, _ common.Address, holder common.Address) (*big.Int, error) {
	return new(big.Int).Set(m.bal(holder)), nil
}

func (m *memCustody) Transfer(_ context.Context, _ common.Address, to common.Address, amount *big.Int) error {
	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return err
	}
	m.transfers++
	m.balances[to] = new(big.Int).Add(m.bal(to), amount)
	return nil
}

func (m *memCustody) TransferFrom(_ context.Context, _ common.Address, from, to common.Address, amount *big.Int) error {
	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return err
	}
	if m.allowances[from] == nil || m.allowances[from].Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	if m.bal(from).Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	m.transfers++
	m.balances[from] = new(big.Int).Sub(m.bal(from), amount)
	m.allowances[from] = new(big.Int).Sub(m.allowances[from], amount)
	m.balances[to] = new(big.Int).Add(m.bal(to), amount)
	return nil
}

type testEnv struct {
	engine  *Engine
	custody *memCustody
	clock   *time.Time
	keys    []*ecdsa.PrivateKey
	events  []Event
}

func testConfig(now func() time.Time, minVals, threshold int) Config {
	return Config{
		SourceChainID: 1,
		EscrowAccount: testEscrow,
		ProtocolTag:   "XCHAIN_RELAY_V2",
		Domain:        []byte("test"),
		FeeBps:        100,
		MinAmount:     big.NewInt(10),
		MaxAmount:     big.NewInt(50_000),
		GlobalCap:     big.NewInt(1_000_000),
		UserCap:       big.NewInt(100_000),
		WindowPeriod:  24 * time.Hour,
		TimelockDelay: time.Hour,
		Consensus:     ConsensusConfig{MinValidators: minVals, Threshold: threshold},
		Admin:         testAdmin,
		Now:           now,
	}
}

func newTestEnv(t *testing.T, minVals, threshold int) *testEnv {
	require := require.New(t)

	start := time.Unix(1_700_000_000, 0)
	env := &testEnv{custody: newMemCustody(), clock: &start}
	cfg := testConfig(func() time.Time { return *env.clock }, minVals, threshold)

	engine, err := New(cfg, env.custody, func(ev Event) {
		env.events = append(env.events, ev)
	})
	require.NoError(err)
	env.engine = engine

	require.NoError(engine.GrantRole(testAdmin, RoleRelayer, testRelayer))
	require.NoError(engine.SetWhitelist(testAdmin, testAsset, true))

	for i := 0; i < minVals; i++ {
		key, err := crypto.GenerateKey()
		require.NoError(err)
		env.keys = append(env.keys, key)
		addr := crypto.PubkeyToAddress(key.PublicKey)
		require.NoError(engine.GrantRole(testAdmin, RoleValidator, addr))
	}

	env.custody.fund(testUser, 1_000_000)
	return env
}

func (env *testEnv) advance(d time.Duration) {
	*env.clock = env.clock.Add(d)
}

// approvals signs the canonical message for req with the first n validator
// keys.
func (env *testEnv) approvals(t *testing.T, req *BridgeRequest, n int) [][]byte {
	digest := ApprovalDigest("XCHAIN_RELAY_V2", req.ID, req.SourceChainID, []byte("test"))
	sigs := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		sig, err := SignApproval(digest, env.keys[i])
		require.NoError(t, err)
		sigs = append(sigs, sig)
	}
	return sigs
}

func (env *testEnv) lastEvent() Event {
	return env.events[len(env.events)-1]
}

func TestLockStoresNetAmountAndDebitsGross(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 5, 4)

	req, err := env.engine.Lock(context.Background(), testUser, testAsset, testRecipient, big.NewInt(100), 2)
	require.NoError(err)

	// 1% fee: net 99, custody debited the full 100.
	require.Equal(int64(99), req.Amount.Int64())
	require.Equal(int64(1), req.Fee.Int64())
	require.Equal(int64(100), req.GrossAmount.Int64())
	require.Equal(int64(999_900), env.custody.bal(testUser).Int64())
	require.Equal(int64(100), env.custody.bal(testEscrow).Int64())
	require.False(req.Processed)
	require.Equal(EventRequestCreated, env.lastEvent().Type)
}

func TestLockPreconditions(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 3, 2)
	ctx := context.Background()

	_, err := env.engine.Lock(ctx, testUser, testAsset, testRecipient, big.NewInt(100), 1)
	require.ErrorIs(err, ErrInvalidChainID)

	_, err = env.engine.Lock(ctx, testUser, common.HexToAddress("0xdead"), testRecipient, big.NewInt(100), 2)
	require.ErrorIs(err, ErrAssetNotWhitelisted)

	_, err = env.engine.Lock(ctx, testUser, testAsset, testRecipient, big.NewInt(5), 2)
	require.ErrorIs(err, ErrAmountOutOfBounds)

	_, err = env.engine.Lock(ctx, testUser, testAsset, testRecipient, big.NewInt(50_001), 2)
	require.ErrorIs(err, ErrAmountOutOfBounds)

	require.NoError(env.engine.Pause(testAdmin))
	_, err = env.engine.Lock(ctx, testUser, testAsset, testRecipient, big.NewInt(100), 2)
	require.ErrorIs(err, ErrSystemPaused)
}

func TestLockRollsBackOnCustodyFailure(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 3, 2)
	ctx := context.Background()

	before := env.engine.Nonce()
	env.custody.failNext = ErrInsufficientAllowance
	_, err := env.engine.Lock(ctx, testUser, testAsset, testRecipient, big.NewInt(100), 2)
	require.ErrorIs(err, ErrInsufficientAllowance)

	// No record, no nonce burn, no reserved volume.
	require.Equal(before, env.engine.Nonce())
	_, total := env.engine.ListRequests(0, 10)
	require.Zero(total)
	global, user := env.engine.Volumes(testUser)
	require.Zero(global.Sign())
	require.Zero(user.Sign())
}

func TestMintQuorumAndReplayProtection(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 5, 4)
	ctx := context.Background()

	req, err := env.engine.Lock(ctx, testUser, testAsset, testRecipient, big.NewInt(100), 2)
	require.NoError(err)

	// Three of five is below the configured threshold of four.
	_, err = env.engine.Mint(ctx, testRelayer, req.ID, env.approvals(t, req, 3))
	require.ErrorIs(err, ErrInsufficientApprovals)

	got, err := env.engine.Mint(ctx, testRelayer, req.ID, env.approvals(t, req, 4))
	require.NoError(err)
	require.True(got.Request.Processed)
	require.Len(got.Signers, 4)
	require.Equal(int64(99), env.custody.bal(testRecipient).Int64())

	// Finalizing again always fails, approvals regardless.
	_, err = env.engine.Mint(ctx, testRelayer, req.ID, env.approvals(t, req, 5))
	require.ErrorIs(err, ErrAlreadyProcessed)
	require.Equal(int64(99), env.custody.bal(testRecipient).Int64())
}

func TestMintDuplicateSignerRejected(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 3, 2)
	ctx := context.Background()

	req, err := env.engine.Lock(ctx, testUser, testAsset, testRecipient, big.NewInt(100), 2)
	require.NoError(err)

	sigs := env.approvals(t, req, 1)
	sigs = append(sigs, sigs[0]) // same validator twice, naive count meets threshold
	_, err = env.engine.Mint(ctx, testRelayer, req.ID, sigs)
	require.ErrorIs(err, ErrInvalidApprovalSignature)

	_, ok := env.engine.GetRequest(req.ID)
	require.True(ok)
	require.Zero(env.custody.bal(testRecipient).Sign())
}

func TestMintRequiresRelayerRole(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 3, 2)
	ctx := context.Background()

	req, err := env.engine.Lock(ctx, testUser, testAsset, testRecipient, big.NewInt(100), 2)
	require.NoError(err)

	_, err = env.engine.Mint(ctx, testUser, req.ID, env.approvals(t, req, 2))
	require.ErrorIs(err, ErrUnauthorized)
}

func TestMintUnknownRequest(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 3, 2)

	_, err := env.engine.Mint(context.Background(), testRelayer, common.HexToHash("0x01"), nil)
	require.ErrorIs(err, ErrRequestNotFound)
}

func TestMintRollsBackProcessedOnCustodyFailure(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 3, 2)
	ctx := context.Background()

	req, err := env.engine.Lock(ctx, testUser, testAsset, testRecipient, big.NewInt(100), 2)
	require.NoError(err)

	env.custody.failNext = ErrInsufficientBalance
	_, err = env.engine.Mint(ctx, testRelayer, req.ID, env.approvals(t, req, 2))
	require.ErrorIs(err, ErrInsufficientBalance)

	// The id is not burned: a retry with the same approvals succeeds.
	got, err := env.engine.Mint(ctx, testRelayer, req.ID, env.approvals(t, req, 2))
	require.NoError(err)
	require.True(got.Request.Processed)
}

func TestMintDelayGatesFinalization(t *testing.T) {
	require := require.New(t)

	start := time.Unix(1_700_000_000, 0)
	env := &testEnv{custody: newMemCustody(), clock: &start}
	cfg := testConfig(func() time.Time { return *env.clock }, 3, 2)
	cfg.MintDelay = 10 * time.Minute

	engine, err := New(cfg, env.custody, nil)
	require.NoError(err)
	env.engine = engine
	require.NoError(engine.GrantRole(testAdmin, RoleRelayer, testRelayer))
	require.NoError(engine.SetWhitelist(testAdmin, testAsset, true))
	for i := 0; i < 3; i++ {
		key, kerr := crypto.GenerateKey()
		require.NoError(kerr)
		env.keys = append(env.keys, key)
		require.NoError(engine.GrantRole(testAdmin, RoleValidator, crypto.PubkeyToAddress(key.PublicKey)))
	}
	env.custody.fund(testUser, 10_000)

	ctx := context.Background()
	req, err := engine.Lock(ctx, testUser, testAsset, testRecipient, big.NewInt(100), 2)
	require.NoError(err)

	_, err = engine.Mint(ctx, testRelayer, req.ID, env.approvals(t, req, 2))
	require.ErrorIs(err, ErrTimelockNotReady)

	env.advance(10 * time.Minute)
	_, err = engine.Mint(ctx, testRelayer, req.ID, env.approvals(t, req, 2))
	require.NoError(err)
}

func TestUnlockEmitsStoredRequestFields(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 3, 2)
	ctx := context.Background()

	req, err := env.engine.Burn(ctx, testUser, testAsset, testRecipient, big.NewInt(500), 3)
	require.NoError(err)

	got, err := env.engine.Unlock(ctx, testRelayer, req.ID, env.approvals(t, req, 2))
	require.NoError(err)

	ev := env.lastEvent()
	require.Equal(EventRequestFinalized, ev.Type)
	require.Equal("unlock", ev.Operation)
	// The event carries the stored record, not caller-supplied placeholders.
	require.Equal(req.ID, ev.Request.ID)
	require.Equal(testUser, ev.Request.Sender)
	require.Equal(testRecipient, ev.Request.Recipient)
	require.Equal(got.Request.Amount, ev.Request.Amount)
	require.Len(ev.Signers, 2)
}

func TestBurnSendsValueToBurnAddress(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 3, 2)

	_, err := env.engine.Burn(context.Background(), testUser, testAsset, testRecipient, big.NewInt(100), 2)
	require.NoError(err)
	require.Equal(int64(100), env.custody.bal(BurnAddress).Int64())
	require.Zero(env.custody.bal(testEscrow).Sign())
}

func TestVoteAdvisoryTrail(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 3, 2)
	ctx := context.Background()

	req, err := env.engine.Lock(ctx, testUser, testAsset, testRecipient, big.NewInt(100), 2)
	require.NoError(err)

	val := crypto.PubkeyToAddress(env.keys[0].PublicKey)
	got, err := env.engine.Vote(val, req.ID, true)
	require.NoError(err)
	require.Equal(1, got.Approvals)

	_, err = env.engine.Vote(val, req.ID, true)
	require.ErrorIs(err, ErrAlreadyVoted)

	_, err = env.engine.Vote(testUser, req.ID, true)
	require.ErrorIs(err, ErrUnauthorized)

	// Votes alone never finalize: mint still demands the signature quorum.
	_, err = env.engine.Mint(ctx, testRelayer, req.ID, nil)
	require.ErrorIs(err, ErrInsufficientApprovals)
}

func TestRequestIDsDistinctForIdenticalTransfers(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 3, 2)
	ctx := context.Background()

	a, err := env.engine.Lock(ctx, testUser, testAsset, testRecipient, big.NewInt(100), 2)
	require.NoError(err)
	b, err := env.engine.Lock(ctx, testUser, testAsset, testRecipient, big.NewInt(100), 2)
	require.NoError(err)
	require.NotEqual(a.ID, b.ID)
	require.Equal(a.Nonce+1, b.Nonce)
}

func TestEmergencyWithdrawOnlyWhilePaused(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 3, 2)
	ctx := context.Background()

	emergency := common.HexToAddress("0x0e0e")
	require.NoError(env.engine.GrantRole(testAdmin, RoleEmergency, emergency))

	err := env.engine.EmergencyWithdraw(ctx, emergency, testAsset, testRecipient, big.NewInt(10))
	require.ErrorIs(err, ErrSystemNotPaused)

	require.NoError(env.engine.EmergencyPause(emergency))
	require.NoError(env.engine.EmergencyWithdraw(ctx, emergency, testAsset, testRecipient, big.NewInt(10)))
	require.Equal(int64(10), env.custody.bal(testRecipient).Int64())

	err = env.engine.EmergencyWithdraw(ctx, testUser, testAsset, testRecipient, big.NewInt(10))
	require.ErrorIs(err, ErrUnauthorized)
}

func TestScheduledFeeUpdateAppliesAfterDelay(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 3, 2)

	payload := []byte(`{"fee_bps": 250}`)
	req, err := env.engine.ScheduleOperation(testAdmin, TargetUpdateFee, nil, payload)
	require.NoError(err)

	_, err = env.engine.ExecuteOperation(testAdmin, req.ID)
	require.ErrorIs(err, ErrTimelockNotReady)
	require.Equal(uint64(100), env.engine.FeeBps())

	env.advance(time.Hour)
	_, err = env.engine.ExecuteOperation(testAdmin, req.ID)
	require.NoError(err)
	require.Equal(uint64(250), env.engine.FeeBps())

	_, err = env.engine.ExecuteOperation(testAdmin, req.ID)
	require.ErrorIs(err, ErrTimelockAlreadyExecuted)
}

func TestScheduledRoleGrant(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 3, 2)

	newRelayer := common.HexToAddress("0xbeef")
	payload := []byte(`{"role": "relayer", "account": "0x000000000000000000000000000000000000bEEF"}`)
	req, err := env.engine.ScheduleOperation(testAdmin, TargetGrantRole, nil, payload)
	require.NoError(err)

	env.advance(time.Hour)
	_, err = env.engine.ExecuteOperation(testAdmin, req.ID)
	require.NoError(err)
	require.True(env.engine.Policy().HasRole(RoleRelayer, newRelayer))
}

func TestForceResetRateLimits(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 3, 2)
	ctx := context.Background()

	_, err := env.engine.Lock(ctx, testUser, testAsset, testRecipient, big.NewInt(1_000), 2)
	require.NoError(err)
	global, _ := env.engine.Volumes(testUser)
	require.Equal(int64(1_000), global.Int64())

	require.ErrorIs(env.engine.ForceResetRateLimits(testUser), ErrUnauthorized)
	require.NoError(env.engine.ForceResetRateLimits(testAdmin))
	global, user := env.engine.Volumes(testUser)
	require.Zero(global.Sign())
	require.Zero(user.Sign())
}

func TestRestoreRehydratesState(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 5, 4)
	ctx := context.Background()

	req, err := env.engine.Lock(ctx, testUser, testAsset, testRecipient, big.NewInt(100), 2)
	require.NoError(err)
	minted, err := env.engine.Mint(ctx, testRelayer, req.ID, env.approvals(t, req, 4))
	require.NoError(err)

	// Fresh engine, state replayed from the persisted records.
	cfg := testConfig(func() time.Time { return *env.clock }, 5, 4)
	fresh, err := New(cfg, env.custody, nil)
	require.NoError(err)
	fresh.RestoreRequest(minted.Request)
	fresh.RestoreGrant(RoleRelayer, testRelayer)
	fresh.RestoreWhitelist(testAsset)

	require.Equal(minted.Request.Nonce+1, fresh.Nonce())
	_, err = fresh.Mint(ctx, testRelayer, req.ID, env.approvals(t, req, 4))
	require.ErrorIs(err, ErrAlreadyProcessed)
}
