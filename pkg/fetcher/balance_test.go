package fetcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ton-swap/pkg/client"
	"ton-swap/pkg/retrier"
	"ton-swap/pkg/wallet"
)

const (
	usdtMaster    = "EQBynBO23ywHy_CgarY9NK9FTz0yDsG82PtcbSTQgGoXwiuA"
	usdtMasterRaw = "0:729c13b6df2c07cbf0a06ab63d34af454f3d320ec1bcd8fb5c6d24d0806a17c2"
	testOwner     = wallet.WatchOnly("0:1111111111111111111111111111111111111111111111111111111111111111")
)

type fakeBalanceAPI struct {
	mu           sync.Mutex
	account      *client.Account
	jettons      []client.JettonBalance
	accountErrs  []error
	jettonErrs   []error
	accountCalls int
	jettonCalls  int
	block        chan struct{}
	started      chan struct{}
}

func (f *fakeBalanceAPI) GetAccount(ctx context.Context, _ string) (*client.Account, error) {
	f.mu.Lock()
	f.accountCalls++
	var err error
	if len(f.accountErrs) > 0 {
		err, f.accountErrs = f.accountErrs[0], f.accountErrs[1:]
	}
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	if err != nil {
		return nil, err
	}
	return f.account, nil
}

func (f *fakeBalanceAPI) GetJettonBalances(context.Context, string) ([]client.JettonBalance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jettonCalls++
	if len(f.jettonErrs) > 0 {
		err := f.jettonErrs[0]
		f.jettonErrs = f.jettonErrs[1:]
		return nil, err
	}
	return f.jettons, nil
}

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) Sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return nil
}

func (s *sleepRecorder) total() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum time.Duration
	for _, d := range s.delays {
		sum += d
	}
	return sum
}

func newTestFetcher(api BalanceAPI, backoff, spacing *sleepRecorder) *BalanceFetcher {
	r := retrier.New(
		retrier.WithRetryable(client.Retryable),
		retrier.WithSleep(backoff.Sleep),
	)
	return NewBalanceFetcher(api, testOwner, BalanceConfig{
		StableMaster:   usdtMaster,
		RequestSpacing: DefaultRequestSpacing,
		Retrier:        r,
		Sleep:          spacing.Sleep,
	}, zap.NewNop())
}

func TestBalanceFetcher_Refresh(t *testing.T) {
	api := &fakeBalanceAPI{
		account: &client.Account{Balance: "5000000000"},
		jettons: []client.JettonBalance{
			{JettonAddress: "0:2222222222222222222222222222222222222222222222222222222222222222", Balance: "1"},
			{JettonAddress: usdtMasterRaw, Balance: "12345678"},
		},
	}
	spacing := &sleepRecorder{}
	f := newTestFetcher(api, &sleepRecorder{}, spacing)

	snap, err := f.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "5.00", snap.Native)
	assert.Equal(t, "12.35", snap.Stable)
	assert.Equal(t, "0", snap.LentNative)
	assert.Equal(t, "0", snap.LentStable)
	assert.Equal(t, []time.Duration{time.Second}, spacing.delays)
	assert.Equal(t, snap, f.Snapshot())
	assert.NoError(t, f.LastError())
}

func TestBalanceFetcher_DefaultSpacing(t *testing.T) {
	api := &fakeBalanceAPI{account: &client.Account{Balance: "1"}}
	spacing := &sleepRecorder{}
	f := NewBalanceFetcher(api, testOwner, BalanceConfig{
		StableMaster: usdtMaster,
		Sleep:        spacing.Sleep,
	}, nil)

	_, err := f.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{DefaultRequestSpacing}, spacing.delays)
}

func TestBalanceFetcher_NoMatchingJetton(t *testing.T) {
	api := &fakeBalanceAPI{
		account: &client.Account{Balance: "1500000000"},
		jettons: []client.JettonBalance{
			{JettonAddress: "0:2222222222222222222222222222222222222222222222222222222222222222", Balance: "99"},
		},
	}
	f := newTestFetcher(api, &sleepRecorder{}, &sleepRecorder{})

	snap, err := f.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.50", snap.Native)
	assert.Equal(t, "0", snap.Stable)
}

func TestBalanceFetcher_RetriesRateLimit(t *testing.T) {
	rateLimited := &client.APIError{StatusCode: 429, Status: "429 Too Many Requests"}
	api := &fakeBalanceAPI{
		account:     &client.Account{Balance: "1000000000"},
		accountErrs: []error{rateLimited, rateLimited, rateLimited},
	}
	backoff := &sleepRecorder{}
	f := newTestFetcher(api, backoff, &sleepRecorder{})

	snap, err := f.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.00", snap.Native)
	assert.Equal(t, 4, api.accountCalls)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}, backoff.delays)
	assert.Equal(t, 14*time.Second, backoff.total())
}

func TestBalanceFetcher_FailureKeepsSnapshot(t *testing.T) {
	api := &fakeBalanceAPI{
		account: &client.Account{Balance: "5000000000"},
		jettons: []client.JettonBalance{{JettonAddress: usdtMaster, Balance: "2000000"}},
	}
	f := newTestFetcher(api, &sleepRecorder{}, &sleepRecorder{})

	first, err := f.Refresh(context.Background())
	require.NoError(t, err)

	api.jettonErrs = []error{client.ErrNetwork, client.ErrNetwork, client.ErrNetwork, client.ErrNetwork}
	snap, err := f.Refresh(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, client.ErrNetwork)
	assert.Equal(t, first, snap)
	assert.Equal(t, first, f.Snapshot())
	assert.ErrorIs(t, f.LastError(), client.ErrNetwork)
}

func TestBalanceFetcher_ParseErrorIsTerminal(t *testing.T) {
	api := &fakeBalanceAPI{
		accountErrs: []error{&client.ParseError{Endpoint: "/accounts", Err: errors.New("bad json")}},
	}
	backoff := &sleepRecorder{}
	f := newTestFetcher(api, backoff, &sleepRecorder{})

	snap, err := f.Refresh(context.Background())
	var perr *client.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 1, api.accountCalls)
	assert.Empty(t, backoff.delays)
	assert.Equal(t, "0", snap.Native)
}

func TestBalanceFetcher_CoalescesOverlappingRefresh(t *testing.T) {
	api := &fakeBalanceAPI{
		account: &client.Account{Balance: "1000000000"},
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	f := newTestFetcher(api, &sleepRecorder{}, &sleepRecorder{})

	done := make(chan error, 1)
	go func() {
		_, err := f.Refresh(context.Background())
		done <- err
	}()
	<-api.started

	_, err := f.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrRefreshInFlight)

	close(api.block)
	require.NoError(t, <-done)
	assert.Equal(t, 1, api.accountCalls)
}

func TestBalanceFetcher_NoOwner(t *testing.T) {
	api := &fakeBalanceAPI{}
	f := NewBalanceFetcher(api, nil, BalanceConfig{}, nil)

	snap, err := f.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0", snap.Native)
	assert.Equal(t, 0, api.accountCalls)
}

func TestBalanceFetcher_Reset(t *testing.T) {
	api := &fakeBalanceAPI{account: &client.Account{Balance: "7000000000"}}
	f := newTestFetcher(api, &sleepRecorder{}, &sleepRecorder{})

	_, err := f.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "7.00", f.Snapshot().Native)

	f.Reset()
	assert.Equal(t, "0", f.Snapshot().Native)
	assert.Equal(t, "0", f.Snapshot().Stable)
}

func TestSameAddress(t *testing.T) {
	assert.True(t, SameAddress(usdtMaster, usdtMasterRaw))
	assert.True(t, SameAddress(usdtMasterRaw, usdtMaster))
	assert.False(t, SameAddress(usdtMaster, "0:2222222222222222222222222222222222222222222222222222222222222222"))
	assert.True(t, SameAddress("not-an-address", "NOT-AN-ADDRESS"))
}
