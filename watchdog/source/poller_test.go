package source

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/evaafi/oracle-watchdog/watchdog/quorum"
	"github.com/evaafi/oracle-watchdog/watchdog/telemetry"
	"github.com/evaafi/oracle-watchdog/watchdog/types"
	"github.com/evaafi/oracle-watchdog/watchdog/verifier"
)

type mockSource struct {
	mock.Mock
	name string
	role types.Role
}

func (m *mockSource) Name() string            { return m.name }
func (m *mockSource) Role() types.Role        { return m.role }
func (m *mockSource) Scheme() verifier.Scheme { return verifier.SchemeEd25519 }

func (m *mockSource) GetPrices(ctx context.Context) ([]types.RawPriceReading, error) {
	args := m.Called(ctx)
	if fn, ok := args.Get(0).(func()); ok {
		fn()
	}
	if readings, ok := args.Get(0).([]types.RawPriceReading); ok {
		return readings, args.Error(1)
	}
	return nil, args.Error(1)
}

type recorder struct {
	mu    sync.Mutex
	lines []string
}

func (r *recorder) Notify(_ context.Context, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, text)
}

type signer struct {
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

func newSigner(t *testing.T) signer {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return signer{pub: pub, priv: priv}
}

func (s signer) reading(ts int64) types.RawPriceReading {
	payload := []byte("prices")
	return types.RawPriceReading{Timestamp: ts, Payload: payload, Signature: ed25519.Sign(s.priv, payload)}
}

var now = time.Unix(1_700_000_000, 0)

func fixedNow() time.Time { return now }

func TestPoll_Confirms(t *testing.T) {
	s := newSigner(t)
	identity := types.OracleIdentity{Address: "EQoracle", PubKeys: [][]byte{s.pub}}

	src := &mockSource{name: "iota", role: types.RoleAnchor}
	stale := s.reading(now.Unix() - 3600)
	src.On("GetPrices", mock.Anything).Return([]types.RawPriceReading{s.reading(now.Unix() - 5), stale}, nil)

	rec := new(recorder)
	metrics, err := telemetry.New()
	require.NoError(t, err)

	result := NewPoller(time.Minute, fixedNow, rec, metrics).Poll(context.Background(), src, identity)

	require.NoError(t, result.Err)
	require.True(t, result.Confirms())
	require.Equal(t, "iota", result.Vote.Source)
	require.Equal(t, types.RoleAnchor, result.Role)
	require.Empty(t, result.Diagnostics)
	require.Equal(t, float64(1), metrics.Sum("votes"))
	src.AssertExpectations(t)
}

func TestPoll_Diagnostics(t *testing.T) {
	s := newSigner(t)
	other := newSigner(t)
	identity := types.OracleIdentity{Address: "EQoracle", PubKeys: [][]byte{s.pub}}

	src := &mockSource{name: "icp", role: types.RolePair}
	src.On("GetPrices", mock.Anything).Return([]types.RawPriceReading{other.reading(now.Unix() - 60)}, nil)

	result := NewPoller(time.Minute, fixedNow, new(recorder), nil).Poll(context.Background(), src, identity)

	require.NoError(t, result.Err)
	require.False(t, result.Confirms())
	require.Equal(t, []string{"Timestamp icp triggered", "Invalid icp price sign!!"}, result.Diagnostics)
}

func TestPoll_FetchErrorIsSilent(t *testing.T) {
	src := &mockSource{name: "backend", role: types.RolePair}
	src.On("GetPrices", mock.Anything).Return(nil, errors.New("no such host"))

	result := NewPoller(time.Minute, fixedNow, new(recorder), nil).Poll(context.Background(), src, types.OracleIdentity{})

	require.Error(t, result.Err)
	require.False(t, result.Confirms())
	require.Empty(t, result.Diagnostics)
}

func TestPoll_EmptyReadings(t *testing.T) {
	src := &mockSource{name: "backend", role: types.RolePair}
	src.On("GetPrices", mock.Anything).Return([]types.RawPriceReading{}, nil)

	result := NewPoller(time.Minute, fixedNow, new(recorder), nil).Poll(context.Background(), src, types.OracleIdentity{})
	require.Error(t, result.Err)
	require.False(t, result.Confirms())
}

func TestPoll_PanicIsRecovered(t *testing.T) {
	src := &mockSource{name: "icp", role: types.RolePair}
	src.On("GetPrices", mock.Anything).Return(func() { panic("malformed response") }, nil)

	var result types.PollResult
	require.NotPanics(t, func() {
		result = NewPoller(time.Minute, fixedNow, new(recorder), nil).Poll(context.Background(), src, types.OracleIdentity{})
	})
	require.ErrorContains(t, result.Err, "malformed response")
	require.False(t, result.Confirms())
}

func TestPollAll_OneFailureDoesNotBlockOthers(t *testing.T) {
	s := newSigner(t)
	identity := types.OracleIdentity{Address: "EQoracle", PubKeys: [][]byte{s.pub}}

	icp := &mockSource{name: "icp", role: types.RolePair}
	icp.On("GetPrices", mock.Anything).Return(nil, errors.New("connection refused"))
	backend := &mockSource{name: "backend", role: types.RolePair}
	backend.On("GetPrices", mock.Anything).Return(func() { panic("boom") }, nil)
	iota := &mockSource{name: "iota", role: types.RoleAnchor}
	iota.On("GetPrices", mock.Anything).Return([]types.RawPriceReading{s.reading(now.Unix())}, nil)

	rec := new(recorder)
	results := NewPoller(time.Minute, fixedNow, rec, nil).PollAll(context.Background(), []Source{icp, backend, iota}, identity)

	require.Len(t, results, 3)
	require.Equal(t, "icp", results[0].Source)
	require.Error(t, results[0].Err)
	require.Equal(t, "backend", results[1].Source)
	require.Error(t, results[1].Err)
	require.Equal(t, "iota", results[2].Source)
	require.True(t, results[2].Confirms())
	require.Empty(t, rec.lines)

	// the anchor alone is not enough
	require.Equal(t, types.Dead, quorum.Decide(results))

	icp.AssertExpectations(t)
	backend.AssertExpectations(t)
	iota.AssertExpectations(t)
}

func TestPollAll_DiagnosticsInSourceOrder(t *testing.T) {
	s := newSigner(t)
	identity := types.OracleIdentity{Address: "EQoracle", PubKeys: [][]byte{s.pub}}

	icp := &mockSource{name: "icp", role: types.RolePair}
	icp.On("GetPrices", mock.Anything).Return([]types.RawPriceReading{s.reading(now.Unix() - 600)}, nil)
	iota := &mockSource{name: "iota", role: types.RoleAnchor}
	bad := s.reading(now.Unix())
	bad.Signature = make([]byte, ed25519.SignatureSize)
	iota.On("GetPrices", mock.Anything).Return([]types.RawPriceReading{bad}, nil)

	rec := new(recorder)
	NewPoller(time.Minute, fixedNow, rec, nil).PollAll(context.Background(), []Source{icp, iota}, identity)

	require.Equal(t, []string{"Timestamp icp triggered", "Invalid iota price sign!!"}, rec.lines)
}

type panickyRoleSource struct {
	mockSource
}

func (p *panickyRoleSource) Role() types.Role { panic("role lookup failed") }

func TestPollAll_PanickingAccessorIsContained(t *testing.T) {
	s := newSigner(t)
	identity := types.OracleIdentity{Address: "EQoracle", PubKeys: [][]byte{s.pub}}

	broken := &panickyRoleSource{mockSource{name: "icp"}}
	iota := &mockSource{name: "iota", role: types.RoleAnchor}
	iota.On("GetPrices", mock.Anything).Return([]types.RawPriceReading{s.reading(now.Unix())}, nil)

	var results []types.PollResult
	require.NotPanics(t, func() {
		results = NewPoller(time.Minute, fixedNow, new(recorder), nil).PollAll(context.Background(), []Source{broken, iota}, identity)
	})

	require.Len(t, results, 2)
	require.Equal(t, "icp", results[0].Source)
	require.ErrorContains(t, results[0].Err, "role lookup failed")
	require.False(t, results[0].Confirms())
	require.True(t, results[1].Confirms())
	broken.AssertNotCalled(t, "GetPrices", mock.Anything)
}

func TestPollAll_DuplicateNamesKeepTheirOwnResult(t *testing.T) {
	s := newSigner(t)
	identity := types.OracleIdentity{Address: "EQoracle", PubKeys: [][]byte{s.pub}}

	good := &mockSource{name: "mirror", role: types.RolePair}
	good.On("GetPrices", mock.Anything).Return([]types.RawPriceReading{s.reading(now.Unix())}, nil)
	bad := &mockSource{name: "mirror", role: types.RoleAnchor}
	bad.On("GetPrices", mock.Anything).Return(nil, errors.New("connection refused"))

	results := NewPoller(time.Minute, fixedNow, new(recorder), nil).PollAll(context.Background(), []Source{good, bad}, identity)

	require.Len(t, results, 2)
	require.Equal(t, types.RolePair, results[0].Role)
	require.True(t, results[0].Confirms())
	require.Equal(t, types.RoleAnchor, results[1].Role)
	require.Error(t, results[1].Err)
}
