package mint

import (
	"context"
	"sync"

	cmdom "candymint/internal/domain/candymachine"
)

const testWallet = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"

type fakeWallet struct {
	key       string
	connected bool
	canSign   bool
}

func newFakeWallet() *fakeWallet {
	return &fakeWallet{key: testWallet, connected: true, canSign: true}
}

func (w *fakeWallet) PublicKey() string { return w.key }
func (w *fakeWallet) Connected() bool   { return w.connected }
func (w *fakeWallet) CanSign() bool     { return w.canSign }

type fakeProgram struct {
	mu sync.Mutex

	snap     cmdom.Snapshot
	stateErr error
	getCalls int

	mintIDs   []string
	mintErr   error
	mintPanic any
	mintCalls int
	// started is signalled when MintOneToken is entered; release unblocks it.
	started chan struct{}
	release chan struct{}

	tokenBalance uint64
	tokenErr     error
}

func (p *fakeProgram) GetState(_ context.Context, _ string) (cmdom.Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.getCalls++
	if p.stateErr != nil {
		return cmdom.Snapshot{}, p.stateErr
	}
	return p.snap, nil
}

func (p *fakeProgram) MintOneToken(ctx context.Context, _ cmdom.Snapshot, _ string) ([]string, error) {
	p.mu.Lock()
	p.mintCalls++
	started, release := p.started, p.release
	ids, err, pv := p.mintIDs, p.mintErr, p.mintPanic
	p.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if pv != nil {
		panic(pv)
	}
	return ids, err
}

func (p *fakeProgram) TokenBalance(_ context.Context, _, _ string) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tokenBalance, p.tokenErr
}

func (p *fakeProgram) calls() (get, mint int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.getCalls, p.mintCalls
}

type fakeTransport struct {
	mu sync.Mutex

	// statuses is consumed one per poll; the last entry repeats.
	statuses  []*SignatureStatus
	statusErr error
	polls     int

	balance    uint64
	balanceErr error
	balCalls   int

	accountFn func()
}

func (t *fakeTransport) GetSignatureStatus(_ context.Context, _ string) (*SignatureStatus, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.polls++
	if t.statusErr != nil {
		return nil, t.statusErr
	}
	if len(t.statuses) == 0 {
		return nil, nil
	}
	st := t.statuses[0]
	if len(t.statuses) > 1 {
		t.statuses = t.statuses[1:]
	}
	return st, nil
}

func (t *fakeTransport) GetBalance(_ context.Context, _ string) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.balCalls++
	return t.balance, t.balanceErr
}

func (t *fakeTransport) OnAccountChange(_ context.Context, _ string, fn func()) (func(), error) {
	t.mu.Lock()
	t.accountFn = fn
	t.mu.Unlock()
	return func() {
		t.mu.Lock()
		t.accountFn = nil
		t.mu.Unlock()
	}, nil
}

func (t *fakeTransport) pushAccountChange() {
	t.mu.Lock()
	fn := t.accountFn
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (t *fakeTransport) pollCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.polls
}

type fakeGateway struct {
	mu         sync.Mutex
	status     GatewayStatus
	requestErr error
	requests   int
	subs       []chan GatewayStatus
}

func (g *fakeGateway) RequestToken(_ context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests++
	if g.requestErr != nil {
		return g.requestErr
	}
	g.status = GatewayRequesting
	return nil
}

func (g *fakeGateway) Status() GatewayStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

func (g *fakeGateway) Subscribe() (<-chan GatewayStatus, func()) {
	ch := make(chan GatewayStatus, 4)
	g.mu.Lock()
	g.subs = append(g.subs, ch)
	g.mu.Unlock()
	return ch, func() {}
}

func (g *fakeGateway) set(st GatewayStatus) {
	g.mu.Lock()
	g.status = st
	subs := append([]chan GatewayStatus(nil), g.subs...)
	g.mu.Unlock()
	for _, ch := range subs {
		ch <- st
	}
}

func (g *fakeGateway) requestCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.requests
}

func u64(v uint64) *uint64 { return &v }

func confirmed() *SignatureStatus {
	return &SignatureStatus{Slot: 10, Confirmations: u64(1), ConfirmationStatus: CommitmentConfirmed}
}

func mustSnapshot(s cmdom.Snapshot) cmdom.Snapshot {
	snap, err := cmdom.NewSnapshot(s)
	if err != nil {
		panic(err)
	}
	return snap
}
