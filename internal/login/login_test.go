package login

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/kxapi/internal/kerbalx"
)

type fakeAuth struct {
	mu        sync.Mutex
	loggedIn  bool
	tokenCode int
	password  string
	// loginGate, when set, blocks Login until closed.
	loginGate chan struct{}
	logins    atomic.Int32
	tokens    atomic.Int32
}

func (f *fakeAuth) LoggedIn() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loggedIn
}

func (f *fakeAuth) LoginWithToken(ctx context.Context) (kerbalx.Response, error) {
	f.tokens.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tokenCode == http.StatusOK {
		f.loggedIn = true
	}
	return kerbalx.Response{Status: f.tokenCode}, nil
}

func (f *fakeAuth) Login(ctx context.Context, username, password string) (kerbalx.Response, error) {
	f.logins.Add(1)
	if f.loginGate != nil {
		<-f.loginGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if password != f.password {
		return kerbalx.Response{Status: http.StatusUnauthorized}, nil
	}
	f.loggedIn = true
	return kerbalx.Response{Status: http.StatusOK}, nil
}

type outcomes struct {
	mu  sync.Mutex
	got map[string][]bool
	wg  sync.WaitGroup
}

func newOutcomes(n int) *outcomes {
	o := &outcomes{got: map[string][]bool{}}
	o.wg.Add(n)
	return o
}

func (o *outcomes) fn(name string) func(bool) {
	return func(ok bool) {
		o.mu.Lock()
		o.got[name] = append(o.got[name], ok)
		o.mu.Unlock()
		o.wg.Done()
	}
}

func (o *outcomes) wait(t *testing.T) map[string][]bool {
	t.Helper()
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("waiters were not released")
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.got
}

func id(name string) kerbalx.Identity {
	return kerbalx.Identity{Name: name, Version: "1.0"}
}

func TestLogin_AlreadyLoggedInIsSynchronous(t *testing.T) {
	auth := &fakeAuth{loggedIn: true}
	o := New(auth, PrompterFunc(func(context.Context, PromptRequest) (Credentials, error) {
		t.Fatalf("prompt must not open")
		return Credentials{}, nil
	}), nil)

	called := false
	o.Login(context.Background(), id("A"), func(ok bool) { called = ok })

	assert.True(t, called, "callback runs before Login returns")
	assert.Zero(t, auth.tokens.Load(), "no network call")
}

func TestLogin_ValidTokenSkipsPrompt(t *testing.T) {
	auth := &fakeAuth{tokenCode: http.StatusOK}
	o := New(auth, PrompterFunc(func(context.Context, PromptRequest) (Credentials, error) {
		t.Errorf("prompt must not open")
		return Credentials{}, ErrPromptCancelled
	}), nil)

	ok, err := o.Wait(context.Background(), id("A"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, StateAuthenticated, o.State())
}

func TestLogin_ConcurrentCallersShareOnePrompt(t *testing.T) {
	gate := make(chan struct{})
	auth := &fakeAuth{tokenCode: http.StatusUnauthorized, password: "boosters", loginGate: gate}

	var prompts atomic.Int32
	prompted := make(chan struct{})
	o := New(auth, PrompterFunc(func(context.Context, PromptRequest) (Credentials, error) {
		if prompts.Add(1) == 1 {
			close(prompted)
		}
		return Credentials{Username: "jeb", Password: "boosters"}, nil
	}), nil)

	res := newOutcomes(3)
	o.Login(context.Background(), id("A"), res.fn("A"))
	o.Login(context.Background(), id("B"), res.fn("B"))

	<-prompted
	require.Eventually(t, func() bool { return o.State() == StateCredentialsSubmitted },
		time.Second, 5*time.Millisecond)

	// Registered after credentials were submitted but before the answer.
	o.Login(context.Background(), id("C"), res.fn("C"))
	close(gate)

	got := res.wait(t)
	assert.Equal(t, map[string][]bool{"A": {true}, "B": {true}, "C": {true}}, got)
	assert.Equal(t, int32(1), prompts.Load())
	assert.Equal(t, int32(1), auth.tokens.Load())
}

func TestLogin_CancelReleasesEveryWaiterWithFalse(t *testing.T) {
	auth := &fakeAuth{tokenCode: http.StatusUnauthorized}
	release := make(chan struct{})
	o := New(auth, PrompterFunc(func(context.Context, PromptRequest) (Credentials, error) {
		<-release
		return Credentials{}, ErrPromptCancelled
	}), nil)

	res := newOutcomes(2)
	o.Login(context.Background(), id("A"), res.fn("A"))
	o.Login(context.Background(), id("B"), res.fn("B"))
	close(release)

	got := res.wait(t)
	assert.Equal(t, map[string][]bool{"A": {false}, "B": {false}}, got)
	assert.Equal(t, StateIdle, o.State())
	assert.Zero(t, auth.logins.Load())

	o.mu.Lock()
	defer o.mu.Unlock()
	assert.Empty(t, o.waiters)
	assert.False(t, o.running)
}

func TestLogin_SameIdentityReplacesCallback(t *testing.T) {
	auth := &fakeAuth{tokenCode: http.StatusUnauthorized, password: "boosters"}
	release := make(chan struct{})
	o := New(auth, PrompterFunc(func(context.Context, PromptRequest) (Credentials, error) {
		<-release
		return Credentials{Username: "jeb", Password: "boosters"}, nil
	}), nil)

	var first atomic.Int32
	res := newOutcomes(1)
	o.Login(context.Background(), id("A"), func(bool) { first.Add(1) })
	o.Login(context.Background(), id("A"), res.fn("A2"))
	close(release)

	got := res.wait(t)
	assert.Equal(t, map[string][]bool{"A2": {true}}, got)
	assert.Zero(t, first.Load(), "replaced callback must not fire")
}

func TestLogin_FailedAttemptRePrompts(t *testing.T) {
	auth := &fakeAuth{tokenCode: http.StatusUnauthorized, password: "boosters"}
	var seen []PromptRequest
	var mu sync.Mutex
	o := New(auth, PrompterFunc(func(_ context.Context, req PromptRequest) (Credentials, error) {
		mu.Lock()
		seen = append(seen, req)
		n := len(seen)
		mu.Unlock()
		if n == 1 {
			return Credentials{Username: "jeb", Password: "wrong"}, nil
		}
		return Credentials{Username: "jeb", Password: "boosters"}, nil
	}), nil)

	ok, err := o.Wait(context.Background(), id("A"))
	require.NoError(t, err)
	assert.True(t, ok)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2)
	assert.Equal(t, PromptRequest{Attempt: 1}, seen[0])
	assert.Equal(t, PromptRequest{Attempt: 2, Failed: true, Message: failedLoginMessage}, seen[1])
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "needs_credentials", StateNeedsCredentials.String())
	assert.Equal(t, "idle", State(99).String())
}

func TestLogin_EndedCallerContextKeepsOthersWaiting(t *testing.T) {
	auth := &fakeAuth{tokenCode: http.StatusUnauthorized, password: "boosters"}
	release := make(chan struct{})
	o := New(auth, PrompterFunc(func(ctx context.Context, _ PromptRequest) (Credentials, error) {
		select {
		case <-release:
			return Credentials{Username: "jeb", Password: "boosters"}, nil
		case <-ctx.Done():
			return Credentials{}, ctx.Err()
		}
	}), nil)

	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	var first atomic.Int32
	o.Login(short, id("A"), func(bool) { first.Add(1) })
	res := newOutcomes(1)
	o.Login(context.Background(), id("B"), res.fn("B"))

	<-short.Done()
	require.Eventually(t, func() bool {
		o.mu.Lock()
		defer o.mu.Unlock()
		return len(o.waiters) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, StateNeedsCredentials, o.State(), "prompt stays open")

	close(release)
	got := res.wait(t)
	assert.Equal(t, map[string][]bool{"B": {true}}, got)
	assert.Zero(t, first.Load(), "dropped caller is not called back")
}

func TestLogin_AbandonedWhenEveryCallerLeaves(t *testing.T) {
	auth := &fakeAuth{tokenCode: http.StatusUnauthorized}
	promptDone := make(chan error, 1)
	o := New(auth, PrompterFunc(func(ctx context.Context, _ PromptRequest) (Credentials, error) {
		<-ctx.Done()
		promptDone <- ctx.Err()
		return Credentials{}, ctx.Err()
	}), nil)

	ctx, cancel := context.WithCancel(context.Background())
	waitErr := make(chan error, 1)
	go func() {
		_, err := o.Wait(ctx, id("A"))
		waitErr <- err
	}()
	require.Eventually(t, func() bool { return o.State() == StateNeedsCredentials },
		time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-promptDone:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatalf("prompt was not abandoned")
	}
	assert.ErrorIs(t, <-waitErr, context.Canceled)
	require.Eventually(t, func() bool {
		o.mu.Lock()
		defer o.mu.Unlock()
		return !o.running
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, StateIdle, o.State())
}

func TestLogin_ReplacedCallbackKeepsQueuePosition(t *testing.T) {
	auth := &fakeAuth{tokenCode: http.StatusUnauthorized, password: "boosters"}
	release := make(chan struct{})
	o := New(auth, PrompterFunc(func(context.Context, PromptRequest) (Credentials, error) {
		<-release
		return Credentials{Username: "jeb", Password: "boosters"}, nil
	}), nil)

	var mu sync.Mutex
	var order []string
	var wg sync.WaitGroup
	wg.Add(2)
	record := func(name string) func(bool) {
		return func(bool) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			wg.Done()
		}
	}
	o.Login(context.Background(), id("A"), func(bool) { t.Errorf("replaced callback fired") })
	o.Login(context.Background(), id("B"), record("B"))
	o.Login(context.Background(), id("A"), record("A2"))
	close(release)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"A2", "B"}, order)
}
