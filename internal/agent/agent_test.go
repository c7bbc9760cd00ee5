package agent

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hfi/credential-capture-agent/internal/config"
	"github.com/hfi/credential-capture-agent/internal/correlate"
	"github.com/hfi/credential-capture-agent/internal/storage"
)

const loginSnapshot = `<html><body><form>
	<input type="text" name="user" value="bob">
	<input type="password" name="pw" value="Passw0rd!">
</form></body></html>`

func newTestAgent(t *testing.T) (*Agent, *storage.MemoryRecordStore) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Capture.Debounce = time.Millisecond // tests publish identical snapshots on purpose

	store := storage.NewMemoryRecordStore()
	a, err := New(cfg, store, storage.NewMemoryTempSlot(), nil, zerolog.Nop(), nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.Run(ctx)
	t.Cleanup(func() {
		cancel()
		a.Close()
	})
	return a, store
}

// waitForPending polls until the bus consumer has processed the signal.
func waitForPending(t *testing.T, a *Agent) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if a.cache.Get(context.Background()) != nil {
			return
		}
		select {
		case <-deadline:
			t.Fatal("signal never produced a pending attempt")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestAgent_SubmitThenNavigationCommits(t *testing.T) {
	a, store := newTestAgent(t)
	ctx := context.Background()

	a.HandleFormSubmit("https://ex.com/login", loginSnapshot)
	waitForPending(t, a)

	if !a.HandleNavigation(ctx, correlate.Navigation{URL: "https://ex.com/home", FrameID: 0}) {
		t.Fatal("navigation did not confirm the captured attempt")
	}

	got, _ := store.Load(ctx)
	if len(got) != 1 || got[0].Username != "bob" || got[0].Origin != "https://ex.com" {
		t.Fatalf("store after confirm = %+v", got)
	}
}

func TestAgent_ClickGating(t *testing.T) {
	a, _ := newTestAgent(t)

	// A non-login click never reaches the bus.
	a.HandleClick("https://ex.com/login", loginSnapshot, "Read more", "", "")
	time.Sleep(50 * time.Millisecond)
	if a.cache.Get(context.Background()) != nil {
		t.Fatal("non-login click produced an attempt")
	}

	a.HandleClick("https://ex.com/login", loginSnapshot, "Login", "", "")
	waitForPending(t, a)
}

func TestAgent_EnterKeyGating(t *testing.T) {
	a, _ := newTestAgent(t)

	a.HandleEnterKey("https://ex.com/login", loginSnapshot, "div")
	time.Sleep(50 * time.Millisecond)
	if a.cache.Get(context.Background()) != nil {
		t.Fatal("Enter on a div produced an attempt")
	}

	a.HandleEnterKey("https://ex.com/login", loginSnapshot, "input")
	waitForPending(t, a)
}

func TestAgent_RequestGating(t *testing.T) {
	a, _ := newTestAgent(t)

	a.HandleRequest("https://ex.com/login", "https://ex.com/api/profile", loginSnapshot)
	time.Sleep(50 * time.Millisecond)
	if a.cache.Get(context.Background()) != nil {
		t.Fatal("non-login request produced an attempt")
	}

	a.HandleRequest("https://ex.com/login", "https://ex.com/api/auth/login", loginSnapshot)
	waitForPending(t, a)
}

func TestAgent_BlurGating(t *testing.T) {
	a, _ := newTestAgent(t)

	unfinished := `<html><body><form>
		<input required name="user" value="">
		<input required type="password" value="pw">
	</form></body></html>`
	a.HandleBlur("https://ex.com/login", unfinished)
	time.Sleep(50 * time.Millisecond)
	if a.cache.Get(context.Background()) != nil {
		t.Fatal("blur with unfilled required inputs produced an attempt")
	}

	complete := `<html><body><form>
		<input required name="user" value="bob">
		<input required type="password" value="pw">
	</form></body></html>`
	a.HandleBlur("https://ex.com/login", complete)
	waitForPending(t, a)
}

func TestAgent_RehydrateRunsSettleCheck(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Correlation.SettleDelay = 10 * time.Millisecond

	store := storage.NewMemoryRecordStore()
	temp := storage.NewMemoryTempSlot()
	ctx := context.Background()

	// An attempt persisted by a previous page context.
	temp.Save(ctx, storage.Attempt{
		Username:   "bob",
		Password:   "Passw0rd!",
		URL:        "https://ex.com/login",
		CapturedAt: time.Now(),
	})

	a, err := New(cfg, store, temp, nil, zerolog.Nop(), nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	runCtx, cancel := context.WithCancel(ctx)
	a.Run(runCtx)
	defer func() {
		cancel()
		a.Close()
	}()

	// The new page already carries an auth cookie.
	a.stateMu.Lock()
	a.lastState = correlate.PageState{Cookies: "session_token=xyz"}
	a.stateMu.Unlock()

	ok, err := a.Rehydrate(ctx)
	if err != nil || !ok {
		t.Fatalf("Rehydrate() = %v, %v, want restored attempt", ok, err)
	}

	deadline := time.After(2 * time.Second)
	for {
		if n, _ := store.Count(ctx); n == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("settle check never committed the rehydrated attempt")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
