package taobao

import (
	"context"
	"testing"
)

func TestIsChallengeDetectsBodyMarker(t *testing.T) {
	if !isChallenge([]byte(`RGV587_ERROR`), "https://open.taobao.com/doc.htm") {
		t.Error("expected RGV587_ERROR body flagged as challenge")
	}
}

func TestIsChallengeDetectsPunishURL(t *testing.T) {
	if !isChallenge([]byte(`{"ok":true}`), "https://acs.m.taobao.com/punish?x5sec=1") {
		t.Error("expected punish URL flagged as challenge even with well-formed body")
	}
}

func TestIsChallengeDetectsNonObjectBody(t *testing.T) {
	if !isChallenge([]byte(`not json at all`), "https://open.taobao.com/doc.htm") {
		t.Error("expected non-JSON-object body flagged as challenge")
	}
}

func TestIsChallengePassesCleanResponse(t *testing.T) {
	if isChallenge([]byte(`{"apis":[]}`), "https://open.taobao.com/doc.htm") {
		t.Error("expected clean JSON object response not flagged")
	}
}

type fakeRefresher struct {
	calls int
	token string
}

func (f *fakeRefresher) Refresh(ctx context.Context) (string, error) {
	f.calls++
	return f.token, nil
}

func TestEnsureSessionRefreshesOnlyWhenStale(t *testing.T) {
	refresher := &fakeRefresher{token: "tok-1"}
	a := New(refresher, 1)

	if err := a.ensureSession(context.Background()); err != nil {
		t.Fatalf("ensureSession: %v", err)
	}
	if refresher.calls != 1 {
		t.Fatalf("expected 1 refresh call, got %d", refresher.calls)
	}

	if err := a.ensureSession(context.Background()); err != nil {
		t.Fatalf("ensureSession: %v", err)
	}
	if refresher.calls != 1 {
		t.Fatalf("expected session reused without refresh, got %d calls", refresher.calls)
	}
}

func TestCookieSessionRefresherRejectsEmptyCookie(t *testing.T) {
	r := CookieSessionRefresher{}
	if _, err := r.Refresh(context.Background()); err == nil {
		t.Error("expected error for empty cookie")
	}
}
