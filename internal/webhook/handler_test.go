package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type testLogger struct{ t *testing.T }

func (l testLogger) Printf(format string, v ...interface{}) { l.t.Logf(format, v...) }

func newTestHandler(t *testing.T, secret string, reconciled chan int) http.Handler {
	t.Helper()
	handler := NewHandler(secret, testLogger{t}, func(_ context.Context, iid int) error {
		if reconciled != nil {
			reconciled <- iid
		}
		return nil
	})
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	return mux
}

// TestHandleWebhook_IssueEvent tests that a valid delivery is
// acknowledged and dispatched.
func TestHandleWebhook_IssueEvent(t *testing.T) {
	// Arrange
	reconciled := make(chan int, 1)
	mux := newTestHandler(t, "s3cret", reconciled)

	req := httptest.NewRequest(http.MethodPost, "/webhook",
		strings.NewReader(`{"object_kind": "issue", "object_attributes": {"iid": 7}}`))
	req.Header.Set("X-Gitlab-Token", "s3cret")
	rec := httptest.NewRecorder()

	// Act
	mux.ServeHTTP(rec, req)

	// Assert
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	select {
	case iid := <-reconciled:
		if iid != 7 {
			t.Errorf("expected issue 7 reconciled, got %d", iid)
		}
	case <-time.After(time.Second):
		t.Fatal("reconcile was never called")
	}
}

// TestHandleWebhook_SerializesSameIssue tests that rapid deliveries
// for one issue never reconcile it concurrently with itself.
func TestHandleWebhook_SerializesSameIssue(t *testing.T) {
	// Arrange: a slow reconcile that detects overlapping invocations.
	var active, overlapped int32
	done := make(chan int, 2)
	handler := NewHandler("", testLogger{t}, func(_ context.Context, iid int) error {
		if atomic.AddInt32(&active, 1) > 1 {
			atomic.StoreInt32(&overlapped, 1)
		}
		time.Sleep(50 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		done <- iid
		return nil
	})
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	// Act: two back-to-back deliveries for the same issue.
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/webhook",
			strings.NewReader(`{"object_kind": "issue", "object_attributes": {"iid": 7}}`))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusAccepted {
			t.Fatalf("delivery %d: expected 202, got %d", i, rec.Code)
		}
	}

	// Assert: both run, but never at the same time.
	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("reconcile did not finish")
		}
	}
	if atomic.LoadInt32(&overlapped) != 0 {
		t.Error("issue was reconciled concurrently with itself")
	}
}

// TestHandleWebhook_BadToken tests secret verification.
func TestHandleWebhook_BadToken(t *testing.T) {
	mux := newTestHandler(t, "s3cret", nil)

	req := httptest.NewRequest(http.MethodPost, "/webhook",
		strings.NewReader(`{"object_kind": "issue", "object_attributes": {"iid": 7}}`))
	req.Header.Set("X-Gitlab-Token", "wrong")
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

// TestHandleWebhook_MethodNotAllowed tests the method guard.
func TestHandleWebhook_MethodNotAllowed(t *testing.T) {
	mux := newTestHandler(t, "", nil)

	req := httptest.NewRequest(http.MethodGet, "/webhook", nil)
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

// TestHandleWebhook_IgnoredEvent tests that non-issue events are
// acknowledged without dispatch.
func TestHandleWebhook_IgnoredEvent(t *testing.T) {
	mux := newTestHandler(t, "", nil)

	req := httptest.NewRequest(http.MethodPost, "/webhook",
		strings.NewReader(`{"object_kind": "push"}`))
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

// TestHealthz tests the liveness endpoint.
func TestHealthz(t *testing.T) {
	mux := newTestHandler(t, "", nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
