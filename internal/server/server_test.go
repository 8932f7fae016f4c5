package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"gatekeeper-bot/internal/audit"
	apperrors "gatekeeper-bot/internal/errors"
	"gatekeeper-bot/internal/messaging"
)

type stubParser struct {
	events []messaging.Event
	err    error
}

func (p stubParser) Parse(*http.Request) ([]messaging.Event, error) {
	return p.events, p.err
}

type recordingDispatcher struct {
	got []messaging.Event
}

func (d *recordingDispatcher) Dispatch(_ context.Context, ev messaging.Event) {
	d.got = append(d.got, ev)
}

type stubAudit struct {
	events []audit.Event
	err    error
	limit  int
}

func (a *stubAudit) Recent(_ context.Context, limit int) ([]audit.Event, error) {
	a.limit = limit
	return a.events, a.err
}

func init() {
	gin.SetMode(gin.TestMode)
}

func do(router http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader("{}")))
	return rec
}

func TestHealth(t *testing.T) {
	router := NewRouter(Deps{})

	rec := do(router, http.MethodGet, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, HealthBody, rec.Body.String())
}

func TestCallbackDispatchesEvents(t *testing.T) {
	events := []messaging.Event{
		messaging.MemberJoined{GroupID: "G1", UserIDs: []string{"U1"}},
		messaging.Message{UserID: "U1", Text: "pt"},
	}
	d := &recordingDispatcher{}
	router := NewRouter(Deps{Parser: stubParser{events: events}, Dispatcher: d})

	rec := do(router, http.MethodPost, "/callback")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "OK", rec.Body.String())
	require.Equal(t, events, d.got)
}

func TestCallbackRejectsBadSignature(t *testing.T) {
	d := &recordingDispatcher{}
	router := NewRouter(Deps{
		Parser:     stubParser{err: fmt.Errorf("parse webhook: %w", apperrors.ErrAuthentication)},
		Dispatcher: d,
	})

	rec := do(router, http.MethodPost, "/callback")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Empty(t, d.got)
}

func TestCallbackNotRegisteredWithoutParser(t *testing.T) {
	router := NewRouter(Deps{Dispatcher: &recordingDispatcher{}})

	rec := do(router, http.MethodPost, "/callback")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuditListing(t *testing.T) {
	log := &stubAudit{events: []audit.Event{audit.NewEvent(audit.KindVerified, "U1", "G1")}}
	router := NewRouter(Deps{Audit: log, APIToken: "s3cret"})

	rec := do(router, http.MethodGet, "/audit?limit=5&token=s3cret")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 5, log.limit)

	var body struct {
		Events []audit.Event `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Events, 1)
	require.Equal(t, audit.KindVerified, body.Events[0].Kind)

	rec = do(router, http.MethodGet, "/audit?limit=zero&token=s3cret")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	log.err = errors.New("database is locked")
	rec = do(router, http.MethodGet, "/audit?token=s3cret")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, 50, log.limit)
}

func TestExposedRoutesRequireToken(t *testing.T) {
	log := &stubAudit{}
	events := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	router := NewRouter(Deps{Audit: log, Events: events, APIToken: "s3cret"})

	for _, path := range []string{"/audit", "/events", "/audit?token=wrong", "/events?token="} {
		rec := do(router, http.MethodGet, path)
		require.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}

	req := httptest.NewRequest(http.MethodGet, "/audit", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(router, http.MethodGet, "/events?token=s3cret")
	require.Equal(t, http.StatusTeapot, rec.Code)
}

func TestExposedRoutesLockedWithoutToken(t *testing.T) {
	router := NewRouter(Deps{Audit: &stubAudit{}})

	rec := do(router, http.MethodGet, "/audit?token=")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
