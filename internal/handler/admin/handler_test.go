package admin

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/med-assist/backend/internal/analysis/severity"
	"github.com/zhouzirui/med-assist/backend/internal/model/chat"
	"github.com/zhouzirui/med-assist/backend/internal/service/chatlog"
	"github.com/zhouzirui/med-assist/backend/internal/service/dashboard"
)

type fakeDashboards struct {
	calls atomic.Int32
	err   error

	queries []chatlog.ListQuery
}

func (f *fakeDashboards) Snapshot(context.Context) (dashboard.Dashboard, error) {
	n := f.calls.Add(1)
	if f.err != nil {
		return dashboard.Dashboard{}, f.err
	}
	return dashboard.Dashboard{Stats: dashboard.Stats{TotalChats: int(n)}}, nil
}

func (f *fakeDashboards) Chats(_ context.Context, q chatlog.ListQuery) ([]chat.LogRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.queries = append(f.queries, q)
	return []chat.LogRecord{{ID: "c1", Severity: severity.High, Symptoms: []string{"chest pain"}}}, nil
}

func newRouter(d Dashboards, interval time.Duration) chi.Router {
	r := chi.NewRouter()
	New(d, interval).RegisterRoutes(r)
	return r
}

func TestDashboardJSON(t *testing.T) {
	r := newRouter(&fakeDashboards{}, time.Second)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got dashboard.Dashboard
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 1, got.Stats.TotalChats)
}

func TestDashboardErrors(t *testing.T) {
	cases := map[string]struct {
		err  error
		want int
	}{
		"logging disabled": {err: dashboard.ErrUnavailable, want: http.StatusServiceUnavailable},
		"store failure":    {err: errors.New("db down"), want: http.StatusInternalServerError},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			r := newRouter(&fakeDashboards{err: tc.err}, time.Second)
			for _, path := range []string{"/admin/dashboard", "/admin/dashboard/stream", "/admin/chats"} {
				rec := httptest.NewRecorder()
				r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
				assert.Equal(t, tc.want, rec.Code, path)
			}
		})
	}
}

func TestDashboardStreamPushesEvents(t *testing.T) {
	srv := httptest.NewServer(newRouter(&fakeDashboards{}, 20*time.Millisecond))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/admin/dashboard/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var totals []int
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() && len(totals) < 2 {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var snap dashboard.Dashboard
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &snap))
		totals = append(totals, snap.Stats.TotalChats)
	}

	assert.Equal(t, []int{1, 2}, totals)
}

func TestChatsPassesFilters(t *testing.T) {
	d := &fakeDashboards{}
	r := newRouter(d, time.Second)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/chats?severity=HIGH&since=2026-05-01&limit=20", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got ChatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Items, 1)
	assert.Equal(t, []string{"chest pain"}, got.Items[0].Symptoms)

	require.Len(t, d.queries, 1)
	assert.Equal(t, chatlog.ListQuery{
		Limit:    20,
		Severity: severity.High,
		Since:    time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
	}, d.queries[0])

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/chats?since=2026-05-01T08:30:00%2B02:00", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, d.queries[1].Since.Equal(time.Date(2026, 5, 1, 6, 30, 0, 0, time.UTC)))
	assert.Zero(t, d.queries[1].Limit)
}

func TestChatsRejectsBadFilters(t *testing.T) {
	cases := map[string]string{
		"unknown severity": "/admin/chats?severity=critical",
		"bad since":        "/admin/chats?since=yesterday",
		"zero limit":       "/admin/chats?limit=0",
		"text limit":       "/admin/chats?limit=ten",
	}

	for name, path := range cases {
		t.Run(name, func(t *testing.T) {
			d := &fakeDashboards{}
			rec := httptest.NewRecorder()
			newRouter(d, time.Second).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, d.queries)
		})
	}
}
