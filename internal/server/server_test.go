package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/dbkit/internal/database"
	"github.com/koustreak/dbkit/internal/database/sqlite"
	"github.com/koustreak/dbkit/internal/errs"
	"github.com/koustreak/dbkit/internal/filestore"
	"github.com/koustreak/dbkit/internal/model"
	"github.com/koustreak/dbkit/internal/report"
	"github.com/koustreak/dbkit/internal/validator"
	"github.com/koustreak/dbkit/internal/watch"
)

type account struct {
	ID   int64  `db:"column:id;primaryKey"`
	Name string `db:"column:name"`
}

func (account) TableName() string { return "accounts" }

// widgets.label is nullable in the database but not in the model
type widget struct {
	ID    int64  `db:"column:id;primaryKey"`
	Label string `db:"column:label"`
}

func (widget) TableName() string { return "widgets" }

type ledger struct {
	ID int64 `db:"column:id;primaryKey"`
}

func (ledger) TableName() string { return "ledger" }

type downPinger struct{}

func (downPinger) Ping(context.Context) error {
	return errs.New(errs.ErrKindConnectionFailed, "connection refused")
}

type stubReports struct {
	objects []filestore.ObjectInfo
	reports map[string]*report.Report
}

func (s stubReports) List(_ context.Context, limit int) ([]filestore.ObjectInfo, error) {
	if limit > 0 && len(s.objects) > limit {
		return s.objects[:limit], nil
	}
	return s.objects, nil
}

func (s stubReports) Load(_ context.Context, key string) (*report.Report, error) {
	r, ok := s.reports[key]
	if !ok {
		return nil, errs.New(errs.ErrKindNotFound, "no such key")
	}
	return r, nil
}

type stubWatch struct{ st watch.Status }

func (s stubWatch) Status() watch.Status { return s.st }

func newTestServer(t *testing.T, opts ...Option) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	db, err := sqlite.New(ctx, &database.Config{Driver: database.DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	for _, ddl := range []string{
		`CREATE TABLE accounts (id INTEGER PRIMARY KEY, name TEXT NOT NULL)`,
		`CREATE TABLE widgets (id INTEGER PRIMARY KEY, label TEXT)`,
	} {
		_, err := db.Exec(ctx, ddl)
		require.NoError(t, err)
	}

	tables := []*model.Table{model.MustParse(account{}), model.MustParse(widget{}), model.MustParse(ledger{})}
	srv := New(validator.New(sqlite.NewIntrospector(db)), tables, append([]Option{WithPinger(db)}, opts...)...)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, method, url, body string, out any) int {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	var body map[string]string
	assert.Equal(t, http.StatusOK, do(t, http.MethodGet, ts.URL+"/healthz", "", &body))
	assert.Equal(t, "ok", body["status"])
}

func TestHealth_DatabaseDown(t *testing.T) {
	ts := newTestServer(t, WithPinger(downPinger{}))
	var body map[string]string
	assert.Equal(t, http.StatusServiceUnavailable, do(t, http.MethodGet, ts.URL+"/healthz", "", &body))
	assert.Contains(t, body["error"], "connection refused")
}

func TestListTables(t *testing.T) {
	ts := newTestServer(t)
	var body []tableInfo
	require.Equal(t, http.StatusOK, do(t, http.MethodGet, ts.URL+"/v1/tables", "", &body))
	require.Len(t, body, 3)
	assert.Equal(t, "accounts", body[0].Name)
	assert.Equal(t, []string{"id", "name"}, body[0].Columns)
	assert.Equal(t, []string{"id"}, body[0].PrimaryKey)
}

func TestValidateTable(t *testing.T) {
	ts := newTestServer(t)

	t.Run("valid", func(t *testing.T) {
		var body ValidationResponse
		require.Equal(t, http.StatusOK, do(t, http.MethodGet, ts.URL+"/v1/tables/accounts/validation", "", &body))
		assert.True(t, body.Result.Valid)
		assert.Empty(t, body.Error)
	})

	t.Run("mismatch non-strict", func(t *testing.T) {
		var body ValidationResponse
		require.Equal(t, http.StatusOK, do(t, http.MethodGet, ts.URL+"/v1/tables/widgets/validation", "", &body))
		assert.False(t, body.Result.Valid)
		assert.Equal(t, []string{"column 'label' nullability mismatch: model=False, database=True"}, body.Result.Errors)
	})

	t.Run("mismatch strict", func(t *testing.T) {
		var body ValidationResponse
		require.Equal(t, http.StatusUnprocessableEntity, do(t, http.MethodGet, ts.URL+"/v1/tables/widgets/validation?strict=true", "", &body))
		assert.Contains(t, body.Error, "table widgets does not match its model, 1 error(s)")
		require.NotNil(t, body.Result)
	})

	t.Run("missing table strict", func(t *testing.T) {
		var body ValidationResponse
		require.Equal(t, http.StatusNotFound, do(t, http.MethodGet, ts.URL+"/v1/tables/ledger/validation?strict=1", "", &body))
		assert.Contains(t, body.Error, `table "ledger" not found in database`)
	})

	t.Run("undeclared model", func(t *testing.T) {
		var body map[string]string
		require.Equal(t, http.StatusNotFound, do(t, http.MethodGet, ts.URL+"/v1/tables/nope/validation", "", &body))
		assert.Contains(t, body["error"], "no model declared")
	})

	t.Run("bad strict flag", func(t *testing.T) {
		require.Equal(t, http.StatusBadRequest, do(t, http.MethodGet, ts.URL+"/v1/tables/accounts/validation?strict=maybe", "", nil))
	})
}

func TestValidateMany(t *testing.T) {
	ts := newTestServer(t, WithMeta(report.Meta{Driver: "sqlite"}))

	t.Run("all tables", func(t *testing.T) {
		var body BatchResponse
		require.Equal(t, http.StatusOK, do(t, http.MethodPost, ts.URL+"/v1/validations", "", &body))
		assert.Equal(t, []string{"accounts", "widgets", "ledger"}, body.Report.Result.Tables)
		assert.False(t, body.Report.Result.AllValid)
		assert.Equal(t, "sqlite", body.Report.Driver)
		assert.NotEmpty(t, body.Report.ID)
	})

	t.Run("subset", func(t *testing.T) {
		var body BatchResponse
		require.Equal(t, http.StatusOK, do(t, http.MethodPost, ts.URL+"/v1/validations", `{"tables":["accounts"]}`, &body))
		assert.True(t, body.Report.Result.AllValid)
	})

	t.Run("strict failure keeps the report", func(t *testing.T) {
		var body BatchResponse
		require.Equal(t, http.StatusUnprocessableEntity,
			do(t, http.MethodPost, ts.URL+"/v1/validations", `{"tables":["accounts","widgets"],"strict":true}`, &body))
		assert.Contains(t, body.Error, "1 of 2 table(s) failed schema validation")
		assert.Len(t, body.Report.Result.Results, 2)
	})

	t.Run("unknown table", func(t *testing.T) {
		require.Equal(t, http.StatusNotFound, do(t, http.MethodPost, ts.URL+"/v1/validations", `{"tables":["nope"]}`, nil))
	})

	t.Run("bad body", func(t *testing.T) {
		require.Equal(t, http.StatusBadRequest, do(t, http.MethodPost, ts.URL+"/v1/validations", `{"tables":`, nil))
	})
}

func TestWatchAndReports_Disabled(t *testing.T) {
	ts := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, do(t, http.MethodGet, ts.URL+"/v1/watch", "", nil))
	assert.Equal(t, http.StatusNotFound, do(t, http.MethodGet, ts.URL+"/v1/reports", "", nil))
}

func TestWatchStatus(t *testing.T) {
	ts := newTestServer(t, WithWatch(stubWatch{watch.Status{Running: true, Schedule: "@hourly", Runs: 3}}))
	var st watch.Status
	require.Equal(t, http.StatusOK, do(t, http.MethodGet, ts.URL+"/v1/watch", "", &st))
	assert.True(t, st.Running)
	assert.Equal(t, 3, st.Runs)
}

func TestReports(t *testing.T) {
	key := "validations/2024/03/09/140507-run-1.json"
	reports := stubReports{
		objects: []filestore.ObjectInfo{{Key: key, Size: 10}, {Key: "validations/older.json", Size: 5}},
		reports: map[string]*report.Report{key: {ID: "run-1", StartedAt: time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)}},
	}
	ts := newTestServer(t, WithReports(reports))

	var list []filestore.ObjectInfo
	require.Equal(t, http.StatusOK, do(t, http.MethodGet, ts.URL+"/v1/reports?limit=1", "", &list))
	require.Len(t, list, 1)
	assert.Equal(t, key, list[0].Key)

	var rep report.Report
	require.Equal(t, http.StatusOK, do(t, http.MethodGet, ts.URL+"/v1/reports/"+key, "", &rep))
	assert.Equal(t, "run-1", rep.ID)

	assert.Equal(t, http.StatusNotFound, do(t, http.MethodGet, ts.URL+"/v1/reports/validations/missing.json", "", nil))
	assert.Equal(t, http.StatusBadRequest, do(t, http.MethodGet, ts.URL+"/v1/reports?limit=-3", "", nil))
}

func TestNotFoundRoute(t *testing.T) {
	ts := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, do(t, http.MethodGet, ts.URL+"/v2/anything", "", nil))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(errs.New(errs.ErrKindValidation, "x")))
	assert.Equal(t, http.StatusGatewayTimeout, statusFor(errs.New(errs.ErrKindTimeout, "x")))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("plain")))
}

func TestListenAndServe_Shutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := New(nil, nil)
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx, "127.0.0.1:0", time.Second) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
