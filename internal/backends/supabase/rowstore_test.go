package supabase

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"optcache/internal/ports"
	"optcache/internal/types"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/suite"
)

type RowStoreTestSuite struct {
	suite.Suite

	srv     *httptest.Server
	store   *RowStore
	lastReq *http.Request
	body    []byte
	status  int
	resp    string
}

func TestRowStoreTestSuite(t *testing.T) {
	suite.Run(t, new(RowStoreTestSuite))
}

func (s *RowStoreTestSuite) SetupTest() {
	s.status = http.StatusOK
	s.resp = "[]"
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.lastReq = r
		s.body, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(s.status)
		_, _ = w.Write([]byte(s.resp))
	}))
	var err error
	s.store, err = NewRowStoreFromURL(s.srv.URL, "anon-key")
	s.Require().NoError(err)
}

func (s *RowStoreTestSuite) TearDownTest() {
	s.srv.Close()
}

func (s *RowStoreTestSuite) TestSelectBuildsQuery() {
	s.resp = `[{"id": 7, "name": "Pens", "category_id": "c1"}]`
	rows, err := s.store.Select(context.Background(), ports.Query{
		Table:        "items",
		OrderBy:      "name",
		Limit:        50,
		SearchColumn: "name",
		Search:       "pe",
		Filters:      map[string]string{"category_id": "c1"},
	})
	s.NoError(err)
	s.Require().Len(rows, 1)
	s.Equal("7", types.Stringify(rows[0]["id"]))
	s.Equal("Pens", rows[0]["name"])

	s.Equal(http.MethodGet, s.lastReq.Method)
	s.Equal("/rest/v1/items", s.lastReq.URL.Path)
	s.Equal("anon-key", s.lastReq.Header.Get("apikey"))
	q, err := url.ParseQuery(s.lastReq.URL.RawQuery)
	s.NoError(err)
	s.Equal("*", q.Get("select"))
	s.Equal("ilike.%pe%", q.Get("name"))
	s.Equal("eq.c1", q.Get("category_id"))
	s.Equal("name.asc.nullslast", q.Get("order"))
	s.Equal("50", q.Get("limit"))
}

func (s *RowStoreTestSuite) TestSelectError() {
	s.status = http.StatusForbidden
	s.resp = `{"code": "42501", "message": "permission denied for table clients"}`
	_, err := s.store.Select(context.Background(), ports.Query{Table: "clients"})
	s.Error(err)
	s.Contains(err.Error(), "42501")
}

func (s *RowStoreTestSuite) TestInsertReturnsRepresentation() {
	s.status = http.StatusCreated
	s.resp = `[{"id": "uuid-1", "name": "Acme Co"}]`
	row, err := s.store.Insert(context.Background(), "clients", types.Row{"name": "Acme Co"})
	s.NoError(err)
	s.Equal("uuid-1", row["id"])

	s.Equal(http.MethodPost, s.lastReq.Method)
	s.Equal("/rest/v1/clients", s.lastReq.URL.Path)
	s.Contains(s.lastReq.Header.Get("Prefer"), "return=representation")
	var sent map[string]any
	s.NoError(json.Unmarshal(s.body, &sent))
	s.Equal("Acme Co", sent["name"])
}

func (s *RowStoreTestSuite) TestInsertConflict() {
	s.status = http.StatusConflict
	s.resp = `{"code": "23505", "message": "duplicate key value violates unique constraint"}`
	_, err := s.store.Insert(context.Background(), "clients", types.Row{"name": "Acme Co"})
	s.Error(err)
	s.Contains(err.Error(), "(23505)")
}

func (s *RowStoreTestSuite) TestInsertEmptyResponse() {
	s.status = http.StatusCreated
	_, err := s.store.Insert(context.Background(), "clients", types.Row{"name": "Acme Co"})
	s.ErrorIs(err, types.ErrBackend)
}

func (s *RowStoreTestSuite) TestMissingCredentials() {
	_, err := NewRowStoreFromURL("", "")
	s.ErrorIs(err, types.ErrInvalidBackend)
}
