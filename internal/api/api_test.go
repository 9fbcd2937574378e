package api_test

import (
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"github.com/AceFire6/flagsmith/internal/api"
	"github.com/AceFire6/flagsmith/internal/store"
	"github.com/AceFire6/flagsmith/internal/testlib"
	"github.com/AceFire6/flagsmith/model"
)

type mockSupervisor struct {
	doCalls int
}

func (s *mockSupervisor) Do() error {
	s.doCalls++
	return nil
}

type apiTestEnv struct {
	client     *model.Client
	sqlStore   *store.SQLStore
	supervisor *mockSupervisor
}

func setupAPI(t *testing.T) (*apiTestEnv, func()) {
	logger := testlib.MakeLogger(t)
	sqlStore := store.MakeTestSQLStore(t, logger)
	supervisor := &mockSupervisor{}

	router := mux.NewRouter()
	api.Register(router, &api.Context{
		Store:      sqlStore,
		Supervisor: supervisor,
		Logger:     logger,
	})
	ts := httptest.NewServer(router)

	env := &apiTestEnv{
		client:     model.NewClient(ts.URL),
		sqlStore:   sqlStore,
		supervisor: supervisor,
	}
	cleanup := func() {
		ts.Close()
		store.CloseConnection(t, sqlStore)
	}

	return env, cleanup
}
