package tests

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	. "github.com/trezcool/odin/apps/api/echo"
	"github.com/trezcool/odin/core"
	"github.com/trezcool/odin/core/credit"
	"github.com/trezcool/odin/core/roster"
	"github.com/trezcool/odin/core/tech"
	"github.com/trezcool/odin/core/voc"
	logsvc "github.com/trezcool/odin/services/logger"
	inmemdb "github.com/trezcool/odin/storage/database/inmem"
	testutil "github.com/trezcool/odin/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testApp struct {
	server     Server
	conf       *core.Config
	rosterRepo roster.Repository
	techRepo   tech.Repository
	vocRepo    voc.Repository
	rosterSvc  *roster.Service
	techSvc    *tech.Service
	vocSvc     *voc.Service
}

// newTestApp wires a full server against the in-memory store; each test gets a
// pristine one.
func newTestApp(t *testing.T) *testApp {
	t.Helper()

	conf := testutil.NewConfig()

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() failed: %v", err)
	}
	rosterRepo := inmemdb.NewRosterRepository(db)
	techRepo := inmemdb.NewTechRepository(db)
	vocRepo := inmemdb.NewVocRepository(db)

	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "TEST : ", log.LstdFlags), conf)
	logger.Enable(false)

	rosterSvc := roster.NewService(db, rosterRepo, conf, techRepo, vocRepo)
	techSvc := tech.NewService(db, techRepo, rosterRepo)
	vocSvc := voc.NewService(db, vocRepo, rosterRepo, nil /* mailSvc */)
	creditSvc := credit.NewService(techRepo, vocRepo, rosterRepo, conf)

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	roster.InitValidators(validate, translator)
	voc.InitValidators(validate, translator)

	app := NewServer(ServerDeps{
		Conf:           conf,
		Logger:         logger,
		RosterSvc:      rosterSvc,
		TechSvc:        techSvc,
		VocSvc:         vocSvc,
		CreditSvc:      creditSvc,
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
	})

	return &testApp{
		server:     app,
		conf:       conf,
		rosterRepo: rosterRepo,
		techRepo:   techRepo,
		vocRepo:    vocRepo,
		rosterSvc:  rosterSvc,
		techSvc:    techSvc,
		vocSvc:     vocSvc,
	}
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func (app *testApp) do(tt httpTest) *httptest.ResponseRecorder {
	method := tt.method
	if method == "" {
		method = http.MethodGet
	}
	req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
	app.server.ServeHTTP(rec, req)
	return rec
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func (app *testApp) getToken(t *testing.T, usr roster.User) string {
	t.Helper()
	token, err := GenerateToken(app.conf, GetUserClaims(app.conf, usr))
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshalObj(): %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	// order does not matter for list payloads
	if l1, ok := j1.([]interface{}); ok {
		if l2, ok := j2.([]interface{}); ok {
			return assert.ElementsMatch(t, l1, l2), nil
		}
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decodeBody(): %v; body = %v", err, rec.Body.String())
	}
}
