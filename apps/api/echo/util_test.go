package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/masomo-fees/apps/api/echo"
	"github.com/trezcool/masomo-fees/core"
	"github.com/trezcool/masomo-fees/core/fee"
	emailsvc "github.com/trezcool/masomo-fees/services/email"
	dummydb "github.com/trezcool/masomo-fees/storage/database/dummy"
	testutil "github.com/trezcool/masomo-fees/tests"
)

const schoolID = "school-1"

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type httpErr struct {
	Error string `json:"error"`
}

type testEnv struct {
	conf     *core.Config
	app      *echoapi.Server
	students fee.StudentRepository
	feeHeads fee.FeeHeadRepository
	challans fee.ChallanRepository
}

func setup(t *testing.T) testEnv {
	t.Helper()

	conf := testutil.Config()
	conf.Billing.NotifyGuardians = false
	logger := testutil.Logger(conf)
	validate, translator := testutil.Validator()

	db, err := dummydb.Open()
	require.NoError(t, err)

	env := testEnv{
		conf:     conf,
		students: dummydb.NewStudentRepository(db),
		feeHeads: dummydb.NewFeeHeadRepository(db),
		challans: dummydb.NewChallanRepository(db),
	}
	svc := fee.NewService(
		env.students,
		env.feeHeads,
		env.challans,
		emailsvc.NewConsoleServiceMock(conf, logger),
		conf,
		logger,
		validate,
		translator,
	)
	env.app = echoapi.NewServer(echoapi.ServerDeps{
		Conf:       conf,
		Logger:     logger,
		FeeSvc:     svc,
		Validate:   validate,
		Translator: translator,
	})
	return env
}

func (env testEnv) token(t *testing.T, school string, isAdmin bool, roles ...string) string {
	t.Helper()
	token, err := echoapi.GenerateToken(env.conf, &echoapi.Claims{
		StandardClaims: jwt.StandardClaims{Subject: "usr-1", Issuer: env.conf.AppName},
		SchoolID:       school,
		Username:       "bursar",
		IsAdmin:        isAdmin,
		Roles:          roles,
	})
	require.NoError(t, err)
	return token
}

func (env testEnv) do(method, path, token string, body ...interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if len(body) > 0 {
		_ = json.NewEncoder(&buf).Encode(body[0])
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.app.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func checkErr(t *testing.T, rec *httptest.ResponseRecorder, wantCode int, want httpErr) {
	t.Helper()
	require.Equal(t, wantCode, rec.Code, rec.Body.String())
	var got httpErr
	decode(t, rec, &got)
	require.Equal(t, want, got)
}

func checkFieldErr(t *testing.T, rec *httptest.ResponseRecorder, field string) {
	t.Helper()
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	var got map[string]string
	decode(t, rec, &got)
	require.Contains(t, got, field)
}
