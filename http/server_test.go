package http

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/awantoch/loanscore/config"
	"github.com/awantoch/loanscore/core"
	"github.com/awantoch/loanscore/model"
	"github.com/awantoch/loanscore/pipeline"
	"github.com/awantoch/loanscore/storage"
	"github.com/awantoch/loanscore/testutil"
)

const approvedBody = `{
	"bank_transaction_average": 50000,
	"social_media_screentime": 3.5,
	"ecommerce_screen_time": 1.2,
	"cibil_score": 750,
	"geographical_movement": 10,
	"social_media_reach": 2000
}`

func fixtureService(t *testing.T) *core.Service {
	t.Helper()
	cfg := &config.Config{Artifact: config.ArtifactConfig{URL: testutil.StackedArtifact(t, false)}}
	svc, err := core.NewServiceFromConfig(context.Background(), cfg)
	require.NoError(t, err)
	return svc
}

func failingService(err error) *core.Service {
	return core.NewServiceFunc(func(context.Context) (pipeline.Pipeline, error) { return nil, err })
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPredict_Approved(t *testing.T) {
	h := NewHandler(fixtureService(t), Options{})
	rec := do(t, h, http.MethodPost, "/predict", approvedBody)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var pred model.Prediction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pred))
	assert.Equal(t, 1, pred.Prediction)
	assert.InDelta(t, 0.8639, pred.ApprovalProbability, 1e-3)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.Len(t, raw, 2)
	assert.Contains(t, raw, "prediction")
	assert.Contains(t, raw, "approval_probability")
}

func TestPredict_Idempotent(t *testing.T) {
	h := NewHandler(fixtureService(t), Options{})
	first := do(t, h, http.MethodPost, "/predict", approvedBody).Body.String()
	for i := 0; i < 3; i++ {
		assert.Equal(t, first, do(t, h, http.MethodPost, "/predict", approvedBody).Body.String())
	}
}

func TestPredict_NumericStringsCoerced(t *testing.T) {
	h := NewHandler(fixtureService(t), Options{})
	body := `{"bank_transaction_average":"50000","social_media_screentime":"3.5","ecommerce_screen_time":1.2,
		"cibil_score":"750","geographical_movement":10,"social_media_reach":2000.0,"extra":"ignored"}`
	rec := do(t, h, http.MethodPost, "/predict", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, do(t, h, http.MethodPost, "/predict", approvedBody).Body.String(), rec.Body.String())
}

func TestPredict_ValidationErrors(t *testing.T) {
	h := NewHandler(fixtureService(t), Options{})

	rec := do(t, h, http.MethodPost, "/predict", `{"bank_transaction_average": 50000}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp struct {
		Detail []ValidationError `json:"detail"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Detail, 5)
	for _, d := range resp.Detail {
		assert.Equal(t, "missing", d.Type)
		assert.Equal(t, "body", d.Loc[0])
	}
	assert.Equal(t, "social_media_screentime", resp.Detail[0].Loc[1])
}

func TestPredict_ValidationErrorTypes(t *testing.T) {
	h := NewHandler(fixtureService(t), Options{})
	cases := []struct {
		name  string
		body  string
		field string
		typ   string
	}{
		{"float string", replaceField("bank_transaction_average", `"lots"`), "bank_transaction_average", "float_parsing"},
		{"float bool", replaceField("social_media_screentime", `true`), "social_media_screentime", "float_type"},
		{"int fraction", replaceField("cibil_score", `750.5`), "cibil_score", "int_from_float"},
		{"int string", replaceField("social_media_reach", `"2k"`), "social_media_reach", "int_parsing"},
		{"int null", replaceField("cibil_score", `null`), "cibil_score", "int_type"},
		{"not finite", replaceField("geographical_movement", `"NaN"`), "geographical_movement", "finite_number"},
		{"int overflow", replaceField("cibil_score", `9223372036854775808`), "cibil_score", "int_parsing"},
		{"int overflow exponent", replaceField("social_media_reach", `9.223372036854775807e18`), "social_media_reach", "int_parsing"},
		{"int underflow exponent", replaceField("social_media_reach", `-1e19`), "social_media_reach", "int_parsing"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/predict", tc.body)
			require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
			var resp struct {
				Detail []ValidationError `json:"detail"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			require.Len(t, resp.Detail, 1)
			assert.Equal(t, tc.typ, resp.Detail[0].Type)
			assert.Equal(t, []any{"body", tc.field}, resp.Detail[0].Loc)
		})
	}
}

func TestDecodeUserInput_IntegerBounds(t *testing.T) {
	in, err := DecodeUserInput([]byte(replaceField("cibil_score", `9223372036854775807`)))
	require.NoError(t, err)
	assert.Equal(t, int64(9223372036854775807), in.CIBILScore)

	in, err = DecodeUserInput([]byte(replaceField("cibil_score", `-9223372036854775808`)))
	require.NoError(t, err)
	assert.Equal(t, int64(-9223372036854775808), in.CIBILScore)

	in, err = DecodeUserInput([]byte(replaceField("social_media_reach", `4e18`)))
	require.NoError(t, err)
	assert.Equal(t, int64(4000000000000000000), in.SocialMediaReach)

	_, err = DecodeUserInput([]byte(replaceField("cibil_score", `9223372036854775808`)))
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "int_parsing", verrs[0].Type)
}

func TestDecodeUserInput_AllFields(t *testing.T) {
	in, err := DecodeUserInput([]byte(`{
		"bank_transaction_average": "50000",
		"social_media_screentime": 3.5,
		"ecommerce_screen_time": 1.2,
		"cibil_score": "750",
		"geographical_movement": 10,
		"social_media_reach": 2000.0,
		"extra": true
	}`))
	require.NoError(t, err)
	assert.Equal(t, testutil.ApprovedInput(), in)
}

func replaceField(field, value string) string {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(approvedBody), &doc); err != nil {
		panic(err)
	}
	doc[field] = json.RawMessage(value)
	out, err := json.Marshal(doc)
	if err != nil {
		panic(err)
	}
	return string(out)
}

func TestPredict_BadBodies(t *testing.T) {
	h := NewHandler(fixtureService(t), Options{})
	cases := map[string]string{
		"invalid json": `{"bank_transaction_average":`,
		"array":        `[1,2,3]`,
		"trailing":     approvedBody + `{}`,
		"empty":        ``,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/predict", body)
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			assert.Contains(t, rec.Body.String(), `"detail"`)
		})
	}
}

func TestPredict_BodyTooLarge(t *testing.T) {
	h := NewHandler(fixtureService(t), Options{MaxBodyBytes: 16})
	rec := do(t, h, http.MethodPost, "/predict", approvedBody)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestPredict_MethodNotAllowed(t *testing.T) {
	h := NewHandler(fixtureService(t), Options{})
	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		rec := do(t, h, method, "/predict", "")
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, method)
		assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
	}
	rec := do(t, h, http.MethodPost, "/schema", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestPredict_InternalErrorIsGeneric(t *testing.T) {
	h := NewHandler(failingService(errors.New("secret bucket path")), Options{})
	rec := do(t, h, http.MethodPost, "/predict", approvedBody)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"detail":"Internal Server Error"}`, rec.Body.String())
}

func TestHealthz(t *testing.T) {
	rec := do(t, NewHandler(fixtureService(t), Options{}), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())

	rec = do(t, NewHandler(failingService(errors.New("no artifact")), Options{}), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSchemaAndInfo(t *testing.T) {
	h := NewHandler(fixtureService(t), Options{})

	rec := do(t, h, http.MethodGet, "/schema", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var cols []map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cols))
	require.Len(t, cols, 6)
	assert.Equal(t, "bank_transaction_average", cols[0]["field"])
	assert.Equal(t, "Bank transaction average(per month)", cols[0]["column"])

	rec = do(t, h, http.MethodGet, "/info", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var info pipeline.Info
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, 6, info.NumFeatures)
	assert.Equal(t, "stacked_ensemble_pipeline", info.Name)
}

func TestMetricsAndNotFound(t *testing.T) {
	h := NewHandler(fixtureService(t), Options{})
	do(t, h, http.MethodPost, "/predict", approvedBody)

	rec := do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "loanscore_predictions_total")

	rec = do(t, h, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequestIDPropagated(t *testing.T) {
	h := NewHandler(fixtureService(t), Options{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestServer_ServeAndShutdown(t *testing.T) {
	cfg := &config.Config{}
	cfg.ApplyDefaults()
	srv := NewServer(cfg, fixtureService(t))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Post("http://"+ln.Addr().String()+"/predict", "application/json", strings.NewReader(approvedBody))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestStartServer_BadArtifact(t *testing.T) {
	cfg := &config.Config{Artifact: config.ArtifactConfig{URL: "/nonexistent/pipeline.json"}}
	cfg.ApplyDefaults()
	err := StartServer(context.Background(), cfg)
	assert.Error(t, err)
}

func TestStartServer_InvalidAddress(t *testing.T) {
	cfg := &config.Config{
		Artifact: config.ArtifactConfig{URL: testutil.StackedArtifact(t, false)},
		HTTP:     config.HTTPConfig{Host: "invalid", Port: -1},
	}
	cfg.ApplyDefaults()
	assert.Error(t, StartServer(context.Background(), cfg))
}

func auditedService(t *testing.T) *core.Service {
	t.Helper()
	resident := core.NewResident(config.ArtifactConfig{URL: testutil.StackedArtifact(t, false)})
	return core.NewService(resident, core.WithStorage(storage.NewMemoryStorage(10)))
}

func TestDecisions_AuditTrail(t *testing.T) {
	h := NewHandler(auditedService(t), Options{})

	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(approvedBody))
	req.Header.Set("X-Request-ID", "audit-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/decisions?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var list []model.Decision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "audit-1", list[0].RequestID)
	assert.Equal(t, "http", list[0].Channel)
	assert.Equal(t, 1, list[0].Prediction)

	rec = do(t, h, http.MethodGet, "/decisions/"+list[0].ID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var one model.Decision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &one))
	assert.Equal(t, list[0].ID, one.ID)

	rec = do(t, h, http.MethodGet, "/decisions/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"detail":"Decision not found"}`, rec.Body.String())
}

func TestDecisions_InvalidArguments(t *testing.T) {
	h := NewHandler(auditedService(t), Options{})

	rec := do(t, h, http.MethodGet, "/decisions?limit=lots", "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.JSONEq(t, `{"detail":[{"loc":["query","limit"],"msg":"Input should be a valid integer, unable to parse string as an integer","type":"int_parsing","input":"lots"}]}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/decisions/not-a-uuid", "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.JSONEq(t, `{"detail":[{"loc":["path","id"],"msg":"Input should be a valid UUID","type":"uuid_parsing","input":"not-a-uuid"}]}`, rec.Body.String())
}

func TestDecisions_AuditDisabled(t *testing.T) {
	h := NewHandler(fixtureService(t), Options{})
	rec := do(t, h, http.MethodGet, "/decisions", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"detail":"Decision audit trail is disabled"}`, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/decisions", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
