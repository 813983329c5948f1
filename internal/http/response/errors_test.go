package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	domainagg "github.com/yungbote/escrow-backend/internal/domain/aggregates"
	"github.com/yungbote/escrow-backend/internal/platform/apierr"
)

func render(t *testing.T, err error) (int, ErrorEnvelope) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	Error(c, err)
	var env ErrorEnvelope
	if e := json.Unmarshal(rec.Body.Bytes(), &env); e != nil {
		t.Fatalf("decode: %v", e)
	}
	return rec.Code, env
}

func TestErrorMapsAggregateCodes(t *testing.T) {
	cases := map[domainagg.ErrorCode]int{
		domainagg.CodeValidation:         http.StatusBadRequest,
		domainagg.CodeNotFound:           http.StatusNotFound,
		domainagg.CodeForbidden:          http.StatusForbidden,
		domainagg.CodeConflict:           http.StatusConflict,
		domainagg.CodeInvariantViolation: http.StatusConflict,
		domainagg.CodePreconditionFailed: http.StatusUnprocessableEntity,
		domainagg.CodeRetryable:          http.StatusServiceUnavailable,
	}
	for code, want := range cases {
		status, env := render(t, domainagg.NewError(code, "Op", "boom", nil))
		if status != want || env.Error.Code != string(code) {
			t.Fatalf("%s: got status=%d code=%s", code, status, env.Error.Code)
		}
	}
}

func TestErrorHidesInternalDetail(t *testing.T) {
	status, env := render(t, errors.New("pq: password authentication failed"))
	if status != http.StatusInternalServerError || env.Error.Code != "internal" {
		t.Fatalf("got status=%d code=%s", status, env.Error.Code)
	}
	if strings.Contains(env.Error.Message, "password") {
		t.Fatalf("internal detail leaked: %q", env.Error.Message)
	}
}

func TestErrorPassesAPIErrors(t *testing.T) {
	status, env := render(t, apierr.BadRequest("invalid_order_id", errors.New("bad uuid")))
	if status != http.StatusBadRequest || env.Error.Code != "invalid_order_id" || env.Error.Message != "bad uuid" {
		t.Fatalf("got status=%d env=%+v", status, env)
	}
}
