package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmarsh/guardops-api-go/pkg/scheduling"
)

func validateRequest(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := &Handler{}
	r := gin.New()
	r.POST("/validate", h.ValidateInput)

	req := httptest.NewRequest(http.MethodPost, "/validate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestValidateInputAcceptsWellFormedBatch(t *testing.T) {
	w := validateRequest(t, `{"assignments":[
		{"shift_id":"s1","guard_id":"g1"},
		{"shift_id":"s2","guard_id":"g1"}
	]}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"valid":true`)
	assert.Contains(t, w.Body.String(), `"assignment_count":2`)
	assert.Contains(t, w.Body.String(), `"guard_count":1`)
}

func TestValidateInputRejectsEmptyBatch(t *testing.T) {
	w := validateRequest(t, `{"assignments":[]}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"valid":false`)
}

func TestValidateInputRejectsDuplicateShift(t *testing.T) {
	w := validateRequest(t, `{"assignments":[
		{"shift_id":"s1","guard_id":"g1"},
		{"shift_id":"s1","guard_id":"g2"}
	]}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"valid":false`)
	assert.Contains(t, w.Body.String(), "duplicate shift")
}

func TestValidateInputRejectsMissingIDs(t *testing.T) {
	w := validateRequest(t, `{"assignments":[{"shift_id":"","guard_id":"g1"}]}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"valid":false`)
}

func TestStatusForMapsErrorCodes(t *testing.T) {
	cases := map[scheduling.ErrorCode]int{
		scheduling.CodeShiftNotFound:            http.StatusNotFound,
		scheduling.CodeAssignmentNotFound:       http.StatusNotFound,
		scheduling.CodeAssignmentExists:         http.StatusConflict,
		scheduling.CodeGuardNotEligible:         http.StatusConflict,
		scheduling.CodeConflictOverrideRequired: http.StatusConflict,
		scheduling.CodeInvalidAssignmentStatus:  http.StatusConflict,
		scheduling.CodeResponseDeadlinePassed:   http.StatusConflict,
		scheduling.CodeValidation:               http.StatusBadRequest,
		scheduling.CodeBatchOperationFailed:     http.StatusBadRequest,
		scheduling.CodeDatabaseError:            http.StatusInternalServerError,
		scheduling.CodeServiceError:             http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, statusFor(code), "code %s", code)
	}
}
