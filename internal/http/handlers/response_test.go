package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestFail_WritesEnvelopeAndAborts(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Header("X-Request-ID", "rid-1"); c.Next() })
	r.GET("/boom", func(c *gin.Context) {
		Fail(c, http.StatusNotFound, ErrKindNotLinked, "no account is linked to this identity")
		c.Set("after", true) // abort must stop the chain before any later writer
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.RequestID != "rid-1" || resp.Error != ErrKindNotLinked || resp.Details == "" {
		t.Fatalf("unexpected envelope: %+v", resp)
	}
}

func TestOk_MergesSuccessFlag(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/fine", func(c *gin.Context) {
		ok(c, http.StatusOK, gin.H{"answer": 42})
	})
	r.GET("/bare", func(c *gin.Context) {
		ok(c, http.StatusOK, nil)
	})

	for _, path := range []string{"/fine", "/bare"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		var body map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("%s: invalid JSON: %v", path, err)
		}
		if body["success"] != true {
			t.Fatalf("%s: success flag missing: %v", path, body)
		}
	}
	// The payload survives the merge.
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fine", nil))
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body["answer"] != float64(42) {
		t.Fatalf("payload lost: %v", body)
	}
}
