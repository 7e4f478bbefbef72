package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func TestMoney(t *testing.T) {
	tests := map[string]string{
		"5000":     "5000.00",
		"1234.5":   "1234.50",
		"0":        "0.00",
		"-2000.25": "-2000.25",
	}
	for in, want := range tests {
		got := Money(decimal.RequireFromString(in))
		if string(got) != want {
			t.Errorf("Money(%s) = %s, want %s", in, got, want)
		}
	}

	b, err := json.Marshal(map[string]interface{}{"amount": Money(decimal.RequireFromString("10"))})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"amount":10.00}` {
		t.Errorf("marshal: %s", b)
	}
}

func TestFailAborts(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Fail(c, http.StatusConflict, CodeAlreadyFinalized, "交易已处于终态")

	if !c.IsAborted() {
		t.Error("context should be aborted")
	}
	if w.Code != http.StatusConflict {
		t.Errorf("status: %d", w.Code)
	}
	var body Response
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Code != CodeAlreadyFinalized || body.Data != nil {
		t.Errorf("body: %+v", body)
	}
}
