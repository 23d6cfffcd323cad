package validation

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-flashsale-orderflow/internal/orders"
)

func TestPurchaseRequest_Valid(t *testing.T) {
	v := New()
	req := PurchaseRequest{ProductID: "p1", UserID: "u1", Quantity: 2}
	if err := v.Struct(req); err != nil {
		t.Fatalf("expected valid, got error: %v", err)
	}
}

func TestPurchaseRequest_ZeroQuantityIsMissing(t *testing.T) {
	v := New()
	err := v.Struct(PurchaseRequest{ProductID: "p1", UserID: "u1"})
	if err == nil {
		t.Fatal("expected validation error for zero quantity, got nil")
	}
	fields := FieldErrors(err)
	if fields["quantity"] != "required" {
		t.Fatalf("expected quantity/required, got %v", fields)
	}
}

func TestProcessOrderRequest_Valid(t *testing.T) {
	v := New()
	req := ProcessOrderRequest{
		OrderID:       "o1",
		UserID:        "u1",
		Items:         []orders.LineItem{{ProductID: "p1", Quantity: 1, Price: 10}},
		TotalAmount:   10,
		PaymentMethod: "card",
	}
	if err := v.Struct(req); err != nil {
		t.Fatalf("expected valid, got error: %v", err)
	}
}

func TestProcessOrderRequest_MissingFields(t *testing.T) {
	v := New()
	err := v.Struct(ProcessOrderRequest{Items: []orders.LineItem{}})
	if err == nil {
		t.Fatal("expected validation errors for missing required fields, got nil")
	}
	fields := FieldErrors(err)
	if _, ok := fields["userId"]; !ok {
		t.Fatalf("expected userId error, got %v", fields)
	}
	if _, ok := fields["items"]; !ok {
		t.Fatalf("expected items error, got %v", fields)
	}
}

func TestBindAndValidate_WritesMessage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := map[string]string{
		"undecodable": `{"productId":`,
		"missing":     `{"productId":"p1","userId":"u1"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
			c.Request.Header.Set("Content-Type", "application/json")

			var req PurchaseRequest
			if err := BindAndValidate(c, &req, New(), "bad input"); err == nil {
				t.Fatalf("expected error")
			}
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Fatalf("unexpected content type %q", ct)
			}
			if w.Body.String() != `{"message":"bad input"}` {
				t.Fatalf("unexpected body %s", w.Body.String())
			}
		})
	}
}
