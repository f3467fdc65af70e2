package validator

import (
	"net/http"
	"testing"

	"storefront/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type shippingReq struct {
	FullName string `json:"full_name" validate:"required,max=100"`
	Phone    string `json:"phone" validate:"required,phone"`
	Method   string `json:"payment_method" validate:"omitempty,oneof=cod vnpay"`
}

func TestValidate(t *testing.T) {
	v := New()

	cases := []struct {
		name string
		in   shippingReq
		msg  string
	}{
		{name: "ok", in: shippingReq{FullName: "A", Phone: "+84 90-123"}},
		{name: "必須", in: shippingReq{Phone: "0901"}, msg: "full_name is required"},
		{name: "電話番号に文字", in: shippingReq{FullName: "A", Phone: "090abc"}, msg: "phone must contain only digits, spaces, + or -"},
		{name: "oneof", in: shippingReq{FullName: "A", Phone: "1", Method: "cash"}, msg: "payment_method must be one of [cod vnpay]"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Validate(tc.in)
			if tc.msg == "" {
				assert.NoError(t, err)
				return
			}
			he, ok := usecase.AsHTTPError(err)
			require.True(t, ok)
			assert.Equal(t, http.StatusBadRequest, he.Status)
			assert.Equal(t, tc.msg, he.Message)
		})
	}
}
