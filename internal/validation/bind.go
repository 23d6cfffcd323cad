package validation

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
)

// BindJSON decodes the body into out. On failure it writes a 400 with
// {message: msg} and returns the error so the handler can short-circuit.
func BindJSON(c *gin.Context, out interface{}, msg string) error {
	if err := c.ShouldBindJSON(out); err != nil {
		abort(c, msg)
		return err
	}
	return nil
}

// BindAndValidate binds JSON body into out and runs validation. Either
// failure writes a 400 with {message: msg}.
func BindAndValidate(c *gin.Context, out interface{}, v *validatorv10.Validate, msg string) error {
	if err := BindJSON(c, out, msg); err != nil {
		return err
	}
	if err := v.Struct(out); err != nil {
		abort(c, msg)
		return err
	}
	return nil
}

func abort(c *gin.Context, msg string) {
	body, _ := json.Marshal(gin.H{"message": msg})
	c.Data(http.StatusBadRequest, "application/json", body)
	c.Abort()
}
