package handler

import (
	"errors"
	"net/http"
	"reflect"

	"github.com/UdarEdge/HoyPecamos-sub002/internal/apierror"
	"github.com/UdarEdge/HoyPecamos-sub002/internal/ledger"
	"github.com/UdarEdge/HoyPecamos-sub002/internal/repository"
	"github.com/UdarEdge/HoyPecamos-sub002/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func init() {
	// Register decimal.Decimal as a numeric type so that validator tags like
	// min=0, gt=0, required work without panicking ("Bad field type decimal.Decimal").
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if validation fails;
// the caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("JSON invalido: "+err.Error()))
		return false
	}
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
			return false
		}
		fields := make(map[string]string)
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

// ledgerStatus maps domain errors to an HTTP status and a stable error code.
var ledgerStatus = []struct {
	err    error
	status int
	code   string
}{
	{ledger.ErrAlreadyOpen, http.StatusConflict, "already_open"},
	{ledger.ErrNoOpenSession, http.StatusConflict, "no_open_session"},
	{ledger.ErrNoPendingClose, http.StatusConflict, "no_pending_close"},
	{ledger.ErrSessionClosed, http.StatusConflict, "session_closed"},
	{ledger.ErrInvalidAmount, http.StatusUnprocessableEntity, "invalid_amount"},
	{ledger.ErrNoteRequired, http.StatusUnprocessableEntity, "note_required"},
	{ledger.ErrInsufficientBalance, http.StatusUnprocessableEntity, "insufficient_balance"},
	{ledger.ErrInvalidChannel, http.StatusUnprocessableEntity, "invalid_channel"},
	{ledger.ErrDuplicateDenomination, http.StatusUnprocessableEntity, "duplicate_denomination"},
	{ledger.ErrInvalidDenomination, http.StatusUnprocessableEntity, "invalid_denomination"},
	{ledger.ErrUnauthorized, http.StatusForbidden, "unauthorized"},
	{repository.ErrNotFound, http.StatusNotFound, "not_found"},
	{service.ErrPersist, http.StatusServiceUnavailable, "persist_failed"},
}

// respondError writes the error envelope for err. Unknown errors are left to
// the ErrorHandler middleware so internals never reach the client.
func respondError(c *gin.Context, err error) {
	for _, m := range ledgerStatus {
		if errors.Is(err, m.err) {
			c.JSON(m.status, apierror.WithCode(m.code, err.Error()))
			return
		}
	}
	_ = c.Error(err)
}
