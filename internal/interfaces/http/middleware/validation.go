package middleware

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/crosswms/loadorder/internal/domain/printing"
	"github.com/crosswms/loadorder/internal/interfaces/http/dto"
)

// DocumentTypeTag is the binding tag accepting a selectable layout
const DocumentTypeTag = "document_type"

var setupOnce sync.Once

// SetupValidator registers the dialog binding rules on gin's validator and
// makes rejected fields report their JSON names. Safe to call repeatedly.
func SetupValidator() {
	setupOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(jsonFieldName)
		_ = v.RegisterValidation(DocumentTypeTag, func(fl validator.FieldLevel) bool {
			return printing.DocumentType(fl.Field().String()).IsSelectable()
		})
	})
}

func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

// HandleValidationError answers 400 listing each rejected field. A body that
// is not JSON at all gets the same code with no details.
func HandleValidationError(c *gin.Context, err error) {
	var details []dto.ValidationDetail
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			details = append(details, dto.ValidationDetail{Field: fe.Field(), Message: fieldMessage(fe)})
		}
	}
	c.AbortWithStatusJSON(http.StatusBadRequest,
		dto.NewValidationErrorResponse("Request validation failed", GetRequestID(c), details))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case DocumentTypeTag:
		types := printing.SelectableDocumentTypes()
		names := make([]string, len(types))
		for i, t := range types {
			names[i] = t.String()
		}
		return "Must be one of: " + strings.Join(names, " ")
	case "oneof":
		return "Must be one of: " + fe.Param()
	default:
		return "Invalid value"
	}
}
