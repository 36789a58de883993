// Package handlers regroupe les helpers HTTP communs aux handlers gin.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"marketplace_back_end/internal/models"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	}
}

// Detail écrit {"detail": msg}.
func Detail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"detail": msg})
}

// Field écrit une erreur de validation sur un seul champ.
func Field(c *gin.Context, field, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{field: []string{msg}})
}

func NotFound(c *gin.Context) {
	Detail(c, http.StatusNotFound, "Not found.")
}

func Forbidden(c *gin.Context) {
	Detail(c, http.StatusForbidden, "You do not have permission to perform this action.")
}

// Internal journalise l'erreur et renvoie un 500 générique.
func Internal(c *gin.Context, logger *zap.Logger, err error) {
	_ = c.Error(err)
	logger.Error("❌ Erreur interne", zap.String("path", c.FullPath()), zap.Error(err))
	Detail(c, http.StatusInternalServerError, "A server error occurred.")
}

// BindJSON décode et valide le corps. En cas d'échec la réponse 400 est
// déjà écrite et BindJSON renvoie false.
func BindJSON(c *gin.Context, dst any) bool {
	err := c.ShouldBindBodyWith(dst, binding.JSON)
	if err == nil {
		return true
	}

	var raw map[string]json.RawMessage
	if body, ok := c.Get(gin.BodyBytesKey); ok {
		if b, ok := body.([]byte); ok {
			_ = json.Unmarshal(b, &raw)
		}
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string][]string, len(verrs))
		for _, fe := range verrs {
			name := fe.Field()
			fields[name] = append(fields[name], message(fe, raw))
		}
		c.JSON(http.StatusBadRequest, fields)
		return false
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		Field(c, typeErr.Field, "Incorrect type. Expected "+typeErr.Type.String()+".")
		return false
	}
	Detail(c, http.StatusBadRequest, "Malformed request body.")
	return false
}

func message(fe validator.FieldError, raw map[string]json.RawMessage) string {
	switch fe.Tag() {
	case "required":
		if v, ok := raw[fe.Field()]; ok && string(v) != "null" {
			return "This field may not be blank."
		}
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "e164":
		return "Enter a valid phone number."
	case "uuid", "uuid4":
		return "Must be a valid UUID."
	case "oneof":
		return fmt.Sprintf("%q is not a valid choice.", fmt.Sprint(fe.Value()))
	case "eqfield":
		return "Passwords do not match."
	case "min", "gte":
		if fe.Kind() == reflect.String {
			return "Ensure this field has at least " + fe.Param() + " characters."
		}
		return "Ensure this value is greater than or equal to " + fe.Param() + "."
	case "max", "lte":
		if fe.Kind() == reflect.String {
			return "Ensure this field has no more than " + fe.Param() + " characters."
		}
		return "Ensure this value is less than or equal to " + fe.Param() + "."
	}
	return "Invalid value."
}

// UUIDParam lit un paramètre de chemin ; un identifiant invalide donne 404.
func UUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		NotFound(c)
		return uuid.Nil, false
	}
	return id, true
}

// PageParam lit ?page= (1 par défaut).
func PageParam(c *gin.Context, size int) (models.Page, bool) {
	number := 1
	if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			Detail(c, http.StatusNotFound, "Invalid page.")
			return models.Page{}, false
		}
		number = n
	}
	return models.Page{Number: number, Size: size}, true
}

// WritePage écrit une liste paginée ; une page vide au-delà de la première donne 404.
func WritePage[T any](c *gin.Context, res models.PageResult[T], page models.Page) {
	if page.Number > 1 && len(res.Results) == 0 {
		Detail(c, http.StatusNotFound, "Invalid page.")
		return
	}
	c.JSON(http.StatusOK, res)
}
