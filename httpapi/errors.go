package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	rsvp "github.com/cactusmakesperfect/rsvp"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// requestError is a ValidationError with a message safe to return.
type requestError struct {
	detail string
}

func (e *requestError) Error() string { return e.detail }

func (e *requestError) Unwrap() error { return rsvp.ErrValidation }

// bind reads dst from the body when the request is JSON, otherwise from the
// query string, then validates it. A JSON request with an empty body is read
// from the query string too.
func (s *Server) bind(c *gin.Context, dst any) error {
	fromQuery := c.ContentType() != binding.MIMEJSON
	if !fromQuery {
		err := c.ShouldBindJSON(dst)
		switch {
		case errors.Is(err, io.EOF):
			fromQuery = true
		case err != nil:
			return &requestError{detail: "Malformed JSON body"}
		}
	}
	if fromQuery {
		if err := c.ShouldBindQuery(dst); err != nil {
			return &requestError{detail: "Malformed query string"}
		}
	}

	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field())
			}
			return &requestError{detail: fmt.Sprintf("Missing or invalid field: %s", strings.Join(fields, ", "))}
		}
		return &requestError{detail: "Invalid request"}
	}
	return nil
}

func (s *Server) writeError(c *gin.Context, err error) {
	s.writeErrorDetail(c, err, "")
}

// writeErrorDetail maps err to a status and JSON body. unauthorizedDetail
// replaces the default 401 message when set.
func (s *Server) writeErrorDetail(c *gin.Context, err error, unauthorizedDetail string) {
	status, resp := errorFor(err)
	if status == http.StatusUnauthorized && unauthorizedDetail != "" {
		resp.Detail = unauthorizedDetail
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	c.AbortWithStatusJSON(status, resp)
}

func errorFor(err error) (int, errorResponse) {
	switch {
	case errors.Is(err, rsvp.ErrUnauthorized):
		return http.StatusUnauthorized, errorResponse{Error: "unauthorized", Detail: "Unauthorized"}
	case errors.Is(err, rsvp.ErrValidation):
		detail := "Invalid request"
		var re *requestError
		if errors.As(err, &re) {
			detail = re.detail
		}
		return http.StatusUnprocessableEntity, errorResponse{Error: "validation_error", Detail: detail}
	case errors.Is(err, rsvp.ErrRateLimited):
		return http.StatusTooManyRequests, errorResponse{Error: "rate_limited", Detail: "Too many requests"}
	case errors.Is(err, rsvp.ErrDeliveryFailed):
		return http.StatusBadGateway, errorResponse{Error: "delivery_failed", Detail: "Could not send login code"}
	case errors.Is(err, rsvp.ErrLoginUnavailable), errors.Is(err, rsvp.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, errorResponse{Error: "unavailable", Detail: "Service temporarily unavailable"}
	default:
		return http.StatusInternalServerError, errorResponse{Error: "internal_error", Detail: "Internal server error"}
	}
}
