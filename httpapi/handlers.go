package httpapi

import (
	"net/http"
	"time"

	rsvp "github.com/cactusmakesperfect/rsvp"
	"github.com/cactusmakesperfect/rsvp/middleware"
	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Email string `json:"email" form:"email" validate:"required"`
}

// verifyRequest fields must be present but may be empty; the service decides
// what an empty value means.
type verifyRequest struct {
	Token *string `json:"token" form:"token" validate:"required"`
	Email *string `json:"email" form:"email" validate:"required"`
	Code  *string `json:"code" form:"code" validate:"required"`
}

type submitRequest struct {
	Status       string `json:"status" form:"status" validate:"required"`
	DietaryNotes string `json:"dietary_notes" form:"dietary_notes"`
	SongRequest  string `json:"song_request" form:"song_request"`
}

type submitResponse struct {
	OK bool `json:"ok"`
	rsvp.Record
}

type healthResponse struct {
	OK bool   `json:"ok"`
	At string `json:"at"`
}

func (s *Server) health(c *gin.Context) {
	resp := healthResponse{OK: true, At: s.now().UTC().Format(time.RFC3339)}
	if err := s.svc.Ping(c.Request.Context()); err != nil {
		resp.OK = false
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) requestLogin(c *gin.Context) {
	var req loginRequest
	if err := s.bind(c, &req); err != nil {
		s.writeError(c, err)
		return
	}

	ticket, err := s.svc.RequestLogin(c.Request.Context(), req.Email)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

func (s *Server) verify(c *gin.Context) {
	var req verifyRequest
	if err := s.bind(c, &req); err != nil {
		s.writeError(c, err)
		return
	}

	result, err := s.svc.Verify(c.Request.Context(), *req.Token, *req.Email, *req.Code)
	if err != nil {
		s.writeErrorDetail(c, err, "Invalid code")
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) getRSVP(c *gin.Context) {
	id, ok := middleware.IdentityFromContext(c)
	if !ok {
		s.writeError(c, rsvp.ErrUnauthorized)
		return
	}

	record, err := s.svc.GetRSVP(c.Request.Context(), id.Subject)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (s *Server) submitRSVP(c *gin.Context) {
	id, ok := middleware.IdentityFromContext(c)
	if !ok {
		s.writeError(c, rsvp.ErrUnauthorized)
		return
	}

	var req submitRequest
	if err := s.bind(c, &req); err != nil {
		s.writeError(c, err)
		return
	}

	record, err := s.svc.SubmitRSVP(c.Request.Context(), id.Subject, rsvp.Record{
		Status:       rsvp.Status(req.Status),
		DietaryNotes: req.DietaryNotes,
		SongRequest:  req.SongRequest,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, submitResponse{OK: true, Record: record})
}
