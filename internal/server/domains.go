package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	domainsdomain "github.com/namevault/namevault/internal/domains/domain"
)

func (s *Server) ListDomains(c *gin.Context) {
	if fqdn := strings.TrimSpace(c.Query("fqdn")); fqdn != "" {
		d, err := s.domainSvc.GetByFQDN(c.Request.Context(), fqdn)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": []domainsdomain.Domain{*d}})
		return
	}

	raw := strings.TrimSpace(c.GetHeader(headerCustomerID))
	if raw == "" {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	custID, err := parseHeaderID(raw)
	if err != nil {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	domains, err := s.domainSvc.ListByCustomer(c.Request.Context(), custID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": domains})
}

func (s *Server) GetDomainByID(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	d, err := s.domainSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": d})
}

func (s *Server) ListDomainEvents(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	events, err := s.domainSvc.ListEvents(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": events})
}

type renewDomainRequest struct {
	ExtendDays int `json:"extend_days"`
}

// RenewDomain is the manual renewal path used by support. Paid renewals come
// in through the capture handler instead.
func (s *Server) RenewDomain(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req renewDomainRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
	}
	if req.ExtendDays <= 0 {
		req.ExtendDays = 365
	}

	d, err := s.domainSvc.Renew(c.Request.Context(), id, req.ExtendDays, domainsdomain.ActorHuman)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": d})
}

type holdDomainRequest struct {
	Hold string `json:"hold"`
	Note string `json:"note"`
}

func (s *Server) HoldDomain(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req holdDomainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	hold := domainsdomain.Status(strings.TrimSpace(req.Hold))
	switch hold {
	case domainsdomain.StatusDisputeHold, domainsdomain.StatusFraudHold, domainsdomain.StatusUnpaidHold:
	default:
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.domainSvc.Hold(c.Request.Context(), id, hold, domainsdomain.ActorHuman, req.Note); err != nil {
		AbortWithError(c, err)
		return
	}

	d, err := s.domainSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": d})
}

type restoreDomainRequest struct {
	Note string `json:"note"`
}

// RestoreDomain lifts an external hold back to active. Only a human operator
// may clear a hold.
func (s *Server) RestoreDomain(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req restoreDomainRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
	}

	d, err := s.domainSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	moved, err := s.domainSvc.Transition(c.Request.Context(), domainsdomain.TransitionRequest{
		DomainID: id,
		From:     d.Status,
		To:       domainsdomain.StatusActive,
		Actor:    domainsdomain.ActorHuman,
		Note:     req.Note,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !moved {
		AbortWithError(c, domainsdomain.ErrInvalidTransition)
		return
	}

	d, err = s.domainSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": d})
}
