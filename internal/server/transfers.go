package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	transferdomain "github.com/namevault/namevault/internal/transfer/domain"
)

func (s *Server) InitiateTransfer(c *gin.Context) {
	custID, ok := customerID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req transferdomain.InitiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	req.FromCustomerID = custID

	transfer, err := s.transferSvc.Initiate(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": transfer})
}

func (s *Server) GetTransferByID(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	transfer, err := s.transferSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": transfer})
}

func (s *Server) ListDomainTransfers(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	transfers, err := s.transferSvc.ListByDomain(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": transfers})
}

func (s *Server) CreateTransferPayment(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	intent, err := s.transferSvc.CreatePayment(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": intent})
}

func (s *Server) CompleteTransfer(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	transfer, err := s.transferSvc.Complete(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": transfer})
}

func (s *Server) CancelTransfer(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	transfer, err := s.transferSvc.Cancel(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": transfer})
}
