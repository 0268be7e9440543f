// Package api maps HTTP routes onto the payment pipeline: intake, status
// queries, stats, QR payload generation/parsing and health.
package api

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/evvm/relay/fisher"
	"github.com/evvm/relay/qrpayment"
	"github.com/evvm/relay/relayer"
	"github.com/evvm/relay/sponsor"
	"github.com/evvm/relay/validation"
)

// qrPlaceholderSender stands in for the unknown sender when validating QR
// generation inputs, which carry no sender of their own.
const qrPlaceholderSender = "0x0000000000000000000000000000000000000001"

const qrImageSize = 256

// Config wires the route layer to the core components.
type Config struct {
	Fisher         *fisher.Fisher
	Relayer        *relayer.Relayer
	Gate           *sponsor.Gate
	Codec          *qrpayment.Codec
	RelayerAddress string
	Logger         zerolog.Logger
}

type server struct {
	fisher         *fisher.Fisher
	relayer        *relayer.Relayer
	gate           *sponsor.Gate
	codec          *qrpayment.Codec
	relayerAddress string
	log            zerolog.Logger
}

// NewRouter builds the gin engine with all routes registered.
func NewRouter(cfg Config) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	s := &server{
		fisher:         cfg.Fisher,
		relayer:        cfg.Relayer,
		gate:           cfg.Gate,
		codec:          cfg.Codec,
		relayerAddress: cfg.RelayerAddress,
		log:            cfg.Logger.With().Str("component", "api").Logger(),
	}

	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api")
	api.POST("/payments", s.createPayment)
	api.GET("/payments", s.listPendingPayments)
	api.GET("/payments/:id", s.getPayment)
	api.GET("/stats", s.getStats)
	api.POST("/qr/generate", s.generateQR)
	api.POST("/qr/parse", s.parseQR)
	api.GET("/health", s.health)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}

func (s *server) createPayment(c *gin.Context) {
	var body fisher.Request
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	id, err := s.fisher.Intake(body)
	if err != nil {
		var verr *validation.Error
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Validation failed",
				"details": verr.Error(),
			})
			return
		}
		s.log.Error().Err(err).Msg("intake failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create payment"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"paymentId": id,
		"status":    fisher.StatusPending,
	})
}

func (s *server) getPayment(c *gin.Context) {
	p, err := s.fisher.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Payment not found"})
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *server) listPendingPayments(c *gin.Context) {
	pending := s.fisher.ListPending()
	if pending == nil {
		pending = []*fisher.Payment{}
	}
	c.JSON(http.StatusOK, pending)
}

func (s *server) getStats(c *gin.Context) {
	snapshot, err := s.gate.Snapshot(c.Request.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("sponsorship snapshot failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch stats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"fisher":         s.fisher.Stats(),
		"relayer":        s.relayer.Status(),
		"gasSponsorship": snapshot,
	})
}

type qrGenerateRequest struct {
	To          string `json:"to"`
	Amount      string `json:"amount"`
	Token       string `json:"token"`
	Description string `json:"description"`
}

func (s *server) generateQR(c *gin.Context) {
	var body qrGenerateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	err := validation.ValidatePaymentRequest(
		qrPlaceholderSender, body.To, body.Amount, body.Token,
		s.fisher.SupportedTokens())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "details": err.Error()})
		return
	}

	payload := s.codec.Encode(body.To, body.Amount, body.Token, body.Description)

	png, err := s.codec.RenderPNG(payload, qrImageSize)
	if err != nil {
		s.log.Error().Err(err).Msg("QR rendering failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate QR"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"qrData":      payload,
		"deepLink":    payload,
		"qrImage":     "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
		"description": fmt.Sprintf("Pay %s %s to %s", body.Amount, body.Token, body.To),
	})
}

type qrParseRequest struct {
	QRData string `json:"qrData"`
}

func (s *server) parseQR(c *gin.Context) {
	var body qrParseRequest
	if err := c.ShouldBindJSON(&body); err != nil || body.QRData == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing qrData"})
		return
	}

	decoded, err := s.codec.Decode(body.QRData)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid QR data"})
		return
	}

	// Decode extracts verbatim; the required fields still have to hold up.
	for _, check := range []error{
		validation.ValidateAddress(decoded.To, "to"),
		validation.ValidateAmount(decoded.Amount, "amount"),
		validation.ValidateToken(decoded.Token, "token", s.fisher.SupportedTokens()),
	} {
		if check != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid QR data", "details": check.Error()})
			return
		}
	}

	c.JSON(http.StatusOK, decoded)
}

func (s *server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"relayerAddress": s.relayerAddress,
		"timestamp":      time.Now().UTC().UnixMilli(),
	})
}
