// Command relay is a mock device relay. It generates MoMo-style SMS
// traffic and posts it to the gateway webhook, standing in for the
// android phone that forwards operator messages in production.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gikundiro/momo-gateway/pkg/worker"
)

type smsPayload struct {
	Text       string `json:"text"`
	From       string `json:"from"`
	To         string `json:"to"`
	ReceivedAt string `json:"received_at"`
}

// Relay generates SMS and delivers them through a worker pool.
type Relay struct {
	gatewayURL   string
	webhookToken string
	client       *http.Client
	pool         *worker.WorkerManager
	rng          *rand.Rand

	mu           sync.Mutex
	ratePerMin   int
	paymentRatio float64
}

func NewRelay(gatewayURL, webhookToken string, ratePerMin int, paymentRatio float64) *Relay {
	r := &Relay{
		gatewayURL:   gatewayURL,
		webhookToken: webhookToken,
		client:       &http.Client{Timeout: 10 * time.Second},
		pool:         worker.NewWorkerManager(1000, 4, nil),
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		ratePerMin:   ratePerMin,
		paymentRatio: paymentRatio,
	}
	r.pool.SetWorker(r.deliver)
	return r
}

var payerNames = []string{
	"JEAN BAPTISTE N", "MARIE CLAIRE U", "ERIC M", "DIANE I",
	"PATRICK H", "CLAUDINE M", "OLIVIER K", "JOSIANE U",
}

var amounts = []int{500, 1000, 1500, 2000, 3000, 5000, 7000, 10000, 12000, 25000}

var chatter = []string{
	"Your bundle of 1GB expires tomorrow. Dial *345# to renew.",
	"Karibu! Your airtime balance is low.",
	"Meeting moved to 3pm, see you there",
	"Umaze kwakira message nshya kuri WhatsApp",
}

// generate builds either a payment confirmation in the operator's
// format or unrelated chatter, per the configured ratio.
func (r *Relay) generate() smsPayload {
	r.mu.Lock()
	ratio := r.paymentRatio
	r.mu.Unlock()

	from := fmt.Sprintf("+2507%d", 80000000+r.rng.Intn(9999999))
	payload := smsPayload{
		From:       from,
		To:         "+250788000111",
		ReceivedAt: time.Now().Format(time.RFC3339),
	}

	if r.rng.Float64() >= ratio {
		payload.Text = chatter[r.rng.Intn(len(chatter))]
		return payload
	}

	amount := amounts[r.rng.Intn(len(amounts))]
	name := payerNames[r.rng.Intn(len(payerNames))]
	ref := fmt.Sprintf("MP%s.%04d", time.Now().Format("060102"), r.rng.Intn(10000))

	payload.Text = fmt.Sprintf(
		"You have received %d RWF from %s (%s) on your mobile money account. Ref: %s. New balance: %d RWF.",
		amount, name, from, ref, amount+r.rng.Intn(100000))
	return payload
}

// Enqueue hands a payload to the delivery pool.
func (r *Relay) Enqueue(payload smsPayload) {
	r.pool.Enqueue(payload)
}

func (r *Relay) deliver(workerIndex int, job interface{}) {
	payload, ok := job.(smsPayload)
	if !ok {
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal sms")
		return
	}

	req, err := http.NewRequest(http.MethodPost, r.gatewayURL, bytes.NewReader(body))
	if err != nil {
		log.Error().Err(err).Msg("failed to build request")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if r.webhookToken != "" {
		req.Header.Set("X-Webhook-Token", r.webhookToken)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Msg("webhook delivery failed")
		return
	}
	defer resp.Body.Close()

	log.Info().
		Int("worker", workerIndex).
		Int("status", resp.StatusCode).
		Str("from", payload.From).
		Msg("sms delivered to gateway")
}

// run emits traffic at the configured rate until ctx is cancelled.
func (r *Relay) run(ctx context.Context) {
	for {
		r.mu.Lock()
		rate := r.ratePerMin
		r.mu.Unlock()

		if rate <= 0 {
			rate = 1
		}
		interval := time.Minute / time.Duration(rate)

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
			r.Enqueue(r.generate())
		}
	}
}

func (r *Relay) setConfig(ratePerMin *int, paymentRatio *float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ratePerMin != nil && *ratePerMin > 0 {
		r.ratePerMin = *ratePerMin
	}
	if paymentRatio != nil && *paymentRatio >= 0 && *paymentRatio <= 1 {
		r.paymentRatio = *paymentRatio
	}
}

func setupRouter(relay *Relay) *gin.Engine {
	router := gin.Default()

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"relay_id": relayID,
			"time":     time.Now(),
		})
	})

	router.POST("/send", func(c *gin.Context) {
		var req struct {
			Count int `json:"count"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.Count <= 0 {
			req.Count = 1
		}
		for i := 0; i < req.Count; i++ {
			relay.Enqueue(relay.generate())
		}
		c.JSON(http.StatusAccepted, gin.H{"enqueued": req.Count})
	})

	router.PUT("/config", func(c *gin.Context) {
		var req struct {
			RatePerMin   *int     `json:"rate_per_min"`
			PaymentRatio *float64 `json:"payment_ratio"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		relay.setConfig(req.RatePerMin, req.PaymentRatio)
		c.JSON(http.StatusOK, gin.H{"rate_per_min": relay.ratePerMin, "payment_ratio": relay.paymentRatio})
	})

	return router
}

var relayID = "MOCK_RELAY_" + uuid.New().String()[:8]

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	port := getEnv("PORT", "8082")
	gatewayURL := getEnv("GATEWAY_URL", "http://localhost:8080/api/v1/sms/webhook")
	webhookToken := getEnv("WEBHOOK_TOKEN", "")
	ratePerMin := getEnvInt("RATE_PER_MIN", 30)
	paymentRatio := getEnvFloat("PAYMENT_RATIO", 0.8)

	log.Info().
		Str("relay_id", relayID).
		Str("gateway", gatewayURL).
		Int("rate_per_min", ratePerMin).
		Float64("payment_ratio", paymentRatio).
		Msg("Starting mock device relay")

	relay := NewRelay(gatewayURL, webhookToken, ratePerMin, paymentRatio)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := relay.pool.Start(); err != nil {
			log.Error().Err(err).Msg("worker pool stopped")
		}
	}()
	go relay.run(ctx)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      setupRouter(relay),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down relay...")
	cancel()
	relay.pool.Exit()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Relay exited")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var n int
		if _, err := fmt.Sscanf(value, "%d", &n); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}
