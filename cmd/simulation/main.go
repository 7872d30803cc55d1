package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/tickertap/tickertap-api/internal/accounts"
	"github.com/tickertap/tickertap-api/internal/auth"
	"github.com/tickertap/tickertap-api/internal/database"
	"github.com/tickertap/tickertap-api/internal/market"
	"github.com/tickertap/tickertap-api/internal/orders"
	"github.com/tickertap/tickertap-api/internal/portfolio"
	"github.com/tickertap/tickertap-api/internal/transactions"
	"github.com/tickertap/tickertap-api/pkg/metrics"
	"github.com/tickertap/tickertap-api/pkg/middleware"
)

const (
	minOrders      = 15
	maxOrders      = 100
	numWorkers     = 5
	serverAddress  = "http://localhost:8080"
	initialDeposit = 250000
)

var (
	symbols = []string{"AAPL", "GOOGL", "MSFT", "AMZN", "META", "TSLA", "NVDA"}
	sides   = []string{"buy", "sell"}
)

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	// Configure pretty logging
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

// addDuration records a new duration measurement for the route
func (rs *routeStats) addDuration(d time.Duration) {
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
}

// calculate computes performance statistics from recorded durations
// Returns min, max, mean, median, 95th percentile, and 99th percentile durations
func (rs *routeStats) calculate() (min, max, mean, median, p95, p99 time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0, 0
	}

	// Sort durations for percentile calculations
	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	// Calculate mean
	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))

	// Calculate median
	median = rs.durations[len(rs.durations)/2]

	// Calculate percentiles
	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p99idx := int(math.Ceil(float64(len(rs.durations))*0.99)) - 1
	p95 = rs.durations[p95idx]
	p99 = rs.durations[p99idx]

	return
}

// simulationClient handles HTTP communication with the brokerage API. Each
// client acts as an independent investor with its own user, account and cash.
type simulationClient struct {
	baseURL    string
	authToken  string
	accountID  string
	securities map[string]string // symbol -> security ID
	client     *http.Client
	stats      map[string]*routeStats
	statsMu    sync.Mutex
}

// newSimulationClient registers a fresh investor, opens a brokerage account
// and funds it with the initial deposit
func newSimulationClient(workerID int) (*simulationClient, error) {
	// Create HTTP client with timeout
	client := &http.Client{
		Timeout: 10 * time.Second,
	}

	sc := &simulationClient{
		baseURL: serverAddress,
		client:  client,
		stats: map[string]*routeStats{
			"auth":      {name: "Authentication"},
			"account":   {name: "Create Account"},
			"deposit":   {name: "Deposit"},
			"order":     {name: "Place Order"},
			"execute":   {name: "Execute Order"},
			"cancel":    {name: "Cancel Order"},
			"portfolio": {name: "Portfolio Summary"},
		},
	}

	// Register and authenticate
	token, err := sc.register(workerID)
	if err != nil {
		return nil, fmt.Errorf("failed to register: %w", err)
	}
	sc.authToken = token

	// Open a brokerage account
	accountID, err := sc.createAccount()
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	sc.accountID = accountID

	// Fund it
	if err := sc.deposit(decimal.NewFromInt(initialDeposit)); err != nil {
		return nil, fmt.Errorf("failed to fund account: %w", err)
	}

	// Resolve the tradeable universe
	if err := sc.loadSecurities(); err != nil {
		return nil, fmt.Errorf("failed to load securities: %w", err)
	}

	return sc, nil
}

// loadSecurities builds the symbol to security ID map from the API
func (sc *simulationClient) loadSecurities() error {
	var result struct {
		Success bool `json:"success"`
		Data    []struct {
			SecurityID string `json:"security_id"`
			Symbol     string `json:"symbol"`
		} `json:"data"`
	}
	if err := sc.doJSON("GET", "/api/v1/market/symbols", nil, &result); err != nil {
		return err
	}
	sc.securities = make(map[string]string, len(result.Data))
	for _, s := range result.Data {
		sc.securities[s.Symbol] = s.SecurityID
	}
	return nil
}

// track records a call duration for the named route
func (sc *simulationClient) track(route string, start time.Time, failed bool) {
	sc.statsMu.Lock()
	defer sc.statsMu.Unlock()
	sc.stats[route].addDuration(time.Since(start))
	if failed {
		sc.stats[route].failures++
	}
}

// doJSON performs an authenticated JSON request and decodes the standard
// response envelope into out
func (sc *simulationClient) doJSON(method, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewBuffer(raw)
	}

	req, err := http.NewRequest(method, sc.baseURL+path, body)
	if err != nil {
		return err
	}
	if sc.authToken != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", sc.authToken))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := sc.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	log.Debug().Str("path", path).Str("response", string(respBody)).Msg("API response")

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("%s %s failed with status %d: %s", method, path, resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
		}
	}
	return nil
}

// register creates a user for this simulation run and logs in, returning a
// JWT token
func (sc *simulationClient) register(workerID int) (string, error) {
	start := time.Now()
	var failed bool
	defer func() { sc.track("auth", start, failed) }()

	email := fmt.Sprintf("investor%d+%d@simulation.test", workerID, time.Now().UnixNano())
	password := "simulation-pass-123"

	payload := map[string]string{
		"email":      email,
		"password":   password,
		"first_name": "Sim",
		"last_name":  fmt.Sprintf("Investor%d", workerID),
	}
	if err := sc.doJSON("POST", "/api/v1/auth/register", payload, nil); err != nil {
		failed = true
		return "", err
	}

	var result struct {
		Success bool `json:"success"`
		Data    struct {
			Token string `json:"access_token"`
		} `json:"data"`
	}
	credentials := map[string]string{"email": email, "password": password}
	if err := sc.doJSON("POST", "/api/v1/auth/login", credentials, &result); err != nil {
		failed = true
		return "", err
	}
	if result.Data.Token == "" {
		failed = true
		return "", fmt.Errorf("no access token in login response")
	}
	return result.Data.Token, nil
}

// createAccount opens a brokerage account and returns its ID
func (sc *simulationClient) createAccount() (string, error) {
	start := time.Now()
	var failed bool
	defer func() { sc.track("account", start, failed) }()

	payload := map[string]string{
		"account_type": "individual",
		"currency":     "USD",
	}

	var result struct {
		Success bool `json:"success"`
		Data    struct {
			AccountID string `json:"account_id"`
		} `json:"data"`
	}
	if err := sc.doJSON("POST", "/api/v1/accounts", payload, &result); err != nil {
		failed = true
		return "", err
	}
	if result.Data.AccountID == "" {
		failed = true
		return "", fmt.Errorf("no account ID in response")
	}
	return result.Data.AccountID, nil
}

// deposit credits the simulation account with cash
func (sc *simulationClient) deposit(amount decimal.Decimal) error {
	start := time.Now()
	var failed bool
	defer func() { sc.track("deposit", start, failed) }()

	payload := map[string]any{
		"account_id":       sc.accountID,
		"transaction_type": "deposit",
		"amount":           amount,
		"description":      "simulation funding",
	}
	if err := sc.doJSON("POST", "/api/v1/transactions/create", payload, nil); err != nil {
		failed = true
		return err
	}
	return nil
}

// quote fetches the current price for a symbol
func (sc *simulationClient) quote(symbol string) (decimal.Decimal, error) {
	var result struct {
		Success bool `json:"success"`
		Data    struct {
			Price decimal.Decimal `json:"price"`
		} `json:"data"`
	}
	if err := sc.doJSON("GET", "/api/v1/market/quote/"+symbol, nil, &result); err != nil {
		return decimal.Zero, err
	}
	return result.Data.Price, nil
}

// placeOrder submits an order and returns its ID and status
func (sc *simulationClient) placeOrder(securityID, side, orderType string, quantity, price decimal.Decimal) (string, string, error) {
	start := time.Now()
	var failed bool
	defer func() { sc.track("order", start, failed) }()

	payload := map[string]any{
		"account_id":  sc.accountID,
		"security_id": securityID,
		"side":        side,
		"order_type":  orderType,
		"quantity":    quantity,
		"price":       price,
	}

	var result struct {
		Success bool `json:"success"`
		Data    struct {
			OrderID string `json:"order_id"`
			Status  string `json:"status"`
		} `json:"data"`
	}
	if err := sc.doJSON("POST", "/api/v1/orders", payload, &result); err != nil {
		failed = true
		return "", "", err
	}
	if result.Data.OrderID == "" {
		failed = true
		return "", "", fmt.Errorf("no order ID in response")
	}
	return result.Data.OrderID, result.Data.Status, nil
}

// executeOrder fills a pending limit order at its limit price
func (sc *simulationClient) executeOrder(orderID string) error {
	start := time.Now()
	var failed bool
	defer func() { sc.track("execute", start, failed) }()

	if err := sc.doJSON("POST", "/api/v1/orders/"+orderID+"/execute", nil, nil); err != nil {
		failed = true
		return err
	}
	return nil
}

// cancelOrder cancels a pending limit order
func (sc *simulationClient) cancelOrder(orderID string) error {
	start := time.Now()
	var failed bool
	defer func() { sc.track("cancel", start, failed) }()

	if err := sc.doJSON("POST", "/api/v1/orders/"+orderID+"/cancel", nil, nil); err != nil {
		failed = true
		return err
	}
	return nil
}

// portfolioSummary fetches the aggregated portfolio view
func (sc *simulationClient) portfolioSummary() (*portfolio.Summary, error) {
	start := time.Now()
	var failed bool
	defer func() { sc.track("portfolio", start, failed) }()

	var result struct {
		Success bool              `json:"success"`
		Data    portfolio.Summary `json:"data"`
	}
	if err := sc.doJSON("GET", "/api/v1/portfolio/summary", nil, &result); err != nil {
		failed = true
		return nil, err
	}
	return &result.Data, nil
}

// printPerformanceStats outputs formatted performance statistics for all API endpoints
func printPerformanceStats(clients []*simulationClient) {
	// Merge per-client stats by route
	merged := map[string]*routeStats{}
	for _, sc := range clients {
		for key, stats := range sc.stats {
			m, ok := merged[key]
			if !ok {
				m = &routeStats{name: stats.name}
				merged[key] = m
			}
			m.durations = append(m.durations, stats.durations...)
			m.totalCalls += stats.totalCalls
			m.failures += stats.failures
		}
	}

	fmt.Println("\nAPI Performance Statistics")
	fmt.Println(strings.Repeat("-", 100))
	fmt.Printf("%-20s %10s %10s %10s %10s %10s %10s %10s %10s\n",
		"Endpoint", "Calls", "Errors", "Min", "Max", "Mean", "Median", "P95", "P99")
	fmt.Println(strings.Repeat("-", 100))

	for _, stats := range merged {
		min, max, mean, median, p95, p99 := stats.calculate()
		fmt.Printf("%-20s %10d %10d %10s %10s %10s %10s %10s %10s\n",
			stats.name,
			stats.totalCalls,
			stats.failures,
			min.Round(time.Millisecond),
			max.Round(time.Millisecond),
			mean.Round(time.Millisecond),
			median.Round(time.Millisecond),
			p95.Round(time.Millisecond),
			p99.Round(time.Millisecond))
	}
	fmt.Println(strings.Repeat("-", 100))
}

// workerResult aggregates one investor's simulation outcome
type workerResult struct {
	ordersPlaced    int
	ordersFilled    int
	ordersCancelled int
	ordersRejected  int
	symbols         map[string]int
	sides           map[string]int
	finalValue      decimal.Decimal
	finalCash       decimal.Decimal
}

// main runs the brokerage simulation
// It starts a local API server and simulates multiple concurrent investors
func main() {
	// Start the server in a goroutine
	go func() {
		if err := startServer(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for server to start
	time.Sleep(2 * time.Second)

	targetOrders := rand.Intn(maxOrders-minOrders) + minOrders
	log.Info().Int("target_orders", targetOrders).Int("workers", numWorkers).Msg("Starting simulation")

	startTime := time.Now()
	clients := make([]*simulationClient, numWorkers)
	results := make([]*workerResult, numWorkers)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		simClient, err := newSimulationClient(i)
		if err != nil {
			log.Fatal().Err(err).Int("worker_id", i).Msg("Failed to initialize simulation client")
		}
		clients[i] = simClient

		wg.Add(1)
		go func(workerID int, sc *simulationClient) {
			defer wg.Done()
			results[workerID] = runInvestor(workerID, targetOrders/numWorkers, sc)
		}(i, simClient)
	}

	wg.Wait()

	// Aggregate results
	total := workerResult{
		symbols: make(map[string]int),
		sides:   make(map[string]int),
	}
	for _, r := range results {
		total.ordersPlaced += r.ordersPlaced
		total.ordersFilled += r.ordersFilled
		total.ordersCancelled += r.ordersCancelled
		total.ordersRejected += r.ordersRejected
		total.finalValue = total.finalValue.Add(r.finalValue)
		total.finalCash = total.finalCash.Add(r.finalCash)
		for symbol, count := range r.symbols {
			total.symbols[symbol] += count
		}
		for side, count := range r.sides {
			total.sides[side] += count
		}
	}

	duration := time.Since(startTime)
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("BROKERAGE SIMULATION SUMMARY")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Printf(`
Order Statistics
----------------
Orders Placed:    %d
Filled:           %d
Cancelled:        %d
Rejected:         %d
Portfolio Value:  $%s
Cash Remaining:   $%s
Duration:         %v

Symbol Distribution
-------------------
`, total.ordersPlaced, total.ordersFilled, total.ordersCancelled, total.ordersRejected,
		total.finalValue.StringFixed(2), total.finalCash.StringFixed(2),
		duration.Round(time.Millisecond))

	// Print symbol distribution with simple ASCII bar chart
	maxSymbolCount := 0
	for _, count := range total.symbols {
		if count > maxSymbolCount {
			maxSymbolCount = count
		}
	}
	for symbol, count := range total.symbols {
		barLength := int(float64(count) / float64(maxSymbolCount) * 20)
		bar := strings.Repeat("#", barLength)
		fmt.Printf("%-6s: %s (%d)\n", symbol, bar, count)
	}

	fmt.Println("\nSide Distribution")
	fmt.Println("-----------------")
	for side, count := range total.sides {
		barLength := int(float64(count) / float64(total.ordersPlaced) * 20)
		bar := strings.Repeat("#", barLength)
		fmt.Printf("%-4s: %s (%d)\n", side, bar, count)
	}

	fmt.Println("\n" + strings.Repeat("=", 80))

	fillRate := float64(total.ordersFilled) / float64(total.ordersPlaced) * 100
	log.Info().
		Float64("fill_rate", fillRate).
		Int("orders_placed", total.ordersPlaced).
		Int("orders_filled", total.ordersFilled).
		Str("portfolio_value", total.finalValue.StringFixed(2)).
		Dur("duration", duration).
		Msg("Simulation completed")

	printPerformanceStats(clients)
}

// runInvestor places a mix of market and limit orders for one investor, then
// resolves any pending limit orders and reads back the portfolio
func runInvestor(workerID, numOrders int, sc *simulationClient) *workerResult {
	result := &workerResult{
		symbols: make(map[string]int),
		sides:   make(map[string]int),
	}
	var pending []string

	for i := 0; i < numOrders; i++ {
		symbol := symbols[rand.Intn(len(symbols))]
		securityID, ok := sc.securities[symbol]
		if !ok {
			continue
		}

		price, err := sc.quote(symbol)
		if err != nil {
			log.Error().Err(err).Str("symbol", symbol).Msg("Failed to fetch quote")
			continue
		}

		// Early orders buy to build positions, later ones mix in sells
		side := "buy"
		if i > numOrders/3 {
			side = sides[rand.Intn(len(sides))]
		}

		orderType := "market"
		if rand.Intn(4) == 0 {
			orderType = "limit"
			// Limit a few percent away from the quote
			price = price.Mul(decimal.NewFromFloat(0.95 + rand.Float64()*0.1)).Round(2)
		}
		quantity := decimal.NewFromInt(int64(rand.Intn(20) + 1))

		orderID, status, err := sc.placeOrder(securityID, side, orderType, quantity, price)
		if err != nil {
			// Sells against positions we never built get rejected, as do
			// buys past the cash balance
			result.ordersRejected++
			log.Debug().Err(err).
				Int("worker_id", workerID).
				Str("symbol", symbol).
				Str("side", side).
				Msg("Order rejected")
			continue
		}

		result.ordersPlaced++
		result.symbols[symbol]++
		result.sides[side]++
		if status == "filled" {
			result.ordersFilled++
		} else {
			pending = append(pending, orderID)
		}

		log.Info().
			Int("worker_id", workerID).
			Str("order_id", orderID).
			Str("symbol", symbol).
			Str("side", side).
			Str("order_type", orderType).
			Str("status", status).
			Str("quantity", quantity.String()).
			Str("price", price.String()).
			Msg("Order placed")

		// Random sleep between orders
		time.Sleep(time.Duration(rand.Intn(200)) * time.Millisecond)
	}

	// Resolve pending limit orders: execute most, cancel the rest
	for _, orderID := range pending {
		if rand.Intn(3) == 0 {
			if err := sc.cancelOrder(orderID); err != nil {
				log.Error().Err(err).Str("order_id", orderID).Msg("Failed to cancel order")
				continue
			}
			result.ordersCancelled++
			continue
		}
		if err := sc.executeOrder(orderID); err != nil {
			// Execution can fail when the cash or position ran out after
			// placement
			result.ordersRejected++
			log.Debug().Err(err).Str("order_id", orderID).Msg("Order execution rejected")
			continue
		}
		result.ordersFilled++
	}

	summary, err := sc.portfolioSummary()
	if err != nil {
		log.Error().Err(err).Int("worker_id", workerID).Msg("Failed to fetch portfolio summary")
		return result
	}
	result.finalValue = summary.TotalPortfolioValue
	for _, account := range summary.Accounts {
		result.finalCash = result.finalCash.Add(account.CashBalance)
	}

	log.Info().
		Int("worker_id", workerID).
		Str("portfolio_value", summary.TotalPortfolioValue.StringFixed(2)).
		Str("cash_balance", result.finalCash.StringFixed(2)).
		Int("accounts", len(summary.Accounts)).
		Msg("Investor finished")

	return result
}

// startServer initializes and starts the brokerage API server
// Sets up all required services, handlers and routes
func startServer() error {
	// Quiet request logging for the simulation
	gin.SetMode(gin.ReleaseMode)

	// Initialize database
	db, err := database.NewDatabase("simulation.db?_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	const jwtSecret = "simulation-secret-key"

	// Initialize services
	authService := auth.NewService(db, jwtSecret)
	accountsService := accounts.NewService(db)
	transactionsService := transactions.NewService(db)
	ordersService := orders.NewService(db)
	portfolioService := portfolio.NewService(db)
	priceSource := market.NewMockSource()

	collector := metrics.NewCollector()

	// Initialize router
	router := gin.New()
	router.Use(gin.Recovery())

	authHandlers := auth.NewGinHandlers(authService)
	accountsHandlers := accounts.NewGinHandlers(accountsService)
	transactionsHandlers := transactions.NewGinHandlers(transactionsService, collector)
	ordersHandlers := orders.NewGinHandlers(ordersService, collector)
	portfolioHandlers := portfolio.NewGinHandlers(portfolioService)
	marketHandlers := market.NewGinHandlers(priceSource, db)

	// Setup routes
	v1 := router.Group("/api/v1")
	{
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", authHandlers.RegisterHandler())
			authGroup.POST("/login", authHandlers.LoginHandler())
		}

		protected := v1.Group("")
		protected.Use(middleware.JWTAuth(jwtSecret, authService))
		{
			protected.POST("/accounts", accountsHandlers.CreateAccountHandler())
			protected.GET("/accounts/me", accountsHandlers.ListAccountsHandler())
			protected.POST("/transactions/create", transactionsHandlers.CreateTransactionHandler())
			protected.POST("/orders", ordersHandlers.PlaceOrderHandler())
			protected.POST("/orders/:order_id/cancel", ordersHandlers.CancelOrderHandler())
			protected.POST("/orders/:order_id/execute", ordersHandlers.ExecuteOrderHandler())
			protected.GET("/portfolio/positions", portfolioHandlers.GetPositionsHandler())
			protected.GET("/portfolio/summary", portfolioHandlers.GetSummaryHandler())
			protected.GET("/market/symbols", marketHandlers.ListSymbolsHandler())
			protected.GET("/market/quote/:symbol", marketHandlers.GetQuoteHandler())
		}
	}

	// Start the server
	return router.Run(":8080")
}
