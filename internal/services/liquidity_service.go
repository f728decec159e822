package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"coinfluence/internal/events"
	"coinfluence/internal/metrics"
	"coinfluence/internal/models"
	"coinfluence/internal/networks"
	"coinfluence/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"gorm.io/gorm"
)

const (
	resultMarker  = "📦 RESULT_JSON:"
	resultFileEnv = "LIQUIDITY_RESULT_FILE"
)

var (
	poolAddressLine = regexp.MustCompile(`📊 Pool Address: (0x[a-fA-F0-9]{40})`)
	transactionLine = regexp.MustCompile(`🔗 Transaction: (0x[a-fA-F0-9]{64})`)
)

// LiquidityOptions describe how the pool-creation script is invoked.
type LiquidityOptions struct {
	Command string
	Script  string
	WorkDir string
	Timeout time.Duration
}

// LiquidityRequest optionally overrides the network's liquidity defaults.
type LiquidityRequest struct {
	InfluencerID    uint
	Network         string
	ETHAmount       decimal.Decimal
	TokenPercentage int
}

// LiquidityResult is the pool created for a token.
type LiquidityResult struct {
	Success          bool   `json:"success"`
	PoolAddress      string `json:"poolAddress"`
	LiquidityTokenID string `json:"liquidityTokenId,omitempty"`
	TxHash           string `json:"txHash"`
	ETHAmount        string `json:"ethAmount"`
	TokenAmount      string `json:"tokenAmount"`
	ExplorerURL      string `json:"explorerUrl,omitempty"`
	PoolExplorerURL  string `json:"poolExplorerUrl,omitempty"`
	Network          string `json:"network"`
	FallbackParsing  bool   `json:"fallbackParsing,omitempty"`
	Message          string `json:"message"`
}

// LiquidityStatus reports whether a pool exists for an influencer token.
type LiquidityStatus struct {
	HasLiquidity     bool             `json:"hasLiquidity"`
	PoolAddress      *string          `json:"poolAddress"`
	LiquidityTokenID *string          `json:"liquidityTokenId"`
	ETHAmount        *decimal.Decimal `json:"ethAmount"`
	TokenAmount      *decimal.Decimal `json:"tokenAmount"`
	CreatedAt        *time.Time       `json:"createdAt"`
	TradingStatus    string           `json:"tradingStatus"`
	Network          string           `json:"network,omitempty"`
	TokenAddress     string           `json:"tokenAddress,omitempty"`
}

// LiquidityService drives the external pool-creation script and records its
// outcome.
type LiquidityService struct {
	repo      *repository.Repository
	networks  *networks.Registry
	opts      LiquidityOptions
	publisher events.Publisher
	log       *logrus.Entry

	inFlight sync.Map
}

func NewLiquidityService(db *gorm.DB, nets *networks.Registry, opts LiquidityOptions, publisher events.Publisher) *LiquidityService {
	if publisher == nil {
		publisher = events.Noop{}
	}
	if opts.Command == "" {
		opts.Command = "node"
	}
	if opts.Script == "" {
		opts.Script = "createUniswapV3Pool.js"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}
	return &LiquidityService{
		repo:      repository.NewRepository(db),
		networks:  nets,
		opts:      opts,
		publisher: publisher,
		log:       logrus.WithField("component", "liquidity_service"),
	}
}

// Timeout is the script execution budget.
func (s *LiquidityService) Timeout() time.Duration {
	return s.opts.Timeout
}

// CreateLiquidity runs the pool-creation script for an influencer's token and
// records the pool. Any failure after the token is found is logged as a
// liquidity_failed event.
func (s *LiquidityService) CreateLiquidity(ctx context.Context, req LiquidityRequest) (*LiquidityResult, error) {
	token, err := s.repo.GetTokenByInfluencer(ctx, req.InfluencerID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to load token: %w", err)
	}
	if token.PoolAddress != nil && *token.PoolAddress != "" {
		return nil, ErrLiquidityExists
	}

	if _, busy := s.inFlight.LoadOrStore(req.InfluencerID, struct{}{}); busy {
		return nil, ErrLiquidityRunning
	}
	defer s.inFlight.Delete(req.InfluencerID)

	result, err := s.provision(ctx, token, req)
	if err != nil {
		s.recordFailure(ctx, token, err)
		return nil, fmt.Errorf("liquidity automation failed: %w", err)
	}
	return result, nil
}

func (s *LiquidityService) provision(ctx context.Context, token *models.Token, req LiquidityRequest) (*LiquidityResult, error) {
	networkID := req.Network
	if networkID == "" {
		networkID = token.Network
	}
	network, ok := s.networks.Resolve(networkID)
	if !ok || network.Liquidity == nil {
		return nil, fmt.Errorf("%w for liquidity automation: %s", ErrUnsupportedNetwork, networkID)
	}

	ethAmount := network.Liquidity.DefaultETHAmount
	if req.ETHAmount.IsPositive() {
		ethAmount = req.ETHAmount
	}
	percentage := network.Liquidity.TokenPercentage
	if req.TokenPercentage != 0 {
		percentage = req.TokenPercentage
	}
	if percentage <= 0 || percentage > 100 {
		return nil, fmt.Errorf("%w: token percentage must be between 1 and 100", ErrValidation)
	}

	start := time.Now()
	result, err := s.runScript(ctx, token, network, ethAmount, percentage)
	metrics.RecordLiquidityRun(network.ID, err == nil, time.Since(start))
	if err != nil {
		return nil, err
	}

	if result.ExplorerURL == "" && result.TxHash != "" && result.TxHash != "unknown" {
		result.ExplorerURL = network.TxURL(result.TxHash)
	}
	if result.PoolExplorerURL == "" {
		result.PoolExplorerURL = network.AddressURL(result.PoolAddress)
	}
	result.Network = network.ID
	result.Success = true
	result.Message = fmt.Sprintf("Liquidity pool created successfully for %s", token.Ticker)

	if err := s.recordSuccess(ctx, token, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *LiquidityService) runScript(
	ctx context.Context,
	token *models.Token,
	network networks.Network,
	ethAmount decimal.Decimal,
	percentage int,
) (*LiquidityResult, error) {
	resultFile, err := os.CreateTemp("", "liquidity-result-*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to create result file: %w", err)
	}
	resultPath := resultFile.Name()
	_ = resultFile.Close()
	defer os.Remove(resultPath)

	runCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	args := []string{
		s.opts.Script,
		token.ContractAddress,
		token.Ticker,
		ethAmount.String(),
		strconv.Itoa(percentage),
		network.HardhatNetwork(),
	}
	cmd := exec.CommandContext(runCtx, s.opts.Command, args...)
	cmd.Dir = s.opts.WorkDir
	cmd.Env = append(os.Environ(),
		"HARDHAT_NETWORK="+network.HardhatNetwork(),
		resultFileEnv+"="+resultPath,
	)
	cmd.WaitDelay = 5 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	s.log.WithFields(logrus.Fields{
		"command": s.opts.Command,
		"args":    strings.Join(args, " "),
		"dir":     s.opts.WorkDir,
	}).Info("Executing pool creation script")

	runErr := cmd.Run()
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w after %s", ErrLiquidityTimeout, s.opts.Timeout)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if runErr != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.TrimSpace(stdout.String())
		}
		if msg == "" {
			msg = runErr.Error()
		}
		return nil, fmt.Errorf("pool creation failed: %s", msg)
	}

	fileDoc, _ := os.ReadFile(resultPath)
	result, err := parseScriptResult(fileDoc, stdout.String())
	if err != nil {
		return nil, err
	}
	if result.FallbackParsing {
		supply := token.TotalSupply
		result.ETHAmount = ethAmount.String()
		result.TokenAmount = supply.Mul(decimal.NewFromInt(int64(percentage))).Div(decimal.NewFromInt(100)).Floor().String()
		s.log.WithField("token", token.ContractAddress).Warn("Pool creation result recovered from script log lines")
	}
	return result, nil
}

// parseScriptResult reads the script outcome from the result file, then the
// JSON block after the stdout marker, then the human-readable log lines.
func parseScriptResult(fileDoc []byte, stdout string) (*LiquidityResult, error) {
	if doc := strings.TrimSpace(string(fileDoc)); doc != "" && gjson.Valid(doc) {
		if r := resultFromJSON(gjson.Parse(doc)); r.PoolAddress != "" {
			return r, nil
		}
	}

	if idx := strings.Index(stdout, resultMarker); idx >= 0 {
		rest := strings.TrimSpace(stdout[idx+len(resultMarker):])
		if strings.HasPrefix(rest, "{") {
			if r := resultFromJSON(gjson.Parse(rest)); r.PoolAddress != "" {
				return r, nil
			}
		}
	}

	if m := poolAddressLine.FindStringSubmatch(stdout); m != nil {
		r := &LiquidityResult{PoolAddress: m[1], TxHash: "unknown", FallbackParsing: true}
		if tx := transactionLine.FindStringSubmatch(stdout); tx != nil {
			r.TxHash = tx[1]
		}
		return r, nil
	}
	return nil, ErrUnparseableResult
}

func resultFromJSON(doc gjson.Result) *LiquidityResult {
	return &LiquidityResult{
		PoolAddress:      doc.Get("poolAddress").String(),
		LiquidityTokenID: doc.Get("liquidityTokenId").String(),
		TxHash:           doc.Get("txHash").String(),
		ETHAmount:        doc.Get("ethAmount").String(),
		TokenAmount:      doc.Get("tokenAmount").String(),
		ExplorerURL:      doc.Get("explorerUrl").String(),
		PoolExplorerURL:  doc.Get("poolExplorerUrl").String(),
	}
}

func (s *LiquidityService) recordSuccess(ctx context.Context, token *models.Token, result *LiquidityResult) error {
	ethAmount, err := decimal.NewFromString(result.ETHAmount)
	if err != nil {
		ethAmount = decimal.Zero
	}
	tokenAmount, err := decimal.NewFromString(result.TokenAmount)
	if err != nil {
		tokenAmount = decimal.Zero
	}
	now := time.Now()

	var event models.PledgeEvent
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		n, err := tx.SetTokenLiquidity(ctx, token.ID, repository.LiquidityUpdate{
			PoolAddress: strings.ToLower(result.PoolAddress),
			TokenID:     result.LiquidityTokenID,
			ETHAmount:   ethAmount,
			TokenAmount: tokenAmount,
			TxHash:      result.TxHash,
			CreatedAt:   now,
		})
		if err != nil {
			return fmt.Errorf("failed to record pool on token: %w", err)
		}
		if n == 0 {
			return ErrLiquidityExists
		}

		if err := tx.SetInfluencerPool(ctx, token.InfluencerID, strings.ToLower(result.PoolAddress)); err != nil {
			return fmt.Errorf("failed to record pool on influencer: %w", err)
		}

		inf, err := tx.GetInfluencerByID(ctx, token.InfluencerID)
		if err != nil {
			return fmt.Errorf("failed to load influencer: %w", err)
		}

		event = models.PledgeEvent{
			EventType:         models.EventLiquidityCreated,
			InfluencerID:      &token.InfluencerID,
			InfluencerAddress: derefString(inf.WalletAddress),
			UserAddress:       models.AutomationActor,
			EventData: models.JSONB{
				"pool_address":       result.PoolAddress,
				"liquidity_token_id": result.LiquidityTokenID,
				"eth_amount":         result.ETHAmount,
				"token_amount":       result.TokenAmount,
				"tx_hash":            result.TxHash,
				"network":            result.Network,
				"automation_type":    "full_auto",
			},
			CreatedAt: now,
		}
		return tx.AppendEvent(ctx, &event)
	})
	if err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{
		"influencer_id": token.InfluencerID,
		"pool":          result.PoolAddress,
		"network":       result.Network,
	}).Info("Liquidity pool recorded")
	publishEvents(ctx, s.publisher, s.log, event)
	return nil
}

func (s *LiquidityService) recordFailure(ctx context.Context, token *models.Token, cause error) {
	ctx = context.WithoutCancel(ctx)
	event := models.PledgeEvent{
		EventType:         models.EventLiquidityFailed,
		InfluencerID:      &token.InfluencerID,
		InfluencerAddress: models.AutomationActor,
		UserAddress:       models.AutomationActor,
		EventData: models.JSONB{
			"influencer_id":   token.InfluencerID,
			"token_address":   token.ContractAddress,
			"error_message":   cause.Error(),
			"automation_type": "full_auto",
		},
	}
	if err := s.repo.AppendEvent(ctx, &event); err != nil {
		s.log.WithError(err).Error("Failed to record liquidity failure")
		return
	}
	s.log.WithError(cause).WithField("influencer_id", token.InfluencerID).Error("Liquidity automation failed")
	publishEvents(ctx, s.publisher, s.log, event)
}

// Status reports the liquidity state of an influencer's token.
func (s *LiquidityService) Status(ctx context.Context, influencerID uint) (*LiquidityStatus, error) {
	inf, err := s.repo.GetInfluencerByID(ctx, influencerID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrInfluencerNotFound
		}
		return nil, fmt.Errorf("failed to load influencer: %w", err)
	}

	status := &LiquidityStatus{TradingStatus: inf.TradingStatus}
	token, err := s.repo.GetTokenByInfluencer(ctx, influencerID)
	if err != nil {
		if repository.IsNotFound(err) {
			return status, nil
		}
		return nil, fmt.Errorf("failed to load token: %w", err)
	}

	status.HasLiquidity = token.PoolAddress != nil && *token.PoolAddress != ""
	status.PoolAddress = token.PoolAddress
	status.LiquidityTokenID = token.LiquidityTokenID
	status.ETHAmount = token.LiquidityETHAmount
	status.TokenAmount = token.LiquidityTokenAmount
	status.CreatedAt = token.LiquidityCreatedAt
	status.Network = token.Network
	status.TokenAddress = token.ContractAddress
	return status, nil
}
