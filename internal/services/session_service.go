package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"marketsim/internal/dao"
	"marketsim/internal/engines/replay"
	"marketsim/internal/engines/trading"
	"marketsim/internal/interfaces"
	"marketsim/internal/marketdata"
	"marketsim/internal/models"
	"marketsim/internal/types"
)

// TradeRequest is a trade submission. Price is the trigger threshold for
// limit and stop orders and is ignored for market orders; market orders
// always execute at the replay price of the session's current tick.
// StopLoss and TakeProfit arm exit thresholds on the position once a buy
// fills.
type TradeRequest struct {
	Symbol     string           `json:"symbol"`
	Side       models.OrderSide `json:"side"`
	Type       models.OrderType `json:"type"`
	Quantity   int64            `json:"quantity"`
	Price      float64          `json:"price,omitempty"`
	StopLoss   *float64         `json:"stop_loss,omitempty"`
	TakeProfit *float64         `json:"take_profit,omitempty"`
}

type SessionServiceConfig struct {
	StartBalance           float64
	DefaultDurationSeconds int
}

// SessionService owns the full session lifecycle: creation, activation,
// trade execution, exit sweeps and settlement. A per-session mutex
// serializes every mutation of one session; trades and sweeps on different
// sessions run concurrently.
type SessionService struct {
	db          *gorm.DB
	sessionDAO  dao.SessionDAOInterface
	positionDAO dao.PositionDAOInterface
	orderDAO    dao.OrderDAOInterface
	store       marketdata.SeriesStore
	indexer     *replay.TickIndexer
	ledger      *trading.Ledger
	broadcaster interfaces.SessionBroadcaster
	logger      *zap.SugaredLogger
	cfg         SessionServiceConfig

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	refMu     sync.Mutex
	refSymbol string

	now func() time.Time
}

func NewSessionService(
	db *gorm.DB,
	store marketdata.SeriesStore,
	indexer *replay.TickIndexer,
	ledger *trading.Ledger,
	broadcaster interfaces.SessionBroadcaster,
	logger *zap.SugaredLogger,
	cfg SessionServiceConfig,
) *SessionService {
	return &SessionService{
		db:          db,
		sessionDAO:  dao.NewSessionDAO(db),
		positionDAO: dao.NewPositionDAO(db),
		orderDAO:    dao.NewOrderDAO(db),
		store:       store,
		indexer:     indexer,
		ledger:      ledger,
		broadcaster: broadcaster,
		logger:      logger,
		cfg:         cfg,
		locks:       make(map[string]*sync.Mutex),
		now:         time.Now,
	}
}

func (s *SessionService) sessionLock(sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[sessionID] = lock
	}
	return lock
}

// armExitThresholds carries a filled buy order's requested exit thresholds
// onto the position. Sells never arm anything.
func armExitThresholds(pos *models.Position, order *models.Order) {
	if order.Side != models.OrderSideBuy || pos.Holdings <= 0 {
		return
	}
	if order.StopLoss != nil {
		pos.StopLoss = order.StopLoss
	}
	if order.TakeProfit != nil {
		pos.TakeProfit = order.TakeProfit
	}
}

func mapNotFound(err, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}

// referenceSymbol returns the symbol whose series length defines the tick
// axis. All symbols carry equally long series, so the first one in sorted
// order serves. Resolved once and cached.
func (s *SessionService) referenceSymbol(ctx context.Context) (string, error) {
	s.refMu.Lock()
	defer s.refMu.Unlock()

	if s.refSymbol != "" {
		return s.refSymbol, nil
	}

	symbols, err := s.store.ListSymbols(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to resolve reference symbol: %w", err)
	}
	if len(symbols) == 0 {
		return "", fmt.Errorf("%w: store has no symbols", replay.ErrNoSeries)
	}
	sort.Strings(symbols)
	s.refSymbol = symbols[0]
	return s.refSymbol, nil
}

// resolveTick recomputes the session's authoritative tick from elapsed
// time. Dormant and ended sessions keep their persisted tick.
func (s *SessionService) resolveTick(ctx context.Context, session *models.Session) (int, error) {
	if session.State() != models.SessionActive {
		return session.CurrentTick, nil
	}
	ref, err := s.referenceSymbol(ctx)
	if err != nil {
		return 0, err
	}
	total, err := s.indexer.TotalTicks(ctx, ref)
	if err != nil {
		return 0, err
	}
	return session.TickAt(s.now(), total), nil
}

// StartSession creates a dormant session with one flat position per symbol
// the store serves. The clock does not start until activation.
func (s *SessionService) StartSession(ctx context.Context, userID, label string, durationSeconds int) (*models.Session, error) {
	if durationSeconds <= 0 {
		durationSeconds = s.cfg.DefaultDurationSeconds
	}

	symbols, err := s.store.ListSymbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list symbols: %w", err)
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("%w: store has no symbols", replay.ErrNoSeries)
	}
	sort.Strings(symbols)

	session := &models.Session{
		ID:              uuid.NewString(),
		UserID:          userID,
		Label:           label,
		Cash:            s.cfg.StartBalance,
		StartBalance:    s.cfg.StartBalance,
		DurationSeconds: durationSeconds,
	}

	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := tx.Create(session).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	for _, symbol := range symbols {
		pos := &models.Position{SessionID: session.ID, Symbol: symbol}
		if err := s.positionDAO.CreateWithTx(tx, pos); err != nil {
			tx.Rollback()
			return nil, err
		}
	}
	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("failed to commit session creation: %w", err)
	}

	s.logger.Infow("session created", "session_id", session.ID, "user_id", userID, "symbols", len(symbols))
	return session, nil
}

// ActivateSession starts the session clock. Activating an already active
// session is a no-op that returns the session unchanged; in particular it
// never resets the clock or the tick.
func (s *SessionService) ActivateSession(ctx context.Context, sessionID string) (*models.Session, error) {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.sessionDAO.GetByID(sessionID)
	if err != nil {
		return nil, mapNotFound(err, trading.ErrSessionNotFound)
	}

	switch session.State() {
	case models.SessionEnded:
		return nil, trading.ErrSessionEnded
	case models.SessionActive:
		return session, nil
	}

	// Fail fast if the series cannot be served.
	ref, err := s.referenceSymbol(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.indexer.TotalTicks(ctx, ref); err != nil {
		return nil, err
	}

	session.IsActive = true
	session.StartTime = s.now()
	session.CurrentTick = 0
	if err := s.sessionDAO.Update(session); err != nil {
		return nil, err
	}

	s.logger.Infow("session activated", "session_id", sessionID)
	s.broadcastSession(ctx, session)
	return session, nil
}

// EndSession settles the session: positions are marked at the final tick,
// the final P&L is computed and the state becomes terminal. Ending an
// already ended session returns it unchanged.
func (s *SessionService) EndSession(ctx context.Context, sessionID string) (*models.Session, error) {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.sessionDAO.GetByID(sessionID)
	if err != nil {
		return nil, mapNotFound(err, trading.ErrSessionNotFound)
	}
	switch session.State() {
	case models.SessionEnded:
		return session, nil
	case models.SessionDormant:
		return nil, fmt.Errorf("%w: session was never activated", trading.ErrSessionInactive)
	}
	if err := s.settle(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// settle finalizes a session. Caller holds the session lock.
func (s *SessionService) settle(ctx context.Context, session *models.Session) error {
	tick, err := s.resolveTick(ctx, session)
	if err != nil {
		return err
	}

	positions, err := s.positionDAO.ListBySession(session.ID)
	if err != nil {
		return err
	}
	for i := range positions {
		pos := &positions[i]
		price, err := s.indexer.CurrentPrice(ctx, pos.Symbol, tick)
		if err != nil {
			s.logger.Warnw("settlement price unavailable, keeping last mark",
				"session_id", session.ID, "symbol", pos.Symbol, "error", err)
			continue
		}
		s.ledger.MarkToMarket(pos, price)
	}

	endedAt := s.now()
	session.IsActive = false
	session.EndedAt = &endedAt
	session.CurrentTick = tick
	session.PnL = s.ledger.SessionPnL(session, positions)

	tx := s.db.Begin()
	if tx.Error != nil {
		return fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	for i := range positions {
		if err := s.positionDAO.UpdateWithTx(tx, &positions[i]); err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := s.sessionDAO.UpdateWithTx(tx, session); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("failed to commit settlement: %w", err)
	}

	s.logger.Infow("session ended", "session_id", session.ID, "final_tick", tick, "pnl", session.PnL)
	s.pushUpdate(session, positions)
	return nil
}

// PlaceOrder submits a trade against the session's current replay price.
// Market orders fill immediately; limit and stop orders rest as pending
// unless their threshold is already crossed. A validation failure persists
// the order as rejected and returns the reason.
func (s *SessionService) PlaceOrder(ctx context.Context, sessionID string, req TradeRequest) (*models.Order, error) {
	if !req.Side.Valid() {
		return nil, fmt.Errorf("%w: unknown side %q", trading.ErrInvalidOrder, req.Side)
	}
	if !req.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown type %q", trading.ErrInvalidOrder, req.Type)
	}
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", trading.ErrInvalidOrder)
	}
	if req.Type != models.OrderTypeMarket && req.Price <= 0 {
		return nil, fmt.Errorf("%w: %s orders need a positive trigger price", trading.ErrInvalidOrder, req.Type)
	}

	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.sessionDAO.GetByID(sessionID)
	if err != nil {
		return nil, mapNotFound(err, trading.ErrSessionNotFound)
	}
	switch session.State() {
	case models.SessionEnded:
		return nil, trading.ErrSessionEnded
	case models.SessionDormant:
		return nil, trading.ErrSessionInactive
	}

	tick, err := s.resolveTick(ctx, session)
	if err != nil {
		return nil, err
	}
	price, err := s.indexer.CurrentPrice(ctx, req.Symbol, tick)
	if err != nil {
		return nil, err
	}
	if req.Side == models.OrderSideBuy {
		if err := trading.ValidateExitThresholds(req.StopLoss, req.TakeProfit, price); err != nil {
			return nil, err
		}
	}

	session.CurrentTick = tick
	order := &models.Order{
		SessionID:  sessionID,
		Symbol:     req.Symbol,
		Side:       req.Side,
		Type:       req.Type,
		Status:     models.OrderStatusPending,
		Quantity:   req.Quantity,
		Price:      req.Price,
		Tick:       tick,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
	}

	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	var applyErr error
	if req.Type == models.OrderTypeMarket || trading.Crossed(order, price) {
		pos, err := s.positionDAO.GetWithTx(tx, sessionID, req.Symbol)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Position rows are normally seeded at creation; symbols added
			// to the store afterwards get one on first trade.
			pos = &models.Position{SessionID: sessionID, Symbol: req.Symbol}
			err = s.positionDAO.CreateWithTx(tx, pos)
		}
		if err != nil {
			tx.Rollback()
			return nil, err
		}
		applyErr = s.ledger.Apply(session, pos, req.Side, req.Quantity, price)
		if applyErr != nil {
			order.Status = models.OrderStatusRejected
			order.Reason = applyErr.Error()
		} else {
			order.Status = models.OrderStatusFilled
			order.Price = price
			armExitThresholds(pos, order)
			if err := s.positionDAO.UpdateWithTx(tx, pos); err != nil {
				tx.Rollback()
				return nil, err
			}
		}
	}

	if err := s.orderDAO.CreateWithTx(tx, order); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := s.sessionDAO.UpdateWithTx(tx, session); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("failed to commit trade: %w", err)
	}

	if applyErr != nil {
		s.logger.Infow("order rejected", "session_id", sessionID, "symbol", req.Symbol, "reason", applyErr)
		return order, applyErr
	}

	s.logger.Infow("order placed",
		"session_id", sessionID, "symbol", req.Symbol, "side", req.Side,
		"type", req.Type, "status", order.Status, "quantity", req.Quantity, "price", order.Price, "tick", tick)
	s.broadcastSession(ctx, session)
	return order, nil
}

// CancelOrder cancels a pending order belonging to the session.
func (s *SessionService) CancelOrder(ctx context.Context, sessionID string, orderID uint) (*models.Order, error) {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	order, err := s.orderDAO.GetByID(orderID)
	if err != nil {
		return nil, mapNotFound(err, trading.ErrOrderNotFound)
	}
	if order.SessionID != sessionID {
		return nil, trading.ErrOrderNotFound
	}
	if order.Status != models.OrderStatusPending {
		return nil, fmt.Errorf("%w: status is %s", trading.ErrOrderNotPending, order.Status)
	}

	order.Status = models.OrderStatusCanceled
	if err := s.orderDAO.Update(order); err != nil {
		return nil, err
	}
	s.logger.Infow("order canceled", "session_id", sessionID, "order_id", orderID)
	return order, nil
}

// SetExitConditions arms or disarms stop-loss and take-profit thresholds on
// an open position. Thresholds must bracket the current replay price.
func (s *SessionService) SetExitConditions(ctx context.Context, sessionID, symbol string, stopLoss, takeProfit *float64) (*models.Position, error) {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.sessionDAO.GetByID(sessionID)
	if err != nil {
		return nil, mapNotFound(err, trading.ErrSessionNotFound)
	}
	switch session.State() {
	case models.SessionEnded:
		return nil, trading.ErrSessionEnded
	case models.SessionDormant:
		return nil, trading.ErrSessionInactive
	}

	pos, err := s.positionDAO.Get(sessionID, symbol)
	if err != nil {
		return nil, mapNotFound(err, trading.ErrPositionNotFound)
	}
	if pos.Holdings <= 0 {
		return nil, fmt.Errorf("%w: no holdings in %s", trading.ErrInsufficientShares, symbol)
	}

	tick, err := s.resolveTick(ctx, session)
	if err != nil {
		return nil, err
	}
	price, err := s.indexer.CurrentPrice(ctx, symbol, tick)
	if err != nil {
		return nil, err
	}
	if err := trading.ValidateExitThresholds(stopLoss, takeProfit, price); err != nil {
		return nil, err
	}

	pos.StopLoss = stopLoss
	pos.TakeProfit = takeProfit
	if err := s.positionDAO.Update(pos); err != nil {
		return nil, err
	}

	s.logger.Infow("exit conditions set",
		"session_id", sessionID, "symbol", symbol, "stop_loss", stopLoss, "take_profit", takeProfit)
	return pos, nil
}

// GetSession returns the session with its tick refreshed from the clock.
// The refreshed tick is not persisted on the read path.
func (s *SessionService) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	session, err := s.sessionDAO.GetByID(sessionID)
	if err != nil {
		return nil, mapNotFound(err, trading.ErrSessionNotFound)
	}
	tick, err := s.resolveTick(ctx, session)
	if err != nil {
		return nil, err
	}
	session.CurrentTick = tick
	return session, nil
}

// ListUserSessions returns every session owned by a user, newest first.
func (s *SessionService) ListUserSessions(userID string) ([]models.Session, error) {
	return s.sessionDAO.ListByUser(userID)
}

// ListOrders returns the session's full order audit trail, newest first.
func (s *SessionService) ListOrders(ctx context.Context, sessionID string) ([]models.Order, error) {
	if _, err := s.sessionDAO.GetByID(sessionID); err != nil {
		return nil, mapNotFound(err, trading.ErrSessionNotFound)
	}
	return s.orderDAO.ListBySession(sessionID)
}

// GetPortfolio returns the session snapshot with every position marked at
// the current tick's price. Marks are computed on the fly, not persisted.
func (s *SessionService) GetPortfolio(ctx context.Context, sessionID string) (*types.SessionUpdate, error) {
	session, err := s.sessionDAO.GetByID(sessionID)
	if err != nil {
		return nil, mapNotFound(err, trading.ErrSessionNotFound)
	}
	tick, err := s.resolveTick(ctx, session)
	if err != nil {
		return nil, err
	}
	session.CurrentTick = tick

	positions, err := s.positionDAO.ListBySession(sessionID)
	if err != nil {
		return nil, err
	}
	for i := range positions {
		pos := &positions[i]
		price, err := s.indexer.CurrentPrice(ctx, pos.Symbol, tick)
		if err != nil {
			s.logger.Warnw("mark price unavailable", "session_id", sessionID, "symbol", pos.Symbol, "error", err)
			continue
		}
		s.ledger.MarkToMarket(pos, price)
	}

	return s.snapshot(session, positions), nil
}

// GetQuote returns the market snapshot for a symbol at the session's
// current tick.
func (s *SessionService) GetQuote(ctx context.Context, sessionID, symbol string) (*models.Quote, error) {
	session, err := s.sessionDAO.GetByID(sessionID)
	if err != nil {
		return nil, mapNotFound(err, trading.ErrSessionNotFound)
	}
	tick, err := s.resolveTick(ctx, session)
	if err != nil {
		return nil, err
	}
	return s.indexer.Quote(ctx, symbol, tick)
}

// GetCurrentBar returns the full OHLCV bar at the session's current tick
// together with its UTC calendar date.
func (s *SessionService) GetCurrentBar(ctx context.Context, sessionID, symbol string) (*models.TickData, string, error) {
	session, err := s.sessionDAO.GetByID(sessionID)
	if err != nil {
		return nil, "", mapNotFound(err, trading.ErrSessionNotFound)
	}
	tick, err := s.resolveTick(ctx, session)
	if err != nil {
		return nil, "", err
	}
	bar, err := s.indexer.TickData(ctx, symbol, tick)
	if err != nil {
		return nil, "", err
	}
	date, err := s.indexer.DateForTick(ctx, symbol, tick)
	if err != nil {
		return nil, "", err
	}
	return bar, date, nil
}

// GetChart returns the bars revealed so far: tick 0 through the session's
// current tick inclusive.
func (s *SessionService) GetChart(ctx context.Context, sessionID, symbol string) ([]models.TickData, error) {
	session, err := s.sessionDAO.GetByID(sessionID)
	if err != nil {
		return nil, mapNotFound(err, trading.ErrSessionNotFound)
	}
	tick, err := s.resolveTick(ctx, session)
	if err != nil {
		return nil, err
	}
	return s.indexer.TickRange(ctx, symbol, 0, tick)
}

// AdvanceSession is one sweep over an active session: resync the tick, fill
// crossed pending orders, fire exit conditions, refresh marks and P&L, and
// settle the session if its duration has elapsed. Per-position failures are
// logged and skipped; the sweep always finishes.
func (s *SessionService) AdvanceSession(ctx context.Context, sessionID string) error {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.sessionDAO.GetByID(sessionID)
	if err != nil {
		return mapNotFound(err, trading.ErrSessionNotFound)
	}
	if session.State() != models.SessionActive {
		return nil
	}

	tick, err := s.resolveTick(ctx, session)
	if err != nil {
		return err
	}
	session.CurrentTick = tick

	tx := s.db.Begin()
	if tx.Error != nil {
		return fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	positions, err := s.positionDAO.ListBySessionWithTx(tx, sessionID)
	if err != nil {
		tx.Rollback()
		return err
	}
	bySymbol := make(map[string]*models.Position, len(positions))
	for i := range positions {
		bySymbol[positions[i].Symbol] = &positions[i]
	}

	pending, err := s.orderDAO.ListPendingWithTx(tx, sessionID)
	if err != nil {
		tx.Rollback()
		return err
	}
	for i := range pending {
		order := &pending[i]
		price, err := s.indexer.CurrentPrice(ctx, order.Symbol, tick)
		if err != nil {
			s.logger.Warnw("pending order price unavailable",
				"session_id", sessionID, "order_id", order.ID, "symbol", order.Symbol, "error", err)
			continue
		}
		if !trading.Crossed(order, price) {
			continue
		}

		pos, ok := bySymbol[order.Symbol]
		if !ok {
			s.logger.Errorw("pending order has no position row",
				"session_id", sessionID, "order_id", order.ID, "symbol", order.Symbol)
			continue
		}
		if err := s.ledger.Apply(session, pos, order.Side, order.Quantity, price); err != nil {
			order.Status = models.OrderStatusRejected
			order.Reason = err.Error()
			s.logger.Infow("pending order rejected on fill",
				"session_id", sessionID, "order_id", order.ID, "error", err)
		} else {
			order.Status = models.OrderStatusFilled
			order.Price = price
			order.Tick = tick
			armExitThresholds(pos, order)
			s.logger.Infow("pending order filled",
				"session_id", sessionID, "order_id", order.ID, "symbol", order.Symbol, "price", price, "tick", tick)
		}
		if err := s.orderDAO.UpdateWithTx(tx, order); err != nil {
			tx.Rollback()
			return err
		}
	}

	for i := range positions {
		pos := &positions[i]
		price, err := s.indexer.CurrentPrice(ctx, pos.Symbol, tick)
		if err != nil {
			s.logger.Warnw("sweep price unavailable",
				"session_id", sessionID, "symbol", pos.Symbol, "error", err)
			continue
		}

		if sig, ok := trading.CheckExit(pos, price); ok {
			qty := pos.Holdings
			if err := s.ledger.Apply(session, pos, models.OrderSideSell, qty, price); err != nil {
				s.logger.Errorw("exit fill failed",
					"session_id", sessionID, "symbol", pos.Symbol, "error", err)
			} else {
				exit := &models.Order{
					SessionID: sessionID,
					Symbol:    pos.Symbol,
					Side:      models.OrderSideSell,
					Type:      sig.Kind,
					Status:    models.OrderStatusFilled,
					Quantity:  qty,
					Price:     price,
					Tick:      tick,
					Triggered: true,
				}
				if err := s.orderDAO.CreateWithTx(tx, exit); err != nil {
					tx.Rollback()
					return err
				}
				s.logger.Infow("exit condition fired",
					"session_id", sessionID, "symbol", pos.Symbol, "kind", sig.Kind,
					"threshold", sig.Threshold, "price", price, "quantity", qty)
			}
		} else {
			s.ledger.MarkToMarket(pos, price)
		}

		if err := s.positionDAO.UpdateWithTx(tx, pos); err != nil {
			tx.Rollback()
			return err
		}
	}

	session.PnL = s.ledger.SessionPnL(session, positions)
	if err := s.sessionDAO.UpdateWithTx(tx, session); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("failed to commit sweep: %w", err)
	}

	if session.Expired(s.now()) {
		return s.settle(ctx, session)
	}

	s.pushUpdate(session, positions)
	return nil
}

func (s *SessionService) snapshot(session *models.Session, positions []models.Position) *types.SessionUpdate {
	return &types.SessionUpdate{
		SessionID:   session.ID,
		CurrentTick: session.CurrentTick,
		Cash:        session.Cash,
		IsActive:    session.IsActive,
		PnL:         session.PnL,
		Portfolio:   positions,
		Timestamp:   s.now(),
	}
}

func (s *SessionService) pushUpdate(session *models.Session, positions []models.Position) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.BroadcastSessionUpdate(session.ID, s.snapshot(session, positions))
}

// broadcastSession reloads positions and pushes a snapshot. Used after
// mutations that did not already have the position set in hand.
func (s *SessionService) broadcastSession(ctx context.Context, session *models.Session) {
	if s.broadcaster == nil {
		return
	}
	positions, err := s.positionDAO.ListBySession(session.ID)
	if err != nil {
		s.logger.Warnw("failed to load positions for broadcast", "session_id", session.ID, "error", err)
		return
	}
	s.pushUpdate(session, positions)
}
