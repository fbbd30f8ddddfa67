package analytics

import (
	"math"
	"sort"
	"time"

	"tradejournal/internal/domain"
)

// Metrics holds performance figures computed over a portfolio's closed trades.
type Metrics struct {
	TotalTrades        int
	WinningTrades      int
	LosingTrades       int
	WinRate            float64
	TotalProfit        float64
	ProfitFactor       float64 // gross wins / gross losses
	AverageWin         float64
	AverageLoss        float64
	RiskRewardRatio    float64 // average win / -average loss
	Expectancy         float64
	MaxDrawdown        float64
	FinalBalance       float64
	ReturnOnInvestment float64

	MaxConsecutiveWins   int
	MaxConsecutiveLosses int
	AverageHoldDuration  time.Duration
	MonthlyReturns       map[string]float64
	Drawdowns            []Drawdown
	EquityCurve          []EquityPoint
}

// Drawdown represents a peak-to-recovery period on the equity curve.
type Drawdown struct {
	StartTime  time.Time
	EndTime    time.Time
	StartValue float64
	EndValue   float64
	Depth      float64
	Duration   time.Duration
}

// EquityPoint represents a point on the equity curve.
type EquityPoint struct {
	Time     time.Time
	Value    float64
	Drawdown float64
}

// Analyze computes performance metrics from closed trades. Trades are
// ordered by exit time; RealizedPnL is taken as stored (fee-adjusted at
// close time) and never recomputed here.
func Analyze(closed []*domain.Trade, initialBalance float64) *Metrics {
	m := &Metrics{
		FinalBalance:   initialBalance,
		MonthlyReturns: make(map[string]float64),
		Drawdowns:      make([]Drawdown, 0),
		EquityCurve:    make([]EquityPoint, 0),
	}
	if len(closed) == 0 {
		return m
	}

	trades := make([]*domain.Trade, len(closed))
	copy(trades, closed)
	sort.Slice(trades, func(i, j int) bool {
		return trades[i].ExitTime.Before(trades[j].ExitTime)
	})

	var (
		balance         = initialBalance
		peak            = initialBalance
		grossWins       float64
		grossLosses     float64
		streakWins      int
		streakLosses    int
		currentDrawdown *Drawdown
		totalHold       time.Duration
	)

	for _, trade := range trades {
		m.TotalTrades++
		if trade.RealizedPnL > 0 {
			m.WinningTrades++
			grossWins += trade.RealizedPnL
			streakWins++
			streakLosses = 0
		} else {
			// Breakeven trades count as losses and break a win streak.
			m.LosingTrades++
			grossLosses += -trade.RealizedPnL
			streakLosses++
			streakWins = 0
		}
		if streakWins > m.MaxConsecutiveWins {
			m.MaxConsecutiveWins = streakWins
		}
		if streakLosses > m.MaxConsecutiveLosses {
			m.MaxConsecutiveLosses = streakLosses
		}

		balance += trade.RealizedPnL
		m.TotalProfit += trade.RealizedPnL
		m.FinalBalance = balance
		m.MonthlyReturns[trade.ExitTime.Format("2006-01")] += trade.RealizedPnL
		totalHold += trade.ExitTime.Sub(trade.EntryTime)

		if balance > peak {
			peak = balance
			if currentDrawdown != nil {
				currentDrawdown.EndTime = trade.ExitTime
				currentDrawdown.EndValue = balance
				currentDrawdown.Duration = currentDrawdown.EndTime.Sub(currentDrawdown.StartTime)
				m.Drawdowns = append(m.Drawdowns, *currentDrawdown)
				currentDrawdown = nil
			}
		} else {
			depth := (peak - balance) / peak
			if currentDrawdown == nil {
				currentDrawdown = &Drawdown{
					StartTime:  trade.ExitTime,
					StartValue: peak,
					Depth:      depth,
				}
			} else {
				currentDrawdown.Depth = math.Max(currentDrawdown.Depth, depth)
			}
			if depth > m.MaxDrawdown {
				m.MaxDrawdown = depth
			}
		}

		m.EquityCurve = append(m.EquityCurve, EquityPoint{
			Time:     trade.ExitTime,
			Value:    balance,
			Drawdown: (peak - balance) / peak,
		})
	}

	if currentDrawdown != nil {
		currentDrawdown.EndTime = trades[len(trades)-1].ExitTime
		currentDrawdown.EndValue = balance
		currentDrawdown.Duration = currentDrawdown.EndTime.Sub(currentDrawdown.StartTime)
		m.Drawdowns = append(m.Drawdowns, *currentDrawdown)
	}

	m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades)
	if m.WinningTrades > 0 {
		m.AverageWin = grossWins / float64(m.WinningTrades)
	}
	if m.LosingTrades > 0 {
		m.AverageLoss = -grossLosses / float64(m.LosingTrades)
	}
	if grossLosses > 0 {
		m.ProfitFactor = grossWins / grossLosses
	}
	if m.AverageLoss != 0 {
		m.RiskRewardRatio = m.AverageWin / -m.AverageLoss
	}
	m.Expectancy = (m.WinRate * m.AverageWin) + ((1 - m.WinRate) * m.AverageLoss)
	if initialBalance > 0 {
		m.ReturnOnInvestment = (m.FinalBalance - initialBalance) / initialBalance
	}
	m.AverageHoldDuration = totalHold / time.Duration(len(trades))

	return m
}

// MonthlyReturn represents a monthly return value.
type MonthlyReturn struct {
	Month  time.Time
	Return float64
}

// SortedMonthlyReturns returns the monthly returns as a chronologically
// sorted slice.
func (m *Metrics) SortedMonthlyReturns() []MonthlyReturn {
	returns := make([]MonthlyReturn, 0, len(m.MonthlyReturns))
	for month, profit := range m.MonthlyReturns {
		date, _ := time.Parse("2006-01", month)
		returns = append(returns, MonthlyReturn{Month: date, Return: profit})
	}
	sort.Slice(returns, func(i, j int) bool {
		return returns[i].Month.Before(returns[j].Month)
	})
	return returns
}
